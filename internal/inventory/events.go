package inventory

import "time"

// DriftDetectedEvent is raised when a product's stock disagrees with its ledger.
type DriftDetectedEvent struct {
	Result     ReconcileResult
	DetectedAt time.Time
}
