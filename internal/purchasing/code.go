package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/storeops/storeops/internal/shared"
)

// DefaultCodeAttempts bounds code generation retries.
const DefaultCodeAttempts = 10

// CodeGenerator produces PO-<year>-<sequence>-<disambiguator> codes.
type CodeGenerator struct {
	MaxAttempts   int
	Disambiguator func() string
}

func randomDisambiguator() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
}

func (g CodeGenerator) attempts() int {
	if g.MaxAttempts <= 0 {
		return DefaultCodeAttempts
	}
	return g.MaxAttempts
}

func (g CodeGenerator) format(year int, sequence int64) string {
	next := g.Disambiguator
	if next == nil {
		next = randomDisambiguator
	}
	return fmt.Sprintf("PO-%d-%04d-%s", year, sequence, next())
}

// insertWithCode assigns a unique code to po and inserts its header,
// retrying on collisions until attempts run out.
func (s *Service) insertWithCode(ctx context.Context, tx TxRepository, po *PurchaseOrder) error {
	year := po.CreatedAt.Year()
	for attempt := 1; attempt <= s.codes.attempts(); attempt++ {
		sequence, err := tx.NextCodeSequence(ctx, po.StoreID, year)
		if err != nil {
			return err
		}
		po.Code = s.codes.format(year, sequence)
		id, err := tx.InsertPurchaseOrder(ctx, *po)
		if errors.Is(err, errDuplicateCode) {
			s.logger.Debug("purchase order code collision", "code", po.Code, "attempt", attempt)
			continue
		}
		if err != nil {
			return err
		}
		po.ID = id
		return nil
	}
	return fmt.Errorf("%w: after %d attempts", shared.ErrCodeGenerationExhausted, s.codes.attempts())
}
