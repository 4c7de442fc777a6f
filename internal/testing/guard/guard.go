// Package guard switches the process into test mode when imported by tests.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("STOREOPS_TEST_MODE") == "" {
			_ = os.Setenv("STOREOPS_TEST_MODE", "1")
		}
	})
}
