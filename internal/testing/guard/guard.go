// Package guard switches the binaries into test mode when imported for its
// side effect.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("JOURNAL_TEST_MODE") == "" {
			_ = os.Setenv("JOURNAL_TEST_MODE", "1")
		}
	})
}
