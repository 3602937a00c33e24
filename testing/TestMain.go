// Package testing prepares a hermetic environment for package tests that
// start the binaries' wiring.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("JOURNAL_TEST_MODE", "1")
		// keep tests away from a developer's real queue and server
		_ = os.Setenv("JOURNAL_STATE_PATH", "")
		if os.Getenv("JOURNAL_SERVER_URL") == "" {
			_ = os.Setenv("JOURNAL_SERVER_URL", "http://127.0.0.1:0")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain runs m with test mode enabled.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
