package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	_ "github.com/agencydesk/agencydesk/internal/testing/guard"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("AGENCYDESK_TEST_MODE", "1")
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
