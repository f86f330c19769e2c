package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("AGENCYDESK_TEST_MODE") == "" {
			_ = os.Setenv("AGENCYDESK_TEST_MODE", "1")
		}
	})
}
