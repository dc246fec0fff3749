package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LUMINA_TEST_MODE") == "" {
			_ = os.Setenv("LUMINA_TEST_MODE", "1")
		}
	})
}
