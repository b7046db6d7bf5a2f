package app

import (
	"os"
	"sync"
)

// TestModeEnv is set by the test harness so binaries return before dialling
// Postgres or Redis.
const TestModeEnv = "CAMPUSDESK_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	return testMode()
}
