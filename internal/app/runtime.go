package app

import (
	"os"
	"strconv"
)

// TestModeEnv disables startup side effects in binaries when set to a true value.
const TestModeEnv = "ROOMMEND_TEST_MODE"

// InTestMode reports whether ROOMMEND_TEST_MODE is set to a true value.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
