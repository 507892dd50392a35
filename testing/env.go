// Package testing prepares the process environment for package tests.
// Import it for side effects:
//
//	import _ "github.com/roommend/roommend/testing"
package testing

import "os"

// defaults are applied only where the variable is unset, so a developer can
// still point tests at a real Redis with SESSION_STORE=redis.
var defaults = []struct{ key, value string }{
	{"ROOMMEND_TEST_MODE", "1"},
	{"SESSION_STORE", "memory"},
	{"LOG_LEVEL", "error"},
}

func init() {
	for _, d := range defaults {
		if _, ok := os.LookupEnv(d.key); !ok {
			_ = os.Setenv(d.key, d.value)
		}
	}
}
