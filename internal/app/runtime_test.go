package app

import (
	"mime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInTestMode(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "true": true, "0": false, "": false, "yes": false} {
		t.Setenv(TestModeEnv, value)
		assert.Equal(t, want, InTestMode(), "value %q", value)
	}
}

func TestStaticTypesRegistered(t *testing.T) {
	for ext := range staticTypes {
		assert.NotEmpty(t, mime.TypeByExtension(ext), ext)
	}
}
