package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "LOG_LEVEL", "DB_BACKEND",
		"DATABASE_URL", "DB_MIN_CONNS", "DB_MAX_CONNS", "DB_MAX_CONN_IDLE_TIME",
		"DB_COMMAND_TIMEOUT", "DB_ACQUIRE_TIMEOUT",
		"GATEWAY_URL", "GATEWAY_API_KEY", "GATEWAY_TIMEOUT", "GATEWAY_MAX_RETRIES",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestRun_FailsWithoutConnectionString(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_BACKEND", "direct")

	// The factory error path must surface as a nonzero exit code, reached
	// through run's normal return so deferred cleanup still fires.
	assert.Equal(t, 1, run(nil))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
		{"nonsense", "INFO"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in).String(), "level %q", tt.in)
	}
}
