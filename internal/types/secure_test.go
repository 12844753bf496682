package types

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretString_RedactsInFormatting(t *testing.T) {
	secret := SecretString("postgres://trip:hunter2@db:5432/tripbase")

	assert.Equal(t, "***REDACTED***", secret.String())
	assert.Equal(t, "***REDACTED***", fmt.Sprintf("%s", secret))
	assert.Equal(t, "***REDACTED***", fmt.Sprintf("%v", secret))
}

func TestSecretString_RedactsInJSON(t *testing.T) {
	payload := struct {
		URL SecretString `json:"url"`
	}{URL: "postgres://trip:hunter2@db:5432/tripbase"}

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
	assert.Contains(t, string(out), "***REDACTED***")
}

func TestSecretString_UnmaskReturnsRawValue(t *testing.T) {
	secret := SecretString("raw-api-key")
	assert.Equal(t, "raw-api-key", secret.Unmask())
}
