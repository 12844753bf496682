package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBError_ErrorFormatting(t *testing.T) {
	plain := NewDatabaseError("transaction already in progress")
	assert.Equal(t, "transaction_protocol: transaction already in progress", plain.Error())

	cause := errors.New("dial tcp: connection refused")
	wrapped := NewConnectionError("failed to create connection pool", cause)
	assert.Contains(t, wrapped.Error(), "connection_failed")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestDBError_UnwrapPreservesCause(t *testing.T) {
	cause := errors.New("driver-level failure")
	err := NewQueryError("statement execution failed", cause, "SELECT 1", nil)

	assert.True(t, errors.Is(err, cause))

	// Wrapping with fmt keeps the taxonomy reachable.
	outer := fmt.Errorf("booking flow: %w", err)
	var dbErr *DBError
	require.True(t, errors.As(outer, &dbErr))
	assert.Equal(t, ErrCodeQueryFailed, dbErr.Code)
}

func TestNewQueryError_CarriesStatement(t *testing.T) {
	err := NewQueryError("statement execution failed", errors.New("bad"),
		"SELECT * FROM flights WHERE id = $1", []any{7})

	assert.Equal(t, "SELECT * FROM flights WHERE id = $1", err.Query)
	assert.Equal(t, []any{7}, err.Params)
}

func TestNewNotConnectedError_NamesOperation(t *testing.T) {
	err := NewNotConnectedError("statement execution")
	assert.Contains(t, err.Error(), "statement execution")
	assert.Contains(t, err.Error(), "Connect")
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsConnectionError(NewConnectionError("x", nil)))
	assert.True(t, IsNotConnected(NewNotConnectedError("x")))
	assert.True(t, IsQueryError(NewQueryError("x", nil, "", nil)))
	assert.True(t, IsDatabaseError(NewDatabaseError("x")))
	assert.True(t, IsConfigurationError(NewConfigurationError("x")))

	// Each predicate matches only its own code.
	assert.False(t, IsQueryError(NewConnectionError("x", nil)))
	assert.False(t, IsNotConnected(NewDatabaseError("x")))
	assert.False(t, IsQueryError(errors.New("plain")))
	assert.False(t, IsQueryError(nil))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeQueryFailed, CodeOf(NewQueryError("x", nil, "", nil)))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}
