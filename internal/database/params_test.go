package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateNamed_Basic(t *testing.T) {
	sql, args, err := translateNamed(
		"SELECT * FROM flights WHERE origin = :origin AND price < :max_price",
		map[string]any{"origin": "LHR", "max_price": 500},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM flights WHERE origin = $1 AND price < $2", sql)
	assert.Equal(t, []any{"LHR", 500}, args)
}

func TestTranslateNamed_RepeatedNameSharesIndex(t *testing.T) {
	sql, args, err := translateNamed(
		"SELECT * FROM routes WHERE origin = :city OR destination = :city",
		map[string]any{"city": "AMS"},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM routes WHERE origin = $1 OR destination = $1", sql)
	assert.Equal(t, []any{"AMS"}, args)
}

func TestTranslateNamed_SkipsTypeCasts(t *testing.T) {
	sql, args, err := translateNamed(
		"SELECT departure::date FROM flights WHERE id = :id",
		map[string]any{"id": 9},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT departure::date FROM flights WHERE id = $1", sql)
	assert.Equal(t, []any{9}, args)
}

func TestTranslateNamed_SkipsQuotedLiterals(t *testing.T) {
	sql, args, err := translateNamed(
		"SELECT * FROM notes WHERE body = 'time: :noon' AND id = :id",
		map[string]any{"id": 1},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM notes WHERE body = 'time: :noon' AND id = $1", sql)
	assert.Equal(t, []any{1}, args)
}

func TestTranslateNamed_MissingValue(t *testing.T) {
	_, _, err := translateNamed("SELECT * FROM t WHERE id = :id", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":id")
}

func TestTranslateNamed_UnusedParam(t *testing.T) {
	_, _, err := translateNamed("SELECT 1", map[string]any{"ghost": true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestTranslateNamed_PositionalPassthrough(t *testing.T) {
	sql, args, err := translateNamed("SELECT * FROM t WHERE id = $1", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE id = $1", sql)
	assert.Empty(t, args)
}
