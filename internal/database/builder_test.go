package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBuilder_SelectWithFilterOrderLimit(t *testing.T) {
	q := newQueryBuilder("users", nil)
	q.Select("id,name").Eq("id", 1).Order("name", true).Limit(10)

	sql, args, ok := q.render()
	require.True(t, ok)
	assert.Equal(t, "SELECT id,name FROM users WHERE id = $1 ORDER BY name ASC LIMIT 10", sql)
	assert.Equal(t, []any{1}, args)
}

func TestQueryBuilder_ParameterMonotonicity(t *testing.T) {
	q := newQueryBuilder("flights", nil)
	q.Eq("origin", "LHR").
		Neq("status", "cancelled").
		Gt("price", 100).
		Lt("price", 900).
		Gte("seats", 1).
		Lte("stops", 2)

	sql, args, ok := q.render()
	require.True(t, ok)
	assert.Equal(t,
		"SELECT * FROM flights WHERE origin = $1 AND status != $2 AND price > $3"+
			" AND price < $4 AND seats >= $5 AND stops <= $6",
		sql)
	assert.Equal(t, []any{"LHR", "cancelled", 100, 900, 1, 2}, args)

	// Each placeholder appears exactly once.
	for i := 1; i <= 6; i++ {
		assert.Equal(t, 1, countOccurrences(sql, fmt.Sprintf("$%d", i)))
	}
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}

func TestQueryBuilder_RangeWinsOverLimitOffset(t *testing.T) {
	q := newQueryBuilder("accommodations", nil)
	q.Limit(50).Offset(100).Range(10, 29)

	sql, _, ok := q.render()
	require.True(t, ok)
	assert.Contains(t, sql, "LIMIT 20 OFFSET 10")
	assert.NotContains(t, sql, "LIMIT 50")
	assert.NotContains(t, sql, "OFFSET 100")
}

func TestQueryBuilder_RangeBeforeLimitStillWins(t *testing.T) {
	q := newQueryBuilder("accommodations", nil)
	q.Range(0, 9).Limit(50)

	sql, _, ok := q.render()
	require.True(t, ok)
	assert.Contains(t, sql, "LIMIT 10 OFFSET 0")
}

func TestQueryBuilder_OrderOverwrites(t *testing.T) {
	q := newQueryBuilder("bookings", nil)
	q.Order("created_at", true).Order("price", false)

	sql, _, ok := q.render()
	require.True(t, ok)
	assert.Contains(t, sql, "ORDER BY price DESC")
	assert.NotContains(t, sql, "created_at")
}

func TestQueryBuilder_UpdateParamsBeforeWhereParams(t *testing.T) {
	// Filter-before-update and update-before-filter must render the same
	// argument order: SET values first, WHERE values after.
	first := newQueryBuilder("users", nil)
	first.Update(Row{"x": 1}).Eq("id", 5)

	second := newQueryBuilder("users", nil)
	second.Eq("id", 5).Update(Row{"x": 1})

	for _, q := range []*QueryBuilder{first, second} {
		sql, args, ok := q.render()
		require.True(t, ok)
		assert.Equal(t, "UPDATE users SET x = $1 WHERE id = $2 RETURNING *", sql)
		assert.Equal(t, []any{1, 5}, args)
	}
}

func TestQueryBuilder_UpdateMultipleColumns(t *testing.T) {
	q := newQueryBuilder("bookings", nil)
	q.Eq("id", "bk_1").Neq("status", "cancelled").Update(Row{"status": "confirmed", "price": 250})

	sql, args, ok := q.render()
	require.True(t, ok)
	// SET columns render in deterministic (sorted) order; WHERE params follow.
	assert.Equal(t,
		"UPDATE bookings SET price = $1, status = $2 WHERE id = $3 AND status != $4 RETURNING *",
		sql)
	assert.Equal(t, []any{250, "confirmed", "bk_1", "cancelled"}, args)
}

func TestQueryBuilder_InsertSingleRecordNormalized(t *testing.T) {
	q := newQueryBuilder("users", nil)
	q.Insert(Row{"name": "a"})

	sql, args, ok := q.render()
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO users (name) VALUES ($1) RETURNING *", sql)
	assert.Equal(t, []any{"a"}, args)
}

func TestQueryBuilder_InsertMultipleRecords(t *testing.T) {
	q := newQueryBuilder("users", nil)
	q.Insert([]Row{
		{"email": "a@example.com", "name": "a"},
		{"email": "b@example.com", "name": "b"},
	})

	sql, args, ok := q.render()
	require.True(t, ok)
	assert.Equal(t,
		"INSERT INTO users (email, name) VALUES ($1, $2), ($3, $4) RETURNING *",
		sql)
	assert.Equal(t, []any{"a@example.com", "a", "b@example.com", "b"}, args)
}

func TestQueryBuilder_InsertAcceptsPlainMapSlice(t *testing.T) {
	// Row aliases map[string]any, so a caller-built []map[string]any must
	// normalize the same way a []Row does.
	q := newQueryBuilder("users", nil)
	q.Insert([]map[string]any{{"name": "a"}, {"name": "b"}})

	sql, args, ok := q.render()
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO users (name) VALUES ($1), ($2) RETURNING *", sql)
	assert.Equal(t, []any{"a", "b"}, args)
}

func TestQueryBuilder_InsertEmptyDataReturnsEmptyResult(t *testing.T) {
	q := newQueryBuilder("users", nil)
	q.Insert([]Row{})

	// Execute must not touch the executor: nil exec would panic otherwise.
	res, err := q.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Zero(t, res.Count)
}

func TestQueryBuilder_DeleteWithFilter(t *testing.T) {
	q := newQueryBuilder("bookings", nil)
	q.Delete().Eq("id", 7)

	sql, args, ok := q.render()
	require.True(t, ok)
	assert.Equal(t, "DELETE FROM bookings WHERE id = $1 RETURNING *", sql)
	assert.Equal(t, []any{7}, args)
}

func TestQueryBuilder_NoCrossBuilderStateLeakage(t *testing.T) {
	first := newQueryBuilder("users", nil)
	first.Insert(Row{"name": "a"})
	second := newQueryBuilder("users", nil)
	second.Insert(Row{"name": "b"})

	sqlA, argsA, ok := first.render()
	require.True(t, ok)
	sqlB, argsB, ok := second.render()
	require.True(t, ok)

	assert.Equal(t, "INSERT INTO users (name) VALUES ($1) RETURNING *", sqlA)
	assert.Equal(t, sqlA, sqlB)
	assert.Equal(t, []any{"a"}, argsA)
	assert.Equal(t, []any{"b"}, argsB)
}

func TestQueryBuilder_DebugSQL(t *testing.T) {
	q := newQueryBuilder("flights", nil)
	q.Select("id").Gte("departure", "2026-09-01").Order("departure", true).Limit(5)

	assert.Equal(t,
		"SELECT id FROM flights WHERE departure >= $1 ORDER BY departure ASC LIMIT 5",
		q.DebugSQL())
}

type recordingExecutor struct {
	sql  string
	args []any
	res  *Result
	err  error
}

func (r *recordingExecutor) executeStatement(_ context.Context, sql string, args []any) (*Result, error) {
	r.sql = sql
	r.args = args
	return r.res, r.err
}

func TestQueryBuilder_ExecuteDelegatesToProvider(t *testing.T) {
	exec := &recordingExecutor{res: &Result{Rows: []Row{{"id": 1}}, Columns: []string{"id"}, Count: 1}}
	q := newQueryBuilder("users", exec)
	q.Eq("id", 1)

	res, err := q.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "SELECT * FROM users WHERE id = $1", exec.sql)
	assert.Equal(t, []any{1}, exec.args)
}
