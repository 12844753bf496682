// Package database implements the uniform access layer over the two
// PostgreSQL-compatible backends: a direct binary-protocol backend reached
// through a pooled pgx connection, and a REST-gateway backend reached
// through an HTTP API client. Business services depend only on the Provider
// and Table contracts defined here; both variants return identical result
// and error shapes.
//
// Table and column identifiers are interpolated into SQL text verbatim.
// They must come from trusted application code, never from user input.
package database

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Row is one result record keyed by column name.
type Row = map[string]any

// Result is the backend-agnostic shape returned by every execution method:
// an ordered sequence of records, the column order of the underlying result
// set, and a record count.
type Result struct {
	Rows    []Row
	Columns []string
	Count   int
}

// Table is the fluent, backend-portable query surface returned by
// Provider.Table. Chained calls mutate and return the same instance and
// perform no I/O; Execute consumes the builder exactly once. The
// direct-protocol variant renders SQL (*QueryBuilder); the gateway variant
// builds native REST table requests instead.
type Table interface {
	Select(columns string) Table
	Eq(column string, value any) Table
	Neq(column string, value any) Table
	Gt(column string, value any) Table
	Lt(column string, value any) Table
	Gte(column string, value any) Table
	Lte(column string, value any) Table
	Order(column string, ascending bool) Table
	Limit(n int) Table
	Offset(n int) Table
	Range(from, to int) Table
	Insert(data any) Table
	Update(data Row) Table
	Delete() Table
	Execute(ctx context.Context) (*Result, error)
}

// Provider is the capability set shared by both backend variants. Exactly
// one variant is constructed per configuration; callers must Connect
// explicitly before issuing statements.
type Provider interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// Table returns a fluent query builder bound to this provider. Missing
	// connectivity surfaces from Execute, not from Table itself.
	Table(name string) Table

	// ExecuteSQL runs raw SQL with optional named (:name) parameters.
	ExecuteSQL(ctx context.Context, query string, params map[string]any) (*Result, error)

	// ExecutePreparedSQL runs SQL with positional ($n) parameters.
	ExecutePreparedSQL(ctx context.Context, query string, args ...any) (*Result, error)

	// TablesExist reports, per table name, whether the table exists in the
	// public schema.
	TablesExist(ctx context.Context, names []string) (map[string]bool, error)

	// Transaction runs fn inside a single transaction. The context passed
	// to fn carries the transaction binding; statements issued through this
	// provider with that context execute on the one pinned connection. fn
	// returning an error (including context cancellation) rolls the
	// transaction back and returns that same error.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// DBTX is the minimal statement interface shared by *pgxpool.Conn and
// pgx.Tx, so the same execution path works inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// tableExistsQuery probes one table name in the public schema. Written with
// a named parameter so both variants can issue it through ExecuteSQL.
const tableExistsQuery = `SELECT EXISTS (
	SELECT 1 FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = :table_name
) AS "exists"`

// existsFromResult extracts the boolean from a tableExistsQuery result.
func existsFromResult(res *Result) bool {
	if len(res.Rows) == 0 {
		return false
	}
	b, ok := res.Rows[0]["exists"].(bool)
	return ok && b
}

// collectRows drains a pgx result set into the normalized shape.
func collectRows(rows pgx.Rows) (*Result, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	out := &Result{Rows: []Row{}, Columns: columns}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		record := make(Row, len(columns))
		for i, col := range columns {
			record[col] = values[i]
		}
		out.Rows = append(out.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out.Count = len(out.Rows)
	return out, nil
}

// decodeJSONRows converts a gateway JSON response body into the normalized
// shape. The gateway returns either a JSON array of records or an empty
// body (for statements producing no rows). JSON objects carry no field
// order, so columns are reported sorted.
func decodeJSONRows(raw []byte) (*Result, error) {
	out := &Result{Rows: []Row{}, Columns: []string{}}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}

	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		// Some RPC responses are a single object rather than an array.
		var single map[string]any
		if errSingle := json.Unmarshal(raw, &single); errSingle != nil {
			return nil, err
		}
		records = []map[string]any{single}
	}

	for _, rec := range records {
		out.Rows = append(out.Rows, Row(rec))
	}
	if len(out.Rows) > 0 {
		for col := range out.Rows[0] {
			out.Columns = append(out.Columns, col)
		}
		sort.Strings(out.Columns)
	}

	out.Count = len(out.Rows)
	return out, nil
}
