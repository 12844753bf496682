package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// operation kinds for a QueryBuilder.
const (
	opSelect = "SELECT"
	opInsert = "INSERT"
	opUpdate = "UPDATE"
	opDelete = "DELETE"
)

// whereClause is one structural comparison filter. Parameter indices are not
// assigned here; the render pass numbers all placeholders in a single sweep
// so an UPDATE can place SET values before WHERE values without rewriting
// already-built SQL.
type whereClause struct {
	column string
	op     string
	value  any
}

// statementExecutor runs one rendered statement. The direct provider
// implements it; builders hold it so Execute needs no provider import.
type statementExecutor interface {
	executeStatement(ctx context.Context, sql string, args []any) (*Result, error)
}

// QueryBuilder is the backend-portable Table implementation used by the
// direct-protocol provider. It accumulates a structural description of one
// statement and renders it to parameterized SQL when executed. A builder is
// created per Provider.Table call, mutated through chaining, consumed once
// by Execute, and then discarded.
type QueryBuilder struct {
	table      string
	columns    string
	wheres     []whereClause
	orderBy    string
	limit      *int
	offset     *int
	rangeFrom  *int
	rangeTo    *int
	operation  string
	insertRows []Row
	updateData Row
	exec       statementExecutor
}

// newQueryBuilder creates a SELECT * builder for the given table.
func newQueryBuilder(table string, exec statementExecutor) *QueryBuilder {
	return &QueryBuilder{
		table:     table,
		columns:   "*",
		operation: opSelect,
		exec:      exec,
	}
}

// Select sets the projected columns (comma-separated, default "*").
func (q *QueryBuilder) Select(columns string) Table {
	q.columns = columns
	return q
}

func (q *QueryBuilder) where(column, op string, value any) Table {
	q.wheres = append(q.wheres, whereClause{column: column, op: op, value: value})
	return q
}

// Eq appends an equality filter.
func (q *QueryBuilder) Eq(column string, value any) Table { return q.where(column, "=", value) }

// Neq appends an inequality filter.
func (q *QueryBuilder) Neq(column string, value any) Table { return q.where(column, "!=", value) }

// Gt appends a greater-than filter.
func (q *QueryBuilder) Gt(column string, value any) Table { return q.where(column, ">", value) }

// Lt appends a less-than filter.
func (q *QueryBuilder) Lt(column string, value any) Table { return q.where(column, "<", value) }

// Gte appends a greater-or-equal filter.
func (q *QueryBuilder) Gte(column string, value any) Table { return q.where(column, ">=", value) }

// Lte appends a less-or-equal filter.
func (q *QueryBuilder) Lte(column string, value any) Table { return q.where(column, "<=", value) }

// Order sets the ordering column and direction. A later call overwrites the
// previous ordering, it does not append.
func (q *QueryBuilder) Order(column string, ascending bool) Table {
	direction := "ASC"
	if !ascending {
		direction = "DESC"
	}
	q.orderBy = column + " " + direction
	return q
}

// Limit sets the maximum number of rows returned.
func (q *QueryBuilder) Limit(n int) Table {
	q.limit = &n
	return q
}

// Offset sets the number of rows skipped.
func (q *QueryBuilder) Offset(n int) Table {
	q.offset = &n
	return q
}

// Range sets both paging bounds at once (inclusive row positions). When set,
// it takes precedence over Limit/Offset: the rendered SELECT uses
// LIMIT to-from+1 OFFSET from.
func (q *QueryBuilder) Range(from, to int) Table {
	q.rangeFrom = &from
	q.rangeTo = &to
	return q
}

// Insert switches the builder to an INSERT of the given data: a single
// record (Row) or a slice of records. A single record is normalized to a
// one-element list. Row aliases map[string]any, so plain map literals and
// slices of them match these cases directly.
func (q *QueryBuilder) Insert(data any) Table {
	q.operation = opInsert
	switch d := data.(type) {
	case Row:
		q.insertRows = []Row{d}
	case []Row:
		q.insertRows = d
	}
	return q
}

// Update switches the builder to an UPDATE with the given SET payload.
func (q *QueryBuilder) Update(data Row) Table {
	q.operation = opUpdate
	q.updateData = data
	return q
}

// Delete switches the builder to a DELETE with no payload.
func (q *QueryBuilder) Delete() Table {
	q.operation = opDelete
	return q
}

// Execute renders the statement and runs it through the bound provider.
// An INSERT with no records is a no-op that returns an empty result.
func (q *QueryBuilder) Execute(ctx context.Context) (*Result, error) {
	sql, args, ok := q.render()
	if !ok {
		return &Result{Rows: []Row{}, Columns: []string{}}, nil
	}
	return q.exec.executeStatement(ctx, sql, args)
}

// DebugSQL returns the rendered statement text with its positional
// placeholders, for logging and diagnostics. It performs no I/O.
func (q *QueryBuilder) DebugSQL() string {
	sql, _, _ := q.render()
	return sql
}

// render produces the SQL text and positional arguments for the current
// operation. All placeholder indices are assigned here, in one pass: for
// UPDATE, SET values occupy the leading indices and WHERE values follow, so
// the final argument list is always [set values..., where values...]. The
// returned bool is false only for an INSERT with no records.
func (q *QueryBuilder) render() (string, []any, bool) {
	switch q.operation {
	case opInsert:
		return q.renderInsert()
	case opUpdate:
		return q.renderUpdate()
	case opDelete:
		return q.renderDelete()
	default:
		return q.renderSelect()
	}
}

func (q *QueryBuilder) renderSelect() (string, []any, bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", q.columns, q.table)
	args := q.renderWhere(&b, 1)

	if q.orderBy != "" {
		b.WriteString(" ORDER BY " + q.orderBy)
	}

	// Range wins over Limit/Offset when both are set.
	if q.rangeFrom != nil && q.rangeTo != nil {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", *q.rangeTo-*q.rangeFrom+1, *q.rangeFrom)
	} else {
		if q.limit != nil {
			fmt.Fprintf(&b, " LIMIT %d", *q.limit)
		}
		if q.offset != nil {
			fmt.Fprintf(&b, " OFFSET %d", *q.offset)
		}
	}

	return b.String(), args, true
}

func (q *QueryBuilder) renderInsert() (string, []any, bool) {
	if len(q.insertRows) == 0 {
		return "", nil, false
	}

	columns := sortedKeys(q.insertRows[0])
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", q.table, strings.Join(columns, ", "))

	var args []any
	index := 1
	for i, record := range q.insertRows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", index)
			args = append(args, record[col])
			index++
		}
		b.WriteString(")")
	}

	b.WriteString(" RETURNING *")
	return b.String(), args, true
}

func (q *QueryBuilder) renderUpdate() (string, []any, bool) {
	columns := sortedKeys(q.updateData)
	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET ", q.table)

	var args []any
	index := 1
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = $%d", col, index)
		args = append(args, q.updateData[col])
		index++
	}

	args = append(args, q.renderWhere(&b, index)...)
	b.WriteString(" RETURNING *")
	return b.String(), args, true
}

func (q *QueryBuilder) renderDelete() (string, []any, bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s", q.table)
	args := q.renderWhere(&b, 1)
	b.WriteString(" RETURNING *")
	return b.String(), args, true
}

// renderWhere writes the WHERE clause (if any) with placeholder indices
// starting at start, returning the clause arguments in filter-call order.
func (q *QueryBuilder) renderWhere(b *strings.Builder, start int) []any {
	if len(q.wheres) == 0 {
		return nil
	}

	args := make([]any, 0, len(q.wheres))
	b.WriteString(" WHERE ")
	for i, clause := range q.wheres {
		if i > 0 {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(b, "%s %s $%d", clause.column, clause.op, start+i)
		args = append(args, clause.value)
	}
	return args
}

// sortedKeys returns the record's column names in deterministic order.
func sortedKeys(record Row) []string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
