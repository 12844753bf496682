package database

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"tripbase/internal/types"
)

// gatewayTable is the gateway's native Table implementation. It builds
// REST table-endpoint requests (filters and modifiers as query parameters)
// instead of SQL text, but presents the same fluent contract as the direct
// variant's QueryBuilder so call sites stay backend-portable.
type gatewayTable struct {
	name     string
	provider *GatewayProvider

	selectCols string
	filters    url.Values
	order      string
	limit      *int
	offset     *int
	rangeFrom  *int
	rangeTo    *int

	operation  string
	insertRows []Row
	updateData Row
}

func newGatewayTable(name string, provider *GatewayProvider) *gatewayTable {
	return &gatewayTable{
		name:       name,
		provider:   provider,
		selectCols: "*",
		filters:    url.Values{},
		operation:  opSelect,
	}
}

// Select sets the projected columns (comma-separated, default "*").
func (t *gatewayTable) Select(columns string) Table {
	t.selectCols = columns
	return t
}

func (t *gatewayTable) filter(column, op string, value any) Table {
	t.filters.Add(column, fmt.Sprintf("%s.%v", op, value))
	return t
}

func (t *gatewayTable) Eq(column string, value any) Table  { return t.filter(column, "eq", value) }
func (t *gatewayTable) Neq(column string, value any) Table { return t.filter(column, "neq", value) }
func (t *gatewayTable) Gt(column string, value any) Table  { return t.filter(column, "gt", value) }
func (t *gatewayTable) Lt(column string, value any) Table  { return t.filter(column, "lt", value) }
func (t *gatewayTable) Gte(column string, value any) Table { return t.filter(column, "gte", value) }
func (t *gatewayTable) Lte(column string, value any) Table { return t.filter(column, "lte", value) }

// Order sets the ordering column and direction; a later call overwrites.
func (t *gatewayTable) Order(column string, ascending bool) Table {
	direction := "asc"
	if !ascending {
		direction = "desc"
	}
	t.order = column + "." + direction
	return t
}

func (t *gatewayTable) Limit(n int) Table {
	t.limit = &n
	return t
}

func (t *gatewayTable) Offset(n int) Table {
	t.offset = &n
	return t
}

// Range sets both paging bounds at once and wins over Limit/Offset.
func (t *gatewayTable) Range(from, to int) Table {
	t.rangeFrom = &from
	t.rangeTo = &to
	return t
}

func (t *gatewayTable) Insert(data any) Table {
	t.operation = opInsert
	switch d := data.(type) {
	case Row:
		t.insertRows = []Row{d}
	case []Row:
		t.insertRows = d
	}
	return t
}

func (t *gatewayTable) Update(data Row) Table {
	t.operation = opUpdate
	t.updateData = data
	return t
}

func (t *gatewayTable) Delete() Table {
	t.operation = opDelete
	return t
}

// Execute issues the REST request for the accumulated description. An
// INSERT with no records is a no-op that returns an empty result.
func (t *gatewayTable) Execute(ctx context.Context) (*Result, error) {
	t.provider.mu.RLock()
	client := t.provider.client
	t.provider.mu.RUnlock()
	if client == nil {
		return nil, types.NewNotConnectedError("table query")
	}

	query := url.Values{}
	for column, values := range t.filters {
		for _, v := range values {
			query.Add(column, v)
		}
	}

	var (
		method string
		body   any
		header = http.Header{}
	)

	switch t.operation {
	case opInsert:
		if len(t.insertRows) == 0 {
			return &Result{Rows: []Row{}, Columns: []string{}}, nil
		}
		method = http.MethodPost
		body = t.insertRows
		header.Set("Prefer", "return=representation")
	case opUpdate:
		method = http.MethodPatch
		body = t.updateData
		header.Set("Prefer", "return=representation")
	case opDelete:
		method = http.MethodDelete
		header.Set("Prefer", "return=representation")
	default:
		method = http.MethodGet
		query.Set("select", t.selectCols)
		if t.order != "" {
			query.Set("order", t.order)
		}
		if t.rangeFrom != nil && t.rangeTo != nil {
			header.Set("Range", fmt.Sprintf("%d-%d", *t.rangeFrom, *t.rangeTo))
		} else {
			if t.limit != nil {
				query.Set("limit", strconv.Itoa(*t.limit))
			}
			if t.offset != nil {
				query.Set("offset", strconv.Itoa(*t.offset))
			}
		}
	}

	raw, err := client.Rest(ctx, method, t.name, query, body, header)
	if err != nil {
		return nil, types.NewQueryError("table request failed", err,
			fmt.Sprintf("%s %s", method, t.name), nil)
	}

	res, err := decodeJSONRows(raw)
	if err != nil {
		return nil, types.NewQueryError("failed to decode gateway response", err,
			fmt.Sprintf("%s %s", method, t.name), nil)
	}
	return res, nil
}
