package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// sqlBackend abstrae el driver concreto (pgx o database/sql).
type sqlBackend interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	query(ctx context.Context, query string, width int, args ...any) ([][]any, error)
}

// dialect encapsula las diferencias de placeholders y tipos entre motores.
type dialect struct {
	name        string
	placeholder func(n int) string
	encode      func(kind Kind, v any) (any, error)
	decode      func(kind Kind, v any) (any, error)
}

// SQLGateway implementa Gateway generando SQL a partir de la lista blanca del Schema.
type SQLGateway struct {
	backend sqlBackend
	dialect dialect
	schema  Schema
}

func newSQLGateway(backend sqlBackend, d dialect, schema Schema) *SQLGateway {
	if schema == nil {
		schema = ChatSchema
	}
	return &SQLGateway{backend: backend, dialect: d, schema: schema}
}

func (g *SQLGateway) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	t, err := g.schema.table(table)
	if err != nil {
		return nil, err
	}
	query, args, err := g.buildSelect(t, q)
	if err != nil {
		return nil, err
	}

	raw, err := g.backend.query(ctx, query, len(t.Columns), args...)
	if err != nil {
		return nil, fmt.Errorf("%s select %s: %w", g.dialect.name, table, err)
	}

	rows := make([]Row, 0, len(raw))
	for _, values := range raw {
		row := make(Row, len(t.Columns))
		for i, col := range t.Columns {
			v, err := g.dialect.decode(col.Kind, values[i])
			if err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", table, col.Name, err)
			}
			row[col.Name] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (g *SQLGateway) Insert(ctx context.Context, table string, rows ...Row) error {
	t, err := g.schema.table(table)
	if err != nil {
		return err
	}
	for _, row := range rows {
		query, args, err := g.buildInsert(t, row)
		if err != nil {
			return err
		}
		if _, err := g.backend.exec(ctx, query, args...); err != nil {
			return fmt.Errorf("%s insert %s: %w", g.dialect.name, table, err)
		}
	}
	return nil
}

func (g *SQLGateway) Update(ctx context.Context, table string, patch Row, filters ...Filter) (int64, error) {
	t, err := g.schema.table(table)
	if err != nil {
		return 0, err
	}
	query, args, err := g.buildUpdate(t, patch, filters)
	if err != nil {
		return 0, err
	}
	n, err := g.backend.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s update %s: %w", g.dialect.name, table, err)
	}
	return n, nil
}

func (g *SQLGateway) Delete(ctx context.Context, table string, filters ...Filter) (int64, error) {
	t, err := g.schema.table(table)
	if err != nil {
		return 0, err
	}
	if len(filters) == 0 {
		return 0, ErrMissingFilter
	}
	where, args, err := g.where(t, filters, nil)
	if err != nil {
		return 0, err
	}
	query := "DELETE FROM " + t.Name + where
	n, err := g.backend.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s delete %s: %w", g.dialect.name, table, err)
	}
	return n, nil
}

func (g *SQLGateway) buildSelect(t Table, q Query) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(t.columnNames(), ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(t.Name)

	where, args, err := g.where(t, q.Filters, nil)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)

	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			if _, err := t.checkColumn(o.Column); err != nil {
				return "", nil, err
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts = append(parts, o.Column+" "+dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		sb.WriteString(" LIMIT ")
		sb.WriteString(g.dialect.placeholder(len(args)))
	}
	return sb.String(), args, nil
}

func (g *SQLGateway) buildInsert(t Table, row Row) (string, []any, error) {
	if len(row) == 0 {
		return "", nil, fmt.Errorf("insert %s: empty row", t.Name)
	}
	cols := sortedColumns(row)
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		kind, err := t.checkColumn(col)
		if err != nil {
			return "", nil, err
		}
		v, err := g.dialect.encode(kind, row[col])
		if err != nil {
			return "", nil, fmt.Errorf("encode %s.%s: %w", t.Name, col, err)
		}
		args[i] = v
		placeholders[i] = g.dialect.placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return query, args, nil
}

func (g *SQLGateway) buildUpdate(t Table, patch Row, filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, ErrMissingFilter
	}
	if len(patch) == 0 {
		return "", nil, ErrEmptyPatch
	}
	cols := sortedColumns(patch)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(filters))
	for i, col := range cols {
		kind, err := t.checkColumn(col)
		if err != nil {
			return "", nil, err
		}
		v, err := g.dialect.encode(kind, patch[col])
		if err != nil {
			return "", nil, fmt.Errorf("encode %s.%s: %w", t.Name, col, err)
		}
		args = append(args, v)
		sets[i] = col + " = " + g.dialect.placeholder(len(args))
	}
	where, args, err := g.where(t, filters, args)
	if err != nil {
		return "", nil, err
	}
	return "UPDATE " + t.Name + " SET " + strings.Join(sets, ", ") + where, args, nil
}

func (g *SQLGateway) where(t Table, filters []Filter, args []any) (string, []any, error) {
	if len(filters) == 0 {
		return "", args, nil
	}
	conds := make([]string, 0, len(filters))
	for _, f := range filters {
		kind, err := t.checkColumn(f.Column)
		if err != nil {
			return "", nil, err
		}
		switch f.Op {
		case OpEq, OpGt, OpLt:
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
		v, err := g.dialect.encode(kind, f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %s.%s: %w", t.Name, f.Column, err)
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s %s %s", f.Column, f.Op, g.dialect.placeholder(len(args))))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func sortedColumns(row Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func encodeJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeJSON(v any) (any, error) {
	var raw []byte
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return val, nil
	case string:
		raw = []byte(val)
	case []byte:
		raw = val
	default:
		return nil, fmt.Errorf("unexpected json value %T", v)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeText(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case nil:
		return ""
	}
	return v
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
