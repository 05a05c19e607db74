package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryGateway guarda filas en memoria. Sirve para tests y para STORE_DRIVER=memory.
type MemoryGateway struct {
	mu     sync.RWMutex
	schema Schema
	tables map[string][]Row
}

func NewMemoryGateway(schema Schema) *MemoryGateway {
	if schema == nil {
		schema = ChatSchema
	}
	return &MemoryGateway{
		schema: schema,
		tables: make(map[string][]Row),
	}
}

func (g *MemoryGateway) Select(_ context.Context, table string, q Query) ([]Row, error) {
	t, err := g.schema.table(table)
	if err != nil {
		return nil, err
	}
	if err := validateQuery(t, q); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Row, 0)
	for _, row := range g.tables[table] {
		if matchesAll(row, q.Filters) {
			out = append(out, row.clone())
		}
	}

	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Order {
				c := compareValues(out[i][o.Column], out[j][o.Column])
				if c == 0 || c == incomparable {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (g *MemoryGateway) Insert(_ context.Context, table string, rows ...Row) error {
	t, err := g.schema.table(table)
	if err != nil {
		return err
	}
	normalized := make([]Row, 0, len(rows))
	for _, row := range rows {
		n := make(Row, len(t.Columns))
		for col, v := range row {
			kind, err := t.checkColumn(col)
			if err != nil {
				return err
			}
			n[col] = normalizeMemoryValue(kind, v)
		}
		normalized = append(normalized, n)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.tables[table] = append(g.tables[table], normalized...)
	return nil
}

func (g *MemoryGateway) Update(_ context.Context, table string, patch Row, filters ...Filter) (int64, error) {
	t, err := g.schema.table(table)
	if err != nil {
		return 0, err
	}
	if len(filters) == 0 {
		return 0, ErrMissingFilter
	}
	if len(patch) == 0 {
		return 0, ErrEmptyPatch
	}
	if err := validateQuery(t, Query{Filters: filters}); err != nil {
		return 0, err
	}
	for col := range patch {
		if _, err := t.checkColumn(col); err != nil {
			return 0, err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	var n int64
	for _, row := range g.tables[table] {
		if !matchesAll(row, filters) {
			continue
		}
		for col, v := range patch {
			kind, _ := t.kind(col)
			row[col] = normalizeMemoryValue(kind, v)
		}
		n++
	}
	return n, nil
}

func (g *MemoryGateway) Delete(_ context.Context, table string, filters ...Filter) (int64, error) {
	t, err := g.schema.table(table)
	if err != nil {
		return 0, err
	}
	if len(filters) == 0 {
		return 0, ErrMissingFilter
	}
	if err := validateQuery(t, Query{Filters: filters}); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	rows := g.tables[table]
	kept := rows[:0]
	var n int64
	for _, row := range rows {
		if matchesAll(row, filters) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	g.tables[table] = kept
	return n, nil
}

func validateQuery(t Table, q Query) error {
	for _, f := range q.Filters {
		if _, err := t.checkColumn(f.Column); err != nil {
			return err
		}
	}
	for _, o := range q.Order {
		if _, err := t.checkColumn(o.Column); err != nil {
			return err
		}
	}
	return nil
}

func normalizeMemoryValue(kind Kind, v any) any {
	switch kind {
	case KindTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC()
		}
	case KindJSON:
		if m, ok := v.(map[string]any); ok {
			cp := make(map[string]any, len(m))
			for k, val := range m {
				cp[k] = val
			}
			return cp
		}
	}
	return v
}

func matchesAll(row Row, filters []Filter) bool {
	for _, f := range filters {
		c := compareValues(row[f.Column], f.Value)
		if c == incomparable {
			return false
		}
		switch f.Op {
		case OpEq:
			if c != 0 {
				return false
			}
		case OpGt:
			if c <= 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

const incomparable = -2

// compareValues compara strings, tiempos y numeros. Tipos distintos devuelven incomparable.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case int64:
		if bv, ok := toInt64(b); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case int:
		return compareValues(int64(av), b)
	case nil:
		if b == nil {
			return 0
		}
	}
	return incomparable
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
