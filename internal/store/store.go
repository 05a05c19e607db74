// Package store expone un gateway generico por tabla (select/insert/update/delete)
// sobre el almacenamiento relacional. Los repositorios construyen sus consultas con estos tipos.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrMissingFilter = errors.New("update/delete requires at least one filter")
	ErrEmptyPatch    = errors.New("update patch is empty")
)

// Op es el operador de comparacion de un filtro.
type Op string

const (
	OpEq Op = "="
	OpGt Op = ">"
	OpLt Op = "<"
)

// Filter es un predicado columna-operador-valor. Los filtros de una consulta se combinan con AND.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }
func Gt(column string, value any) Filter { return Filter{Column: column, Op: OpGt, Value: value} }
func Lt(column string, value any) Filter { return Filter{Column: column, Op: OpLt, Value: value} }

// Order indica una columna de ordenamiento.
type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// Query agrupa filtros, orden y limite de un select. Limit <= 0 significa sin limite.
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int
}

// Gateway es el contrato comun de todos los backends.
type Gateway interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, rows ...Row) error
	Update(ctx context.Context, table string, patch Row, filters ...Filter) (int64, error)
	Delete(ctx context.Context, table string, filters ...Filter) (int64, error)
}

// Row es una fila con valores ya normalizados: texto como string, tiempos como time.Time (UTC)
// y columnas JSON como map[string]any.
type Row map[string]any

func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Time(column string) time.Time {
	if t, ok := r[column].(time.Time); ok {
		return t
	}
	return time.Time{}
}

func (r Row) Map(column string) map[string]any {
	if m, ok := r[column].(map[string]any); ok {
		return m
	}
	return nil
}

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		if m, ok := v.(map[string]any); ok {
			cp := make(map[string]any, len(m))
			for mk, mv := range m {
				cp[mk] = mv
			}
			v = cp
		}
		out[k] = v
	}
	return out
}
