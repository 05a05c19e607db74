package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxQuerier es el subconjunto de *pgxpool.Pool que usa el gateway.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type pgxBackend struct {
	pool pgxQuerier
}

func (b pgxBackend) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := b.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (b pgxBackend) query(ctx context.Context, query string, width int, args ...any) ([][]any, error) {
	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		if len(values) != width {
			return nil, fmt.Errorf("expected %d columns, got %d", width, len(values))
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var postgresDialect = dialect{
	name: "postgres",
	placeholder: func(n int) string {
		return "$" + strconv.Itoa(n)
	},
	encode: func(kind Kind, v any) (any, error) {
		switch kind {
		case KindTime:
			if t, ok := v.(time.Time); ok {
				return utc(t), nil
			}
		case KindJSON:
			return encodeJSON(v)
		}
		return v, nil
	},
	decode: func(kind Kind, v any) (any, error) {
		switch kind {
		case KindTime:
			if t, ok := v.(time.Time); ok {
				return utc(t), nil
			}
			if v == nil {
				return time.Time{}, nil
			}
			return nil, fmt.Errorf("unexpected time value %T", v)
		case KindJSON:
			return decodeJSON(v)
		}
		return decodeText(v), nil
	},
}

// NewPostgresGateway construye el gateway sobre un pool de pgx.
func NewPostgresGateway(pool pgxQuerier, schema Schema) *SQLGateway {
	return newSQLGateway(pgxBackend{pool: pool}, postgresDialect, schema)
}
