package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type sqlDBBackend struct {
	db *sql.DB
}

func (b sqlDBBackend) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (b sqlDBBackend) query(ctx context.Context, query string, width int, args ...any) ([][]any, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values := make([]any, width)
		ptrs := make([]any, width)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// En SQLite los tiempos se guardan como nanosegundos Unix para que ORDER BY y los filtros
// comparen numericamente.
var sqliteDialect = dialect{
	name: "sqlite",
	placeholder: func(int) string {
		return "?"
	},
	encode: func(kind Kind, v any) (any, error) {
		switch kind {
		case KindTime:
			if t, ok := v.(time.Time); ok {
				return t.UnixNano(), nil
			}
		case KindJSON:
			return encodeJSON(v)
		}
		return v, nil
	},
	decode: func(kind Kind, v any) (any, error) {
		switch kind {
		case KindTime:
			switch n := v.(type) {
			case int64:
				return time.Unix(0, n).UTC(), nil
			case nil:
				return time.Time{}, nil
			}
			return nil, fmt.Errorf("unexpected time value %T", v)
		case KindJSON:
			return decodeJSON(v)
		}
		return decodeText(v), nil
	},
}

// NewSQLiteGateway construye el gateway sobre una base SQLite abierta con database/sql.
func NewSQLiteGateway(db *sql.DB, schema Schema) *SQLGateway {
	return newSQLGateway(sqlDBBackend{db: db}, sqliteDialect, schema)
}
