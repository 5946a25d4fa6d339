package repository

import (
	"context"
	"fmt"

	"github.com/kjannette/stockbot/internal/schema"
)

var _ schema.Catalog = (*StockRepo)(nil)

func (r *StockRepo) TableNames(ctx context.Context, schemaName string) ([]string, error) {
	return r.strings(ctx, "table names",
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		 ORDER BY table_name`,
		schemaName,
	)
}

func (r *StockRepo) PrimaryKey(ctx context.Context, schemaName, table string) ([]string, error) {
	return r.strings(ctx, "primary key of "+table,
		`SELECT kcu.column_name
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON kcu.constraint_name = tc.constraint_name
		  AND kcu.table_schema = tc.table_schema
		  AND kcu.table_name = tc.table_name
		 WHERE tc.constraint_type = 'PRIMARY KEY'
		   AND tc.table_schema = $1 AND tc.table_name = $2
		 ORDER BY kcu.ordinal_position`,
		schemaName, table,
	)
}

func (r *StockRepo) Columns(ctx context.Context, schemaName, table string) ([]string, error) {
	return r.strings(ctx, "columns of "+table,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`,
		schemaName, table,
	)
}

func (r *StockRepo) strings(ctx context.Context, what, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", what, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", what, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
