package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// StatementResult reports one statement of a script: the rows it produced,
// or the number of rows it affected.
type StatementResult struct {
	CommandTag   string     `json:"commandTag"`
	RowsAffected int64      `json:"rowsAffected"`
	Columns      []string   `json:"columns,omitempty"`
	Rows         [][]string `json:"rows,omitempty"`
}

func (s StatementResult) WithRows() bool {
	return len(s.Columns) > 0
}

// ExecScript runs raw SQL, possibly several statements separated by
// semicolons, over the simple protocol. Values come back in text form.
// When a statement fails, the results of the statements before it are
// returned along with the error.
func (r *StockRepo) ExecScript(ctx context.Context, sql string) ([]StatementResult, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	mrr := conn.Conn().PgConn().Exec(ctx, sql)
	var out []StatementResult
	for mrr.NextResult() {
		sr, err := readResult(mrr.ResultReader())
		if err != nil {
			_ = mrr.Close()
			return out, wrapPgErr(fmt.Sprintf("exec script statement %d", len(out)+1), err)
		}
		out = append(out, sr)
	}
	if err := mrr.Close(); err != nil {
		return out, wrapPgErr(fmt.Sprintf("exec script statement %d", len(out)+1), err)
	}
	return out, nil
}

func readResult(rr *pgconn.ResultReader) (StatementResult, error) {
	var sr StatementResult
	for _, fd := range rr.FieldDescriptions() {
		sr.Columns = append(sr.Columns, fd.Name)
	}
	for rr.NextRow() {
		row := rr.Values()
		vals := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				vals[i] = "NULL"
			} else {
				vals[i] = string(v)
			}
		}
		sr.Rows = append(sr.Rows, vals)
	}
	tag, err := rr.Close()
	if err != nil {
		return sr, err
	}
	sr.CommandTag = tag.String()
	sr.RowsAffected = tag.RowsAffected()
	return sr, nil
}
