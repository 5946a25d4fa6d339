package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kjannette/stockbot/internal/schema"
)

func TestStatementBuilders(t *testing.T) {
	l := schema.DefaultLayout()

	testCases := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "insert stock",
			got:  insertStmt("", l.Stock.Table()),
			want: `INSERT INTO "stock" ("stock_id", "avg_open", "avg_daily", "avg_close") VALUES ($1, $2, $3, $4)`,
		},
		{
			name: "insert history",
			got:  insertStmt("", l.History.Table()),
			want: `INSERT INTO "stock_history" ("stock_id", "date", "open", "average", "close", "high", "low") VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		},
		{
			name: "delete by key",
			got:  deleteStmt("", "stock_activity", "stock_id"),
			want: `DELETE FROM "stock_activity" WHERE "stock_id" = $1`,
		},
		{
			name: "update one column",
			got:  updateStmt("", "stock", "avg_open", "stock_id"),
			want: `UPDATE "stock" SET "avg_open" = $1 WHERE "stock_id" = $2`,
		},
		{
			name: "average with two filters",
			got:  averageStmt("", "stock_activity", "price", "stock_id", "date"),
			want: `SELECT AVG("price") FROM "stock_activity" WHERE "stock_id" = $1 AND "date" = $2`,
		},
		{
			name: "average without filters",
			got:  averageStmt("", "stock_history", "close"),
			want: `SELECT AVG("close") FROM "stock_history"`,
		},
		{
			name: "select with filter",
			got:  selectStmt("", l.Stock.Table(), "stock_id"),
			want: `SELECT "stock_id", "avg_open", "avg_daily", "avg_close" FROM "stock" WHERE "stock_id" = $1`,
		},
		{
			name: "identifiers are quoted",
			got:  deleteStmt("", `odd"name`, "id"),
			want: `DELETE FROM "odd""name" WHERE "id" = $1`,
		},
		{
			name: "insert into named schema",
			got:  insertStmt("stockbot", l.Stock.Table()),
			want: `INSERT INTO "stockbot"."stock" ("stock_id", "avg_open", "avg_daily", "avg_close") VALUES ($1, $2, $3, $4)`,
		},
		{
			name: "delete from named schema",
			got:  deleteStmt("stockbot", "stock_history", "stock_id"),
			want: `DELETE FROM "stockbot"."stock_history" WHERE "stock_id" = $1`,
		},
		{
			name: "update in named schema",
			got:  updateStmt("stockbot", "stock", "avg_close", "stock_id"),
			want: `UPDATE "stockbot"."stock" SET "avg_close" = $1 WHERE "stock_id" = $2`,
		},
		{
			name: "average in named schema",
			got:  averageStmt("stockbot", "stock_activity", "price", "stock_id"),
			want: `SELECT AVG("price") FROM "stockbot"."stock_activity" WHERE "stock_id" = $1`,
		},
		{
			name: "select from named schema",
			got:  selectStmt("stockbot", l.Stock.Table()),
			want: `SELECT "stock_id", "avg_open", "avg_daily", "avg_close" FROM "stockbot"."stock"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}
}
