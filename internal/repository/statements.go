package repository

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kjannette/stockbot/internal/schema"
)

// Statement builders. Identifiers are quoted, values always travel as $n
// parameters.

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// tableIdent qualifies a table with its schema. An empty schema leaves the
// name to the connection's search_path.
func tableIdent(ns, table string) string {
	if ns == "" {
		return quoteIdent(table)
	}
	return pgx.Identifier{ns, table}.Sanitize()
}

func quoteIdents(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return strings.Join(out, ", ")
}

func placeholders(from, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("$%d", from+i)
	}
	return out
}

// whereEq renders "a = $from AND b = $from+1 ...".
func whereEq(from int, columns ...string) string {
	ph := placeholders(from, len(columns))
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = quoteIdent(c) + " = " + ph[i]
	}
	return strings.Join(parts, " AND ")
}

func insertStmt(ns string, t schema.Table) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableIdent(ns, t.Name), quoteIdents(t.Columns), strings.Join(placeholders(1, len(t.Columns)), ", "))
}

func deleteStmt(ns, table, keyColumn string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s", tableIdent(ns, table), whereEq(1, keyColumn))
}

// updateStmt sets one column: $1 is the value, $2 the key.
func updateStmt(ns, table, column, keyColumn string) string {
	return fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s", tableIdent(ns, table), quoteIdent(column), whereEq(2, keyColumn))
}

func averageStmt(ns, table, column string, filters ...string) string {
	q := fmt.Sprintf("SELECT AVG(%s) FROM %s", quoteIdent(column), tableIdent(ns, table))
	if len(filters) > 0 {
		q += " WHERE " + whereEq(1, filters...)
	}
	return q
}

func selectStmt(ns string, t schema.Table, filters ...string) string {
	q := fmt.Sprintf("SELECT %s FROM %s", quoteIdents(t.Columns), tableIdent(ns, t.Name))
	if len(filters) > 0 {
		q += " WHERE " + whereEq(1, filters...)
	}
	return q
}
