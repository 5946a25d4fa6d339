package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/stockbot/internal/models"
	"github.com/kjannette/stockbot/internal/schema"
)

// StockRepo is the Postgres store behind the bot, the API and the CLI. Every
// statement is built from the layout it was created with and names its
// tables inside schemaName.
type StockRepo struct {
	pool   *pgxpool.Pool
	layout schema.Layout
	ns     string
}

func NewStockRepo(pool *pgxpool.Pool, layout schema.Layout, schemaName string) *StockRepo {
	return &StockRepo{pool: pool, layout: layout, ns: schemaName}
}

func (r *StockRepo) Layout() schema.Layout {
	return r.layout
}

// StockIDs returns the stock keys in the table's natural order.
func (r *StockRepo) StockIDs(ctx context.Context) ([]string, error) {
	st := r.layout.Stock
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM %s", quoteIdent(st.ID), tableIdent(r.ns, st.Name)),
	)
	if err != nil {
		return nil, wrapPgErr("select stock ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *StockRepo) InsertStock(ctx context.Context, s models.Stock) error {
	if s.ID == "" {
		return fmt.Errorf("insert stock: %w: empty id", ErrInvalidInput)
	}
	_, err := r.pool.Exec(ctx, insertStmt(r.ns, r.layout.Stock.Table()),
		s.ID, s.AvgOpen, s.AvgDaily, s.AvgClose,
	)
	return wrapPgErr("insert stock "+s.ID, err)
}

func (r *StockRepo) InsertActivity(ctx context.Context, a models.Activity) error {
	day, err := ParseDay(a.Date)
	if err != nil {
		return fmt.Errorf("insert activity %s: %w", a.StockID, err)
	}
	clock, err := ParseClock(a.Time)
	if err != nil {
		return fmt.Errorf("insert activity %s: %w", a.StockID, err)
	}
	_, err = r.pool.Exec(ctx, insertStmt(r.ns, r.layout.Activity.Table()),
		a.StockID, day, pgClock(clock), a.Price,
	)
	return wrapPgErr(fmt.Sprintf("insert activity (%s, %s, %s)", a.StockID, a.Date, a.Time), err)
}

func (r *StockRepo) InsertHistory(ctx context.Context, h models.History) error {
	day, err := ParseDay(h.Date)
	if err != nil {
		return fmt.Errorf("insert history %s: %w", h.StockID, err)
	}
	_, err = r.pool.Exec(ctx, insertStmt(r.ns, r.layout.History.Table()),
		h.StockID, day, h.Open, h.Average, h.Close, h.High, h.Low,
	)
	return wrapPgErr(fmt.Sprintf("insert history (%s, %s)", h.StockID, h.Date), err)
}

// AverageActivityPrice averages the prices observed for one symbol on one
// date. A nil result means there were no rows.
func (r *StockRepo) AverageActivityPrice(ctx context.Context, stockID, date string) (*float64, error) {
	day, err := ParseDay(date)
	if err != nil {
		return nil, err
	}
	a := r.layout.Activity
	return r.average(ctx, averageStmt(r.ns, a.Name, a.Price, a.StockID, a.Date), stockID, day)
}

// AverageHistory averages one history column over every row of a symbol.
// A nil result means there were no rows.
func (r *StockRepo) AverageHistory(ctx context.Context, stockID string, field models.HistoryField) (*float64, error) {
	h := r.layout.History
	var column string
	switch field {
	case models.HistoryOpen:
		column = h.Open
	case models.HistoryAverage:
		column = h.Average
	case models.HistoryClose:
		column = h.Close
	default:
		return nil, fmt.Errorf("%w: history field %d", ErrInvalidInput, field)
	}
	return r.average(ctx, averageStmt(r.ns, h.Name, column, h.StockID), stockID)
}

func (r *StockRepo) average(ctx context.Context, query string, args ...any) (*float64, error) {
	var v *float64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&v); err != nil {
		return nil, wrapPgErr("average", err)
	}
	return v, nil
}

// UpdateAverages writes the three averages with one UPDATE per column, all
// inside a single transaction.
func (r *StockRepo) UpdateAverages(ctx context.Context, stockID string, avg models.Averages) error {
	st := r.layout.Stock
	updates := []struct {
		column string
		value  float64
	}{
		{st.AvgOpen, avg.Open},
		{st.AvgDaily, avg.Daily},
		{st.AvgClose, avg.Close},
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, u := range updates {
			if _, err := tx.Exec(ctx, updateStmt(r.ns, st.Name, u.column, st.ID), u.value, stockID); err != nil {
				return wrapPgErr(fmt.Sprintf("update %s.%s for %s", st.Name, u.column, stockID), err)
			}
		}
		return nil
	})
}

// DeleteStock removes every row keyed on stockID from the given tables in
// one transaction and returns the number of rows deleted.
func (r *StockRepo) DeleteStock(ctx context.Context, stockID string, tables []string) (int64, error) {
	var deleted int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, t := range tables {
			tag, err := tx.Exec(ctx, deleteStmt(r.ns, t, r.layout.KeyColumn(t)), stockID)
			if err != nil {
				return wrapPgErr(fmt.Sprintf("delete %s from %s", stockID, t), err)
			}
			deleted += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// --- reads ---

func (r *StockRepo) ListStocks(ctx context.Context) ([]models.Stock, error) {
	rows, err := r.pool.Query(ctx, selectStmt(r.ns, r.layout.Stock.Table()))
	if err != nil {
		return nil, wrapPgErr("list stocks", err)
	}
	defer rows.Close()
	return collectStocks(rows)
}

// GetStock returns nil, nil when the symbol is unknown.
func (r *StockRepo) GetStock(ctx context.Context, stockID string) (*models.Stock, error) {
	st := r.layout.Stock
	row := r.pool.QueryRow(ctx, selectStmt(r.ns, st.Table(), st.ID), stockID)
	s, err := scanStock(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapPgErr("get stock "+stockID, err)
	}
	return s, nil
}

func (r *StockRepo) ActivityByDay(ctx context.Context, stockID, date string) ([]models.Activity, error) {
	day, err := ParseDay(date)
	if err != nil {
		return nil, err
	}
	a := r.layout.Activity
	rows, err := r.pool.Query(ctx,
		selectStmt(r.ns, a.Table(), a.StockID, a.Date)+" ORDER BY "+quoteIdent(a.Time)+" ASC",
		stockID, day,
	)
	if err != nil {
		return nil, wrapPgErr("activity by day", err)
	}
	defer rows.Close()
	return collectActivity(rows)
}

// HistoryBySymbol returns the most recent history rows first.
func (r *StockRepo) HistoryBySymbol(ctx context.Context, stockID string, limit int) ([]models.History, error) {
	h := r.layout.History
	rows, err := r.pool.Query(ctx,
		selectStmt(r.ns, h.Table(), h.StockID)+" ORDER BY "+quoteIdent(h.Date)+" DESC LIMIT $2",
		stockID, limit,
	)
	if err != nil {
		return nil, wrapPgErr("history by symbol", err)
	}
	defer rows.Close()
	return collectHistory(rows)
}

// --- scan helpers ---

func pgClock(d time.Duration) pgtype.Time {
	return pgtype.Time{Microseconds: d.Microseconds(), Valid: true}
}

func scanStock(row scannable) (*models.Stock, error) {
	var s models.Stock
	if err := row.Scan(&s.ID, &s.AvgOpen, &s.AvgDaily, &s.AvgClose); err != nil {
		return nil, err
	}
	return &s, nil
}

func collectStocks(rows rowsIter) ([]models.Stock, error) {
	var out []models.Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func collectActivity(rows rowsIter) ([]models.Activity, error) {
	var out []models.Activity
	for rows.Next() {
		var a models.Activity
		var day time.Time
		var clock pgtype.Time
		if err := rows.Scan(&a.StockID, &day, &clock, &a.Price); err != nil {
			return nil, err
		}
		a.Date = Day(day)
		a.Time = FormatClock(time.Duration(clock.Microseconds) * time.Microsecond)
		out = append(out, a)
	}
	return out, rows.Err()
}

func collectHistory(rows rowsIter) ([]models.History, error) {
	var out []models.History
	for rows.Next() {
		var h models.History
		var day time.Time
		if err := rows.Scan(&h.StockID, &day, &h.Open, &h.Average, &h.Close, &h.High, &h.Low); err != nil {
			return nil, err
		}
		h.Date = Day(day)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *StockRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
