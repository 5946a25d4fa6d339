// Package memory is an in-process stand-in for the Postgres store. It keeps
// rows in insertion order and enforces the same keys.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/kjannette/stockbot/internal/models"
	"github.com/kjannette/stockbot/internal/repository"
	"github.com/kjannette/stockbot/internal/schema"
)

var _ schema.Catalog = (*Store)(nil)

type activityKey struct {
	stockID, date, clock string
}

type Store struct {
	mu     sync.Mutex
	layout schema.Layout

	stocks   []models.Stock
	activity []models.Activity
	history  []models.History
	seen     map[activityKey]bool

	// Fail, when set, is consulted before every operation; a non-nil result
	// is returned instead of running it.
	Fail func(op, stockID string) error
}

func New(layout schema.Layout) *Store {
	return &Store{layout: layout, seen: make(map[activityKey]bool)}
}

func (s *Store) Layout() schema.Layout {
	return s.layout
}

func (s *Store) fail(op, stockID string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, stockID)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fail("Ping", "")
}

func (s *Store) StockIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("StockIDs", ""); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(s.stocks))
	for _, st := range s.stocks {
		ids = append(ids, st.ID)
	}
	return ids, nil
}

func (s *Store) InsertStock(ctx context.Context, st models.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertStock", st.ID); err != nil {
		return err
	}

	if st.ID == "" {
		return fmt.Errorf("insert stock: %w: empty id", repository.ErrInvalidInput)
	}
	if s.stockIndex(st.ID) >= 0 {
		return fmt.Errorf("insert stock %s: %w", st.ID, repository.ErrDuplicateKey)
	}
	s.stocks = append(s.stocks, st)
	return nil
}

func (s *Store) InsertActivity(ctx context.Context, a models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertActivity", a.StockID); err != nil {
		return err
	}

	if _, err := repository.ParseDay(a.Date); err != nil {
		return fmt.Errorf("insert activity %s: %w", a.StockID, err)
	}
	if _, err := repository.ParseClock(a.Time); err != nil {
		return fmt.Errorf("insert activity %s: %w", a.StockID, err)
	}
	k := activityKey{a.StockID, a.Date, a.Time}
	if s.seen[k] {
		return fmt.Errorf("insert activity (%s, %s, %s): %w", a.StockID, a.Date, a.Time, repository.ErrDuplicateKey)
	}
	s.seen[k] = true
	s.activity = append(s.activity, a)
	return nil
}

func (s *Store) InsertHistory(ctx context.Context, h models.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertHistory", h.StockID); err != nil {
		return err
	}

	if _, err := repository.ParseDay(h.Date); err != nil {
		return fmt.Errorf("insert history %s: %w", h.StockID, err)
	}
	s.history = append(s.history, h)
	return nil
}

func (s *Store) AverageActivityPrice(ctx context.Context, stockID, date string) (*float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("AverageActivityPrice", stockID); err != nil {
		return nil, err
	}
	if _, err := repository.ParseDay(date); err != nil {
		return nil, err
	}

	var vals []float64
	for _, a := range s.activity {
		if a.StockID == stockID && a.Date == date {
			vals = append(vals, a.Price)
		}
	}
	return mean(vals), nil
}

func (s *Store) AverageHistory(ctx context.Context, stockID string, field models.HistoryField) (*float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("AverageHistory", stockID); err != nil {
		return nil, err
	}

	var pick func(models.History) float64
	switch field {
	case models.HistoryOpen:
		pick = func(h models.History) float64 { return h.Open }
	case models.HistoryAverage:
		pick = func(h models.History) float64 { return h.Average }
	case models.HistoryClose:
		pick = func(h models.History) float64 { return h.Close }
	default:
		return nil, fmt.Errorf("%w: history field %d", repository.ErrInvalidInput, field)
	}

	var vals []float64
	for _, h := range s.history {
		if h.StockID == stockID {
			vals = append(vals, pick(h))
		}
	}
	return mean(vals), nil
}

// UpdateAverages is a no-op for an unknown symbol, like an UPDATE matching
// no rows.
func (s *Store) UpdateAverages(ctx context.Context, stockID string, avg models.Averages) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateAverages", stockID); err != nil {
		return err
	}

	if i := s.stockIndex(stockID); i >= 0 {
		s.stocks[i].AvgOpen = avg.Open
		s.stocks[i].AvgDaily = avg.Daily
		s.stocks[i].AvgClose = avg.Close
	}
	return nil
}

// DeleteStock checks every table name before touching any row, so an
// unknown table leaves the store unchanged.
func (s *Store) DeleteStock(ctx context.Context, stockID string, tables []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteStock", stockID); err != nil {
		return 0, err
	}

	l := s.layout
	for _, t := range tables {
		if t != l.Stock.Name && t != l.Activity.Name && t != l.History.Name {
			return 0, fmt.Errorf("delete %s from %s: %w", stockID, t, repository.ErrNotFound)
		}
	}

	var deleted int64
	for _, t := range tables {
		switch t {
		case l.Stock.Name:
			before := len(s.stocks)
			s.stocks = slices.DeleteFunc(s.stocks, func(st models.Stock) bool { return st.ID == stockID })
			deleted += int64(before - len(s.stocks))
		case l.Activity.Name:
			before := len(s.activity)
			s.activity = slices.DeleteFunc(s.activity, func(a models.Activity) bool {
				if a.StockID != stockID {
					return false
				}
				delete(s.seen, activityKey{a.StockID, a.Date, a.Time})
				return true
			})
			deleted += int64(before - len(s.activity))
		case l.History.Name:
			before := len(s.history)
			s.history = slices.DeleteFunc(s.history, func(h models.History) bool { return h.StockID == stockID })
			deleted += int64(before - len(s.history))
		}
	}
	return deleted, nil
}

func (s *Store) ListStocks(ctx context.Context) ([]models.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListStocks", ""); err != nil {
		return nil, err
	}
	return slices.Clone(s.stocks), nil
}

// GetStock returns nil, nil when the symbol is unknown.
func (s *Store) GetStock(ctx context.Context, stockID string) (*models.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetStock", stockID); err != nil {
		return nil, err
	}

	i := s.stockIndex(stockID)
	if i < 0 {
		return nil, nil
	}
	st := s.stocks[i]
	return &st, nil
}

func (s *Store) ActivityByDay(ctx context.Context, stockID, date string) ([]models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ActivityByDay", stockID); err != nil {
		return nil, err
	}
	if _, err := repository.ParseDay(date); err != nil {
		return nil, err
	}

	var out []models.Activity
	for _, a := range s.activity {
		if a.StockID == stockID && a.Date == date {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

// HistoryBySymbol returns the most recent history rows first.
func (s *Store) HistoryBySymbol(ctx context.Context, stockID string, limit int) ([]models.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("HistoryBySymbol", stockID); err != nil {
		return nil, err
	}

	var out []models.History
	for _, h := range s.history {
		if h.StockID == stockID {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- catalog ---

func (s *Store) TableNames(ctx context.Context, schemaName string) ([]string, error) {
	if err := s.fail("TableNames", ""); err != nil {
		return nil, err
	}
	var names []string
	for _, t := range s.layout.Tables() {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) PrimaryKey(ctx context.Context, schemaName, table string) ([]string, error) {
	if err := s.fail("PrimaryKey", ""); err != nil {
		return nil, err
	}
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	return slices.Clone(t.Keys), nil
}

func (s *Store) Columns(ctx context.Context, schemaName, table string) ([]string, error) {
	if err := s.fail("Columns", ""); err != nil {
		return nil, err
	}
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	return slices.Clone(t.Columns), nil
}

func (s *Store) table(name string) (schema.Table, error) {
	for _, t := range s.layout.Tables() {
		if t.Name == name {
			return t, nil
		}
	}
	return schema.Table{}, fmt.Errorf("table %q: %w", name, repository.ErrNotFound)
}

func (s *Store) stockIndex(id string) int {
	return slices.IndexFunc(s.stocks, func(st models.Stock) bool { return st.ID == id })
}

func mean(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	avg := sum / float64(len(vals))
	return &avg
}
