// Package bot drives quote ingestion: it samples prices for the monitored
// symbols, rolls them up once a day and keeps the per-symbol averages
// current.
package bot

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/stockbot/internal/external"
	"github.com/kjannette/stockbot/internal/models"
	"github.com/kjannette/stockbot/internal/repository"
	"github.com/kjannette/stockbot/internal/schema"
)

// NoDataSentinel stands in for an average over zero rows. It can't be told
// apart from a real -1 price.
const NoDataSentinel = -1.0

// Store is the persistence the bot needs.
type Store interface {
	StockIDs(ctx context.Context) ([]string, error)
	InsertStock(ctx context.Context, s models.Stock) error
	InsertActivity(ctx context.Context, a models.Activity) error
	InsertHistory(ctx context.Context, h models.History) error
	AverageActivityPrice(ctx context.Context, stockID, date string) (*float64, error)
	AverageHistory(ctx context.Context, stockID string, field models.HistoryField) (*float64, error)
	UpdateAverages(ctx context.Context, stockID string, avg models.Averages) error
	DeleteStock(ctx context.Context, stockID string, tables []string) (int64, error)
}

type Notifier interface {
	Send(msg string)
}

type Options struct {
	Layout   schema.Layout
	Notifier Notifier
	// Location decides the calendar date and wall-clock time of activity
	// rows. Defaults to time.Local.
	Location *time.Location
	Now      func() time.Time
}

// Summary counts the outcome of one pass over the monitored symbols.
type Summary struct {
	Symbols int `json:"symbols"`
	Written int `json:"written"`
	Failed  int `json:"failed"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d/%d written, %d failed", s.Written, s.Symbols, s.Failed)
}

// StockBot is not safe for concurrent use; every pass is sequential.
type StockBot struct {
	store  Store
	quotes external.QuoteSource
	log    logrus.FieldLogger
	layout schema.Layout
	notify Notifier
	loc    *time.Location
	now    func() time.Time

	mirror  *schema.Mirror
	symbols []string
}

func NewStockBot(store Store, quotes external.QuoteSource, log logrus.FieldLogger, opts Options) *StockBot {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &StockBot{
		store:  store,
		quotes: quotes,
		log:    log.WithField("component", "bot"),
		layout: opts.Layout,
		notify: opts.Notifier,
		loc:    opts.Location,
		now:    opts.Now,
		mirror: schema.NewMirror(),
	}
}

// Init mirrors the database catalog and loads the monitored symbols.
// Failures are logged; the bot then runs with whatever it got.
func (b *StockBot) Init(ctx context.Context, cat schema.Catalog, schemaName string) {
	b.mirror = schema.Load(ctx, cat, schemaName, b.log)
	if b.mirror.Len() > 0 {
		for _, problem := range b.mirror.Check(b.layout) {
			b.log.Warnf("schema mismatch: %s", problem)
		}
	}

	if _, err := b.LoadMonitoredSymbols(ctx); err != nil {
		b.log.WithError(err).Error("can't load monitored symbols")
	}
	b.log.WithField("provider", b.quotes.Name()).
		Infof("ready: %d tables mirrored, %d symbols monitored", b.mirror.Len(), len(b.symbols))
}

func (b *StockBot) Mirror() *schema.Mirror {
	return b.mirror
}

// Symbols returns the monitored set as of the last load.
func (b *StockBot) Symbols() []string {
	return slices.Clone(b.symbols)
}

// LoadMonitoredSymbols replaces the monitored set with the stock keys in
// the store's natural order. On failure the previous set is kept.
func (b *StockBot) LoadMonitoredSymbols(ctx context.Context) ([]string, error) {
	ids, err := b.store.StockIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	b.symbols = ids
	b.log.Debugf("monitoring %d symbols", len(ids))
	return slices.Clone(ids), nil
}

// Monitor samples the current price of every monitored symbol into the
// activity table. A failing symbol is logged and skipped.
func (b *StockBot) Monitor(ctx context.Context) Summary {
	sum := Summary{Symbols: len(b.symbols)}

	for _, sym := range b.symbols {
		if err := ctx.Err(); err != nil {
			b.log.WithError(err).Warn("monitor interrupted")
			break
		}
		log := b.log.WithField("symbol", sym)

		q, err := b.quotes.Quote(ctx, sym)
		if err != nil {
			b.report(log, "fetch quote", err)
			sum.Failed++
			continue
		}
		if err := checkPrice("price", q.Price); err != nil {
			b.report(log, "check quote", err)
			sum.Failed++
			continue
		}

		date, clock := repository.SplitTimestamp(b.now().In(b.loc))
		a := models.Activity{StockID: sym, Date: date, Time: clock, Price: q.Price}
		if err := b.store.InsertActivity(ctx, a); err != nil {
			b.report(log, "insert activity", err)
			sum.Failed++
			continue
		}
		log.Debugf("price %.4f at %s %s", a.Price, a.Date, a.Time)
		sum.Written++
	}

	b.log.Infof("monitor pass: %s", sum)
	return sum
}

// PostStockHistory writes today's rollup for every monitored symbol. The
// day average comes from today's activity rows of that symbol; open, close,
// high and low from a fresh quote. A symbol whose quote fails gets no row.
func (b *StockBot) PostStockHistory(ctx context.Context) Summary {
	sum := Summary{Symbols: len(b.symbols)}
	today := repository.Day(b.now().In(b.loc))

	for _, sym := range b.symbols {
		if err := ctx.Err(); err != nil {
			b.log.WithError(err).Warn("history interrupted")
			break
		}
		log := b.log.WithField("symbol", sym)

		avg, err := b.store.AverageActivityPrice(ctx, sym, today)
		if err != nil {
			b.report(log, "average activity", err)
			sum.Failed++
			continue
		}

		q, err := b.quotes.Quote(ctx, sym)
		if err != nil {
			b.report(log, "fetch quote", err)
			sum.Failed++
			continue
		}
		if err := checkQuote(q); err != nil {
			b.report(log, "check quote", err)
			sum.Failed++
			continue
		}

		h := models.History{
			StockID: sym,
			Date:    today,
			Open:    q.Open,
			Average: orSentinel(avg),
			Close:   q.Price,
			High:    q.High,
			Low:     q.Low,
		}
		if err := b.store.InsertHistory(ctx, h); err != nil {
			b.report(log, "insert history", err)
			sum.Failed++
			continue
		}
		log.Debugf("history %s: open %.4f avg %.4f close %.4f", h.Date, h.Open, h.Average, h.Close)
		sum.Written++
	}

	b.log.Infof("history pass for %s: %s", today, sum)
	b.send(fmt.Sprintf("Stock history for %s: %s", today, sum))
	return sum
}

// UpdateStockAverages recomputes the open, daily and close averages of every
// monitored symbol from its history rows.
func (b *StockBot) UpdateStockAverages(ctx context.Context) Summary {
	sum := Summary{Symbols: len(b.symbols)}

	for _, sym := range b.symbols {
		if err := ctx.Err(); err != nil {
			b.log.WithError(err).Warn("averages interrupted")
			break
		}
		log := b.log.WithField("symbol", sym)

		avg, err := b.historyAverages(ctx, sym)
		if err != nil {
			b.report(log, "average history", err)
			sum.Failed++
			continue
		}
		if err := b.store.UpdateAverages(ctx, sym, avg); err != nil {
			b.report(log, "update averages", err)
			sum.Failed++
			continue
		}
		log.Debugf("averages open %.4f daily %.4f close %.4f", avg.Open, avg.Daily, avg.Close)
		sum.Written++
	}

	b.log.Infof("averages pass: %s", sum)
	return sum
}

func (b *StockBot) historyAverages(ctx context.Context, sym string) (models.Averages, error) {
	var vals [3]float64
	for i, f := range []models.HistoryField{models.HistoryOpen, models.HistoryAverage, models.HistoryClose} {
		v, err := b.store.AverageHistory(ctx, sym, f)
		if err != nil {
			return models.Averages{}, fmt.Errorf("%s: %w", f, err)
		}
		vals[i] = orSentinel(v)
	}
	return models.Averages{Open: vals[0], Daily: vals[1], Close: vals[2]}, nil
}

// Run samples prices and then refreshes the averages. It returns the
// context error when cancelled.
func (b *StockBot) Run(ctx context.Context) error {
	b.Monitor(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	b.UpdateStockAverages(ctx)
	return ctx.Err()
}

// PostStock adds a symbol with zeroed averages. The monitored set is not
// touched until the next load.
func (b *StockBot) PostStock(ctx context.Context, symbol string) error {
	symbol = strings.TrimSpace(symbol)
	log := b.log.WithField("symbol", symbol)
	if symbol == "" {
		err := fmt.Errorf("post stock: %w: empty symbol", repository.ErrInvalidInput)
		b.report(log, "post stock", err)
		return err
	}

	if err := b.store.InsertStock(ctx, models.Stock{ID: symbol}); err != nil {
		b.report(log, "post stock", err)
		return err
	}
	log.Info("stock added")
	b.send("Added " + symbol)
	return nil
}

// RemoveStock deletes the symbol's stock row and, with allTables, its rows
// in every mirrored table that carries the stock id column. All deletes run
// in one transaction.
func (b *StockBot) RemoveStock(ctx context.Context, symbol string, allTables bool) error {
	log := b.log.WithField("symbol", symbol)

	tables := []string{b.layout.Stock.Name}
	if allTables {
		tables = b.cascadeTables()
	}

	n, err := b.store.DeleteStock(ctx, symbol, tables)
	if err != nil {
		b.report(log, "remove stock", err)
		return err
	}
	log.Infof("removed %d rows from %s", n, strings.Join(tables, ", "))
	b.send(fmt.Sprintf("Removed %s (%d rows)", symbol, n))
	return nil
}

// cascadeTables falls back to the declared layout when the mirror is empty.
func (b *StockBot) cascadeTables() []string {
	var tables []string
	for _, name := range b.mirror.TableNames() {
		if b.mirror.HasColumn(name, b.layout.KeyColumn(name)) {
			tables = append(tables, name)
		}
	}
	if len(tables) > 0 {
		return tables
	}

	b.log.Warn("no mirrored table carries the stock id, using the declared layout")
	for _, t := range b.layout.Tables() {
		tables = append(tables, t.Name)
	}
	return tables
}

func (b *StockBot) report(log logrus.FieldLogger, op string, err error) {
	kind := Classify(err)
	log = log.WithField("kind", kind.String()).WithError(err)

	switch kind {
	case KindProviderUnavailable:
		log.Warnf("%s: quote provider unavailable, skipping", op)
	case KindConstraintViolation:
		log.Warnf("%s: duplicate key", op)
	case KindInvalidInput:
		log.Errorf("%s: invalid input", op)
	default:
		log.Errorf("%s failed", op)
	}
}

func (b *StockBot) send(msg string) {
	if b.notify != nil {
		b.notify.Send(msg)
	}
}

func orSentinel(v *float64) float64 {
	if v == nil {
		return NoDataSentinel
	}
	return *v
}

func checkPrice(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %s %v", repository.ErrInvalidInput, name, v)
	}
	return nil
}

func checkQuote(q external.Quote) error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"price", q.Price}, {"open", q.Open}, {"high", q.High}, {"low", q.Low}} {
		if err := checkPrice(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}
