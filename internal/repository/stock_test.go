package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/stockbot/internal/models"
	"github.com/kjannette/stockbot/internal/repository"
	"github.com/kjannette/stockbot/internal/schema"
	"github.com/kjannette/stockbot/internal/testutil"
)

func newRepo(t *testing.T) *repository.StockRepo {
	t.Helper()
	pool := testutil.SetupPool(t)
	testutil.ResetTables(t, pool)
	return repository.NewStockRepo(pool, schema.DefaultLayout(), "public")
}

func TestStockRepo_InsertAndList(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertStock(ctx, models.Stock{ID: "AAPL", AvgOpen: -1, AvgDaily: -1, AvgClose: -1}))
	require.NoError(t, repo.InsertStock(ctx, models.Stock{ID: "MSFT", AvgOpen: -1, AvgDaily: -1, AvgClose: -1}))

	err := repo.InsertStock(ctx, models.Stock{ID: "AAPL"})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)

	err = repo.InsertStock(ctx, models.Stock{})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	ids, err := repo.StockIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, ids)

	s, err := repo.GetStock(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, -1.0, s.AvgDaily)

	missing, err := repo.GetStock(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStockRepo_Activity(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	for _, a := range []models.Activity{
		{StockID: "AAPL", Date: "2024-01-02", Time: "10:00:00", Price: 100},
		{StockID: "AAPL", Date: "2024-01-02", Time: "09:00:00", Price: 110},
		{StockID: "AAPL", Date: "2024-01-03", Time: "09:00:00", Price: 500},
		{StockID: "MSFT", Date: "2024-01-02", Time: "09:00:00", Price: 900},
	} {
		require.NoError(t, repo.InsertActivity(ctx, a))
	}

	err := repo.InsertActivity(ctx, models.Activity{StockID: "AAPL", Date: "2024-01-02", Time: "10:00:00", Price: 1})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)

	err = repo.InsertActivity(ctx, models.Activity{StockID: "AAPL", Date: "bad", Time: "10:00:00", Price: 1})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	avg, err := repo.AverageActivityPrice(ctx, "AAPL", "2024-01-02")
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.InDelta(t, 105.0, *avg, 1e-9)

	none, err := repo.AverageActivityPrice(ctx, "AAPL", "2023-12-31")
	require.NoError(t, err)
	assert.Nil(t, none)

	rows, err := repo.ActivityByDay(ctx, "AAPL", "2024-01-02")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "09:00:00", rows[0].Time)
	assert.Equal(t, "10:00:00", rows[1].Time)
	assert.Equal(t, "2024-01-02", rows[0].Date)
}

func TestStockRepo_HistoryAndAverages(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertStock(ctx, models.Stock{ID: "AAPL", AvgOpen: -1, AvgDaily: -1, AvgClose: -1}))
	require.NoError(t, repo.InsertHistory(ctx, models.History{StockID: "AAPL", Date: "2024-01-02", Open: 10, Average: 20, Close: 30, High: 40, Low: 5}))
	require.NoError(t, repo.InsertHistory(ctx, models.History{StockID: "AAPL", Date: "2024-01-03", Open: 20, Average: 30, Close: 40, High: 50, Low: 6}))
	// history has no key, the same day may be written twice
	require.NoError(t, repo.InsertHistory(ctx, models.History{StockID: "AAPL", Date: "2024-01-03", Open: 30, Average: 40, Close: 50, High: 60, Low: 7}))

	open, err := repo.AverageHistory(ctx, "AAPL", models.HistoryOpen)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.InDelta(t, 20.0, *open, 1e-9)

	closeAvg, err := repo.AverageHistory(ctx, "AAPL", models.HistoryClose)
	require.NoError(t, err)
	require.NotNil(t, closeAvg)
	assert.InDelta(t, 40.0, *closeAvg, 1e-9)

	none, err := repo.AverageHistory(ctx, "MSFT", models.HistoryAverage)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, repo.UpdateAverages(ctx, "AAPL", models.Averages{Open: 20, Daily: 30, Close: 40}))
	s, err := repo.GetStock(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, models.Stock{ID: "AAPL", AvgOpen: 20, AvgDaily: 30, AvgClose: 40}, *s)

	hist, err := repo.HistoryBySymbol(ctx, "AAPL", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "2024-01-03", hist[0].Date)
}

func TestStockRepo_DeleteStock(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertStock(ctx, models.Stock{ID: "AAPL"}))
	require.NoError(t, repo.InsertStock(ctx, models.Stock{ID: "MSFT"}))
	require.NoError(t, repo.InsertActivity(ctx, models.Activity{StockID: "AAPL", Date: "2024-01-02", Time: "09:00:00", Price: 1}))
	require.NoError(t, repo.InsertHistory(ctx, models.History{StockID: "AAPL", Date: "2024-01-02"}))

	var tables []string
	for _, tb := range repo.Layout().Tables() {
		tables = append(tables, tb.Name)
	}

	n, err := repo.DeleteStock(ctx, "AAPL", tables)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	ids, err := repo.StockIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT"}, ids)

	n, err = repo.DeleteStock(ctx, "AAPL", tables)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.DeleteStock(ctx, "MSFT", []string{"no_such_table"})
	assert.Error(t, err)
	ids, err = repo.StockIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT"}, ids)
}

func TestStockRepo_CatalogAndScript(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	m := schema.Load(ctx, repo, "public", testutil.Logger(t))
	assert.Empty(t, m.Check(repo.Layout()))

	info, ok := m.Info("stock_activity")
	require.True(t, ok)
	assert.Equal(t, []string{"stock_id", "date", "time"}, info.Keys)

	hist, ok := m.Info("stock_history")
	require.True(t, ok)
	assert.Empty(t, hist.Keys)

	res, err := repo.ExecScript(ctx, `INSERT INTO stock VALUES ('X', 1, 2, 3); SELECT stock_id, avg_open FROM stock`)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.False(t, res[0].WithRows())
	assert.Equal(t, int64(1), res[0].RowsAffected)
	assert.True(t, res[1].WithRows())
	assert.Equal(t, []string{"stock_id", "avg_open"}, res[1].Columns)
	assert.Equal(t, [][]string{{"X", "1"}}, res[1].Rows)

	_, err = repo.ExecScript(ctx, `SELECT * FROM nowhere`)
	assert.Error(t, err)

	res, err = repo.ExecScript(ctx, `SELECT 1 AS one; SELECT stock_id FROM stock; SELECT * FROM nowhere`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 3")
	require.Len(t, res, 2)
	assert.Equal(t, [][]string{{"1"}}, res[0].Rows)
	assert.Equal(t, []string{"stock_id"}, res[1].Columns)
	assert.Equal(t, [][]string{{"X"}}, res[1].Rows)
}

func TestStockRepo_NamedSchema(t *testing.T) {
	pool := testutil.SetupPool(t)
	testutil.ResetTables(t, pool)
	testutil.CreateSchema(t, pool, "stockbot_alt")
	ctx := context.Background()

	repo := repository.NewStockRepo(pool, schema.DefaultLayout(), "stockbot_alt")
	require.NoError(t, repo.InsertStock(ctx, models.Stock{ID: "AAPL", AvgOpen: -1, AvgDaily: -1, AvgClose: -1}))
	require.NoError(t, repo.InsertActivity(ctx, models.Activity{StockID: "AAPL", Date: "2024-01-02", Time: "09:00:00", Price: 1}))
	require.NoError(t, repo.UpdateAverages(ctx, "AAPL", models.Averages{Open: 1, Daily: 2, Close: 3}))

	ids, err := repo.StockIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, ids)

	public := repository.NewStockRepo(pool, schema.DefaultLayout(), "public")
	ids, err = public.StockIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	m := schema.Load(ctx, repo, "stockbot_alt", testutil.Logger(t))
	assert.Empty(t, m.Check(repo.Layout()))

	n, err := repo.DeleteStock(ctx, "AAPL", m.TableNames())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
