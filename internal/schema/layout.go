// Package schema describes the three stockbot tables and mirrors what the
// connected database actually contains.
package schema

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table is a declared table: name, primary key attributes and the full
// ordered attribute list (keys included).
type Table struct {
	Name    string
	Keys    []string
	Columns []string
}

type StockTable struct {
	Name     string `yaml:"name"`
	ID       string `yaml:"id"`
	AvgOpen  string `yaml:"avg_open"`
	AvgDaily string `yaml:"avg_daily"`
	AvgClose string `yaml:"avg_close"`
}

func (t StockTable) Table() Table {
	return Table{
		Name:    t.Name,
		Keys:    []string{t.ID},
		Columns: []string{t.ID, t.AvgOpen, t.AvgDaily, t.AvgClose},
	}
}

type ActivityTable struct {
	Name    string `yaml:"name"`
	StockID string `yaml:"stock_id"`
	Date    string `yaml:"date"`
	Time    string `yaml:"time"`
	Price   string `yaml:"price"`
}

func (t ActivityTable) Table() Table {
	return Table{
		Name:    t.Name,
		Keys:    []string{t.StockID, t.Date, t.Time},
		Columns: []string{t.StockID, t.Date, t.Time, t.Price},
	}
}

type HistoryTable struct {
	Name    string `yaml:"name"`
	StockID string `yaml:"stock_id"`
	Date    string `yaml:"date"`
	Open    string `yaml:"open"`
	Average string `yaml:"average"`
	Close   string `yaml:"close"`
	High    string `yaml:"high"`
	Low     string `yaml:"low"`
}

// History rows carry no primary key; a second rollup on the same day is
// a second row.
func (t HistoryTable) Table() Table {
	return Table{
		Name:    t.Name,
		Columns: []string{t.StockID, t.Date, t.Open, t.Average, t.Close, t.High, t.Low},
	}
}

// Layout is the static description of the persisted schema. Statements are
// built from it, never from runtime introspection.
type Layout struct {
	Stock    StockTable    `yaml:"stock"`
	Activity ActivityTable `yaml:"activity"`
	History  HistoryTable  `yaml:"history"`
}

func DefaultLayout() Layout {
	return Layout{
		Stock: StockTable{
			Name:     "stock",
			ID:       "stock_id",
			AvgOpen:  "avg_open",
			AvgDaily: "avg_daily",
			AvgClose: "avg_close",
		},
		Activity: ActivityTable{
			Name:    "stock_activity",
			StockID: "stock_id",
			Date:    "date",
			Time:    "time",
			Price:   "price",
		},
		History: HistoryTable{
			Name:    "stock_history",
			StockID: "stock_id",
			Date:    "date",
			Open:    "open",
			Average: "average",
			Close:   "close",
			High:    "high",
			Low:     "low",
		},
	}
}

// LoadLayout reads a YAML layout file on top of the defaults. An empty path
// returns the defaults.
func LoadLayout(path string) (Layout, error) {
	l := DefaultLayout()
	if path == "" {
		return l, nil
	}

	input, err := os.ReadFile(path)
	if err != nil {
		return l, fmt.Errorf("%w: can't read layout file", err)
	}
	if err := yaml.Unmarshal(input, &l); err != nil {
		return l, fmt.Errorf("%w: can't unmarshal layout", err)
	}
	if err := l.Validate(); err != nil {
		return l, err
	}
	return l, nil
}

// Tables returns the declared tables, the stock table last.
func (l Layout) Tables() []Table {
	return []Table{l.Activity.Table(), l.History.Table(), l.Stock.Table()}
}

// KeyColumn returns the column holding the stock identifier in table. Tables
// outside the layout are assumed to use the stock table's id column name.
func (l Layout) KeyColumn(table string) string {
	switch table {
	case l.Activity.Name:
		return l.Activity.StockID
	case l.History.Name:
		return l.History.StockID
	default:
		return l.Stock.ID
	}
}

func (l Layout) Validate() error {
	var errs []string
	names := make(map[string]bool)
	for _, t := range l.Tables() {
		if strings.TrimSpace(t.Name) == "" {
			errs = append(errs, "table with empty name")
			continue
		}
		if names[t.Name] {
			errs = append(errs, fmt.Sprintf("table %q declared twice", t.Name))
		}
		names[t.Name] = true

		seen := make(map[string]bool)
		for _, c := range t.Columns {
			if strings.TrimSpace(c) == "" {
				errs = append(errs, fmt.Sprintf("table %q has an empty column name", t.Name))
				continue
			}
			if seen[c] {
				errs = append(errs, fmt.Sprintf("table %q declares column %q twice", t.Name, c))
			}
			seen[c] = true
		}
	}
	if len(errs) > 0 {
		return errors.New("invalid schema layout:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
