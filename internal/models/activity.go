package models

// Activity is a single price observation. Date is YYYY-MM-DD, Time is HH:MM:SS.
type Activity struct {
	StockID string  `json:"stockId"`
	Date    string  `json:"date"`
	Time    string  `json:"time"`
	Price   float64 `json:"price"`
}

// History is the once-daily rollup of a symbol.
type History struct {
	StockID string  `json:"stockId"`
	Date    string  `json:"date"`
	Open    float64 `json:"open"`
	Average float64 `json:"average"`
	Close   float64 `json:"close"`
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
}

// HistoryField names the history columns that feed the rolling averages.
type HistoryField int

const (
	HistoryOpen HistoryField = iota
	HistoryAverage
	HistoryClose
)

func (f HistoryField) String() string {
	switch f {
	case HistoryOpen:
		return "open"
	case HistoryAverage:
		return "average"
	case HistoryClose:
		return "close"
	default:
		return "unknown"
	}
}
