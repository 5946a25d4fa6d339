package models

// Stock is the current-state row of a monitored symbol.
type Stock struct {
	ID       string  `json:"id"`
	AvgOpen  float64 `json:"avgOpen"`
	AvgDaily float64 `json:"avgDaily"`
	AvgClose float64 `json:"avgClose"`
}

// Averages holds the three rolling averages written back onto a Stock.
type Averages struct {
	Open  float64 `json:"open"`
	Daily float64 `json:"daily"`
	Close float64 `json:"close"`
}
