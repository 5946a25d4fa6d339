// Package external holds the live quote providers.
package external

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrProviderUnavailable marks transient provider failures: transport
	// errors, throttling, 5xx responses or a cancelled rate-limit wait.
	ErrProviderUnavailable = errors.New("quote provider unavailable")

	// ErrUnexpectedQuote marks a response that arrived but can't be used.
	ErrUnexpectedQuote = errors.New("unexpected quote")
)

// Quote is one snapshot of a symbol's trading day.
type Quote struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	ReceivedAt time.Time `json:"receivedAt"`
}

//go:generate mockgen -destination=../bot/mock_quote_source_test.go -package=bot . QuoteSource

// QuoteSource returns the current quote for a symbol.
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context, symbol string) (Quote, error)
}

func checkQuote(provider string, q Quote) (Quote, error) {
	if math.IsNaN(q.Price) || math.IsInf(q.Price, 0) || q.Price <= 0 {
		return Quote{}, fmt.Errorf("%s %s: %w: price %v", provider, q.Symbol, ErrUnexpectedQuote, q.Price)
	}
	return q, nil
}
