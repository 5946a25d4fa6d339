package external

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
)

// YahooClient reads quotes through finance-go. The library call can't be
// cancelled, so ctx is only checked before it starts.
type YahooClient struct {
	fetch func(symbol string) (*finance.Quote, error)
	now   func() time.Time
}

func NewYahooClient() *YahooClient {
	return &YahooClient{fetch: quote.Get, now: time.Now}
}

func (c *YahooClient) Name() string { return "yahoo" }

func (c *YahooClient) Quote(ctx context.Context, symbol string) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, fmt.Errorf("yahoo %s: %w: %w", symbol, ErrProviderUnavailable, err)
	}

	fq, err := c.fetch(symbol)
	if err != nil {
		return Quote{}, fmt.Errorf("yahoo %s: %w: %w", symbol, ErrProviderUnavailable, err)
	}
	if fq == nil {
		return Quote{}, fmt.Errorf("yahoo %s: %w: symbol not found", symbol, ErrUnexpectedQuote)
	}

	return checkQuote(c.Name(), Quote{
		Symbol:     symbol,
		Price:      fq.RegularMarketPrice,
		Open:       fq.RegularMarketOpen,
		High:       fq.RegularMarketDayHigh,
		Low:        fq.RegularMarketDayLow,
		ReceivedAt: c.now(),
	})
}
