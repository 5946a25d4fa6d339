package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/kjannette/stockbot/internal/httputil"
)

const DefaultFinnhubURL = "https://finnhub.io/api/v1"

type FinnhubOptions struct {
	BaseURL           string
	RequestsPerMinute int
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// FinnhubClient reads /quote. Every call makes exactly one request; the
// limiter only paces calls to stay under the free-tier quota.
type FinnhubClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      httputil.RetryConfig
	now        func() time.Time
}

func NewFinnhubClient(apiKey string, opts FinnhubOptions) *FinnhubClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultFinnhubURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}

	return &FinnhubClient{
		apiKey:     apiKey,
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(limit, 1),
		retry:      httputil.RetryConfig{MaxAttempts: 1},
		now:        time.Now,
	}
}

func (c *FinnhubClient) Name() string { return "finnhub" }

func (c *FinnhubClient) Quote(ctx context.Context, symbol string) (Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Quote{}, fmt.Errorf("finnhub %s: %w: %w", symbol, ErrProviderUnavailable, err)
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("token", c.apiKey)
	endpoint := c.baseURL + "/quote?" + q.Encode()

	// throttling and 5xx come back as errors from the single attempt
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, nil, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return Quote{}, fmt.Errorf("finnhub %s: %w: %w", symbol, ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("finnhub %s: %w: status %d", symbol, ErrUnexpectedQuote, resp.StatusCode)
	}

	var data struct {
		Current float64 `json:"c"`
		Open    float64 `json:"o"`
		High    float64 `json:"h"`
		Low     float64 `json:"l"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Quote{}, fmt.Errorf("finnhub %s: %w: decode: %w", symbol, ErrUnexpectedQuote, err)
	}

	// unknown symbols come back as an all-zero payload
	return checkQuote(c.Name(), Quote{
		Symbol:     symbol,
		Price:      data.Current,
		Open:       data.Open,
		High:       data.High,
		Low:        data.Low,
		ReceivedAt: c.now(),
	})
}
