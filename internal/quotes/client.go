package quotes

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"trading-journal-go/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxRetries = 3

// PriceSource returns the latest market price per symbol. Symbols the
// provider does not know are missing from the result.
type PriceSource interface {
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Client is a rate-limited REST client for the quote provider.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	backoff time.Duration
}

var _ PriceSource = (*Client)(nil)

func NewClient(cfg config.Quotes, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}

	return &Client{
		client:  client,
		logger:  logger.Named("quotes"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		backoff: time.Second,
	}
}

// Quote is one entry of the provider's price list. Price may arrive as a
// JSON number or a string.
type Quote struct {
	Symbol string `json:"symbol"`
	Price  any    `json:"price"`
}

// GetPrices fetches prices for symbols in one request.
func (c *Client) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	wanted := normalizeSymbols(symbols)
	if len(wanted) == 0 {
		return map[string]float64{}, nil
	}

	var list []Quote
	req := c.client.R().
		SetQueryParam("symbols", strings.Join(wanted, ",")).
		SetResult(&list)

	if _, err := c.doRequest(ctx, http.MethodGet, "/quotes", req); err != nil {
		return nil, fmt.Errorf("failed to get quotes: %w", err)
	}

	prices := make(map[string]float64, len(list))
	for _, q := range list {
		price, err := cast.ToFloat64E(q.Price)
		if err != nil || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			c.logger.Warn("Ignoring unusable quote", zap.String("symbol", q.Symbol), zap.Any("price", q.Price))
			continue
		}
		prices[strings.ToUpper(q.Symbol)] = price
	}
	return prices, nil
}

// doRequest runs req under the rate limiter, retrying throttling, server
// errors and transport failures with exponential backoff.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.SetContext(ctx).Execute(method, url)
		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			switch code := resp.StatusCode(); {
			case code == http.StatusTooManyRequests:
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case code >= 500:
				shouldRetry = true
			}
			if !shouldRetry {
				return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
			}
			err = fmt.Errorf("status %s", resp.Status())
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if i == maxRetries-1 {
			break
		}
		if retryAfter == 0 {
			retryAfter = c.backoff * time.Duration(math.Pow(2, float64(i)))
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
