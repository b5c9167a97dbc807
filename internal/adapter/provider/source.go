// Package provider implements price sources backed by public market-data
// HTTP APIs. A source answers with a quote or a miss. Unknown symbols, 4xx
// answers and bodies without a price are misses; transport errors, timeouts,
// 429 and 5xx answers are reported as port.ErrSourceUnavailable.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// QuoteCurrency is the currency every HTTP source prices in.
const QuoteCurrency = "USD"

const maxBodySize = 1 << 20

// Options configures one source.
type Options struct {
	BaseURL string
	APIKey  string
	// Timeout bounds a single HTTP request. Zero means DefaultTimeout.
	Timeout time.Duration
}

const DefaultTimeout = 5 * time.Second

// endpoint is one HTTP call that yields a price for a symbol.
type endpoint struct {
	url    string
	path   string // jsonpath locating the price in the response
	header http.Header
}

// resolver builds the endpoint for symbol, or reports false when the
// provider does not list it.
type resolver func(opts Options, symbol model.CoinSymbol) (endpoint, bool)

// Source is a price source talking to a single provider.
type Source struct {
	name    string
	opts    Options
	client  *http.Client
	resolve resolver
	logger  *slog.Logger
	now     func() time.Time
}

var _ port.PriceProvider = (*Source)(nil)

func (s *Source) Name() string { return s.name }

func (s *Source) TryGetPrice(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	ep, ok := s.resolve(s.opts, symbol)
	if !ok {
		s.logger.Debug("symbol not supported by source", "source", s.name, "symbol", symbol)
		return nil, nil
	}

	amount, err := s.fetch(ctx, ep)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, port.ErrSourceUnavailable) {
			s.logger.Debug("price source unavailable", "source", s.name, "symbol", symbol, "error", err)
			return nil, err
		}
		s.logger.Debug("price source miss", "source", s.name, "symbol", symbol, "error", err)
		return nil, nil
	}

	price, err := model.NewMoney(amount, QuoteCurrency)
	if err != nil {
		s.logger.Debug("price source returned an invalid amount", "source", s.name, "symbol", symbol, "amount", amount, "error", err)
		return nil, nil
	}

	return &model.Quote{
		Symbol:     symbol,
		Price:      price,
		Source:     s.name,
		ObservedAt: s.now().UTC(),
	}, nil
}

func (s *Source) fetch(ctx context.Context, ep endpoint) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range ep.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", port.ErrSourceUnavailable, s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return decimal.Zero, fmt.Errorf("%w: cannot http GET %v%v: %v", port.ErrSourceUnavailable, resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
	}

	v, err := jsonpath.Get(ep.path, doc)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error parsing %q: %w", ep.path, err)
	}
	return toDecimal(v)
}

func toDecimal(v any) (decimal.Decimal, error) {
	// jsonpath may wrap a single match in a list
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return decimal.Zero, fmt.Errorf("no price in response")
		}
		v = list[0]
	}

	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(x)
	case float64:
		return decimal.NewFromFloat(x), nil
	default:
		return decimal.Zero, fmt.Errorf("price is not a number: %v", v)
	}
}
