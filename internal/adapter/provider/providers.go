package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bitbalance/internal/domain/model"
)

var (
	ErrUnknownProvider = errors.New("unknown price provider")
	ErrMissingBaseURL  = errors.New("missing base url")
)

// Names lists the HTTP providers New knows about.
var Names = []string{"coingecko", "coincap", "binance", "cryptocompare", "nomics"}

// New builds the named source. A nil client gets one with opts.Timeout.
func New(name string, opts Options, client *http.Client, logger *slog.Logger) (*Source, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	var r resolver
	switch key {
	case "coingecko":
		r = coinGecko
	case "coincap":
		r = coinCap
	case "binance":
		r = binance
	case "cryptocompare":
		r = cryptoCompare
	case "nomics":
		r = nomics
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("provider %s: %w", key, ErrMissingBaseURL)
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Source{
		name:    key,
		opts:    opts,
		client:  client,
		resolve: r,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// CoinGecko and CoinCap address coins by id rather than by ticker.
var coinGeckoIDs = map[model.CoinSymbol]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"BNB":  "binancecoin",
	"ADA":  "cardano",
	"SOL":  "solana",
	"XRP":  "ripple",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"LTC":  "litecoin",
}

var coinCapIDs = map[model.CoinSymbol]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"BNB":  "binance-coin",
	"ADA":  "cardano",
	"SOL":  "solana",
	"XRP":  "xrp",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"LTC":  "litecoin",
}

func coinGecko(opts Options, symbol model.CoinSymbol) (endpoint, bool) {
	id, ok := coinGeckoIDs[symbol]
	if !ok {
		return endpoint{}, false
	}
	ep := endpoint{
		url:  fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", opts.BaseURL, url.QueryEscape(id)),
		path: fmt.Sprintf(`$["%s"].usd`, id),
	}
	if opts.APIKey != "" {
		ep.header = http.Header{"X-Cg-Demo-Api-Key": {opts.APIKey}}
	}
	return ep, true
}

func coinCap(opts Options, symbol model.CoinSymbol) (endpoint, bool) {
	id, ok := coinCapIDs[symbol]
	if !ok {
		return endpoint{}, false
	}
	ep := endpoint{
		url:  fmt.Sprintf("%s/assets/%s", opts.BaseURL, url.PathEscape(id)),
		path: "$.data.priceUsd",
	}
	if opts.APIKey != "" {
		ep.header = http.Header{"Authorization": {"Bearer " + opts.APIKey}}
	}
	return ep, true
}

// binance quotes against USDT, which is treated as USD.
func binance(opts Options, symbol model.CoinSymbol) (endpoint, bool) {
	if symbol == "USDT" {
		return endpoint{}, false
	}
	return endpoint{
		url:  fmt.Sprintf("%s/ticker/price?symbol=%sUSDT", opts.BaseURL, symbol),
		path: "$.price",
	}, true
}

func cryptoCompare(opts Options, symbol model.CoinSymbol) (endpoint, bool) {
	ep := endpoint{
		url:  fmt.Sprintf("%s/price?fsym=%s&tsyms=USD", opts.BaseURL, symbol),
		path: "$.USD",
	}
	if opts.APIKey != "" {
		ep.header = http.Header{"Authorization": {"Apikey " + opts.APIKey}}
	}
	return ep, true
}

func nomics(opts Options, symbol model.CoinSymbol) (endpoint, bool) {
	return endpoint{
		url:  fmt.Sprintf("%s/currencies/ticker?key=%s&ids=%s&convert=USD", opts.BaseURL, url.QueryEscape(opts.APIKey), symbol),
		path: "$[0].price",
	}, true
}
