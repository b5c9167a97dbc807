package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSource(t *testing.T, name, body string, status int) (*Source, *url.URL) {
	t.Helper()
	var got url.URL
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = *r.URL
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	s, err := New(name, Options{BaseURL: srv.URL + "/", APIKey: "k"}, srv.Client(), discardLogger())
	if err != nil {
		t.Fatalf("New(%s): %v", name, err)
	}
	return s, &got
}

func TestSources_ParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		symbol   model.CoinSymbol
		body     string
		path     string
		query    string
		want     string
	}{
		{"coingecko", "coingecko", "BTC", `{"bitcoin":{"usd":60000.5}}`, "/simple/price", "ids=bitcoin&vs_currencies=usd", "60000.5"},
		{"coincap string price", "coincap", "BNB", `{"data":{"id":"binance-coin","priceUsd":"312.123456"}}`, "/assets/binance-coin", "", "312.123"},
		{"binance", "binance", "ETH", `{"symbol":"ETHUSDT","price":"3000.10000000"}`, "/ticker/price", "symbol=ETHUSDT", "3000.1"},
		{"cryptocompare", "cryptocompare", "ADA", `{"USD":0.4512}`, "/price", "fsym=ADA&tsyms=USD", "0.451"},
		{"nomics", "nomics", "BTC", `[{"id":"BTC","price":"61000.00"}]`, "/currencies/ticker", "key=k&ids=BTC&convert=USD", "61000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, u := newTestSource(t, tt.provider, tt.body, http.StatusOK)

			q, err := s.TryGetPrice(context.Background(), tt.symbol)
			if err != nil {
				t.Fatalf("TryGetPrice() error = %v", err)
			}
			if q == nil {
				t.Fatal("TryGetPrice() = miss, want a quote")
			}
			if want := model.MustMoney(tt.want, "USD"); !q.Price.Equal(want) {
				t.Errorf("price = %v, want %v", q.Price.Amount(), want.Amount())
			}
			if q.Source != tt.provider || q.Symbol != tt.symbol {
				t.Errorf("quote = %+v", q)
			}
			if u.Path != tt.path {
				t.Errorf("path = %q, want %q", u.Path, tt.path)
			}
			if u.RawQuery != tt.query {
				t.Errorf("query = %q, want %q", u.RawQuery, tt.query)
			}
		})
	}
}

func TestSource_Misses(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		symbol   model.CoinSymbol
		body     string
		status   int
	}{
		{"unknown pair", "binance", "NOPE", `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest},
		{"missing field", "cryptocompare", "BTC", `{"Response":"Error"}`, http.StatusOK},
		{"not json", "coincap", "BTC", `<html>`, http.StatusOK},
		{"negative price", "cryptocompare", "BTC", `{"USD":-1}`, http.StatusOK},
		{"empty list", "nomics", "BTC", `[]`, http.StatusOK},
		{"id not mapped", "coingecko", "ZZZ", `{}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSource(t, tt.provider, tt.body, tt.status)
			q, err := s.TryGetPrice(context.Background(), tt.symbol)
			if err != nil {
				t.Fatalf("TryGetPrice() error = %v, want miss", err)
			}
			if q != nil {
				t.Errorf("TryGetPrice() = %+v, want miss", q)
			}
		})
	}
}

func TestSource_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"server error", http.StatusInternalServerError},
		{"bad gateway", http.StatusBadGateway},
		{"rate limited", http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSource(t, "binance", `{}`, tt.status)
			q, err := s.TryGetPrice(context.Background(), "BTC")
			if q != nil || !errors.Is(err, port.ErrSourceUnavailable) {
				t.Errorf("TryGetPrice() = %v, %v; want ErrSourceUnavailable", q, err)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		base := srv.URL
		srv.Close()

		s, err := New("coingecko", Options{BaseURL: base}, nil, discardLogger())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.TryGetPrice(context.Background(), "BTC"); !errors.Is(err, port.ErrSourceUnavailable) {
			t.Errorf("TryGetPrice() error = %v, want ErrSourceUnavailable", err)
		}
	})
}

func TestSource_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	s, err := New("binance", Options{BaseURL: srv.URL}, srv.Client(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.TryGetPrice(ctx, "BTC"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("TryGetPrice() error = %v, want deadline exceeded", err)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New("kraken", Options{BaseURL: "http://x"}, nil, discardLogger()); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("unknown provider error = %v", err)
	}
	if _, err := New("CoinGecko", Options{}, nil, discardLogger()); !errors.Is(err, ErrMissingBaseURL) {
		t.Errorf("missing base url error = %v", err)
	}
	for _, name := range Names {
		if _, err := New(name, Options{BaseURL: "http://localhost"}, nil, discardLogger()); err != nil {
			t.Errorf("New(%s) error = %v", name, err)
		}
	}
}
