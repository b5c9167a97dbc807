package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSymbol = errors.New("invalid coin symbol")

const maxSymbolLen = 10

// CoinSymbol is a normalized uppercase ticker such as "BTC".
type CoinSymbol string

const (
	BTC CoinSymbol = "BTC"
	ETH CoinSymbol = "ETH"
)

// ParseCoinSymbol trims and uppercases raw, and rejects anything that is not
// a short alphanumeric ticker.
func ParseCoinSymbol(raw string) (CoinSymbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" || len(s) > maxSymbolLen {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
		}
	}
	return CoinSymbol(s), nil
}

// MustCoinSymbol is ParseCoinSymbol for literals.
func MustCoinSymbol(raw string) CoinSymbol {
	s, err := ParseCoinSymbol(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func (s CoinSymbol) String() string { return string(s) }
