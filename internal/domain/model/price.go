package model

import "time"

// Quote is a price observed for a symbol, together with the source that
// served it. Pipeline stages return a nil *Quote when no price is available.
type Quote struct {
	Symbol     CoinSymbol `json:"symbol"`
	Price      Money      `json:"price"`
	Source     string     `json:"source"`
	ObservedAt time.Time  `json:"observed_at"`
}

// PriceSnapshot is the latest persisted price of a symbol. There is one per
// symbol; newer observations replace older ones.
type PriceSnapshot struct {
	Symbol     CoinSymbol `json:"symbol"`
	Price      Money      `json:"price"`
	Source     string     `json:"source"`
	ObservedAt time.Time  `json:"observed_at"`
}

// SnapshotOf converts a quote into the snapshot that records it.
func SnapshotOf(q Quote) PriceSnapshot {
	return PriceSnapshot{
		Symbol:     q.Symbol,
		Price:      q.Price,
		Source:     q.Source,
		ObservedAt: q.ObservedAt,
	}
}

// LatestPrice is what the price query returns: a live quote, or the last
// snapshot marked stale when no source can answer right now.
type LatestPrice struct {
	Symbol     CoinSymbol `json:"symbol"`
	Price      Money      `json:"price"`
	Source     string     `json:"source"`
	ObservedAt time.Time  `json:"observed_at"`
	Stale      bool       `json:"stale"`
}
