package model

import "time"

type EventType string

const (
	EventPriceUpdated EventType = "price_updated"
	EventSourceUsed   EventType = "source_used"
)

// Event is pushed to live subscribers. Only the fields relevant to Type are
// set.
type Event struct {
	Type   EventType  `json:"type"`
	Symbol CoinSymbol `json:"symbol,omitempty"`
	Price  *Money     `json:"price,omitempty"`
	Source string     `json:"source,omitempty"`
	At     time.Time  `json:"at"`
}
