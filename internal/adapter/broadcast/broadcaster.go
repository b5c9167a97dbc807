// Package broadcast pushes pipeline events to live subscribers such as
// websocket clients.
package broadcast

import (
	"log/slog"
	"time"

	"bitbalance/internal/concurrency/fanout"
	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

const DefaultBuffer = 64

// Broadcaster publishes events on a hub. Slow subscribers lose events rather
// than stall the publisher.
type Broadcaster struct {
	hub    *fanout.Hub[model.Event]
	logger *slog.Logger
	now    func() time.Time
}

var _ port.Broadcaster = (*Broadcaster)(nil)

func New(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:    fanout.NewHub[model.Event](),
		logger: logger,
		now:    time.Now,
	}
}

func (b *Broadcaster) PublishPriceUpdated(symbol model.CoinSymbol, price model.Money) {
	p := price
	b.publish(model.Event{Type: model.EventPriceUpdated, Symbol: symbol, Price: &p, At: b.now().UTC()})
}

func (b *Broadcaster) PublishSourceUsed(source string) {
	b.publish(model.Event{Type: model.EventSourceUsed, Source: source, At: b.now().UTC()})
}

func (b *Broadcaster) publish(ev model.Event) {
	n := b.hub.Publish(ev)
	b.logger.Debug("event published", "type", ev.Type, "symbol", ev.Symbol, "source", ev.Source, "subscribers", n)
}

// Subscribe returns an event channel and the func that releases it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan model.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return b.hub.Subscribe(buffer)
}

func (b *Broadcaster) Subscribers() int { return b.hub.Subscribers() }

// Close ends every subscription.
func (b *Broadcaster) Close() { b.hub.Close() }
