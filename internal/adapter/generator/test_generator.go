package generator

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"

	"github.com/shopspring/decimal"
)

// Name is the source name test-mode quotes carry.
const Name = "mock"

// fixed prices keep test mode predictable for the majors.
var fixed = map[model.CoinSymbol]decimal.Decimal{
	model.BTC: decimal.NewFromInt(60000),
	model.ETH: decimal.NewFromInt(3000),
}

// TestGenerator serves synthetic USD prices: fixed values for BTC and ETH,
// and a random price between 1 and 101 for anything else.
type TestGenerator struct {
	name string
	log  *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

var _ port.PriceProvider = (*TestGenerator)(nil)

func NewTestGenerator(log *slog.Logger) *TestGenerator {
	return &TestGenerator{
		name: Name,
		log:  log,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *TestGenerator) Name() string { return t.name }

func (t *TestGenerator) TryGetPrice(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	amount, ok := fixed[symbol]
	if !ok {
		t.mu.Lock()
		amount = decimal.NewFromFloat(t.rnd.Float64()*100 + 1)
		t.mu.Unlock()
	}

	price, err := model.NewMoney(amount, "USD")
	if err != nil {
		return nil, err
	}
	t.log.Debug("generated test price", "symbol", symbol, "price", price.Amount())

	return &model.Quote{
		Symbol:     symbol,
		Price:      price,
		Source:     t.name,
		ObservedAt: time.Now().UTC(),
	}, nil
}
