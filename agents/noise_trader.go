package agents

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"polysim/engine"
)

// NoiseTrader submits an aggressive unit order with fixed probability each
// tick: a buy capped far above the market or a sell floored far below it, so
// the order crosses whatever is resting. The rand source is injected; share
// one seeded source across traders for a reproducible run.
type NoiseTrader struct {
	acct        *engine.Account
	ref         *PriceTracker
	rng         *rand.Rand
	Probability float64
	BuyCap      decimal.Decimal
	SellFloor   decimal.Decimal
	Quantity    decimal.Decimal
}

// NewNoiseTrader builds a trader that acts 10% of ticks with unit quantity,
// buying up to 200 and selling down to 1.
func NewNoiseTrader(id string, cash, inventory decimal.Decimal, ref *PriceTracker, rng *rand.Rand) *NoiseTrader {
	return &NoiseTrader{
		acct:        engine.NewAccount(id, cash, inventory),
		ref:         ref,
		rng:         rng,
		Probability: 0.1,
		BuyCap:      decimal.NewFromInt(200),
		SellFloor:   decimal.NewFromInt(1),
		Quantity:    decimal.NewFromInt(1),
	}
}

func (n *NoiseTrader) Account() *engine.Account { return n.acct }

func (n *NoiseTrader) OnTick(mkt engine.Market, _ engine.Snapshot) error {
	if n.rng.Float64() >= n.Probability {
		return nil
	}
	if n.rng.Float64() < 0.5 {
		return mkt.PlaceLimitOrder(engine.Buy, n.BuyCap, n.Quantity)
	}
	return mkt.PlaceLimitOrder(engine.Sell, n.SellFloor, n.Quantity)
}

func (n *NoiseTrader) OnTrade(_ engine.Market, trade engine.Trade) error {
	n.ref.Observe(trade)
	return nil
}
