package agents

import (
	"github.com/shopspring/decimal"

	"polysim/engine"
)

// MarketMaker refreshes a two-sided quote every tick, centered on the shared
// reference price. With QuietAfter set it withdraws from the market once that
// tick is reached, which is how the liquidity-crunch scenario starves the
// book.
type MarketMaker struct {
	acct       *engine.Account
	ref        *PriceTracker
	Spread     decimal.Decimal
	Quantity   decimal.Decimal
	QuietAfter uint64 // 0 means never go quiet
}

// NewMarketMaker builds a maker quoting Quantity=10 at a half-spread of 1.
func NewMarketMaker(id string, cash, inventory decimal.Decimal, ref *PriceTracker) *MarketMaker {
	return &MarketMaker{
		acct:     engine.NewAccount(id, cash, inventory),
		ref:      ref,
		Spread:   decimal.NewFromInt(1),
		Quantity: decimal.NewFromInt(10),
	}
}

func (m *MarketMaker) Account() *engine.Account { return m.acct }

func (m *MarketMaker) OnTick(mkt engine.Market, snap engine.Snapshot) error {
	if m.QuietAfter > 0 && snap.Tick >= m.QuietAfter {
		return nil
	}

	center := m.ref.Last()
	bid := center.Sub(m.Spread)
	ask := center.Add(m.Spread)

	if bid.Sign() > 0 {
		if err := mkt.PlaceLimitOrder(engine.Buy, bid, m.Quantity); err != nil {
			return err
		}
	}
	return mkt.PlaceLimitOrder(engine.Sell, ask, m.Quantity)
}

func (m *MarketMaker) OnTrade(_ engine.Market, trade engine.Trade) error {
	m.ref.Observe(trade)
	return nil
}
