package agents

import (
	"github.com/shopspring/decimal"

	"polysim/engine"
)

// Whale fires a single enormous order on its first tick and then goes quiet.
// Registered mid-run it models a market shock: a deep sell sweeps the bid
// ladder (flash crash), a deep buy sweeps the asks (rally).
type Whale struct {
	acct     *engine.Account
	ref      *PriceTracker
	Side     engine.Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	fired    bool
}

// NewWhale builds a whale that will submit Quantity at Price on Side once.
func NewWhale(id string, cash, inventory decimal.Decimal, ref *PriceTracker, side engine.Side, price, qty decimal.Decimal) *Whale {
	return &Whale{
		acct:     engine.NewAccount(id, cash, inventory),
		ref:      ref,
		Side:     side,
		Price:    price,
		Quantity: qty,
	}
}

func (w *Whale) Account() *engine.Account { return w.acct }

func (w *Whale) OnTick(mkt engine.Market, _ engine.Snapshot) error {
	if w.fired {
		return nil
	}
	w.fired = true
	return mkt.PlaceLimitOrder(w.Side, w.Price, w.Quantity)
}

func (w *Whale) OnTrade(_ engine.Market, trade engine.Trade) error {
	w.ref.Observe(trade)
	return nil
}
