package engine

import "github.com/shopspring/decimal"

// Account holds a participant's identity and settlement state. Cash and
// Inventory are signed: the engine performs no solvency or inventory-floor
// checks, so either may go negative. Risk is the caller's responsibility.
type Account struct {
	ID        string
	Cash      decimal.Decimal
	Inventory decimal.Decimal
}

// NewAccount creates an account with the given starting balances.
func NewAccount(id string, cash, inventory decimal.Decimal) *Account {
	return &Account{ID: id, Cash: cash, Inventory: inventory}
}

// Trader is the capability set every registered agent implements. The engine
// invokes OnTick once per tick in registration order, and OnTrade once per
// trade the agent is party to, in trade generation order. Both callbacks
// receive a Market handle valid only for the duration of the call; a non-nil
// error aborts the run.
type Trader interface {
	Account() *Account
	OnTick(m Market, snap Snapshot) error
	OnTrade(m Market, trade Trade) error
}

// Market is the order-submission surface handed into agent callbacks.
// Placing an order matches, settles, and dispatches all resulting trade
// notifications before the call returns, so OnTrade may fire reentrantly,
// nested inside the caller's own callback.
type Market interface {
	PlaceLimitOrder(side Side, price, quantity decimal.Decimal) error
}
