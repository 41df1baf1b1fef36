package engine

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side represents the direction of an order.
type Side int

const (
	// Buy indicates a bid order.
	Buy Side = iota
	// Sell indicates an ask order.
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Order describes a limit order entering or resting in the book. Quantity is
// the remaining open amount and shrinks as fills occur; an order whose
// quantity reaches zero is removed from the book.
type Order struct {
	Owner    string
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Sequence int64
}

// Trade captures a completed match. Price is always the resting (maker)
// order's price. Sequence is the aggressor order's sequence; ID and Tick are
// stamped by the engine at settlement time.
type Trade struct {
	ID       uuid.UUID
	Tick     uint64
	Sequence int64
	BuyerID  string
	SellerID string
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Quote is one side of the top of book: the best price and the aggregate
// quantity resting at that price.
type Quote struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Snapshot is the read-only market view handed to tick callbacks. A nil
// BestBid or BestAsk means that side of the book is empty. It reflects the
// book at the moment of the call, including fills produced earlier in the
// same tick by agents visited before the receiver.
type Snapshot struct {
	Tick    uint64
	BestBid *Quote
	BestAsk *Quote
}

// Level is an aggregated price level, used for depth views.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}
