package engine

import (
	"container/heap"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderBook maintains bids and asks for a single instrument using price-time
// priority. It is not safe for concurrent use: the engine owns it on a single
// thread of control, which is what makes reentrant submission during trade
// dispatch safe without locking.
type OrderBook struct {
	bids priceTimeQueue
	asks priceTimeQueue
	seq  int64
}

// NewOrderBook builds an empty book.
func NewOrderBook() *OrderBook {
	ob := &OrderBook{}
	heap.Init(&ob.bids)
	heap.Init(&ob.asks)
	return ob
}

// Submit assigns the incoming order the next sequence number, matches it
// against the opposite side while it remains crossable, and rests any
// remainder at its own price. Trades are returned in generation order, each
// priced at the resting (maker) order's price. Orders with a non-positive
// price or quantity are rejected with ErrInvalidOrder and the book is left
// unchanged.
func (ob *OrderBook) Submit(order Order) ([]Trade, error) {
	if order.Price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price %s must be positive", ErrInvalidOrder, order.Price)
	}
	if order.Quantity.Sign() <= 0 {
		return nil, fmt.Errorf("%w: quantity %s must be positive", ErrInvalidOrder, order.Quantity)
	}

	ob.seq++
	order.Sequence = ob.seq

	if order.Side == Buy {
		return ob.match(&order, &ob.asks, &ob.bids), nil
	}
	return ob.match(&order, &ob.bids, &ob.asks), nil
}

func (ob *OrderBook) match(incoming *Order, opposing, resting *priceTimeQueue) []Trade {
	var trades []Trade
	for incoming.Quantity.Sign() > 0 {
		best := opposing.peek()
		if best == nil {
			break
		}
		// An order priced exactly at the opposite best is crossable.
		if incoming.Side == Buy && incoming.Price.LessThan(best.order.Price) {
			break
		}
		if incoming.Side == Sell && incoming.Price.GreaterThan(best.order.Price) {
			break
		}

		qty := decimal.Min(incoming.Quantity, best.order.Quantity)
		price := best.order.Price
		incoming.Quantity = incoming.Quantity.Sub(qty)
		best.order.Quantity = best.order.Quantity.Sub(qty)

		trades = append(trades, Trade{
			Sequence: incoming.Sequence,
			BuyerID:  selectOwner(incoming, best.order, Buy),
			SellerID: selectOwner(incoming, best.order, Sell),
			Price:    price,
			Quantity: qty,
		})

		if best.order.Quantity.Sign() == 0 {
			heap.Pop(opposing)
		}
	}

	if incoming.Quantity.Sign() > 0 {
		rest := *incoming
		heap.Push(resting, &orderEntry{order: &rest, isBid: incoming.Side == Buy})
	}
	return trades
}

func selectOwner(incoming, resting *Order, side Side) string {
	if incoming.Side == side {
		return incoming.Owner
	}
	return resting.Owner
}

// BestBid returns the top bid quote, or nil if there are no bids.
func (ob *OrderBook) BestBid() *Quote { return ob.bids.bestQuote() }

// BestAsk returns the top ask quote, or nil if there are no asks.
func (ob *OrderBook) BestAsk() *Quote { return ob.asks.bestQuote() }

// BidLevels returns aggregated bid depth, best (highest) price first.
func (ob *OrderBook) BidLevels() []Level { return ob.bids.levels() }

// AskLevels returns aggregated ask depth, best (lowest) price first.
func (ob *OrderBook) AskLevels() []Level { return ob.asks.levels() }

// Depth reports the number of resting orders per side.
func (ob *OrderBook) Depth() (bids, asks int) {
	return ob.bids.Len(), ob.asks.Len()
}

func (ob *OrderBook) snapshot(tick uint64) Snapshot {
	return Snapshot{Tick: tick, BestBid: ob.BestBid(), BestAsk: ob.BestAsk()}
}
