package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// orderEntry wraps an order for heap operations.
type orderEntry struct {
	order *Order
	index int
	isBid bool
}

// priceTimeQueue implements a price-time priority queue over resting orders.
type priceTimeQueue []*orderEntry

func (q priceTimeQueue) Len() int { return len(q) }

func (q priceTimeQueue) Less(i, j int) bool {
	// For bids: higher price has priority; for asks: lower price.
	// Ties break on the earlier submission sequence.
	a, b := q[i], q[j]
	if !a.order.Price.Equal(b.order.Price) {
		if a.isBid {
			return a.order.Price.GreaterThan(b.order.Price)
		}
		return a.order.Price.LessThan(b.order.Price)
	}
	return a.order.Sequence < b.order.Sequence
}

func (q priceTimeQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *priceTimeQueue) Push(x any) {
	entry := x.(*orderEntry)
	entry.index = len(*q)
	*q = append(*q, entry)
}

func (q *priceTimeQueue) Pop() any {
	old := *q
	n := len(old)
	entry := old[n-1]
	entry.index = -1
	*q = old[0 : n-1]
	return entry
}

func (q priceTimeQueue) peek() *orderEntry {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

// bestQuote aggregates the resting quantity at the best price.
func (q priceTimeQueue) bestQuote() *Quote {
	top := q.peek()
	if top == nil {
		return nil
	}
	qty := decimal.Zero
	for _, e := range q {
		if e.order.Price.Equal(top.order.Price) {
			qty = qty.Add(e.order.Quantity)
		}
	}
	return &Quote{Price: top.order.Price, Quantity: qty}
}

// levels aggregates the queue into per-price depth, best price first.
func (q priceTimeQueue) levels() []Level {
	byPrice := make(map[string]int)
	var out []Level
	for _, e := range q {
		key := e.order.Price.String()
		if i, ok := byPrice[key]; ok {
			out[i].Quantity = out[i].Quantity.Add(e.order.Quantity)
			continue
		}
		byPrice[key] = len(out)
		out = append(out, Level{Price: e.order.Price, Quantity: e.order.Quantity})
	}
	isBid := len(q) > 0 && q[0].isBid
	sort.Slice(out, func(i, j int) bool {
		if isBid {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
