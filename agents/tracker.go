package agents

import (
	"sync"

	"github.com/shopspring/decimal"

	"polysim/engine"
)

// PricePoint is one entry of the recorded price series.
type PricePoint struct {
	Tick  uint64
	Price decimal.Decimal
}

// PriceTracker is the shared last-trade reference price the strategies quote
// around, plus the per-tick price series the scenario runner records. It is
// caller-owned state, not engine state: the engine only reports trades and
// the tracker derives a "current price" from them.
//
// The mutex exists for readers outside the simulation goroutine (the feed
// server); within a run all writes happen on the engine's single thread.
type PriceTracker struct {
	mu      sync.Mutex
	price   decimal.Decimal
	history []PricePoint
}

// NewPriceTracker seeds the tracker with a starting reference price.
func NewPriceTracker(start decimal.Decimal) *PriceTracker {
	return &PriceTracker{price: start}
}

// Observe updates the reference price from a trade.
func (p *PriceTracker) Observe(trade engine.Trade) {
	p.mu.Lock()
	p.price = trade.Price
	p.mu.Unlock()
}

// Last returns the most recent reference price.
func (p *PriceTracker) Last() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.price
}

// MarkTick appends the current reference price to the series.
func (p *PriceTracker) MarkTick(tick uint64) {
	p.mu.Lock()
	p.history = append(p.history, PricePoint{Tick: tick, Price: p.price})
	p.mu.Unlock()
}

// History returns a copy of the recorded price series.
func (p *PriceTracker) History() []PricePoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PricePoint(nil), p.history...)
}
