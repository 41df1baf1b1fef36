package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TradeObserver receives every settled trade, after both counterparties have
// been notified. Observers are for feeds and bookkeeping outside the engine;
// they cannot influence matching or settlement.
type TradeObserver func(Trade)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithTradeObserver registers a trade observer.
func WithTradeObserver(obs TradeObserver) Option {
	return func(e *Engine) { e.observers = append(e.observers, obs) }
}

// Engine owns the order book and the agent registry, and advances the
// simulation tick by tick. Everything runs on the caller's goroutine:
// agent callbacks, matching, settlement and trade dispatch are synchronous,
// and "suspension" is ordinary call-stack reentrancy.
type Engine struct {
	book      *OrderBook
	agents    []Trader
	byID      map[string]Trader
	tick      uint64
	depth     int // nesting depth of active callbacks
	observers []TradeObserver
	log       *zap.Logger
}

// New builds an engine with an empty book and registry.
func New(opts ...Option) *Engine {
	e := &Engine{
		book: NewOrderBook(),
		byID: make(map[string]Trader),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddAgent registers a participant. Registration order is preserved and
// defines tick callback order for all future ticks; an agent added mid-run
// joins at the next tick boundary. A reused id fails with ErrDuplicateAgent
// and leaves the registry unchanged.
func (e *Engine) AddAgent(t Trader) error {
	acct := t.Account()
	if acct == nil || acct.ID == "" {
		return errors.New("agent has no account id")
	}
	if _, ok := e.byID[acct.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, acct.ID)
	}
	e.byID[acct.ID] = t
	e.agents = append(e.agents, t)
	e.log.Debug("agent registered",
		zap.String("agent", acct.ID),
		zap.Int("registered", len(e.agents)))
	return nil
}

// Run advances exactly ticks simulation steps. Each tick visits every
// registered agent in registration order with a fresh snapshot of the book.
// A callback error propagates out immediately wrapped in a *CallbackError;
// the interrupted tick is not completed and already-applied orders are not
// rolled back.
func (e *Engine) Run(ticks int) error {
	if ticks < 0 {
		return fmt.Errorf("tick count must be non-negative, got %d", ticks)
	}
	for i := 0; i < ticks; i++ {
		// Agents registered from inside a callback join next tick.
		roster := append([]Trader(nil), e.agents...)
		for _, t := range roster {
			snap := e.book.snapshot(e.tick)
			if err := e.invokeTick(t, snap); err != nil {
				return err
			}
		}
		e.tick++
		e.log.Debug("tick complete", zap.Uint64("tick", e.tick))
	}
	return nil
}

// Tick returns the number of fully completed ticks.
func (e *Engine) Tick() uint64 { return e.tick }

// Book exposes the order book for read-only inspection between Run calls.
func (e *Engine) Book() *OrderBook { return e.book }

func (e *Engine) invokeTick(t Trader, snap Snapshot) error {
	e.depth++
	err := t.OnTick(&session{engine: e, owner: t.Account()}, snap)
	e.depth--
	return e.wrapCallbackErr(t, "on_tick", err)
}

func (e *Engine) invokeTrade(t Trader, trade Trade) error {
	e.depth++
	err := t.OnTrade(&session{engine: e, owner: t.Account()}, trade)
	e.depth--
	return e.wrapCallbackErr(t, "on_trade", err)
}

func (e *Engine) wrapCallbackErr(t Trader, callback string, err error) error {
	if err == nil {
		return nil
	}
	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		// A nested dispatch failure is already annotated.
		return err
	}
	return &CallbackError{AgentID: t.Account().ID, Tick: e.tick, Callback: callback, Err: err}
}

// session is the Market handle given to one agent for one callback
// invocation. Orders it places are attributed to that agent.
type session struct {
	engine *Engine
	owner  *Account
}

// PlaceLimitOrder forwards an order to the book, settles every resulting
// trade and notifies both counterparties before returning. Notification is
// reentrant: the submitting agent may observe its own OnTrade nested inside
// this call.
func (s *session) PlaceLimitOrder(side Side, price, quantity decimal.Decimal) error {
	e := s.engine
	if e.depth == 0 {
		return errors.New("order placed outside an engine callback")
	}

	trades, err := e.book.Submit(Order{
		Owner:    s.owner.ID,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	})
	if err != nil {
		return err
	}

	for _, trade := range trades {
		trade.ID = uuid.New()
		trade.Tick = e.tick
		e.settle(trade)
		if err := e.notify(trade); err != nil {
			return err
		}
		for _, obs := range e.observers {
			obs(trade)
		}
	}
	return nil
}

// settle applies the balance adjustment to both counterparties. A self-cross
// settles both legs against the same account and nets to zero.
func (e *Engine) settle(trade Trade) {
	cost := trade.Price.Mul(trade.Quantity)

	buyer := e.byID[trade.BuyerID].Account()
	buyer.Cash = buyer.Cash.Sub(cost)
	buyer.Inventory = buyer.Inventory.Add(trade.Quantity)

	seller := e.byID[trade.SellerID].Account()
	seller.Cash = seller.Cash.Add(cost)
	seller.Inventory = seller.Inventory.Sub(trade.Quantity)

	e.log.Debug("trade settled",
		zap.String("trade", trade.ID.String()),
		zap.String("buyer", trade.BuyerID),
		zap.String("seller", trade.SellerID),
		zap.String("price", trade.Price.String()),
		zap.String("quantity", trade.Quantity.String()))
}

// notify delivers the trade to the buyer, then the seller. A self-crossing
// agent is notified once per leg.
func (e *Engine) notify(trade Trade) error {
	if err := e.invokeTrade(e.byID[trade.BuyerID], trade); err != nil {
		return err
	}
	return e.invokeTrade(e.byID[trade.SellerID], trade)
}
