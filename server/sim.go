package main

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polysim/agents"
	"polysim/engine"
	"polysim/scenario"
)

// liveSim runs one scenario paced by wall-clock ticks and publishes book and
// trade state for the HTTP layer. The engine is only ever touched from the
// loop goroutine; handlers read the published copies.
type liveSim struct {
	cfg     config
	eng     *engine.Engine
	tracker *agents.PriceTracker
	maker   *agents.MarketMaker
	log     *zap.Logger

	tradeHub *hub[tradeMsg]
	bookHub  *hub[bookMsg]

	mu   sync.RWMutex
	book bookMsg
}

func newLiveSim(cfg config, log *zap.Logger) (*liveSim, error) {
	s := &liveSim{
		cfg:      cfg,
		tracker:  agents.NewPriceTracker(decimal.NewFromFloat(cfg.StartPrice)),
		log:      log,
		tradeHub: newHub[tradeMsg](),
		bookHub:  newHub[bookMsg](),
	}
	s.eng = engine.New(
		engine.WithLogger(log),
		engine.WithTradeObserver(s.publishTrade),
	)

	s.maker = agents.NewMarketMaker("mm-1",
		decimal.NewFromInt(1_000_000), decimal.NewFromInt(10_000), s.tracker)
	if scenario.Kind(cfg.Scenario) == scenario.LiquidityCrunch {
		s.maker.QuietAfter = uint64(cfg.WhaleTick)
	}
	if err := s.eng.AddAgent(s.maker); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 0; i < cfg.NoiseTraders; i++ {
		nt := agents.NewNoiseTrader(fmt.Sprintf("noise-%03d", i),
			decimal.NewFromInt(10_000), decimal.NewFromInt(100), s.tracker, rng)
		if err := s.eng.AddAgent(nt); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// loop owns the engine. One wall-clock interval equals one simulation tick.
func (s *liveSim) loop() {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for range ticker.C {
		tick := int(s.eng.Tick())
		if tick == s.cfg.WhaleTick {
			s.releaseWhale()
		}
		if err := s.eng.Run(1); err != nil {
			s.log.Error("simulation halted", zap.Error(err))
			return
		}
		s.tracker.MarkTick(uint64(tick))
		s.publishBook()
	}
}

func (s *liveSim) releaseWhale() {
	qty := decimal.NewFromFloat(s.cfg.WhaleQty)
	var whale *agents.Whale
	switch scenario.Kind(s.cfg.Scenario) {
	case scenario.FlashCrash:
		whale = agents.NewWhale("whale-999", decimal.Zero, qty, s.tracker,
			engine.Sell, decimal.NewFromInt(1), qty)
	case scenario.Rally:
		whale = agents.NewWhale("whale-999", qty.Mul(decimal.NewFromInt(200)), decimal.Zero, s.tracker,
			engine.Buy, decimal.NewFromInt(200), qty)
	default:
		return
	}
	if err := s.eng.AddAgent(whale); err != nil {
		s.log.Error("whale registration failed", zap.Error(err))
		return
	}
	s.log.Info("whale released",
		zap.String("side", whale.Side.String()),
		zap.String("quantity", whale.Quantity.String()))
}

func (s *liveSim) publishTrade(trade engine.Trade) {
	s.tradeHub.Broadcast(toTradeMsg(trade))
}

func (s *liveSim) publishBook() {
	msg := bookMsg{
		Tick: s.eng.Tick(),
		Bids: toLevelMsgs(s.eng.Book().BidLevels()),
		Asks: toLevelMsgs(s.eng.Book().AskLevels()),
	}
	s.mu.Lock()
	s.book = msg
	s.mu.Unlock()
	s.bookHub.Broadcast(msg)
}

func (s *liveSim) bookSnapshot() bookMsg {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book
}
