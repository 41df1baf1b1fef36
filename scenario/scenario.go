// Package scenario assembles agent populations into runnable market
// simulations: a market maker providing liquidity, a crowd of noise traders,
// and a scripted shock (whale order or maker withdrawal) part way through.
package scenario

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polysim/agents"
	"polysim/engine"
)

// Kind selects the scripted market shock.
type Kind string

const (
	// FlashCrash releases a whale sell that sweeps the bid ladder.
	FlashCrash Kind = "flash_crash"
	// Rally releases a whale buy that sweeps the ask ladder.
	Rally Kind = "rally"
	// LiquidityCrunch makes the market maker stop quoting mid-run.
	LiquidityCrunch Kind = "liquidity_crunch"
)

// Config parameterizes a simulation run.
type Config struct {
	Scenario     Kind
	Ticks        int
	NoiseTraders int
	WhaleQty     decimal.Decimal
	WhaleTick    int // tick at which the shock triggers
	Seed         int64
	StartPrice   decimal.Decimal
}

// DefaultConfig mirrors the historical defaults: 1000 ticks, 50 noise
// traders, a 50000-unit whale at tick 500, starting reference price 100.
func DefaultConfig() Config {
	return Config{
		Scenario:     FlashCrash,
		Ticks:        1000,
		NoiseTraders: 50,
		WhaleQty:     decimal.NewFromInt(50000),
		WhaleTick:    500,
		Seed:         1,
		StartPrice:   decimal.NewFromInt(100),
	}
}

// AccountState is the final balance sheet of one agent.
type AccountState struct {
	ID        string
	Cash      decimal.Decimal
	Inventory decimal.Decimal
}

// Result collects everything a run produced.
type Result struct {
	RunID    uuid.UUID
	Scenario Kind
	Prices   []agents.PricePoint
	Trades   int
	Accounts []AccountState
}

// FinalPrice returns the last recorded reference price.
func (r *Result) FinalPrice() decimal.Decimal {
	if len(r.Prices) == 0 {
		return decimal.Zero
	}
	return r.Prices[len(r.Prices)-1].Price
}

// Run executes the configured scenario tick by tick, injecting the shock at
// WhaleTick, and records the reference price after every tick.
func Run(cfg Config, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Scenario {
	case FlashCrash, Rally, LiquidityCrunch:
	default:
		return nil, fmt.Errorf("unknown scenario %q", cfg.Scenario)
	}
	if cfg.Ticks < 0 {
		return nil, fmt.Errorf("ticks must be non-negative, got %d", cfg.Ticks)
	}

	result := &Result{RunID: uuid.New(), Scenario: cfg.Scenario}
	tracker := agents.NewPriceTracker(cfg.StartPrice)
	eng := engine.New(
		engine.WithLogger(log),
		engine.WithTradeObserver(func(engine.Trade) { result.Trades++ }),
	)

	maker := agents.NewMarketMaker("mm-1",
		decimal.NewFromInt(1_000_000), decimal.NewFromInt(10_000), tracker)
	if cfg.Scenario == LiquidityCrunch {
		maker.QuietAfter = uint64(cfg.WhaleTick)
	}
	roster := []engine.Trader{maker}
	if err := eng.AddAgent(maker); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 0; i < cfg.NoiseTraders; i++ {
		nt := agents.NewNoiseTrader(fmt.Sprintf("noise-%03d", i),
			decimal.NewFromInt(10_000), decimal.NewFromInt(100), tracker, rng)
		if err := eng.AddAgent(nt); err != nil {
			return nil, err
		}
		roster = append(roster, nt)
	}

	log.Info("scenario starting",
		zap.String("run", result.RunID.String()),
		zap.String("scenario", string(cfg.Scenario)),
		zap.Int("ticks", cfg.Ticks),
		zap.Int("noise_traders", cfg.NoiseTraders))

	for t := 0; t < cfg.Ticks; t++ {
		if t == cfg.WhaleTick {
			whale, err := releaseWhale(cfg, eng, tracker, log)
			if err != nil {
				return nil, err
			}
			if whale != nil {
				roster = append(roster, whale)
			}
		}

		if err := eng.Run(1); err != nil {
			return nil, fmt.Errorf("run %s: %w", result.RunID, err)
		}
		tracker.MarkTick(uint64(t))

		if t%100 == 0 {
			log.Info("progress",
				zap.Int("tick", t),
				zap.String("price", tracker.Last().String()),
				zap.Int("trades", result.Trades))
		}
	}

	result.Prices = tracker.History()
	for _, t := range roster {
		acct := t.Account()
		result.Accounts = append(result.Accounts, AccountState{
			ID:        acct.ID,
			Cash:      acct.Cash,
			Inventory: acct.Inventory,
		})
	}

	log.Info("scenario complete",
		zap.String("run", result.RunID.String()),
		zap.Int("trades", result.Trades),
		zap.String("final_price", result.FinalPrice().String()))
	return result, nil
}

// releaseWhale registers the shock agent for whale scenarios. The whale joins
// mid-run and is picked up at the next tick boundary. Liquidity crunch needs
// no extra agent: the maker withdraws on its own.
func releaseWhale(cfg Config, eng *engine.Engine, tracker *agents.PriceTracker, log *zap.Logger) (engine.Trader, error) {
	var whale *agents.Whale
	switch cfg.Scenario {
	case FlashCrash:
		// Seller holds the inventory it is about to dump.
		whale = agents.NewWhale("whale-999",
			decimal.Zero, cfg.WhaleQty, tracker,
			engine.Sell, decimal.NewFromInt(1), cfg.WhaleQty)
	case Rally:
		// Buyer holds enough cash to lift every ask up to its cap.
		whale = agents.NewWhale("whale-999",
			cfg.WhaleQty.Mul(decimal.NewFromInt(200)), decimal.Zero, tracker,
			engine.Buy, decimal.NewFromInt(200), cfg.WhaleQty)
	default:
		return nil, nil
	}

	log.Info("releasing whale",
		zap.String("side", whale.Side.String()),
		zap.String("quantity", whale.Quantity.String()))
	if err := eng.AddAgent(whale); err != nil {
		return nil, err
	}
	return whale, nil
}
