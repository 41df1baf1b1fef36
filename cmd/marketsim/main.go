package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"polysim/scenario"
	"polysim/util"
)

func main() {
	kind := flag.String("scenario", string(scenario.FlashCrash), "scenario to run: flash_crash, rally or liquidity_crunch")
	ticks := flag.Int("ticks", 1000, "duration of the simulation in ticks")
	noise := flag.Int("agents", 50, "number of noise traders")
	whaleQty := flag.Float64("whale-qty", 50000, "quantity of the whale order")
	whaleTick := flag.Int("whale-tick", 500, "tick at which the shock triggers")
	startPrice := flag.Float64("start-price", 100, "initial reference price")
	seed := flag.Int64("seed", time.Now().UnixNano(), "seed for deterministic noise-trader streams")
	out := flag.String("out", "", "price history CSV path (default result_<scenario>.csv)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger, err := util.NewLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := scenario.Config{
		Scenario:     scenario.Kind(*kind),
		Ticks:        *ticks,
		NoiseTraders: *noise,
		WhaleQty:     decimal.NewFromFloat(*whaleQty),
		WhaleTick:    *whaleTick,
		Seed:         *seed,
		StartPrice:   decimal.NewFromFloat(*startPrice),
	}

	start := time.Now()
	result, err := scenario.Run(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	path := *out
	if path == "" {
		path = fmt.Sprintf("result_%s.csv", cfg.Scenario)
	}
	if err := result.SaveCSV(path); err != nil {
		fmt.Fprintf(os.Stderr, "writing %s failed: %v\n", path, err)
		os.Exit(1)
	}

	ticksPerSec := float64(*ticks) / elapsed.Seconds()
	fmt.Printf("run %s: %d ticks in %s (%.0f ticks/s)\n", result.RunID, *ticks, elapsed.Truncate(time.Millisecond), ticksPerSec)
	fmt.Printf("matched %d trades, final price %s\n", result.Trades, result.FinalPrice())
	fmt.Printf("price history written to %s\n", path)
}
