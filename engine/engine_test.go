package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

// scriptedTrader drives the engine from tests. It records every trade
// notification it receives and delegates to optional hooks.
type scriptedTrader struct {
	acct    *Account
	onTick  func(m Market, snap Snapshot) error
	onTrade func(m Market, trade Trade) error
	trades  []Trade
}

func newScripted(id string, cash, inventory string) *scriptedTrader {
	return &scriptedTrader{acct: NewAccount(id, d(cash), d(inventory))}
}

func (s *scriptedTrader) Account() *Account { return s.acct }

func (s *scriptedTrader) OnTick(m Market, snap Snapshot) error {
	if s.onTick != nil {
		return s.onTick(m, snap)
	}
	return nil
}

func (s *scriptedTrader) OnTrade(m Market, trade Trade) error {
	s.trades = append(s.trades, trade)
	if s.onTrade != nil {
		return s.onTrade(m, trade)
	}
	return nil
}

func TestBuyerSellerCross(t *testing.T) {
	eng := New()

	buyer := newScripted("buyer", "10000", "0")
	buyer.onTick = func(m Market, snap Snapshot) error {
		if snap.Tick > 0 {
			return nil
		}
		return m.PlaceLimitOrder(Buy, d("100"), d("10"))
	}
	seller := newScripted("seller", "0", "100")
	seller.onTick = func(m Market, snap Snapshot) error {
		if snap.Tick > 0 {
			return nil
		}
		return m.PlaceLimitOrder(Sell, d("100"), d("10"))
	}

	if err := eng.AddAgent(buyer); err != nil {
		t.Fatalf("add buyer: %v", err)
	}
	if err := eng.AddAgent(seller); err != nil {
		t.Fatalf("add seller: %v", err)
	}
	if err := eng.Run(1); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(buyer.trades) != 1 || len(seller.trades) != 1 {
		t.Fatalf("each party expects one notification, got buyer=%d seller=%d",
			len(buyer.trades), len(seller.trades))
	}
	trade := buyer.trades[0]
	if !trade.Price.Equal(d("100")) || !trade.Quantity.Equal(d("10")) {
		t.Fatalf("unexpected trade: %+v", trade)
	}

	if !buyer.acct.Cash.Equal(d("9000")) || !buyer.acct.Inventory.Equal(d("10")) {
		t.Fatalf("unexpected buyer balances: cash=%s inventory=%s", buyer.acct.Cash, buyer.acct.Inventory)
	}
	if !seller.acct.Cash.Equal(d("1000")) || !seller.acct.Inventory.Equal(d("90")) {
		t.Fatalf("unexpected seller balances: cash=%s inventory=%s", seller.acct.Cash, seller.acct.Inventory)
	}
}

func TestDuplicateAgentID(t *testing.T) {
	eng := New()

	if err := eng.AddAgent(newScripted("dup", "0", "0")); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err := eng.AddAgent(newScripted("dup", "0", "0"))
	if !errors.Is(err, ErrDuplicateAgent) {
		t.Fatalf("expected ErrDuplicateAgent, got %v", err)
	}
	if err := eng.Run(1); err != nil {
		t.Fatalf("engine should remain usable after rejection: %v", err)
	}
}

func TestTickOrderFollowsRegistration(t *testing.T) {
	eng := New()

	var visits []string
	for _, id := range []string{"c", "a", "b"} {
		agent := newScripted(id, "0", "0")
		agentID := id
		agent.onTick = func(Market, Snapshot) error {
			visits = append(visits, agentID)
			return nil
		}
		if err := eng.AddAgent(agent); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	if err := eng.Run(2); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := []string{"c", "a", "b", "c", "a", "b"}
	if len(visits) != len(want) {
		t.Fatalf("expected %d visits, got %d", len(want), len(visits))
	}
	for i := range want {
		if visits[i] != want[i] {
			t.Fatalf("visit %d: expected %s, got %s (all: %v)", i, want[i], visits[i], visits)
		}
	}
}

func TestMidRunRegistrationJoinsNextTick(t *testing.T) {
	eng := New()

	lateVisits := 0
	late := newScripted("late", "0", "0")
	late.onTick = func(Market, Snapshot) error {
		lateVisits++
		return nil
	}

	added := false
	early := newScripted("early", "0", "0")
	early.onTick = func(Market, Snapshot) error {
		if !added {
			added = true
			return eng.AddAgent(late)
		}
		return nil
	}
	if err := eng.AddAgent(early); err != nil {
		t.Fatalf("add early: %v", err)
	}

	if err := eng.Run(2); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if lateVisits != 1 {
		t.Fatalf("late agent should only see the second tick, saw %d", lateVisits)
	}
}

func TestSnapshotReflectsEarlierAgentsSameTick(t *testing.T) {
	eng := New()

	first := newScripted("first", "0", "0")
	first.onTick = func(m Market, snap Snapshot) error {
		if snap.Tick > 0 {
			return nil
		}
		return m.PlaceLimitOrder(Buy, d("42"), d("1"))
	}

	var seenBid *Quote
	second := newScripted("second", "0", "0")
	second.onTick = func(_ Market, snap Snapshot) error {
		if snap.Tick == 0 {
			seenBid = snap.BestBid
		}
		return nil
	}

	if err := eng.AddAgent(first); err != nil {
		t.Fatal(err)
	}
	if err := eng.AddAgent(second); err != nil {
		t.Fatal(err)
	}
	if err := eng.Run(1); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if seenBid == nil || !seenBid.Price.Equal(d("42")) {
		t.Fatalf("second agent should see the first agent's bid, got %+v", seenBid)
	}
}

func TestReentrantTradeDispatch(t *testing.T) {
	eng := New()

	// maker reacts to its fill by immediately re-quoting, nested inside the
	// aggressor's PlaceLimitOrder call.
	maker := newScripted("maker", "1000", "100")
	maker.onTick = func(m Market, snap Snapshot) error {
		if snap.Tick > 0 {
			return nil
		}
		return m.PlaceLimitOrder(Sell, d("100"), d("1"))
	}
	maker.onTrade = func(m Market, _ Trade) error {
		return m.PlaceLimitOrder(Sell, d("101"), d("1"))
	}

	taker := newScripted("taker", "1000", "0")
	taker.onTick = func(m Market, snap Snapshot) error {
		if snap.Tick > 0 {
			return nil
		}
		if err := m.PlaceLimitOrder(Buy, d("100"), d("1")); err != nil {
			return err
		}
		// Dispatch is synchronous: by the time PlaceLimitOrder returns, the
		// maker has been notified and its re-quote is on the book.
		if len(maker.trades) != 1 {
			return fmt.Errorf("maker not notified before submit returned")
		}
		if ask := eng.Book().BestAsk(); ask == nil || !ask.Price.Equal(d("101")) {
			return fmt.Errorf("nested re-quote missing, best ask %+v", ask)
		}
		return nil
	}

	if err := eng.AddAgent(maker); err != nil {
		t.Fatal(err)
	}
	if err := eng.AddAgent(taker); err != nil {
		t.Fatal(err)
	}
	if err := eng.Run(1); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !maker.acct.Cash.Equal(d("1100")) || !maker.acct.Inventory.Equal(d("99")) {
		t.Fatalf("unexpected maker balances: cash=%s inventory=%s", maker.acct.Cash, maker.acct.Inventory)
	}
}

func TestTickCallbackErrorPropagates(t *testing.T) {
	eng := New()

	first := newScripted("first", "0", "0")
	first.onTick = func(m Market, snap Snapshot) error {
		return m.PlaceLimitOrder(Buy, d("10"), d("1"))
	}
	boom := errors.New("boom")
	failing := newScripted("failing", "0", "0")
	failing.onTick = func(Market, Snapshot) error { return boom }

	if err := eng.AddAgent(first); err != nil {
		t.Fatal(err)
	}
	if err := eng.AddAgent(failing); err != nil {
		t.Fatal(err)
	}

	err := eng.Run(1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped callback error, got %v", err)
	}
	var cbErr *CallbackError
	if !errors.As(err, &cbErr) || cbErr.AgentID != "failing" || cbErr.Callback != "on_tick" {
		t.Fatalf("unexpected callback error: %+v", cbErr)
	}

	// The interrupted tick is not rolled back: the first agent's order stands
	// and the tick never completed.
	if bid := eng.Book().BestBid(); bid == nil || !bid.Price.Equal(d("10")) {
		t.Fatalf("applied order should survive the failure, got %+v", bid)
	}
	if eng.Tick() != 0 {
		t.Fatalf("failed tick must not count as completed, tick=%d", eng.Tick())
	}
}

func TestTradeCallbackErrorPropagates(t *testing.T) {
	eng := New()

	boom := errors.New("ledger full")
	maker := newScripted("maker", "0", "10")
	maker.onTick = func(m Market, snap Snapshot) error {
		if snap.Tick > 0 {
			return nil
		}
		return m.PlaceLimitOrder(Sell, d("5"), d("1"))
	}
	maker.onTrade = func(Market, Trade) error { return boom }

	taker := newScripted("taker", "100", "0")
	taker.onTick = func(m Market, snap Snapshot) error {
		if snap.Tick > 0 {
			return nil
		}
		return m.PlaceLimitOrder(Buy, d("5"), d("1"))
	}

	if err := eng.AddAgent(maker); err != nil {
		t.Fatal(err)
	}
	if err := eng.AddAgent(taker); err != nil {
		t.Fatal(err)
	}

	err := eng.Run(1)
	var cbErr *CallbackError
	if !errors.As(err, &cbErr) || cbErr.AgentID != "maker" || cbErr.Callback != "on_trade" {
		t.Fatalf("expected maker on_trade failure, got %v", err)
	}
	// Settlement happened before the notification failed.
	if !maker.acct.Cash.Equal(d("5")) {
		t.Fatalf("trade should have settled, maker cash=%s", maker.acct.Cash)
	}
}

func TestPlaceOutsideCallbackRejected(t *testing.T) {
	eng := New()

	var captured Market
	agent := newScripted("a", "0", "0")
	agent.onTick = func(m Market, _ Snapshot) error {
		captured = m
		return nil
	}
	if err := eng.AddAgent(agent); err != nil {
		t.Fatal(err)
	}
	if err := eng.Run(1); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if err := captured.PlaceLimitOrder(Buy, d("1"), d("1")); err == nil {
		t.Fatal("stashed market handle must not work outside a callback")
	}
}

func TestSettlementConservation(t *testing.T) {
	eng := New()

	rng := rand.New(rand.NewSource(7))
	var all []*scriptedTrader
	for i := 0; i < 4; i++ {
		agent := newScripted(fmt.Sprintf("t%d", i), "1000", "50")
		agent.onTick = func(m Market, _ Snapshot) error {
			side := Buy
			if rng.Intn(2) == 0 {
				side = Sell
			}
			price := decimal.NewFromInt(int64(95 + rng.Intn(10)))
			qty := decimal.NewFromInt(int64(1 + rng.Intn(5)))
			return m.PlaceLimitOrder(side, price, qty)
		}
		all = append(all, agent)
		if err := eng.AddAgent(agent); err != nil {
			t.Fatal(err)
		}
	}

	if err := eng.Run(50); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	totalCash := decimal.Zero
	totalInventory := decimal.Zero
	traded := 0
	for _, agent := range all {
		totalCash = totalCash.Add(agent.acct.Cash)
		totalInventory = totalInventory.Add(agent.acct.Inventory)
		traded += len(agent.trades)
	}
	if traded == 0 {
		t.Fatal("scenario produced no trades, nothing exercised")
	}
	if !totalCash.Equal(d("4000")) {
		t.Fatalf("cash not conserved: %s", totalCash)
	}
	if !totalInventory.Equal(d("200")) {
		t.Fatalf("inventory not conserved: %s", totalInventory)
	}
}

func TestDeterministicReplay(t *testing.T) {
	type record struct {
		buyer, seller, price, qty string
	}

	play := func(seed int64) []record {
		var log []record
		eng := New(WithTradeObserver(func(trade Trade) {
			log = append(log, record{trade.BuyerID, trade.SellerID, trade.Price.String(), trade.Quantity.String()})
		}))
		rng := rand.New(rand.NewSource(seed))
		for i := 0; i < 3; i++ {
			agent := newScripted(fmt.Sprintf("t%d", i), "1000", "50")
			agent.onTick = func(m Market, _ Snapshot) error {
				if rng.Intn(3) == 0 {
					return nil
				}
				side := Side(rng.Intn(2))
				price := decimal.NewFromInt(int64(98 + rng.Intn(5)))
				return m.PlaceLimitOrder(side, price, decimal.NewFromInt(1))
			}
			if err := eng.AddAgent(agent); err != nil {
				t.Fatal(err)
			}
		}
		if err := eng.Run(40); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		return log
	}

	first := play(99)
	second := play(99)
	if len(first) == 0 {
		t.Fatal("replay produced no trades")
	}
	if len(first) != len(second) {
		t.Fatalf("trade counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("trade %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestRunTickCount(t *testing.T) {
	eng := New()
	if err := eng.AddAgent(newScripted("a", "0", "0")); err != nil {
		t.Fatal(err)
	}

	if err := eng.Run(-1); err == nil {
		t.Fatal("negative tick count must be rejected")
	}
	if err := eng.Run(0); err != nil {
		t.Fatalf("zero ticks is a no-op: %v", err)
	}
	if eng.Tick() != 0 {
		t.Fatalf("expected tick 0, got %d", eng.Tick())
	}
	if err := eng.Run(5); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if eng.Tick() != 5 {
		t.Fatalf("expected tick 5, got %d", eng.Tick())
	}
}
