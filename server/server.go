package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"polysim/engine"
	"polysim/util"
)

// server exposes a running simulation over HTTP: REST snapshots of the book
// and the price series, plus websocket streams of trades and top-of-book.
type server struct {
	sim        *liveSim
	upgrader   websocket.Upgrader
	authToken  string
	corsOrigin string
	log        *zap.Logger
}

type tradeMsg struct {
	ID       string `json:"id"`
	Tick     uint64 `json:"tick"`
	Buyer    string `json:"buyer"`
	Seller   string `json:"seller"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type levelMsg struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type bookMsg struct {
	Tick uint64     `json:"tick"`
	Bids []levelMsg `json:"bids"`
	Asks []levelMsg `json:"asks"`
}

type pricePointMsg struct {
	Tick  uint64 `json:"tick"`
	Price string `json:"price"`
}

type outboundMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func main() {
	cfg := loadConfig()
	logger, err := util.NewLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	sim, err := newLiveSim(cfg, logger)
	if err != nil {
		logger.Fatal("simulation setup failed", zap.Error(err))
	}
	go sim.loop()

	srv := &server{
		sim:        sim,
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		authToken:  cfg.AuthToken,
		corsOrigin: cfg.CORSOrigin,
		log:        logger,
	}

	logger.Info("listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("scenario", cfg.Scenario),
		zap.Duration("tick_interval", cfg.TickInterval))
	if err := http.ListenAndServe(cfg.ListenAddr, srv.routes()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/book", s.withCORS(s.withAuth(http.HandlerFunc(s.handleBook))))
	mux.Handle("/prices", s.withCORS(s.withAuth(http.HandlerFunc(s.handlePrices))))
	mux.Handle("/ws/trades", s.withCORS(s.withAuth(http.HandlerFunc(s.handleTradeStream))))
	mux.Handle("/ws/book", s.withCORS(s.withAuth(http.HandlerFunc(s.handleBookStream))))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.authToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("missing or invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.sim.bookSnapshot())
}

func (s *server) handlePrices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	history := s.sim.tracker.History()
	points := make([]pricePointMsg, 0, len(history))
	for _, pt := range history {
		points = append(points, pricePointMsg{Tick: pt.Tick, Price: pt.Price.String()})
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.sim.tradeHub.Subscribe(32)
	defer s.sim.tradeHub.Unsubscribe(sub)

	for trade := range sub.ch {
		msg := outboundMessage{Type: "trade", Data: trade}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *server) handleBookStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.sim.bookHub.Subscribe(32)
	defer s.sim.bookHub.Unsubscribe(sub)

	for view := range sub.ch {
		msg := outboundMessage{Type: "book", Data: view}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func toTradeMsg(trade engine.Trade) tradeMsg {
	return tradeMsg{
		ID:       trade.ID.String(),
		Tick:     trade.Tick,
		Buyer:    trade.BuyerID,
		Seller:   trade.SellerID,
		Price:    trade.Price.String(),
		Quantity: trade.Quantity.String(),
	}
}

func toLevelMsgs(levels []engine.Level) []levelMsg {
	out := make([]levelMsg, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, levelMsg{Price: lvl.Price.String(), Quantity: lvl.Quantity.String()})
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
