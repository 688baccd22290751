package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"

	"github.com/semillacaramelo/ftba/pkg/log"
	"github.com/semillacaramelo/ftba/pkg/metrics"
	"github.com/semillacaramelo/ftba/pkg/types"
)

// SlippageModel selects how execution prices deviate from quotes
type SlippageModel string

const (
	SlippageFixed        SlippageModel = "fixed"
	SlippageProportional SlippageModel = "proportional"
)

// SimulatedConfig tunes the simulation gateway
type SimulatedConfig struct {
	SlippageModel        SlippageModel
	FixedSlippagePips    float64
	ProportionalSlippage float64
	Seed                 int64
}

type simQuote struct {
	bid float64
	ask float64
}

// Simulated is an in-memory gateway for development and tests. Prices start
// at typical levels for the major pairs and random-walk on every quote read.
type Simulated struct {
	mu        sync.Mutex
	cfg       SimulatedConfig
	quotes    map[string]simQuote
	connected bool
	nextOrder int
	rng       *rand.Rand
	logger    zerolog.Logger

	// FillRatio scales executed size on placement; 1.0 means full fill.
	// Tests lower it to exercise partial-fill handling.
	FillRatio float64
}

// initial mid prices for the simulated majors
var simInitialPrices = map[string]float64{
	"EUR/USD": 1.0900,
	"GBP/USD": 1.2700,
	"USD/JPY": 148.50,
	"USD/CHF": 0.8800,
	"AUD/USD": 0.6600,
	"NZD/USD": 0.6100,
	"USD/CAD": 1.3500,
	"EUR/GBP": 0.8600,
}

// NewSimulated creates a simulation gateway
func NewSimulated(cfg SimulatedConfig) *Simulated {
	if cfg.SlippageModel == "" {
		cfg.SlippageModel = SlippageFixed
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	return &Simulated{
		cfg:       cfg,
		quotes:    make(map[string]simQuote),
		rng:       rand.New(rand.NewSource(seed)),
		logger:    log.WithComponent("gateway"),
		FillRatio: 1.0,
	}
}

// Connect seeds the simulated market
func (g *Simulated) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for symbol, mid := range simInitialPrices {
		spread := 2 * types.PipSize(symbol)
		g.quotes[symbol] = simQuote{bid: mid - spread/2, ask: mid + spread/2}
	}
	g.connected = true
	g.logger.Info().Msg("Connected to simulated trading environment")
	return nil
}

// Disconnect tears down the simulated market
func (g *Simulated) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = false
	return nil
}

// CurrentPrice returns the mid price for a symbol, walking the quote a step
func (g *Simulated) CurrentPrice(symbol string) (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	quote, ok := g.quotes[symbol]
	if !ok {
		return 0, false
	}
	quote = g.walkLocked(symbol, quote)
	g.quotes[symbol] = quote
	return (quote.bid + quote.ask) / 2, true
}

// walkLocked nudges a quote by up to two pips in either direction
func (g *Simulated) walkLocked(symbol string, quote simQuote) simQuote {
	pip := types.PipSize(symbol)
	step := (g.rng.Float64() - 0.5) * 4 * pip
	return simQuote{bid: quote.bid + step, ask: quote.ask + step}
}

// SetPrice pins a symbol's mid price. Test hook; keeps the configured spread.
func (g *Simulated) SetPrice(symbol string, mid float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	spread := 2 * types.PipSize(symbol)
	g.quotes[symbol] = simQuote{bid: mid - spread/2, ask: mid + spread/2}
}

// PlaceOrder fills a market order at the quote plus slippage
func (g *Simulated) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.connected {
		return nil, fmt.Errorf("gateway not connected")
	}

	quote, ok := g.quotes[req.Symbol]
	if !ok {
		metrics.GatewayOrders.WithLabelValues("place", "refused").Inc()
		return &OrderResult{Success: false, Error: fmt.Sprintf("symbol %s not found", req.Symbol)}, nil
	}

	var base float64
	if req.Direction == types.DirectionLong {
		base = quote.ask + g.slippageLocked(req.Symbol, quote.ask)
	} else {
		base = quote.bid - g.slippageLocked(req.Symbol, quote.bid)
	}

	if req.Type == OrderTypeLimit && req.LimitPrice != nil {
		if (req.Direction == types.DirectionLong && base > *req.LimitPrice) ||
			(req.Direction == types.DirectionShort && base < *req.LimitPrice) {
			metrics.GatewayOrders.WithLabelValues("place", "refused").Inc()
			return &OrderResult{Success: false, Error: "limit price not reached"}, nil
		}
	}

	g.nextOrder++
	size := req.Size * g.FillRatio
	metrics.GatewayOrders.WithLabelValues("place", "filled").Inc()
	return &OrderResult{
		Success:       true,
		OrderID:       fmt.Sprintf("sim-%06d", g.nextOrder),
		ExecutedPrice: base,
		ExecutedSize:  size,
	}, nil
}

// CloseOrder fills at the current mid price; no slippage is applied
func (g *Simulated) CloseOrder(ctx context.Context, symbol, orderID string, size float64) (*CloseResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.connected {
		return nil, fmt.Errorf("gateway not connected")
	}

	quote, ok := g.quotes[symbol]
	if !ok {
		return &CloseResult{Success: false, Error: fmt.Sprintf("symbol %s not found", symbol)}, nil
	}

	metrics.GatewayOrders.WithLabelValues("close", "filled").Inc()
	return &CloseResult{Success: true, ExecutedPrice: (quote.bid + quote.ask) / 2}, nil
}

// ListActiveSymbols returns every seeded symbol
func (g *Simulated) ListActiveSymbols(market string) []SymbolInfo {
	g.mu.Lock()
	defer g.mu.Unlock()

	symbols := make([]SymbolInfo, 0, len(g.quotes))
	for symbol := range g.quotes {
		symbols = append(symbols, SymbolInfo{Symbol: symbol, DisplayName: symbol})
	}
	return symbols
}

// slippageLocked computes one-sided slippage for a fill at the given price
func (g *Simulated) slippageLocked(symbol string, price float64) float64 {
	switch g.cfg.SlippageModel {
	case SlippageProportional:
		return price * g.cfg.ProportionalSlippage
	default:
		return g.cfg.FixedSlippagePips * types.PipSize(symbol)
	}
}
