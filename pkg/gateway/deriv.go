package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/semillacaramelo/ftba/pkg/log"
	"github.com/semillacaramelo/ftba/pkg/metrics"
	"github.com/semillacaramelo/ftba/pkg/types"
)

const (
	derivDefaultEndpoint = "wss://ws.binaryws.com/websockets/v3"

	reconnectBase = time.Second
	reconnectCap  = 30 * time.Second
	callTimeout   = 10 * time.Second
)

// DerivConfig tunes the Deriv websocket adapter
type DerivConfig struct {
	Endpoint string
	AppID    string
	APIToken string
	Demo     bool
}

// Deriv is a websocket gateway adapter speaking the Deriv JSON API. Requests
// are correlated by req_id; ticks stream into a quote cache. A read failure
// starts a background reconnect with exponential backoff. A call made while
// disconnected, or whose send fails or times out, returns its error at once;
// calls are not retried.
type Deriv struct {
	cfg    DerivConfig
	logger zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closing   bool
	nextReq   int
	pending   map[int]chan json.RawMessage
	prices    map[string]float64
	ticks     map[string]bool
}

// NewDeriv creates a Deriv gateway adapter
func NewDeriv(cfg DerivConfig) *Deriv {
	if cfg.Endpoint == "" {
		cfg.Endpoint = derivDefaultEndpoint
	}
	return &Deriv{
		cfg:     cfg,
		logger:  log.WithComponent("gateway"),
		pending: make(map[int]chan json.RawMessage),
		prices:  make(map[string]float64),
		ticks:   make(map[string]bool),
	}
}

// derivSymbol maps "EUR/USD" to the Deriv instrument code "frxEURUSD"
func derivSymbol(symbol string) string {
	return "frx" + strings.ReplaceAll(symbol, "/", "")
}

// Connect dials the websocket, authorizes, and starts the read loop
func (g *Deriv) Connect(ctx context.Context) error {
	if err := g.dial(ctx); err != nil {
		return err
	}

	if g.cfg.APIToken != "" {
		if _, err := g.call(ctx, map[string]any{"authorize": g.cfg.APIToken}); err != nil {
			g.Disconnect()
			return fmt.Errorf("authorize failed: %w", err)
		}
	}

	metrics.UpdateComponent("gateway", true, "connected")
	g.logger.Info().Str("endpoint", g.cfg.Endpoint).Msg("Connected to Deriv")
	return nil
}

func (g *Deriv) dial(ctx context.Context) error {
	url := fmt.Sprintf("%s?app_id=%s", g.cfg.Endpoint, g.cfg.AppID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", g.cfg.Endpoint, err)
	}

	g.mu.Lock()
	g.conn = conn
	g.connected = true
	g.closing = false
	g.mu.Unlock()

	go g.readLoop(conn)
	return nil
}

// Disconnect closes the websocket
func (g *Deriv) Disconnect() error {
	g.mu.Lock()
	g.closing = true
	conn := g.conn
	g.conn = nil
	g.connected = false
	g.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// readLoop dispatches responses to pending calls and ticks to the quote
// cache. A read error outside of shutdown triggers a backoff reconnect.
func (g *Deriv) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			g.mu.Lock()
			closing := g.closing
			g.mu.Unlock()
			if closing {
				return
			}
			g.logger.Warn().Err(err).Msg("Websocket read failed, reconnecting")
			metrics.UpdateComponent("gateway", false, "reconnecting")
			g.reconnect()
			return
		}
		g.handleFrame(data)
	}
}

func (g *Deriv) handleFrame(data []byte) {
	var frame struct {
		ReqID   int    `json:"req_id"`
		MsgType string `json:"msg_type"`
		Tick    *struct {
			Symbol string  `json:"symbol"`
			Quote  float64 `json:"quote"`
		} `json:"tick"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		g.logger.Debug().Err(err).Msg("Discarding unparseable frame")
		return
	}

	if frame.MsgType == "tick" && frame.Tick != nil {
		g.mu.Lock()
		g.prices[frame.Tick.Symbol] = frame.Tick.Quote
		g.mu.Unlock()
		return
	}

	if frame.ReqID != 0 {
		g.mu.Lock()
		ch, ok := g.pending[frame.ReqID]
		if ok {
			delete(g.pending, frame.ReqID)
		}
		g.mu.Unlock()
		if ok {
			ch <- json.RawMessage(data)
		}
	}
}

// reconnect re-dials with exponential backoff and restores tick subscriptions
func (g *Deriv) reconnect() {
	backoff := reconnectBase
	for {
		g.mu.Lock()
		if g.closing {
			g.mu.Unlock()
			return
		}
		subscribed := make([]string, 0, len(g.ticks))
		for symbol := range g.ticks {
			subscribed = append(subscribed, symbol)
		}
		g.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		err := g.Connect(ctx)
		cancel()
		if err == nil {
			for _, symbol := range subscribed {
				g.mu.Lock()
				delete(g.ticks, symbol)
				g.mu.Unlock()
				g.subscribeTicks(symbol)
			}
			return
		}

		g.logger.Warn().Err(err).Dur("backoff", backoff).Msg("Reconnect failed")
		time.Sleep(backoff)
		backoff *= 2
		if backoff > reconnectCap {
			backoff = reconnectCap
		}
	}
}

// call sends a request and waits for its correlated response
func (g *Deriv) call(ctx context.Context, req map[string]any) (json.RawMessage, error) {
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return nil, fmt.Errorf("gateway not connected")
	}
	g.nextReq++
	reqID := g.nextReq
	req["req_id"] = reqID
	ch := make(chan json.RawMessage, 1)
	g.pending[reqID] = ch
	conn := g.conn
	err := conn.WriteJSON(req)
	g.mu.Unlock()

	if err != nil {
		g.dropPending(reqID)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	timer := time.NewTimer(callTimeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		var apiErr struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(resp, &apiErr); err == nil && apiErr.Error != nil {
			return resp, fmt.Errorf("deriv error %s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return resp, nil
	case <-timer.C:
		g.dropPending(reqID)
		return nil, fmt.Errorf("request timed out")
	case <-ctx.Done():
		g.dropPending(reqID)
		return nil, ctx.Err()
	}
}

func (g *Deriv) dropPending(reqID int) {
	g.mu.Lock()
	delete(g.pending, reqID)
	g.mu.Unlock()
}

// CurrentPrice returns the last tick for a symbol. The first request for a
// symbol subscribes its tick stream, so early calls miss until ticks arrive.
func (g *Deriv) CurrentPrice(symbol string) (float64, bool) {
	code := derivSymbol(symbol)

	g.mu.Lock()
	price, ok := g.prices[code]
	subscribed := g.ticks[code]
	g.mu.Unlock()

	if !subscribed {
		g.subscribeTicks(code)
	}
	return price, ok
}

func (g *Deriv) subscribeTicks(code string) {
	g.mu.Lock()
	if !g.connected || g.ticks[code] {
		g.mu.Unlock()
		return
	}
	g.ticks[code] = true
	conn := g.conn
	err := conn.WriteJSON(map[string]any{"ticks": code, "subscribe": 1})
	g.mu.Unlock()

	if err != nil {
		g.logger.Warn().Err(err).Str("symbol", code).Msg("Tick subscription failed")
	}
}

// PlaceOrder buys a contract for the requested direction and size
func (g *Deriv) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.GatewayLatency, "place")

	contractType := "MULTUP"
	if req.Direction == types.DirectionShort {
		contractType = "MULTDOWN"
	}

	resp, err := g.call(ctx, map[string]any{
		"buy":   1,
		"price": req.Size,
		"parameters": map[string]any{
			"contract_type": contractType,
			"symbol":        derivSymbol(req.Symbol),
			"currency":      "USD",
			"amount":        req.Size,
			"basis":         "stake",
			"multiplier":    1,
		},
	})
	if err != nil {
		if strings.Contains(err.Error(), "deriv error") {
			// Permanent refusal: surfaced as a failed placement.
			metrics.GatewayOrders.WithLabelValues("place", "refused").Inc()
			return &OrderResult{Success: false, Error: err.Error()}, nil
		}
		return nil, err
	}

	var buy struct {
		Buy *struct {
			ContractID int64   `json:"contract_id"`
			BuyPrice   float64 `json:"buy_price"`
		} `json:"buy"`
	}
	if err := json.Unmarshal(resp, &buy); err != nil || buy.Buy == nil {
		return nil, fmt.Errorf("unexpected buy response")
	}

	price, _ := g.CurrentPrice(req.Symbol)
	metrics.GatewayOrders.WithLabelValues("place", "filled").Inc()
	return &OrderResult{
		Success:       true,
		OrderID:       fmt.Sprintf("%d", buy.Buy.ContractID),
		ExecutedPrice: price,
		ExecutedSize:  req.Size,
	}, nil
}

// CloseOrder sells the contract back at market
func (g *Deriv) CloseOrder(ctx context.Context, symbol, orderID string, size float64) (*CloseResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.GatewayLatency, "close")

	resp, err := g.call(ctx, map[string]any{"sell": orderID, "price": 0})
	if err != nil {
		if strings.Contains(err.Error(), "deriv error") {
			return &CloseResult{Success: false, Error: err.Error()}, nil
		}
		return nil, err
	}

	var sell struct {
		Sell *struct {
			SoldFor float64 `json:"sold_for"`
		} `json:"sell"`
	}
	if err := json.Unmarshal(resp, &sell); err != nil || sell.Sell == nil {
		return nil, fmt.Errorf("unexpected sell response")
	}

	price, _ := g.CurrentPrice(symbol)
	metrics.GatewayOrders.WithLabelValues("close", "filled").Inc()
	return &CloseResult{Success: true, ExecutedPrice: price}, nil
}

// ListActiveSymbols queries the exchange for tradable symbols in a market
func (g *Deriv) ListActiveSymbols(market string) []SymbolInfo {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	resp, err := g.call(ctx, map[string]any{"active_symbols": "brief", "product_type": "basic"})
	if err != nil {
		g.logger.Warn().Err(err).Msg("Active symbols query failed")
		return nil
	}

	var parsed struct {
		ActiveSymbols []struct {
			Symbol      string `json:"symbol"`
			DisplayName string `json:"display_name"`
			Market      string `json:"market"`
		} `json:"active_symbols"`
	}
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return nil
	}

	var symbols []SymbolInfo
	for _, s := range parsed.ActiveSymbols {
		if market != "" && s.Market != market {
			continue
		}
		symbols = append(symbols, SymbolInfo{Symbol: s.Symbol, DisplayName: s.DisplayName})
	}
	return symbols
}
