package gateway

import (
	"context"

	"github.com/semillacaramelo/ftba/pkg/types"
)

// OrderType distinguishes market and limit orders
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderRequest describes an order to place with the gateway
type OrderRequest struct {
	Symbol         string
	Direction      types.Direction
	Size           float64
	Type           OrderType
	LimitPrice     *float64
	StopLossPips   float64
	TakeProfitPips float64
}

// OrderResult is the gateway's answer to a placement request. Success=false
// with an Error string is a refusal, not a transport failure.
type OrderResult struct {
	Success       bool
	OrderID       string
	ExecutedPrice float64
	ExecutedSize  float64
	Error         string
}

// CloseResult is the gateway's answer to a close request
type CloseResult struct {
	Success       bool
	ExecutedPrice float64
	Error         string
}

// SymbolInfo names one tradable symbol
type SymbolInfo struct {
	Symbol      string
	DisplayName string
}

// Gateway is the broker-facing capability consumed by the execution agent.
// Transport errors are returned as error; order refusals ride in the result.
// A failed call is not retried by the implementation; its transport error
// reaches the caller on the first failure.
type Gateway interface {
	Connect(ctx context.Context) error
	Disconnect() error
	CurrentPrice(symbol string) (float64, bool)
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	CloseOrder(ctx context.Context, symbol, orderID string, size float64) (*CloseResult, error)
	ListActiveSymbols(market string) []SymbolInfo
}
