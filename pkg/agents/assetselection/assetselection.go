package assetselection

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/semillacaramelo/ftba/pkg/agent"
	"github.com/semillacaramelo/ftba/pkg/broker"
	"github.com/semillacaramelo/ftba/pkg/config"
	"github.com/semillacaramelo/ftba/pkg/gateway"
	"github.com/semillacaramelo/ftba/pkg/log"
	"github.com/semillacaramelo/ftba/pkg/types"
)

// ID is the asset selection agent's identity on the broker
const ID = "asset_selection"

// Agent tracks which symbols are currently tradable from the trading-hours
// table and the gateway's active symbol list, broadcasts availability
// updates, and answers addressed availability requests.
type Agent struct {
	*agent.BaseAgent
	cfg     config.AssetSelectionConfig
	gateway gateway.Gateway // optional; nil skips the exchange check
	logger  zerolog.Logger

	available   []string
	recommended []string
	lastUpdate  time.Time

	// now is swappable for trading-hours tests
	now func() time.Time
}

// New creates the asset selection agent. The gateway may be nil.
func New(b *broker.Broker, cfg config.AssetSelectionConfig, gw gateway.Gateway) *Agent {
	a := &Agent{
		cfg:     cfg,
		gateway: gw,
		logger:  log.WithAgent(ID),
		now:     func() time.Time { return time.Now().UTC() },
	}
	a.BaseAgent = agent.New(ID, b, a, agent.Options{
		BatchSize:     cfg.BatchSize,
		BatchInterval: cfg.BatchInterval(),
	})
	return a
}

// Setup subscribes to status traffic and publishes the first availability view
func (a *Agent) Setup(ctx context.Context) error {
	a.SubscribeTo(types.MessageSystemStatus)
	a.checkAvailability()
	a.broadcastAvailability()
	return nil
}

// Cleanup has nothing to release
func (a *Agent) Cleanup(ctx context.Context) error {
	return nil
}

// HandleMessage answers addressed availability requests to the sender only
func (a *Agent) HandleMessage(ctx context.Context, msg *types.Message) error {
	status, ok := msg.Payload.(types.SystemStatus)
	if !ok || status.Event != types.EventAssetAvailabilityRequest {
		return nil
	}

	a.SendMessage(types.MessageSystemStatus, types.SystemStatus{
		Event:             types.EventAssetAvailabilityResponse,
		AvailableAssets:   a.available,
		RecommendedAssets: a.recommended,
		Timestamp:         a.now(),
	}, msg.Sender)
	return nil
}

// ProcessCycle refreshes availability on the configured interval
func (a *Agent) ProcessCycle(ctx context.Context) error {
	now := a.now()
	if now.Sub(a.lastUpdate) < a.cfg.UpdateInterval() {
		return nil
	}
	a.lastUpdate = now

	a.checkAvailability()
	a.broadcastAvailability()
	return nil
}

// checkAvailability recomputes the available and recommended sets
func (a *Agent) checkAvailability() {
	if !a.marketOpen(a.now()) {
		a.available = nil
		a.recommended = nil
		return
	}

	tradable := func(string) bool { return true }
	if a.gateway != nil {
		if active := a.gateway.ListActiveSymbols("forex"); len(active) > 0 {
			set := make(map[string]bool, len(active))
			for _, info := range active {
				set[info.Symbol] = true
			}
			tradable = func(symbol string) bool { return set[symbol] }
		}
	}

	var available []string
	for _, symbol := range append(append([]string{}, a.cfg.PrimaryAssets...), a.cfg.FallbackAssets...) {
		if tradable(symbol) && !contains(available, symbol) {
			available = append(available, symbol)
		}
	}
	a.available = available

	// Recommend available primaries; fall back to available fallbacks when
	// no primary trades.
	var recommended []string
	for _, symbol := range a.cfg.PrimaryAssets {
		if contains(available, symbol) {
			recommended = append(recommended, symbol)
		}
	}
	if len(recommended) == 0 {
		for _, symbol := range a.cfg.FallbackAssets {
			if contains(available, symbol) {
				recommended = append(recommended, symbol)
			}
		}
	}
	a.recommended = recommended
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func (a *Agent) broadcastAvailability() {
	a.logger.Debug().
		Int("available", len(a.available)).
		Int("recommended", len(a.recommended)).
		Msg("Broadcasting asset availability")

	a.SendMessage(types.MessageSystemStatus, types.SystemStatus{
		Event:             types.EventAssetAvailabilityUpdate,
		AvailableAssets:   a.available,
		RecommendedAssets: a.recommended,
		Timestamp:         a.now(),
	})
}

// marketOpen checks the trading-hours table for the current weekday. The
// tolerance shaves minutes off the close so trades never open into an
// imminent session end.
func (a *Agent) marketOpen(now time.Time) bool {
	if len(a.cfg.TradingHours) == 0 {
		return true
	}

	day := strings.ToLower(now.Weekday().String())
	schedule, ok := a.cfg.TradingHours[day]
	if !ok || schedule.Open == "" {
		return false
	}

	open, err := parseClock(schedule.Open)
	if err != nil {
		a.logger.Warn().Str("day", day).Err(err).Msg("Bad trading-hours entry")
		return false
	}
	closeAt, err := parseClock(schedule.Close)
	if err != nil {
		a.logger.Warn().Str("day", day).Err(err).Msg("Bad trading-hours entry")
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	return minute >= open && minute < closeAt-a.cfg.ToleranceMinutes
}

// parseClock converts "HH:MM" to minutes since midnight; "24:00" is the end
// of day
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed clock %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("malformed clock %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("malformed clock %q", s)
	}
	return hour*60 + minute, nil
}
