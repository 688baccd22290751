package fundamental

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/semillacaramelo/ftba/pkg/agent"
	"github.com/semillacaramelo/ftba/pkg/broker"
	"github.com/semillacaramelo/ftba/pkg/config"
	"github.com/semillacaramelo/ftba/pkg/log"
	"github.com/semillacaramelo/ftba/pkg/types"
)

// ID is the fundamental analysis agent's identity on the broker
const ID = "fundamental_analysis"

// calendarEvent is one scheduled macro release
type calendarEvent struct {
	currency string
	name     string
	forecast float64
	previous float64
	surprise float64 // actual = forecast + surprise, fixed per event
	impact   types.Confidence
	offset   time.Duration // release time relative to agent start

	warned   bool
	released bool
}

// Agent walks a static economic calendar, warning ahead of high-impact
// events and assessing releases as they come due. Trade results feed a
// rough forecast-accuracy tally.
type Agent struct {
	*agent.BaseAgent
	cfg    config.FundamentalConfig
	logger zerolog.Logger

	startedAt  time.Time
	calendar   []*calendarEvent
	lastUpdate time.Time

	assessed  map[string]types.Direction // currency -> last released impact
	resultsOK int
	results   int
}

// sampleCalendar returns the built-in release schedule. A live feed would
// replace this; the shape and cadence mirror a typical macro week.
func sampleCalendar() []*calendarEvent {
	return []*calendarEvent{
		{currency: "USD", name: "Non-Farm Payrolls", forecast: 180, previous: 175, surprise: 22, impact: types.ConfidenceVeryHigh, offset: 2 * time.Hour},
		{currency: "EUR", name: "ECB Rate Decision", forecast: 4.0, previous: 4.0, surprise: 0, impact: types.ConfidenceVeryHigh, offset: 5 * time.Hour},
		{currency: "GBP", name: "CPI YoY", forecast: 3.2, previous: 3.4, surprise: -0.3, impact: types.ConfidenceHigh, offset: 8 * time.Hour},
		{currency: "USD", name: "FOMC Minutes", forecast: 0, previous: 0, surprise: 0, impact: types.ConfidenceHigh, offset: 26 * time.Hour},
		{currency: "JPY", name: "BoJ Policy Statement", forecast: -0.1, previous: -0.1, surprise: 0, impact: types.ConfidenceMedium, offset: 30 * time.Hour},
		{currency: "AUD", name: "Employment Change", forecast: 25, previous: 18, surprise: -8, impact: types.ConfidenceMedium, offset: 50 * time.Hour},
	}
}

// New creates the fundamental analysis agent
func New(b *broker.Broker, cfg config.FundamentalConfig) *Agent {
	a := &Agent{
		cfg:      cfg,
		logger:   log.WithAgent(ID),
		calendar: sampleCalendar(),
		assessed: make(map[string]types.Direction),
	}
	a.BaseAgent = agent.New(ID, b, a, agent.Options{
		BatchSize:     cfg.BatchSize,
		BatchInterval: cfg.BatchInterval(),
	})
	return a
}

// Setup loads the calendar and subscribes to result feedback
func (a *Agent) Setup(ctx context.Context) error {
	a.startedAt = time.Now().UTC()
	a.SubscribeTo(types.MessageTradeResult)
	a.logger.Info().Int("events", len(a.calendar)).Msg("Economic calendar loaded")
	return nil
}

// Cleanup logs the forecast-accuracy tally
func (a *Agent) Cleanup(ctx context.Context) error {
	if a.results > 0 {
		a.logger.Info().
			Int("aligned", a.resultsOK).
			Int("total", a.results).
			Msg("Forecast alignment tally")
	}
	return nil
}

// HandleMessage tallies how often released assessments aligned with
// profitable trades on affected pairs
func (a *Agent) HandleMessage(ctx context.Context, msg *types.Message) error {
	result, ok := msg.Payload.(types.TradeResult)
	if !ok {
		return nil
	}

	for _, currency := range []string{types.BaseCurrency(result.Symbol), types.QuoteCurrency(result.Symbol)} {
		impact, assessed := a.assessed[currency]
		if !assessed {
			continue
		}
		a.results++
		if (result.Profit > 0 && impact == result.Direction) ||
			(result.Profit <= 0 && impact != result.Direction) {
			a.resultsOK++
		}
		break
	}
	return nil
}

// ProcessCycle warns about upcoming events and assesses due releases
func (a *Agent) ProcessCycle(ctx context.Context) error {
	now := time.Now().UTC()
	if now.Sub(a.lastUpdate) < a.cfg.UpdateInterval() {
		return nil
	}
	a.lastUpdate = now

	warning := time.Duration(a.cfg.EventWarningMins) * time.Minute
	for _, event := range a.calendar {
		releaseAt := a.startedAt.Add(event.offset)

		if !event.warned && !event.released &&
			releaseAt.After(now) && releaseAt.Sub(now) <= warning {
			event.warned = true
			a.warnUpcoming(event, releaseAt)
		}

		if !event.released && !releaseAt.After(now) {
			event.released = true
			a.assessRelease(event, now)
		}
	}
	return nil
}

// warnUpcoming broadcasts an advance notice so risk can widen its models
func (a *Agent) warnUpcoming(event *calendarEvent, releaseAt time.Time) {
	a.logger.Info().
		Str("event", event.name).
		Str("currency", event.currency).
		Time("at", releaseAt).
		Msg("High-impact event upcoming")

	forecast := event.forecast
	previous := event.previous
	a.SendMessage(types.MessageFundamentalUpdate, types.FundamentalUpdate{
		ImpactCurrencies: []string{event.currency},
		Event:            "Upcoming Event: " + event.name,
		Forecast:         &forecast,
		Previous:         &previous,
		Impact:           types.DirectionNeutral,
		Confidence:       event.impact,
		Timestamp:        releaseAt,
	})
}

// assessRelease grades the surprise against forecast and broadcasts the
// directional read for the currency
func (a *Agent) assessRelease(event *calendarEvent, now time.Time) {
	actual := event.forecast + event.surprise

	impact := types.DirectionNeutral
	switch {
	case event.surprise > 0:
		impact = types.DirectionLong
	case event.surprise < 0:
		impact = types.DirectionShort
	}
	a.assessed[event.currency] = impact

	a.logger.Info().
		Str("event", event.name).
		Str("currency", event.currency).
		Float64("actual", actual).
		Str("impact", string(impact)).
		Msg("Event released")

	forecast := event.forecast
	previous := event.previous
	a.SendMessage(types.MessageFundamentalUpdate, types.FundamentalUpdate{
		ImpactCurrencies: []string{event.currency},
		Event:            event.name,
		Actual:           &actual,
		Forecast:         &forecast,
		Previous:         &previous,
		Impact:           impact,
		Confidence:       event.impact,
		Timestamp:        now,
	})
}
