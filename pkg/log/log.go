package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the root logger every component logger derives from. Before
// Init it is a no-op logger, so packages may take child loggers at
// construction time regardless of initialization order.
var Logger = zerolog.Nop()

// Config holds logging configuration
type Config struct {
	Level      string // debug, info, warn, error; anything else means info
	JSONOutput bool
	Output     io.Writer
}

// Init builds the root logger. The level is applied to the logger itself
// rather than the zerolog global, so tests and embedded uses can carry
// different levels side by side.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if !cfg.JSONOutput {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	Logger = zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// WithComponent creates a child logger for an infrastructure component
// (broker, gateway, storage, metrics)
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithAgent creates a child logger for one agent. Every record an agent
// writes carries its id, which is what makes swallowed-error logs
// attributable under the error-isolation policy.
func WithAgent(agentID string) zerolog.Logger {
	return Logger.With().Str("agent_id", agentID).Logger()
}

// WithTrade narrows an existing logger to one trade. Empty ids are left
// off, so the same call site serves the proposal stage (no execution id
// yet) and the position stage (both ids known).
func WithTrade(logger zerolog.Logger, proposalID, executionID string) zerolog.Logger {
	ctx := logger.With()
	if proposalID != "" {
		ctx = ctx.Str("proposal_id", proposalID)
	}
	if executionID != "" {
		ctx = ctx.Str("execution_id", executionID)
	}
	return ctx.Logger()
}
