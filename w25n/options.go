package w25n

import (
	"log/slog"

	"github.com/gentam/wbflash"
	"github.com/gentam/wbflash/qspi"
)

type config struct {
	logger   *slog.Logger
	lines    qspi.Lines
	quadLoad bool
	wait     wbflash.WaitPolicy
}

func defaultConfig() config {
	return config{
		logger: wbflash.DiscardLogger(),
		lines:  qspi.Lines4,
		wait:   wbflash.DefaultWaitPolicy,
	}
}

// Option configures a Device.
type Option func(*config)

// WithLogger sets the logger for driver operations.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDataLines selects quad (4, the default) or single line (1) reads.
// Single line mode lets the driver run on a plain SPI adapter.
func WithDataLines(n qspi.Lines) Option {
	return func(c *config) {
		if n == qspi.Lines1 || n == qspi.Lines4 {
			c.lines = n
		}
	}
}

// WithQuadLoad makes program data loads use the quad instructions. It has
// no effect in single line mode.
func WithQuadLoad(quad bool) Option {
	return func(c *config) { c.quadLoad = quad }
}

// WithWaitPolicy sets how the driver polls the busy bit.
func WithWaitPolicy(p wbflash.WaitPolicy) Option {
	return func(c *config) { c.wait = p }
}
