package w25q

import (
	"log/slog"

	"github.com/gentam/wbflash"
	"github.com/gentam/wbflash/qspi"
)

type config struct {
	logger        *slog.Logger
	lines         qspi.Lines
	wait          wbflash.WaitPolicy
	capacity      uint32
	trailingBlock bool
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

// WithDataLines selects quad (4, the default) or single line (1) transfers.
func WithDataLines(n qspi.Lines) Option {
	return func(c *config) {
		if n == qspi.Lines1 || n == qspi.Lines4 {
			c.lines = n
		}
	}
}

// WithWaitPolicy sets how the driver polls the busy bit.
func WithWaitPolicy(p wbflash.WaitPolicy) Option {
	return func(c *config) { c.wait = p }
}

// WithCapacity overrides the chip size used to bound EraseRange, for boards
// that reserve part of the chip or carry a smaller part.
func WithCapacity(bytes uint32) Option {
	return func(c *config) { c.capacity = bytes }
}

// WithTrailingEraseBlock makes EraseRange erase one more 64KB block than
// needed when it erases several blocks.
func WithTrailingEraseBlock() Option {
	return func(c *config) { c.trailingBlock = true }
}
