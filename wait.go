package wbflash

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// WaitPolicy bounds how long a driver polls the busy bit. A zero Timeout or
// MaxPolls disables that bound; the zero WaitPolicy polls forever without
// sleeping.
type WaitPolicy struct {
	Interval time.Duration // delay between polls
	Timeout  time.Duration
	MaxPolls int
	Clock    clockwork.Clock // nil uses the real clock
}

// DefaultWaitPolicy polls every 10µs and relies on per-operation timeouts.
var DefaultWaitPolicy = WaitPolicy{Interval: 10 * time.Microsecond}

// OperationSlack is added to a datasheet maximum by ForOperation to cover
// bus round trips between status reads.
const OperationSlack = 10 * time.Millisecond

// WithTimeout returns a copy of p using timeout, unless p already carries a
// shorter one.
func (p WaitPolicy) WithTimeout(timeout time.Duration) WaitPolicy {
	if p.Timeout == 0 || (timeout > 0 && timeout < p.Timeout) {
		p.Timeout = timeout
	}
	return p
}

// ForOperation bounds p by twice the datasheet maximum t plus
// OperationSlack, unless p already carries a shorter timeout.
func (p WaitPolicy) ForOperation(t time.Duration) WaitPolicy {
	return p.WithTimeout(2*t + OperationSlack)
}

// Sleep waits d on the policy's clock.
func (p WaitPolicy) Sleep(d time.Duration) {
	if d > 0 {
		p.clock().Sleep(d)
	}
}

func (p WaitPolicy) clock() clockwork.Clock {
	if p.Clock == nil {
		return clockwork.NewRealClock()
	}
	return p.Clock
}

// Wait polls busy until it reports false. It returns an error wrapping
// ErrNotReady once a bound is exceeded, or the first error from busy.
// The deadline is taken before each poll, so the device is always sampled
// once after the timeout has passed.
func (p WaitPolicy) Wait(busy func() (bool, error)) error {
	clk := p.clock()
	start := clk.Now()
	for polls := 1; ; polls++ {
		elapsed := clk.Since(start)
		b, err := busy()
		if err != nil {
			return err
		}
		if !b {
			return nil
		}
		if p.MaxPolls > 0 && polls >= p.MaxPolls {
			return fmt.Errorf("%w: still busy after %d polls", ErrNotReady, polls)
		}
		if p.Timeout > 0 && elapsed >= p.Timeout {
			return fmt.Errorf("%w: still busy after %v", ErrNotReady, clk.Since(start))
		}
		if p.Interval > 0 {
			clk.Sleep(p.Interval)
		}
	}
}
