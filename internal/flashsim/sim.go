// Package flashsim provides behavioral models of the Winbond serial flash
// parts that implement qspi.Bus, for driver tests.
package flashsim

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gentam/wbflash/qspi"
)

// Op kinds recorded in the transaction log.
const (
	KindCommand  = "cmd"
	KindTransmit = "tx"
	KindReceive  = "rx"
)

// Op is one transaction seen by a simulator.
type Op struct {
	Kind string
	Cmd  qspi.Command
	Len  int
}

// Faults injects misbehavior into a simulator.
type Faults struct {
	// FailInstr makes every transaction with the instruction return the
	// error.
	FailInstr map[byte]error
	// StuckWEL leaves the write enable latch clear after Write Enable.
	StuckWEL bool
	// StuckBusy keeps the busy bit set forever.
	StuckBusy bool
}

// state is shared by the NAND and NOR models.
type state struct {
	Faults

	// Log records every transaction in order.
	Log []Op
	// Violations records protocol errors, such as commands issued while
	// the device is busy.
	Violations []string
	// BusyPolls is the number of status reads reporting busy after each
	// program or erase.
	BusyPolls int
	// Clock, if set, is advanced by Tick on every status read.
	Clock clockwork.FakeClock
	Tick  time.Duration

	busy int
	wel  bool
}

func (s *state) record(kind string, cmd qspi.Command, n int) error {
	s.Log = append(s.Log, Op{Kind: kind, Cmd: cmd, Len: n})
	if err := s.FailInstr[cmd.Instruction]; err != nil {
		return err
	}
	return nil
}

// violate records a protocol violation.
func (s *state) violate(format string, a ...any) {
	s.Violations = append(s.Violations, fmt.Sprintf(format, a...))
}

// pollBusy reports the busy bit for one status read.
func (s *state) pollBusy() bool {
	if s.Clock != nil {
		s.Clock.Advance(s.Tick)
	}
	if s.StuckBusy {
		return true
	}
	if s.busy > 0 {
		s.busy--
		return true
	}
	return false
}

func (s *state) isBusy() bool { return s.StuckBusy || s.busy > 0 }

// startOp consumes the latch and makes the device busy.
func (s *state) startOp() {
	s.wel = false
	s.busy = s.BusyPolls
}

func (s *state) writeEnable() {
	s.wel = !s.StuckWEL
}

// Instructions returns the instruction bytes of the log in order.
func (s *state) Instructions() []byte {
	out := make([]byte, len(s.Log))
	for i, op := range s.Log {
		out[i] = op.Cmd.Instruction
	}
	return out
}

// Find returns the logged transactions using instr.
func (s *state) Find(instr byte) []Op {
	var out []Op
	for _, op := range s.Log {
		if op.Cmd.Instruction == instr {
			out = append(out, op)
		}
	}
	return out
}

// ResetLog clears the transaction log and violations.
func (s *state) ResetLog() {
	s.Log = nil
	s.Violations = nil
}
