package w25q

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gentam/wbflash"
	"github.com/gentam/wbflash/internal/flashsim"
	"github.com/gentam/wbflash/qspi"
)

var errInjected = errors.New("injected")

func newTestDevice(t *testing.T, opts ...Option) (*Device, *flashsim.NOR) {
	t.Helper()
	sim := flashsim.NewNOR()
	sim.BusyPolls = 2
	opts = append([]Option{WithWaitPolicy(wbflash.WaitPolicy{MaxPolls: 100})}, opts...)
	return New(sim, opts...), sim
}

// writes returns the logged instructions other than status register reads.
func writes(sim *flashsim.NOR) []byte {
	var out []byte
	for _, instr := range sim.Instructions() {
		switch instr {
		case cmdReadStatusReg1, cmdReadStatusReg2, cmdReadStatusReg3:
		default:
			out = append(out, instr)
		}
	}
	return out
}

func checkViolations(t *testing.T, sim *flashsim.NOR) {
	t.Helper()
	for _, v := range sim.Violations {
		t.Errorf("protocol violation: %s", v)
	}
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7) ^ seed
	}
	return b
}

func readSim(sim *flashsim.NOR, addr uint32, n int) []byte {
	b := make([]byte, n)
	sim.ReadAt(addr, b)
	return b
}

// =============================================================================
// Initialization
// =============================================================================

func TestOpen(t *testing.T) {
	for _, id := range AcceptedIDs {
		sim := flashsim.NewNOR()
		sim.ID = id
		d, err := Open(sim)
		if err != nil {
			t.Fatalf("Open() with ID %X error = %v", id, err)
		}
		if !StatusRegister2(sim.StatusRegister(2)).QuadEnabled() {
			t.Errorf("ID %X: QE not set", id)
		}
		if got := d.Geometry().Capacity(); got != 16<<20 {
			t.Errorf("ID %X: capacity %d", id, got)
		}
		checkViolations(t, sim)
	}
}

func TestOpen_SingleLine(t *testing.T) {
	sim := flashsim.NewNOR()
	if _, err := Open(sim, WithDataLines(qspi.Lines1)); err != nil {
		t.Fatal(err)
	}
	if got := sim.Instructions(); !bytes.Equal(got, []byte{cmdJEDECID}) {
		t.Errorf("instructions = %X, want only the JEDEC ID read", got)
	}
}

func TestOpen_Mismatch(t *testing.T) {
	ids := [][3]byte{
		{0xC2, 0x40, 0x18},
		{0xEF, 0x60, 0x18},
		{0xEF, 0x40, 0x17},
		wbflash.IDWinbondW25N01GV,
		{0xFF, 0xFF, 0xFF},
	}
	for _, id := range ids {
		sim := flashsim.NewNOR()
		sim.ID = id
		_, err := Open(sim)
		var mismatch *wbflash.IDMismatchError
		if !errors.As(err, &mismatch) || mismatch.Actual != id {
			t.Errorf("Open() with ID %X error = %v, want IDMismatchError", id, err)
		}
		if got := sim.Instructions(); !bytes.Equal(got, []byte{cmdJEDECID}) {
			t.Errorf("ID %X: instructions = %X, want no quad enable", id, got)
		}
	}
}

func TestQuadEnable_NotStuck(t *testing.T) {
	d, sim := newTestDevice(t)
	sim.StuckQE = true
	err := d.QuadEnable()
	if err == nil {
		t.Fatal("QuadEnable() succeeded with a stuck QE bit")
	}
	if errors.Is(err, wbflash.ErrWriteEnable) || errors.Is(err, wbflash.ErrBus) {
		t.Errorf("QuadEnable() error = %v, want verification failure", err)
	}
	if len(sim.Find(cmdWriteStatusReg2)) != 1 {
		t.Error("status register 2 not written")
	}
}

// =============================================================================
// Status registers
// =============================================================================

func TestWriteStatusRegister(t *testing.T) {
	d, sim := newTestDevice(t)
	if err := d.WriteStatusRegister(1, 0x1C); err != nil {
		t.Fatal(err)
	}
	if got := sim.StatusRegister(1); got != 0x1C {
		t.Errorf("status register 1 = %#x, want 0x1c", got)
	}
	sr, err := d.ReadStatusRegister(1)
	if err != nil || StatusRegister1(sr).BlockProtect() != 7 {
		t.Errorf("ReadStatusRegister(1) = %s, %v", StatusRegister1(sr), err)
	}

	sim.ResetLog()
	if err := d.WriteStatusRegister(4, 0); err == nil {
		t.Error("WriteStatusRegister(4) succeeded")
	}
	if len(sim.Log) != 0 {
		t.Errorf("transactions issued: %X", sim.Instructions())
	}
}

func TestStatusRegister_String(t *testing.T) {
	if got, want := StatusRegister1(0x1F).String(), "00011111 BP=7,WEL,BUSY"; got != want {
		t.Errorf("StatusRegister1.String() = %q, want %q", got, want)
	}
	if got, want := StatusRegister2(0x82).String(), "10000010 SUS,QE"; got != want {
		t.Errorf("StatusRegister2.String() = %q, want %q", got, want)
	}
	if got, want := StatusRegister1(0).String(), "00000000"; got != want {
		t.Errorf("StatusRegister1.String() = %q, want %q", got, want)
	}
}

func TestReset(t *testing.T) {
	d, sim := newTestDevice(t)
	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	if got, want := writes(sim), []byte{cmdEnableReset, cmdResetDevice}; !bytes.Equal(got, want) {
		t.Errorf("instructions = %X, want %X", got, want)
	}
}

func TestPowerDown(t *testing.T) {
	d, sim := newTestDevice(t)
	if err := d.PowerDown(); err != nil {
		t.Fatalf("PowerDown() error = %v", err)
	}
	if !sim.PoweredDown {
		t.Fatal("device not powered down")
	}
	id, err := d.ReadJEDEC()
	if err != nil {
		t.Fatal(err)
	}
	if id != [3]byte{0xFF, 0xFF, 0xFF} {
		t.Errorf("JEDEC ID while powered down = %X, want FFFFFF", id)
	}

	if err := d.ReleasePowerDown(); err != nil {
		t.Fatalf("ReleasePowerDown() error = %v", err)
	}
	if id, _ := d.ReadJEDEC(); id != sim.ID {
		t.Errorf("JEDEC ID after release = %X, want %X", id, sim.ID)
	}
	want := []byte{cmdPowerDown, cmdJEDECID, cmdReleasePowerDown, cmdJEDECID}
	if got := writes(sim); !bytes.Equal(got, want) {
		t.Errorf("instructions = %X, want %X", got, want)
	}
	checkViolations(t, sim)
}

func TestOpen_PoweredDown(t *testing.T) {
	sim := flashsim.NewNOR()
	sim.PoweredDown = true
	var mismatch *wbflash.IDMismatchError
	if _, err := Open(sim); !errors.As(err, &mismatch) {
		t.Fatalf("Open() on a sleeping device error = %v, want IDMismatchError", err)
	}

	if err := New(sim).ReleasePowerDown(); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(sim); err != nil {
		t.Fatalf("Open() after release error = %v", err)
	}
	checkViolations(t, sim)
}

func TestPowerDown_Busy(t *testing.T) {
	d, sim := newTestDevice(t)
	if err := d.SectorErase(0); err != nil {
		t.Fatal(err)
	}
	// make the device busy again without waiting
	if err := sim.Command(qspi.Command{Instruction: cmdWriteEnable}); err != nil {
		t.Fatal(err)
	}
	if err := sim.Command(qspi.Command{Instruction: cmdSectorErase, AddressSize: qspi.Address24}); err != nil {
		t.Fatal(err)
	}
	if err := d.PowerDown(); err != nil {
		t.Fatalf("PowerDown() error = %v", err)
	}
	checkViolations(t, sim)
}

func TestWaitReady_Timeout(t *testing.T) {
	clk := clockwork.NewFakeClock()
	d, sim := newTestDevice(t, WithWaitPolicy(wbflash.WaitPolicy{Timeout: 50 * time.Millisecond, Clock: clk}))
	sim.StuckBusy = true
	sim.Clock = clk
	sim.Tick = 10 * time.Millisecond

	err := d.SectorErase(0)
	if !errors.Is(err, wbflash.ErrNotReady) {
		t.Fatalf("SectorErase() error = %v, want ErrNotReady", err)
	}
	if n := len(sim.Find(cmdReadStatusReg1)); n != 6 {
		t.Errorf("status reads = %d, want 6", n)
	}
	if len(writes(sim)) != 0 {
		t.Errorf("commands issued to a busy device: %X", writes(sim))
	}
}

// =============================================================================
// Erase
// =============================================================================

func TestErase(t *testing.T) {
	tests := []struct {
		name    string
		erase   func(*Device, uint32) error
		instr   byte
		addr    uint32
		wantCmd uint32
		first   uint32 // first erased byte
		size    uint32
	}{
		{"sector", (*Device).SectorErase, cmdSectorErase, 0x12345, 0x12345, 0x12000, 4 << 10},
		{"32KB block", (*Device).BlockErase32K, cmdBlockErase32K, 0x12345, 0x12345, 0x10000, 32 << 10},
		{"64KB block", (*Device).BlockErase64K, cmdBlockErase64K, 0x12345, 0x12345, 0x10000, 64 << 10},
		{"address masked to 24 bits", (*Device).SectorErase, cmdSectorErase, 0x01001000, 0x001000, 0x1000, 4 << 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sim := newTestDevice(t)
			sim.Fill(tt.first-1, []byte{0, 0})
			sim.Fill(tt.first+tt.size-1, []byte{0, 0})

			if err := tt.erase(d, tt.addr); err != nil {
				t.Fatalf("erase error = %v", err)
			}
			if got, want := writes(sim), []byte{cmdWriteEnable, tt.instr}; !bytes.Equal(got, want) {
				t.Errorf("instructions = %X, want %X", got, want)
			}
			cmd := sim.Find(tt.instr)[0].Cmd
			if cmd.Address != tt.wantCmd || cmd.AddressSize != qspi.Address24 {
				t.Errorf("erase command = %s", cmd)
			}

			got := append(readSim(sim, tt.first-1, 2), readSim(sim, tt.first+tt.size-1, 2)...)
			if want := []byte{0, 0xFF, 0xFF, 0}; !bytes.Equal(got, want) {
				t.Errorf("bytes around the erased range = %X, want %X", got, want)
			}
			checkViolations(t, sim)
		})
	}
}

func TestChipErase(t *testing.T) {
	d, sim := newTestDevice(t)
	sim.Fill(0x123456, []byte{0})
	if err := d.ChipErase(); err != nil {
		t.Fatal(err)
	}
	cmd := sim.Find(cmdChipErase)
	if len(cmd) != 1 || cmd[0].Cmd.AddressSize != qspi.AddressNone {
		t.Errorf("chip erase = %+v", cmd)
	}
	if readSim(sim, 0x123456, 1)[0] != 0xFF {
		t.Error("chip not erased")
	}
}

func TestWriteEnableFailure(t *testing.T) {
	tests := []struct {
		name  string
		op    func(*Device) error
		instr byte
	}{
		{"sector erase", func(d *Device) error { return d.SectorErase(0x1000) }, cmdSectorErase},
		{"32KB block erase", func(d *Device) error { return d.BlockErase32K(0) }, cmdBlockErase32K},
		{"64KB block erase", func(d *Device) error { return d.BlockErase64K(0) }, cmdBlockErase64K},
		{"chip erase", (*Device).ChipErase, cmdChipErase},
		{"quad page program", func(d *Device) error { return d.QuadPageProgram(0, []byte{1, 2}) }, cmdQuadPageProgram},
		{"erase range", func(d *Device) error { return d.EraseRange(0, 300000) }, cmdBlockErase64K},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sim := newTestDevice(t)
			sim.StuckWEL = true
			if err := tt.op(d); !errors.Is(err, wbflash.ErrWriteEnable) {
				t.Fatalf("error = %v, want ErrWriteEnable", err)
			}
			if n := len(sim.Find(tt.instr)); n != 0 {
				t.Errorf("instruction 0x%02X issued %d times", tt.instr, n)
			}
			if got := writes(sim); !bytes.Equal(got, []byte{cmdWriteEnable}) {
				t.Errorf("instructions = %X, want only Write Enable", got)
			}
		})
	}
}

func TestEraseRange(t *testing.T) {
	const k64 = 64 << 10
	tests := []struct {
		name     string
		opts     []Option
		addr     uint32
		size     uint32
		instr    byte
		wantAddr []uint32
	}{
		{"empty", nil, 0, 0, 0, nil},
		{"one byte", nil, 0x40000, 1, cmdBlockErase32K, []uint32{0x40000}},
		{"32KB", nil, 0x40000, 32 << 10, cmdBlockErase32K, []uint32{0x40000}},
		{"just over 32KB", nil, 0x40000, 32<<10 + 1, cmdBlockErase64K, []uint32{0x40000}},
		{"64KB", nil, 0x40000, k64, cmdBlockErase64K, []uint32{0x40000}},
		{"100000 bytes", nil, 0, 100000, cmdBlockErase64K, []uint32{0, k64}},
		{"100000 bytes with trailing block", []Option{WithTrailingEraseBlock()}, 0, 100000, cmdBlockErase64K, []uint32{0, k64, 2 * k64}},
		{"128KB", nil, 0x100000, 2 * k64, cmdBlockErase64K, []uint32{0x100000, 0x100000 + k64}},
		{"128KB with trailing block", []Option{WithTrailingEraseBlock()}, 0x100000, 2 * k64, cmdBlockErase64K, []uint32{0x100000, 0x100000 + k64, 0x100000 + 2*k64}},
		{"whole chip", nil, 0, 16 << 20, cmdBlockErase64K, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sim := newTestDevice(t, tt.opts...)
			if err := d.EraseRange(tt.addr, tt.size); err != nil {
				t.Fatalf("EraseRange() error = %v", err)
			}
			erases := sim.Find(tt.instr)
			if tt.wantAddr == nil && tt.size == 16<<20 {
				if len(erases) != 256 {
					t.Errorf("%d block erases, want 256", len(erases))
				}
				return
			}
			if tt.size == 0 {
				if len(sim.Log) != 0 {
					t.Errorf("transactions issued: %X", sim.Instructions())
				}
				return
			}
			if len(erases) != len(tt.wantAddr) {
				t.Fatalf("%d erases, want %d", len(erases), len(tt.wantAddr))
			}
			for i, want := range tt.wantAddr {
				if got := erases[i].Cmd.Address; got != want {
					t.Errorf("erase %d at 0x%06X, want 0x%06X", i, got, want)
				}
			}
			if got := len(writes(sim)); got != 2*len(tt.wantAddr) {
				t.Errorf("%d instructions, want one Write Enable per erase", got)
			}
			checkViolations(t, sim)
		})
	}
}

func TestEraseRange_TooLarge(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		addr uint32
		size uint32
	}{
		{"larger than chip", nil, 0, 16<<20 + 1},
		{"larger than configured capacity", []Option{WithCapacity(1 << 20)}, 0, 1<<20 + 1},
		{"blocks run past the end", nil, 15 << 20, 2 << 20},
		{"trailing block past the end", []Option{WithCapacity(1 << 20), WithTrailingEraseBlock()}, 0, 1 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sim := newTestDevice(t, tt.opts...)
			err := d.EraseRange(tt.addr, tt.size)
			if !errors.Is(err, wbflash.ErrTooLarge) {
				t.Fatalf("EraseRange() error = %v, want ErrTooLarge", err)
			}
			if len(sim.Log) != 0 {
				t.Errorf("transactions issued: %X", sim.Instructions())
			}
		})
	}
}

func TestEraseRange_Capacity(t *testing.T) {
	d, sim := newTestDevice(t, WithCapacity(1<<20))
	if err := d.EraseRange(0, 1<<20); err != nil {
		t.Fatal(err)
	}
	if n := len(sim.Find(cmdBlockErase64K)); n != 16 {
		t.Errorf("%d block erases, want 16", n)
	}
	if got := d.Geometry().Capacity(); got != 1<<20 {
		t.Errorf("geometry capacity = %d", got)
	}
}

// =============================================================================
// Program
// =============================================================================

func TestQuadPageProgram(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		instr byte
		lines qspi.Lines
	}{
		{"quad", nil, cmdQuadPageProgram, qspi.Lines4},
		{"single line", []Option{WithDataLines(qspi.Lines1)}, cmdPageProgram, qspi.Lines1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sim := newTestDevice(t, tt.opts...)
			data := pattern(256, 0x3C)
			if err := d.QuadPageProgram(0x7F00, data); err != nil {
				t.Fatalf("QuadPageProgram() error = %v", err)
			}
			if got, want := writes(sim), []byte{cmdWriteEnable, tt.instr}; !bytes.Equal(got, want) {
				t.Errorf("instructions = %X, want %X", got, want)
			}
			tx := sim.Find(tt.instr)[0]
			c := tx.Cmd
			if c.Address != 0x7F00 || c.AddressSize != qspi.Address24 || c.AddrLines() != qspi.Lines1 || c.DataLines != tt.lines || tx.Len != 256 {
				t.Errorf("program command = %s len %d", c, tx.Len)
			}
			if !bytes.Equal(readSim(sim, 0x7F00, 256), data) {
				t.Error("flash contents differ")
			}
			checkViolations(t, sim)
		})
	}
}

func TestQuadPageProgram_TooLong(t *testing.T) {
	d, sim := newTestDevice(t)
	err := d.QuadPageProgram(0, make([]byte, 257))
	if !errors.Is(err, wbflash.ErrPageOverflow) {
		t.Errorf("QuadPageProgram() error = %v, want ErrPageOverflow", err)
	}
	if len(sim.Log) != 0 {
		t.Errorf("transactions issued: %X", sim.Instructions())
	}
}

func TestQuadPageProgram_Wraps(t *testing.T) {
	d, sim := newTestDevice(t)
	if err := d.QuadPageProgram(0x1FE, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if got := readSim(sim, 0x1FE, 2); !bytes.Equal(got, []byte{1, 2}) {
		t.Errorf("end of page = %X", got)
	}
	if got := readSim(sim, 0x100, 2); !bytes.Equal(got, []byte{3, 4}) {
		t.Errorf("start of page = %X", got)
	}
	if got := readSim(sim, 0x200, 1); got[0] != 0xFF {
		t.Error("next page written")
	}
}

func TestQuadPageProgram_BusFailure(t *testing.T) {
	d, sim := newTestDevice(t)
	sim.FailInstr = map[byte]error{cmdQuadPageProgram: errInjected}
	err := d.QuadPageProgram(0x10, []byte{0})
	if !errors.Is(err, wbflash.ErrBus) || !errors.Is(err, errInjected) {
		t.Errorf("QuadPageProgram() error = %v, want ErrBus", err)
	}
	var opErr *wbflash.OpError
	if !errors.As(err, &opErr) || opErr.Addr != 0x10 {
		t.Errorf("error %v does not carry the address", err)
	}
}

func TestProgramBytes(t *testing.T) {
	d, sim := newTestDevice(t)
	data := pattern(600, 0x99)
	if err := d.ProgramBytes(0x1F0, data); err != nil {
		t.Fatal(err)
	}
	progs := sim.Find(cmdQuadPageProgram)
	want := []struct {
		addr uint32
		n    int
	}{{0x1F0, 16}, {0x200, 256}, {0x300, 256}, {0x400, 72}}
	if len(progs) != len(want) {
		t.Fatalf("%d page programs, want %d", len(progs), len(want))
	}
	for i, w := range want {
		if progs[i].Cmd.Address != w.addr || progs[i].Len != w.n {
			t.Errorf("program %d = 0x%X/%d, want 0x%X/%d", i, progs[i].Cmd.Address, progs[i].Len, w.addr, w.n)
		}
	}
	if !bytes.Equal(readSim(sim, 0x1F0, 600), data) {
		t.Error("flash contents differ")
	}
	checkViolations(t, sim)
}

// =============================================================================
// Read
// =============================================================================

func TestReadBytes(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		instr     byte
		dummy     uint8
		addrLines qspi.Lines
		dataLines qspi.Lines
	}{
		{"quad", nil, cmdFastReadQuadIO, 6, qspi.Lines4, qspi.Lines4},
		{"single line", []Option{WithDataLines(qspi.Lines1)}, cmdFastRead, 8, qspi.Lines1, qspi.Lines1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sim := newTestDevice(t, tt.opts...)
			content := pattern(3000, 0x42)
			sim.Fill(0xFF80, content)

			buf := make([]byte, len(content))
			if err := d.ReadBytes(0xFF80, buf); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(buf, content) {
				t.Error("data mismatch")
			}
			rx := sim.Find(tt.instr)
			if len(rx) != 1 || rx[0].Len != len(content) {
				t.Fatalf("read transactions = %+v, want one covering the request", rx)
			}
			c := rx[0].Cmd
			if c.Address != 0xFF80 || c.AddressSize != qspi.Address24 || c.DummyCycles != tt.dummy || c.AddrLines() != tt.addrLines || c.DataLines != tt.dataLines {
				t.Errorf("read command = %s", c)
			}
		})
	}
}

func TestReadBytes_BusFailure(t *testing.T) {
	d, sim := newTestDevice(t)
	sim.FailInstr = map[byte]error{cmdFastReadQuadIO: errInjected}
	if err := d.ReadBytes(0, make([]byte, 8)); !errors.Is(err, wbflash.ErrBus) {
		t.Errorf("ReadBytes() error = %v, want ErrBus", err)
	}
}

// =============================================================================
// Memory-mapped mode and SFDP
// =============================================================================

func TestMemoryMappedModeEnable(t *testing.T) {
	d, sim := newTestDevice(t)
	if err := d.MemoryMappedModeEnable(); err != nil {
		t.Fatal(err)
	}
	if !sim.Mapped {
		t.Fatal("bus not memory-mapped")
	}
	c := sim.MappedCommand()
	if c.Instruction != cmdFastReadQuadIO || c.DummyCycles != dummyFastReadQuadIO || c.DataLines != qspi.Lines4 {
		t.Errorf("mapped command = %s", c)
	}

	n := len(sim.Log)
	ops := map[string]func() error{
		"read":           func() error { return d.ReadBytes(0, make([]byte, 4)) },
		"sector erase":   func() error { return d.SectorErase(0) },
		"page program":   func() error { return d.QuadPageProgram(0, []byte{0}) },
		"erase range":    func() error { return d.EraseRange(0, 1) },
		"wait ready":     d.WaitReady,
		"quad enable":    d.QuadEnable,
		"enable again":   d.MemoryMappedModeEnable,
		"status":         func() error { _, err := d.ReadStatusRegister(1); return err },
		"JEDEC ID":       func() error { _, err := d.ReadJEDEC(); return err },
		"SFDP":           func() error { _, err := d.SFDP(); return err },
		"flash adapter":  func() error { _, err := d.Flash().ReadBytes(0, make([]byte, 1)); return err },
		"write disable":  d.WriteDisable,
		"write enable":   d.WriteEnable,
		"reset":          d.Reset,
		"write status 1": func() error { return d.WriteStatusRegister(1, 0) },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, wbflash.ErrMemoryMapped) {
			t.Errorf("%s: error = %v, want ErrMemoryMapped", name, err)
		}
	}
	if len(sim.Log) != n {
		t.Errorf("transactions issued in memory-mapped mode: %X", sim.Instructions()[n:])
	}
	checkViolations(t, sim)
}

// plainBus hides the simulator's MemoryMapper implementation.
type plainBus struct{ qspi.Bus }

func TestMemoryMappedModeEnable_Unsupported(t *testing.T) {
	sim := flashsim.NewNOR()
	d := New(plainBus{sim})
	if err := d.MemoryMappedModeEnable(); !errors.Is(err, qspi.ErrUnsupported) {
		t.Fatalf("MemoryMappedModeEnable() error = %v, want ErrUnsupported", err)
	}
	if err := d.ReadBytes(0, make([]byte, 1)); err != nil {
		t.Errorf("ReadBytes() after failed enable error = %v", err)
	}
}

func TestSFDP(t *testing.T) {
	d, sim := newTestDevice(t)
	s, err := d.SFDP()
	if err != nil {
		t.Fatalf("SFDP() error = %v", err)
	}
	if size, err := s.Size(); err != nil || size != 16<<20 {
		t.Errorf("Size() = %d, %v", size, err)
	}
	for _, op := range sim.Find(cmdReadSFDP) {
		if op.Cmd.AddressSize != qspi.Address24 || op.Cmd.DummyCycles != dummyReadSFDP {
			t.Errorf("SFDP read = %s", op.Cmd)
		}
	}

	sim.SFDP = nil
	if _, err := d.SFDP(); err == nil {
		t.Error("SFDP() succeeded on a chip without SFDP")
	}
}

// =============================================================================
// Capability adapter
// =============================================================================

func TestFlash_EraseRangeAligns(t *testing.T) {
	d, sim := newTestDevice(t)
	f := d.Flash()
	// [0x1F000, 0x21000) spans the end of block 1 and the start of block 2.
	if err := f.EraseRange(0x1F000, 0x2000); err != nil {
		t.Fatal(err)
	}
	erases := sim.Find(cmdBlockErase64K)
	if len(erases) != 2 || erases[0].Cmd.Address != 0x10000 || erases[1].Cmd.Address != 0x20000 {
		t.Errorf("erases = %+v", erases)
	}

	if err := f.EraseRange(16<<20-0x1000, 0x2000); !errors.Is(err, wbflash.ErrTooLarge) {
		t.Errorf("EraseRange() past the end error = %v, want ErrTooLarge", err)
	}
}

func TestFlash_ReadBytes(t *testing.T) {
	d, sim := newTestDevice(t)
	sim.Fill(0x500, []byte{9, 8, 7})
	buf := make([]byte, 3)
	n, err := d.Flash().ReadBytes(0x500, buf)
	if err != nil || n != 3 || !bytes.Equal(buf, []byte{9, 8, 7}) {
		t.Errorf("ReadBytes() = %d, %v, %X", n, err, buf)
	}
}
