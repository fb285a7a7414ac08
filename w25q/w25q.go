// Package w25q drives W25Q128-class serial NOR flash over QuadSPI.
//
// The chip has a flat 24-bit address space. Programs are limited to one
// 256 byte page and erases work on 4KB sectors, 32KB and 64KB blocks or the
// whole chip. Every program and erase must be preceded by Write Enable.
package w25q

import (
	"fmt"
	"slices"
	"time"

	"github.com/gentam/wbflash"
	"github.com/gentam/wbflash/qspi"
	"github.com/gentam/wbflash/sfdp"
)

// Instructions: [W25Q128|8.1.2 Instruction Set Table 1 (Standard/Dual/Quad SPI Instructions)]
const (
	cmdWriteEnable      = 0x06
	cmdWriteDisable     = 0x04
	cmdReadStatusReg1   = 0x05
	cmdReadStatusReg2   = 0x35
	cmdReadStatusReg3   = 0x15
	cmdWriteStatusReg1  = 0x01
	cmdWriteStatusReg2  = 0x31
	cmdWriteStatusReg3  = 0x11
	cmdPageProgram      = 0x02
	cmdQuadPageProgram  = 0x32
	cmdSectorErase      = 0x20
	cmdBlockErase32K    = 0x52
	cmdBlockErase64K    = 0xD8
	cmdChipErase        = 0xC7
	cmdEnableReset      = 0x66
	cmdResetDevice      = 0x99
	cmdPowerDown        = 0xB9
	cmdReleasePowerDown = 0xAB
	cmdJEDECID          = 0x9F
	cmdReadSFDP         = 0x5A
	cmdFastRead         = 0x0B
	cmdFastReadQuadIO   = 0xEB
	dummyFastRead       = 8
	dummyFastReadQuadIO = 6 // M7-0 plus 4 dummy clocks
	dummyReadSFDP       = 8
)

const (
	pageSize    = 256
	block32Size = 32 << 10
	block64Size = 64 << 10
	addrMask    = 0xFFFFFF
)

// AcceptedIDs are the JEDEC IDs Open accepts.
var AcceptedIDs = [][3]byte{wbflash.IDWinbondW25Q128JVQ, wbflash.IDWinbondW25Q128JVM}

// Device is a W25Q128 attached to a bus. A Device is not safe for
// concurrent use.
type Device struct {
	bus      qspi.Bus
	cfg      config
	part     wbflash.Part
	geo      wbflash.Geometry
	capacity uint32
	mapped   bool
}

// New returns a Device on bus. It performs no I/O.
func New(bus qspi.Bus, opts ...Option) *Device {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	d := &Device{bus: bus, cfg: cfg}
	d.setPart(wbflash.MustPart(wbflash.IDWinbondW25Q128JVM))
	return d
}

func (d *Device) setPart(p wbflash.Part) {
	d.part = p
	d.geo = p.Geometry
	d.capacity = uint32(min(d.geo.Capacity(), addrMask+1))
	if c := d.cfg.capacity; c > 0 {
		d.capacity = c
		d.geo.Blocks = c / d.geo.BlockSize()
	}
}

// Open returns a Device on bus after checking its JEDEC ID. In quad mode
// it also sets the Quad Enable bit.
func Open(bus qspi.Bus, opts ...Option) (*Device, error) {
	d := New(bus, opts...)
	id, err := d.ReadJEDEC()
	if err != nil {
		return nil, err
	}
	if !slices.Contains(AcceptedIDs, id) {
		return nil, &wbflash.IDMismatchError{Expected: AcceptedIDs, Actual: id}
	}
	d.setPart(wbflash.MustPart(id))
	if d.cfg.lines == qspi.Lines4 {
		if err := d.QuadEnable(); err != nil {
			return nil, err
		}
	}
	d.cfg.logger.Debug("opened", "part", d.part.Name, "lines", d.cfg.lines, "capacity", d.capacity)
	return d, nil
}

// Geometry returns the array layout.
func (d *Device) Geometry() wbflash.Geometry { return d.geo }

// Capacity returns the number of bytes EraseRange may cover.
func (d *Device) Capacity() uint32 { return d.capacity }

func opError(op string, addr uint32, err error) error {
	if err == nil {
		return nil
	}
	return &wbflash.OpError{Op: op, Addr: addr, Err: err}
}

// usable fails once the bus has been handed over to memory-mapped reads.
func (d *Device) usable() error {
	if d.mapped {
		return wbflash.ErrMemoryMapped
	}
	return nil
}

// ReadJEDEC returns the manufacturer and device ID.
func (d *Device) ReadJEDEC() (id [3]byte, err error) {
	if err = d.usable(); err != nil {
		return id, opError("read JEDEC ID", 0, err)
	}
	cmd := qspi.Command{Instruction: cmdJEDECID, DataLines: qspi.Lines1}
	if err = d.bus.Receive(cmd, id[:]); err != nil {
		return id, opError("read JEDEC ID", 0, wbflash.BusError(err))
	}
	return id, nil
}

func statusInstr(n int, read bool) (byte, error) {
	switch {
	case n == 1 && read:
		return cmdReadStatusReg1, nil
	case n == 2 && read:
		return cmdReadStatusReg2, nil
	case n == 3 && read:
		return cmdReadStatusReg3, nil
	case n == 1:
		return cmdWriteStatusReg1, nil
	case n == 2:
		return cmdWriteStatusReg2, nil
	case n == 3:
		return cmdWriteStatusReg3, nil
	}
	return 0, fmt.Errorf("invalid status register %d", n)
}

// ReadStatusRegister reads status register n (1-3).
func (d *Device) ReadStatusRegister(n int) (byte, error) {
	if err := d.usable(); err != nil {
		return 0xFF, err
	}
	return d.readStatusRegister(n)
}

func (d *Device) readStatusRegister(n int) (byte, error) {
	instr, err := statusInstr(n, true)
	if err != nil {
		return 0xFF, err
	}
	buf := []byte{0xFF}
	if err := d.bus.Receive(qspi.Command{Instruction: instr, DataLines: qspi.Lines1}, buf); err != nil {
		return 0xFF, wbflash.BusError(err)
	}
	return buf[0], nil
}

// WriteStatusRegister writes v to status register n (1-3) and waits for the
// write to complete.
func (d *Device) WriteStatusRegister(n int, v byte) error {
	if err := d.usable(); err != nil {
		return opError("write status register", uint32(n), err)
	}
	return opError("write status register", uint32(n), d.writeStatusRegister(n, v))
}

func (d *Device) writeStatusRegister(n int, v byte) error {
	instr, err := statusInstr(n, false)
	if err != nil {
		return err
	}
	if err := d.writeEnable(); err != nil {
		return err
	}
	if err := d.bus.Transmit(qspi.Command{Instruction: instr, DataLines: qspi.Lines1}, []byte{v}); err != nil {
		return wbflash.BusError(err)
	}
	return d.waitReady(d.part.TStatus)
}

// WaitReady polls status register 1 until the busy bit clears.
func (d *Device) WaitReady() error {
	if err := d.usable(); err != nil {
		return err
	}
	return d.waitReady(0)
}

// waitReady polls with the bound for an operation taking at most timeout,
// or the longest operation time when timeout is 0.
func (d *Device) waitReady(timeout time.Duration) error {
	if timeout == 0 {
		timeout = d.part.TEraseChip
	}
	return d.cfg.wait.ForOperation(timeout).Wait(func() (bool, error) {
		sr, err := d.readStatusRegister(1)
		return StatusRegister1(sr).Busy(), err
	})
}

// WriteEnable sets the write enable latch and checks that it stuck.
func (d *Device) WriteEnable() error {
	if err := d.usable(); err != nil {
		return opError("write enable", 0, err)
	}
	return opError("write enable", 0, d.writeEnable())
}

func (d *Device) writeEnable() error {
	if err := d.waitReady(0); err != nil {
		return err
	}
	if err := d.bus.Command(qspi.Command{Instruction: cmdWriteEnable}); err != nil {
		return wbflash.BusError(err)
	}
	sr, err := d.readStatusRegister(1)
	if err != nil {
		return err
	}
	if !StatusRegister1(sr).WriteEnabled() {
		return fmt.Errorf("%w (status %s)", wbflash.ErrWriteEnable, StatusRegister1(sr))
	}
	return nil
}

// WriteDisable clears the write enable latch.
func (d *Device) WriteDisable() error {
	if err := d.usable(); err != nil {
		return opError("write disable", 0, err)
	}
	if err := d.waitReady(0); err != nil {
		return opError("write disable", 0, err)
	}
	if err := d.bus.Command(qspi.Command{Instruction: cmdWriteDisable}); err != nil {
		return opError("write disable", 0, wbflash.BusError(err))
	}
	return nil
}

// Reset issues Enable Reset followed by Reset Device.
func (d *Device) Reset() error {
	if err := d.usable(); err != nil {
		return opError("reset", 0, err)
	}
	if err := d.waitReady(0); err != nil {
		return opError("reset", 0, err)
	}
	for _, instr := range []byte{cmdEnableReset, cmdResetDevice} {
		if err := d.bus.Command(qspi.Command{Instruction: instr}); err != nil {
			return opError("reset", 0, wbflash.BusError(err))
		}
	}
	return opError("reset", 0, d.waitReady(d.part.TReset))
}

// PowerDown enters deep power-down. The device then ignores every
// instruction other than Release Power-down.
func (d *Device) PowerDown() error {
	if err := d.usable(); err != nil {
		return opError("power down", 0, err)
	}
	if err := d.waitReady(0); err != nil {
		return opError("power down", 0, err)
	}
	if err := d.bus.Command(qspi.Command{Instruction: cmdPowerDown}); err != nil {
		return opError("power down", 0, wbflash.BusError(err))
	}
	d.cfg.wait.Sleep(d.part.TDP)
	return nil
}

// ReleasePowerDown leaves deep power-down. An awake device ignores it, so
// it is safe to call before Open.
func (d *Device) ReleasePowerDown() error {
	if err := d.usable(); err != nil {
		return opError("release power down", 0, err)
	}
	if err := d.bus.Command(qspi.Command{Instruction: cmdReleasePowerDown}); err != nil {
		return opError("release power down", 0, wbflash.BusError(err))
	}
	d.cfg.wait.Sleep(d.part.TRES1)
	return nil
}

// QuadEnable sets the QE bit of status register 2 and reads it back.
func (d *Device) QuadEnable() error {
	if err := d.usable(); err != nil {
		return opError("quad enable", 0, err)
	}
	return opError("quad enable", 0, d.quadEnable())
}

func (d *Device) quadEnable() error {
	sr2, err := d.readStatusRegister(2)
	if err != nil {
		return err
	}
	if err := d.writeStatusRegister(2, sr2|sr2QE); err != nil {
		return err
	}
	if sr2, err = d.readStatusRegister(2); err != nil {
		return err
	}
	if !StatusRegister2(sr2).QuadEnabled() {
		return fmt.Errorf("QE bit did not stick (status-2 %s)", StatusRegister2(sr2))
	}
	d.cfg.logger.Debug("quad enabled", "sr2", StatusRegister2(sr2))
	return nil
}

// erase runs Write Enable, waits, then issues instr addressed by the 24-bit
// linear address and waits up to timeout for completion.
func (d *Device) erase(op string, instr byte, addr uint32, timeout time.Duration) error {
	if err := d.usable(); err != nil {
		return opError(op, addr, err)
	}
	d.cfg.logger.Debug(op, "addr", fmt.Sprintf("0x%06X", addr&addrMask))
	if err := d.writeEnable(); err != nil {
		return opError(op, addr, err)
	}
	if err := d.waitReady(0); err != nil {
		return opError(op, addr, err)
	}
	cmd := qspi.Command{Instruction: instr}
	if instr != cmdChipErase {
		cmd.Address, cmd.AddressSize = addr&addrMask, qspi.Address24
	}
	if err := d.bus.Command(cmd); err != nil {
		return opError(op, addr, wbflash.BusError(err))
	}
	return opError(op, addr, d.waitReady(timeout))
}

// SectorErase erases the 4KB sector containing addr.
func (d *Device) SectorErase(addr uint32) error {
	return d.erase("sector erase", cmdSectorErase, addr, d.part.TErase4KB)
}

// BlockErase32K erases the 32KB block containing addr.
func (d *Device) BlockErase32K(addr uint32) error {
	return d.erase("32KB block erase", cmdBlockErase32K, addr, d.part.TErase32KB)
}

// BlockErase64K erases the 64KB block containing addr.
func (d *Device) BlockErase64K(addr uint32) error {
	return d.erase("64KB block erase", cmdBlockErase64K, addr, d.part.TErase64KB)
}

// ChipErase erases the whole array.
func (d *Device) ChipErase() error {
	return d.erase("chip erase", cmdChipErase, 0, d.part.TEraseChip)
}

// EraseRange erases size bytes starting at addr with the coarsest single
// erase that fits: one 32KB block when size fits in 32KB, one 64KB block
// when it fits in 64KB, otherwise ceil(size/64KB) consecutive 64KB blocks
// starting at addr (one more with WithTrailingEraseBlock). Sizes larger
// than the capacity fail without touching the device. A zero size is a
// no-op.
//
// The single block erases act on the block containing addr, so callers
// wanting [addr, addr+size) covered should pass a block aligned addr.
func (d *Device) EraseRange(addr, size uint32) error {
	if err := d.usable(); err != nil {
		return opError("erase range", addr, err)
	}
	switch {
	case size == 0:
		return nil
	case size > d.capacity:
		return opError("erase range", addr, fmt.Errorf("%w: %d bytes, capacity %d", wbflash.ErrTooLarge, size, d.capacity))
	case size <= block32Size:
		return d.BlockErase32K(addr)
	case size <= block64Size:
		return d.BlockErase64K(addr)
	}

	n := (size + block64Size - 1) / block64Size
	if d.cfg.trailingBlock {
		n++
	}
	if end := uint64(addr) + uint64(n)*block64Size; end > uint64(d.capacity) {
		return opError("erase range", addr, fmt.Errorf("%w: %d blocks from 0x%06X", wbflash.ErrTooLarge, n, addr))
	}
	for i := range n {
		if err := d.BlockErase64K(addr + i*block64Size); err != nil {
			return err
		}
	}
	return nil
}

// QuadPageProgram programs up to one page of data at addr. It does not
// split: data longer than a page is rejected, and data running past the end
// of the page wraps to its start as the chip does. In single line mode it
// uses Page Program instead.
func (d *Device) QuadPageProgram(addr uint32, data []byte) error {
	if err := d.usable(); err != nil {
		return opError("page program", addr, err)
	}
	d.cfg.logger.Debug("page program", "addr", fmt.Sprintf("0x%06X", addr&addrMask), "len", len(data))
	return opError("page program", addr, d.pageProgram(addr, data))
}

func (d *Device) pageProgram(addr uint32, data []byte) error {
	if len(data) > pageSize {
		return fmt.Errorf("%w: %d bytes", wbflash.ErrPageOverflow, len(data))
	}
	if err := d.writeEnable(); err != nil {
		return err
	}
	if err := d.waitReady(0); err != nil {
		return err
	}
	cmd := qspi.Command{
		Instruction: cmdQuadPageProgram,
		Address:     addr & addrMask,
		AddressSize: qspi.Address24,
		DataLines:   qspi.Lines4,
	}
	if d.cfg.lines == qspi.Lines1 {
		cmd.Instruction, cmd.DataLines = cmdPageProgram, qspi.Lines1
	}
	if err := d.bus.Transmit(cmd, data); err != nil {
		return wbflash.BusError(err)
	}
	return d.waitReady(d.part.TPP)
}

// ProgramBytes programs data at addr, splitting it at page boundaries.
func (d *Device) ProgramBytes(addr uint32, data []byte) error {
	for len(data) > 0 {
		n := min(uint32(len(data)), pageSize-addr%pageSize)
		if err := d.QuadPageProgram(addr, data[:n]); err != nil {
			return err
		}
		addr += n
		data = data[n:]
	}
	return nil
}

func (d *Device) readCommand(addr uint32) qspi.Command {
	if d.cfg.lines == qspi.Lines1 {
		return qspi.Command{
			Instruction: cmdFastRead,
			Address:     addr & addrMask,
			AddressSize: qspi.Address24,
			DummyCycles: dummyFastRead,
			DataLines:   qspi.Lines1,
		}
	}
	return qspi.Command{
		Instruction:  cmdFastReadQuadIO,
		Address:      addr & addrMask,
		AddressSize:  qspi.Address24,
		AddressLines: qspi.Lines4,
		DummyCycles:  dummyFastReadQuadIO,
		DataLines:    qspi.Lines4,
	}
}

// ReadBytes fills buf from addr in one transaction. Reads may cross page
// and block boundaries.
func (d *Device) ReadBytes(addr uint32, buf []byte) error {
	if err := d.usable(); err != nil {
		return opError("read", addr, err)
	}
	if err := d.waitReady(0); err != nil {
		return opError("read", addr, err)
	}
	if err := d.bus.Receive(d.readCommand(addr), buf); err != nil {
		return opError("read", addr, wbflash.BusError(err))
	}
	return nil
}

// MemoryMappedModeEnable hands the bus to memory-mapped reads with the
// fast read command. The bus must implement qspi.MemoryMapper. Afterwards
// every method of d fails with wbflash.ErrMemoryMapped; leaving the mode is
// up to the bus owner.
func (d *Device) MemoryMappedModeEnable() error {
	if err := d.usable(); err != nil {
		return opError("memory-mapped mode", 0, err)
	}
	mm, ok := d.bus.(qspi.MemoryMapper)
	if !ok {
		return opError("memory-mapped mode", 0, fmt.Errorf("%w: %T cannot memory-map", qspi.ErrUnsupported, d.bus))
	}
	if err := d.waitReady(0); err != nil {
		return opError("memory-mapped mode", 0, err)
	}
	if err := mm.MemoryMapped(d.readCommand(0)); err != nil {
		return opError("memory-mapped mode", 0, wbflash.BusError(err))
	}
	d.mapped = true
	d.cfg.logger.Info("memory-mapped mode enabled")
	return nil
}

// SFDP reads and parses the chip's SFDP table.
func (d *Device) SFDP() (*sfdp.SFDP, error) {
	if err := d.usable(); err != nil {
		return nil, opError("read SFDP", 0, err)
	}
	if err := d.waitReady(0); err != nil {
		return nil, opError("read SFDP", 0, err)
	}
	return sfdp.Parse(sfdpReader{d})
}

type sfdpReader struct{ d *Device }

func (r sfdpReader) SFDPReadAt(offset uint32, out []byte) error {
	cmd := qspi.Command{
		Instruction: cmdReadSFDP,
		Address:     offset & addrMask,
		AddressSize: qspi.Address24,
		DummyCycles: dummyReadSFDP,
		DataLines:   qspi.Lines1,
	}
	if err := r.d.bus.Receive(cmd, out); err != nil {
		return opError("read SFDP", offset, wbflash.BusError(err))
	}
	return nil
}
