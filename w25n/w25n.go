// Package w25n drives W25N01G-class serial NAND flash over QuadSPI.
//
// The device is programmed through an internal page buffer: data is loaded
// into the buffer, Program Execute commits it to a page and the status
// register reports whether the program failed. Reads stage a page into the
// same buffer before it is clocked out.
//
// A Device holds no state besides its bus and configuration, so separate
// Devices on separate buses may be used concurrently. A single Device is not
// safe for concurrent use.
package w25n

import (
	"fmt"
	"time"

	"github.com/gentam/wbflash"
	"github.com/gentam/wbflash/qspi"
)

// Instructions:
//   - [W25N01GV|8.1.2 Instruction Set Table 1 (Buffer Read Mode)]
//   - [W25N01GV|8.1.3 Instruction Set Table 2 (Continuous Read Mode)]
const (
	cmdDeviceReset             = 0xFF
	cmdJEDECID                 = 0x9F
	cmdReadStatusReg           = 0x05
	cmdReadStatusRegAlt        = 0x0F
	cmdWriteStatusReg          = 0x01
	cmdWriteStatusRegAlt       = 0x1F
	cmdWriteEnable             = 0x06
	cmdWriteDisable            = 0x04
	cmdBBManagement            = 0xA1
	cmdReadBBMLUT              = 0xA5
	cmdLastECCFailPageAddr     = 0xA9
	cmdBlockErase              = 0xD8
	cmdProgramDataLoad         = 0x02
	cmdRandomProgramDataLoad   = 0x84
	cmdQuadProgramDataLoad     = 0x32
	cmdQuadRandomProgramDataLd = 0x34
	cmdProgramExecute          = 0x10
	cmdPageDataRead            = 0x13
	cmdRead                    = 0x03
	cmdFastRead                = 0x0B
	cmdFastReadQuadOutput      = 0x6B
	cmdFastReadQuad            = 0xEB
)

// Dummy cycles of the fast read instructions in each read mode.
const (
	dummyFastReadQuadBuffer = 4
	dummyFastReadQuadCont   = 12
	dummyFastReadBuffer     = 8
	dummyFastReadCont       = 16 // plus the 16 don't-care column clocks
	dummyJEDECID            = 8
)

// ReadMode selects how the device streams the page buffer. It must match
// the BUF bit of the configuration register, see SetBufferMode.
type ReadMode bool

const (
	ContinuousRead ReadMode = false
	BufferRead     ReadMode = true
)

func (m ReadMode) String() string {
	if m == BufferRead {
		return "buffer"
	}
	return "continuous"
}

// Device is a W25N01G attached to a bus.
type Device struct {
	bus  qspi.Bus
	cfg  config
	part wbflash.Part
	geo  wbflash.Geometry
}

// New returns a Device on bus. It performs no I/O.
func New(bus qspi.Bus, opts ...Option) *Device {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	part := wbflash.MustPart(wbflash.IDWinbondW25N01GV)
	return &Device{
		bus:  bus,
		cfg:  cfg,
		part: part,
		geo:  part.Geometry,
	}
}

// Open returns a Device on bus after checking its JEDEC ID.
func Open(bus qspi.Bus, opts ...Option) (*Device, error) {
	d := New(bus, opts...)
	id, err := d.ReadJEDEC()
	if err != nil {
		return nil, err
	}
	if id != wbflash.IDWinbondW25N01GV {
		return nil, &wbflash.IDMismatchError{Expected: [][3]byte{wbflash.IDWinbondW25N01GV}, Actual: id}
	}
	d.cfg.logger.Debug("opened", "part", d.part.Name, "lines", d.cfg.lines)
	return d, nil
}

// Geometry returns the array layout.
func (d *Device) Geometry() wbflash.Geometry { return d.geo }

func opError(op string, addr uint32, err error) error {
	if err == nil {
		return nil
	}
	return &wbflash.OpError{Op: op, Addr: addr, Err: err}
}

// ReadJEDEC returns the manufacturer and device ID.
func (d *Device) ReadJEDEC() (id [3]byte, err error) {
	cmd := qspi.Command{Instruction: cmdJEDECID, DummyCycles: dummyJEDECID, DataLines: qspi.Lines1}
	if err = d.bus.Receive(cmd, id[:]); err != nil {
		return id, opError("read JEDEC ID", 0, wbflash.BusError(err))
	}
	return id, nil
}

// Reset issues Device Reset and waits for it to complete.
func (d *Device) Reset() error {
	if err := d.waitReady(0); err != nil {
		return opError("reset", 0, err)
	}
	if err := d.bus.Command(qspi.Command{Instruction: cmdDeviceReset}); err != nil {
		return opError("reset", 0, wbflash.BusError(err))
	}
	return opError("reset", 0, d.waitReady(d.part.TReset))
}

// ReadStatusRegister reads the register at reg. On failure it returns 0xFF
// along with the error.
func (d *Device) ReadStatusRegister(reg byte) (StatusRegister, error) {
	buf := []byte{0xFF}
	cmd := qspi.Command{
		Instruction: cmdReadStatusReg,
		Address:     uint32(reg),
		AddressSize: qspi.Address8,
		DataLines:   qspi.Lines1,
	}
	if err := d.bus.Receive(cmd, buf); err != nil {
		return StatusRegister(0xFF), wbflash.BusError(err)
	}
	return StatusRegister(buf[0]), nil
}

// WriteStatusRegister writes v to the register at reg.
func (d *Device) WriteStatusRegister(reg, v byte) error {
	if err := d.waitReady(0); err != nil {
		return opError("write status register", uint32(reg), err)
	}
	cmd := qspi.Command{
		Instruction: cmdWriteStatusRegAlt,
		Address:     uint32(reg),
		AddressSize: qspi.Address8,
		DataLines:   qspi.Lines1,
	}
	if err := d.bus.Transmit(cmd, []byte{v}); err != nil {
		return opError("write status register", uint32(reg), wbflash.BusError(err))
	}
	return nil
}

// WaitReady polls the status register until the busy bit clears.
func (d *Device) WaitReady() error {
	return d.waitReady(0)
}

// waitReady polls with the bound for an operation taking at most timeout,
// or the longest operation time when timeout is 0.
func (d *Device) waitReady(timeout time.Duration) error {
	if timeout == 0 {
		timeout = max(d.part.TEraseBlk, d.part.TPP, d.part.TReset, d.part.TRead)
	}
	return d.cfg.wait.ForOperation(timeout).Wait(func() (bool, error) {
		sr, err := d.ReadStatusRegister(RegStatus)
		return sr.Busy(), err
	})
}

// WriteEnable sets the write enable latch and checks that it stuck.
func (d *Device) WriteEnable() error {
	return opError("write enable", 0, d.writeEnable())
}

func (d *Device) writeEnable() error {
	if err := d.waitReady(0); err != nil {
		return err
	}
	if err := d.bus.Command(qspi.Command{Instruction: cmdWriteEnable}); err != nil {
		return wbflash.BusError(err)
	}
	sr, err := d.ReadStatusRegister(RegStatus)
	if err != nil {
		return err
	}
	if !sr.WriteEnabled() {
		return fmt.Errorf("%w (status %s)", wbflash.ErrWriteEnable, sr)
	}
	return nil
}

// WriteDisable clears the write enable latch.
func (d *Device) WriteDisable() error {
	if err := d.waitReady(0); err != nil {
		return opError("write disable", 0, err)
	}
	if err := d.bus.Command(qspi.Command{Instruction: cmdWriteDisable}); err != nil {
		return opError("write disable", 0, wbflash.BusError(err))
	}
	return nil
}

// commandWithPageAddress waits for the device and issues a command
// addressed by page.
func (d *Device) commandWithPageAddress(instr byte, page uint32) error {
	if err := d.waitReady(0); err != nil {
		return err
	}
	cmd := qspi.Command{Instruction: instr, Address: page, AddressSize: qspi.Address16}
	if err := d.bus.Command(cmd); err != nil {
		return wbflash.BusError(err)
	}
	return nil
}

// BlockErase erases the 128KB block containing addr and checks the erase
// failure flag.
func (d *Device) BlockErase(addr uint32) error {
	d.cfg.logger.Debug("block erase", "addr", fmt.Sprintf("0x%07X", addr))
	return opError("block erase", addr, d.blockErase(addr))
}

func (d *Device) blockErase(addr uint32) error {
	page := d.geo.Page(addr)
	if err := d.writeEnable(); err != nil {
		return err
	}
	// [W25N01GV|8.2.16] lists dummy clocks before the page address but the
	// part accepts the command without them.
	if err := d.commandWithPageAddress(cmdBlockErase, page); err != nil {
		return err
	}
	return d.checkStatus(d.part.TEraseBlk, StatusRegister.EraseFailed, wbflash.ErrEraseFailed)
}

// checkStatus waits for the operation to finish and reports failed as err.
func (d *Device) checkStatus(timeout time.Duration, failed func(StatusRegister) bool, err error) error {
	if werr := d.waitReady(timeout); werr != nil {
		return werr
	}
	sr, rerr := d.ReadStatusRegister(RegStatus)
	if rerr != nil {
		return rerr
	}
	if failed(sr) {
		return fmt.Errorf("%w (status %s)", err, sr)
	}
	return nil
}

// ProgramDataLoad sets the write enable latch, clears the page buffer and
// loads data into it at column.
func (d *Device) ProgramDataLoad(column uint16, data []byte) error {
	return opError("program data load", uint32(column), d.programDataLoad(column, data, false))
}

// ProgramDataLoadRandom is like ProgramDataLoad but leaves the rest of the
// page buffer untouched.
func (d *Device) ProgramDataLoadRandom(column uint16, data []byte) error {
	return opError("random program data load", uint32(column), d.programDataLoad(column, data, true))
}

func (d *Device) programDataLoad(column uint16, data []byte, random bool) error {
	if err := d.writeEnable(); err != nil {
		return err
	}
	if err := d.waitReady(0); err != nil {
		return err
	}

	cmd := qspi.Command{
		Instruction: cmdProgramDataLoad,
		Address:     uint32(column),
		AddressSize: qspi.Address16,
		DataLines:   qspi.Lines1,
	}
	quad := d.cfg.quadLoad && d.cfg.lines == qspi.Lines4
	switch {
	case quad && random:
		cmd.Instruction, cmd.DataLines = cmdQuadRandomProgramDataLd, qspi.Lines4
	case quad:
		cmd.Instruction, cmd.DataLines = cmdQuadProgramDataLoad, qspi.Lines4
	case random:
		cmd.Instruction = cmdRandomProgramDataLoad
	}
	if err := d.bus.Transmit(cmd, data); err != nil {
		return wbflash.BusError(err)
	}
	return nil
}

// PageProgram loads data into the page buffer and commits it to the page
// containing addr, starting at the column of addr.
func (d *Device) PageProgram(addr uint32, data []byte) error {
	d.cfg.logger.Debug("page program", "addr", fmt.Sprintf("0x%07X", addr), "len", len(data))
	return opError("page program", addr, d.pageProgram(addr, data))
}

func (d *Device) pageProgram(addr uint32, data []byte) error {
	column := d.geo.Column(addr)
	page := d.geo.Page(addr)
	if column+uint32(len(data)) > d.geo.PageSize {
		return fmt.Errorf("%w: %d bytes at column %d", wbflash.ErrPageOverflow, len(data), column)
	}

	if err := d.programDataLoad(uint16(column), data, false); err != nil {
		return err
	}
	// Program Execute consumes the latch set by the data load.
	if err := d.commandWithPageAddress(cmdProgramExecute, page); err != nil {
		return err
	}
	return d.checkStatus(d.part.TPP, StatusRegister.ProgramFailed, wbflash.ErrProgramFailed)
}

// WriteFlash programs data at addr one page at a time. The first chunk runs
// from the column of addr to the end of its page; later chunks start at
// column 0. It stops at the first failing page; pages already written stay
// written.
func (d *Device) WriteFlash(addr uint32, data []byte) error {
	for off := 0; off < len(data); {
		a := addr + uint32(off)
		n := min(int(d.geo.PageSize-d.geo.Column(a)), len(data)-off)
		if err := d.pageProgram(a, data[off:off+n]); err != nil {
			return opError("write flash", a, err)
		}
		off += n
	}
	return nil
}

func (d *Device) readCommand(column uint32, mode ReadMode) qspi.Command {
	cmd := qspi.Command{Address: column, AddressSize: qspi.Address16}
	if d.cfg.lines == qspi.Lines1 {
		cmd.Instruction, cmd.DataLines = cmdFastRead, qspi.Lines1
		cmd.DummyCycles = dummyFastReadCont
		if mode == BufferRead {
			cmd.DummyCycles = dummyFastReadBuffer
		}
		return cmd
	}
	cmd.Instruction = cmdFastReadQuad
	cmd.AddressLines, cmd.DataLines = qspi.Lines4, qspi.Lines4
	// Continuous mode hides the next page's load time in extra dummy cycles.
	cmd.DummyCycles = dummyFastReadQuadCont
	if mode == BufferRead {
		cmd.DummyCycles = dummyFastReadQuadBuffer
	}
	return cmd
}

// ReadBytes stages the page containing addr and reads from its column into
// buf. A read never crosses the page boundary: it returns the number of
// bytes transferred, which is less than len(buf) when the request runs past
// the end of the page.
func (d *Device) ReadBytes(addr uint32, buf []byte, mode ReadMode) (int, error) {
	n, err := d.readBytes(addr, buf, mode)
	return n, opError("read", addr, err)
}

func (d *Device) readBytes(addr uint32, buf []byte, mode ReadMode) (int, error) {
	page := d.geo.Page(addr)
	if err := d.commandWithPageAddress(cmdPageDataRead, page); err != nil {
		return 0, err
	}

	column := d.geo.Column(addr)
	n := min(uint32(len(buf)), d.geo.PageSize-column)
	if err := d.waitReady(d.part.TRead); err != nil {
		return 0, err
	}
	if err := d.bus.Receive(d.readCommand(column, mode), buf[:n]); err != nil {
		return 0, wbflash.BusError(err)
	}
	return int(n), nil
}
