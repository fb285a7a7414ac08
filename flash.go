package wbflash

import (
	"fmt"
	"io"
	"log/slog"
)

// Device is the capability set shared by the NAND and NOR drivers.
type Device interface {
	Geometry() Geometry
	// ReadBytes reads up to len(buf) bytes at addr and returns the number
	// read. Devices may stop early at a page boundary.
	ReadBytes(addr uint32, buf []byte) (int, error)
	// ProgramBytes writes data at addr, splitting it into page programs.
	ProgramBytes(addr uint32, data []byte) error
	// EraseRange erases at least [addr, addr+size).
	EraseRange(addr, size uint32) error
	WaitReady() error
}

// ReadFull reads exactly len(buf) bytes at addr by calling ReadBytes until
// the buffer is filled.
func ReadFull(dev Device, addr uint32, buf []byte) error {
	for off := 0; off < len(buf); {
		n, err := dev.ReadBytes(addr+uint32(off), buf[off:])
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrNoProgress
		}
		off += n
	}
	return nil
}

// Update phases.
const (
	PhaseErase   = "erase"
	PhaseProgram = "program"
	PhaseVerify  = "verify"
)

// Progress is passed to the update callback after each chunk.
type Progress struct {
	Phase string
	Done  int
	Total int
}

type updateConfig struct {
	progress  func(Progress)
	logger    *slog.Logger
	chunkSize int
	verify    bool
}

// UpdateOption configures Update.
type UpdateOption func(*updateConfig)

// WithProgress sets a callback reporting update progress.
func WithProgress(f func(Progress)) UpdateOption {
	return func(c *updateConfig) { c.progress = f }
}

// WithUpdateLogger sets the logger used by Update.
func WithUpdateLogger(l *slog.Logger) UpdateOption {
	return func(c *updateConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithVerify enables or disables the read-back pass. Default is true.
func WithVerify(verify bool) UpdateOption {
	return func(c *updateConfig) { c.verify = verify }
}

// Update writes image at addr: it erases the covered range, programs the
// image and reads it back. Pages written before a failure are not rolled
// back.
func Update(dev Device, addr uint32, image []byte, opts ...UpdateOption) error {
	cfg := updateConfig{
		logger:    DiscardLogger(),
		chunkSize: int(dev.Geometry().BlockSize()),
		verify:    true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if uint64(addr)+uint64(len(image)) > dev.Geometry().Capacity() {
		return &OpError{Op: "update", Addr: addr, Err: ErrTooLarge}
	}

	cfg.logger.Info("update", "addr", fmt.Sprintf("0x%06X", addr), "size", len(image))
	cfg.report(PhaseErase, 0, len(image))
	if err := dev.EraseRange(addr, uint32(len(image))); err != nil {
		return fmt.Errorf("erase: %w", err)
	}
	cfg.report(PhaseErase, len(image), len(image))

	for off := 0; off < len(image); off += cfg.chunkSize {
		end := min(off+cfg.chunkSize, len(image))
		if err := dev.ProgramBytes(addr+uint32(off), image[off:end]); err != nil {
			return fmt.Errorf("program: %w", err)
		}
		cfg.report(PhaseProgram, end, len(image))
	}
	if err := dev.WaitReady(); err != nil {
		return err
	}
	if !cfg.verify {
		return nil
	}

	buf := make([]byte, cfg.chunkSize)
	for off := 0; off < len(image); off += cfg.chunkSize {
		end := min(off+cfg.chunkSize, len(image))
		got := buf[:end-off]
		if err := ReadFull(dev, addr+uint32(off), got); err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		for i, b := range got {
			if b != image[off+i] {
				return &VerifyError{Addr: addr + uint32(off+i), Expected: image[off+i], Actual: b}
			}
		}
		cfg.report(PhaseVerify, end, len(image))
	}
	cfg.logger.Info("update complete", "addr", fmt.Sprintf("0x%06X", addr), "size", len(image))
	return nil
}

func (c *updateConfig) report(phase string, done, total int) {
	if c.progress != nil {
		c.progress(Progress{Phase: phase, Done: done, Total: total})
	}
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
