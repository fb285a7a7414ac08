package qspi

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// defaultMaxTx is used when the connection does not report a limit.
const defaultMaxTx = 65536 // [FTDI-AN_108]

// SPIBus implements Bus on top of a plain single-line SPI connection, such as
// the MPSSE engine of an FT2232H. Every phase is clocked on one line, so
// quad transactions are rejected with ErrUnsupported.
type SPIBus struct {
	conn  spi.Conn
	cs    gpio.PinOut // nil when conn drives chip select itself
	maxTx int
}

// NewSPIBus returns a Bus using c. If cs is not nil it is driven low for
// the duration of each transaction.
func NewSPIBus(c spi.Conn, cs gpio.PinOut) *SPIBus {
	b := &SPIBus{conn: c, cs: cs, maxTx: defaultMaxTx}
	if l, ok := c.(conn.Limits); ok && l.MaxTxSize() > 0 {
		b.maxTx = l.MaxTxSize()
	}
	return b
}

// tx wraps an SPI transaction with CS assertion.
func (b *SPIBus) tx(buf []byte) (err error) {
	if b.cs == nil {
		return b.conn.Tx(buf, buf)
	}
	if err = b.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := b.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	err = b.conn.Tx(buf, buf)
	return
}

// header encodes instruction, big endian address and dummy bytes.
func (b *SPIBus) header(cmd Command) ([]byte, error) {
	if cmd.AddrLines() > Lines1 || cmd.DataLines > Lines1 {
		return nil, fmt.Errorf("%w: %s needs more than one line", ErrUnsupported, cmd)
	}
	if cmd.DummyCycles%8 != 0 {
		return nil, fmt.Errorf("%w: %d dummy cycles on a byte-oriented bus", ErrUnsupported, cmd.DummyCycles)
	}
	n := cmd.AddressSize.Bytes()
	h := make([]byte, 1+n+int(cmd.DummyCycles/8))
	h[0] = cmd.Instruction
	for i := 0; i < n; i++ {
		h[1+i] = byte(cmd.Address >> (8 * (n - 1 - i)))
	}
	// h[1+n:] dummy bytes
	return h, nil
}

// Command implements Bus.
func (b *SPIBus) Command(cmd Command) error {
	h, err := b.header(cmd)
	if err != nil {
		return err
	}
	return b.tx(h)
}

// Transmit implements Bus. The whole transfer must fit in one transaction,
// since splitting would restart the device's program sequence.
func (b *SPIBus) Transmit(cmd Command, data []byte) error {
	h, err := b.header(cmd)
	if err != nil {
		return err
	}
	if len(h)+len(data) > b.maxTx {
		return fmt.Errorf("%w: transmit of %d bytes exceeds %d byte transaction", ErrUnsupported, len(data), b.maxTx)
	}
	buf := append(h, data...)
	return b.tx(buf)
}

// Receive implements Bus. Reads are split into multiple transactions to stay
// within the maximum transaction size, advancing the address for each chunk.
func (b *SPIBus) Receive(cmd Command, out []byte) error {
	h, err := b.header(cmd)
	if err != nil {
		return err
	}
	maxData := b.maxTx - len(h)
	if len(out) > 0 && maxData <= 0 {
		return fmt.Errorf("%w: %d byte header fills the %d byte transaction", ErrUnsupported, len(h), b.maxTx)
	}
	if len(out) > maxData && !cmd.HasAddress() {
		return fmt.Errorf("%w: receive of %d bytes exceeds %d byte transaction", ErrUnsupported, len(out), b.maxTx)
	}

	off := 0
	for remaining := len(out); remaining > 0; {
		chunk := min(remaining, maxData)
		buf := make([]byte, len(h)+chunk)
		copy(buf, h)

		if err := b.tx(buf); err != nil {
			return err
		}
		copy(out[off:], buf[len(h):])

		cmd.Address += uint32(chunk)
		if h, err = b.header(cmd); err != nil {
			return err
		}
		off += chunk
		remaining -= chunk
	}
	return nil
}

// String returns the underlying connection name.
func (b *SPIBus) String() string {
	return fmt.Sprintf("qspi.SPIBus(%s)", b.conn)
}
