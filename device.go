package wbflash

import (
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"

	"github.com/gentam/wbflash/qspi"
)

// Adapter is an FT2232H whose MPSSE port is wired to a serial flash chip.
// It only drives single-line transactions, so drivers using it must be
// configured for one data line.
type Adapter struct {
	FTDI *ftdi.FT232H
	Bus  *qspi.SPIBus

	cs   gpio.PinIO // ADBUS4 Chip Select
	hold gpio.PinIO // ADBUS7 /HOLD or /RESET of the flash

	port  spi.PortCloser
	clock physic.Frequency
}

var hostInitialized atomic.Bool

// DefaultClock is the highest SCK the MPSSE engine supports.
const DefaultClock = 30 * physic.MegaHertz // [AN_135 3.2.1 Divisors]

// OpenFT2232H finds an FT2232H and opens an SPI connection at clock. A zero
// clock selects DefaultClock.
func OpenFT2232H(clock physic.Frequency) (*Adapter, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}
	if clock == 0 {
		clock = DefaultClock
	}

	a := &Adapter{clock: clock}
	if err := a.findFT2232H(); err != nil {
		return nil, err
	}

	// ADBUS0 | SCK
	// ADBUS1 | MOSI (IO0)
	// ADBUS2 | MISO (IO1)
	// ADBUS4 | /CS
	// ADBUS7 | /HOLD or /RESET (IO3), kept high
	a.cs = a.FTDI.D4
	a.hold = a.FTDI.D7
	if err := a.hold.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to release /HOLD: %w", err)
	}

	conn, err := a.connectSPI()
	if err != nil {
		return nil, err
	}
	a.Bus = qspi.NewSPIBus(conn, a.cs)
	return a, nil
}

// Close releases the SPI port.
func (a *Adapter) Close() error {
	if a.port == nil {
		return nil
	}
	return a.port.Close()
}

func (a *Adapter) findFT2232H() error {
	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			a.FTDI = ft
			return nil
		}
	}

	return errors.New("FT2232H not found")
}

func (a *Adapter) connectSPI() (spi.Conn, error) {
	port, err := a.FTDI.SPI()
	if err != nil {
		return nil, fmt.Errorf("failed to get SPI port: %w", err)
	}
	a.port = port

	// [FTDI AN_114|1.2] > FTDI device can only support mode 0 and mode 2 due to the limitation of MPSSE engine
	// [W25Q128|6.1.1] and [W25N01GV|6.1.1] support mode 0 and mode 3
	return port.Connect(a.clock, spi.Mode0, 8)
}
