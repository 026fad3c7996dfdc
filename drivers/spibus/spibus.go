// Package spibus is a synchronous, byte-oriented SPI master transport.
//
// A Transport holds the bus peripheral's power dependency for its whole
// lifetime. It only drives clock and data lines; chip select belongs to the
// device driver on top.
package spibus

import (
	"errors"

	"tinygo.org/x/drivers"

	"flashrover-go/errcode"
	"flashrover-go/power"
)

// Filler is clocked out on MOSI while receiving.
const Filler = 0x00

var ErrClosed = errors.New("spibus: closed")

// Pins selects the data and clock pads (GPIO numbers on RP2040).
type Pins struct {
	MISO uint8
	MOSI uint8
	CLK  uint8
}

// Config describes bus selection and framing. Frames are always 8 bits.
type Config struct {
	Peripheral power.Peripheral // PeriphSSI0 or PeriphSSI1
	Pins       Pins
	Frequency  uint32 // Hz; 0 => 4 MHz
	Mode       uint8  // CPOL<<1 | CPHA
}

// DefaultConfig is SSI0, mode 0, 4 MHz on the Pico SPI0 default pads.
func DefaultConfig() Config {
	return Config{
		Peripheral: power.PeriphSSI0,
		Pins:       Pins{MISO: 16, MOSI: 19, CLK: 18},
		Frequency:  4_000_000,
		Mode:       0,
	}
}

// Port is the hardware side: a tinygo drivers.SPI that can be configured.
type Port interface {
	drivers.SPI
	Configure(cfg Config) error
}

// Drainer is implemented by ports that can discard buffered receive data
// without blocking. It returns the number of bytes dropped.
type Drainer interface {
	Drain() int
}

// Transport is one configured SPI master.
type Transport struct {
	port   Port
	periph power.Handle
	closed bool
}

// Open powers the bus peripheral, configures the port and drops residual
// receive data left by a previous user of the bus.
func Open(pm *power.Manager, port Port, cfg Config) (*Transport, error) {
	if cfg.Frequency == 0 {
		cfg.Frequency = 4_000_000
	}
	if cfg.Mode > 3 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "spi.open", Msg: "mode must be 0..3"}
	}
	t := &Transport{port: port, periph: pm.AcquirePeripheral(cfg.Peripheral)}
	if err := port.Configure(cfg); err != nil {
		t.periph.Release()
		return nil, &errcode.E{C: errcode.SPI, Op: "spi.open", Err: err}
	}
	t.Flush()
	return t, nil
}

// Write sends p and discards whatever is clocked in.
func (t *Transport) Write(p []byte) error {
	if t.closed {
		return ErrClosed
	}
	if len(p) == 0 {
		return nil
	}
	if err := t.port.Tx(p, nil); err != nil {
		return &errcode.E{C: errcode.SPI, Op: "spi.write", Err: err}
	}
	return nil
}

// Read fills p by clocking out Filler bytes.
func (t *Transport) Read(p []byte) error {
	if t.closed {
		return ErrClosed
	}
	for i := range p {
		b, err := t.port.Transfer(Filler)
		if err != nil {
			return &errcode.E{C: errcode.SPI, Op: "spi.read", Err: err}
		}
		p[i] = b
	}
	return nil
}

// Flush discards buffered-but-unread receive bytes. It never blocks.
func (t *Transport) Flush() int {
	if t.closed {
		return 0
	}
	if d, ok := t.port.(Drainer); ok {
		return d.Drain()
	}
	return 0
}

// Close releases the bus peripheral. Further transfers return ErrClosed.
func (t *Transport) Close() {
	if t.closed {
		return
	}
	t.closed = true
	t.periph.Release()
}
