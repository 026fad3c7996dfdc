// Package platform brings up the hardware the engine runs on: the power
// controller, the SPI port and chip select, the shared Doorbell and buffer,
// and the loader's pin record. The RP2040 build talks to registers; the
// host build wires everything to an emulated chip.
package platform

import (
	"flashrover-go/config"
	"flashrover-go/drivers/spibus"
	"flashrover-go/drivers/spinor"
	"flashrover-go/power"
)

// Board resolves the flash wiring: board defaults, overridden by a valid
// pin record. A malformed record is logged and ignored.
func Board() config.Board {
	b := config.Pico()
	conf, err := config.Decode(ConfRecord())
	if err != nil {
		println("[platform] pin record:", err.Error())
		return b
	}
	r, err := conf.Resolve(b)
	if err != nil {
		println("[platform] pin record rejected:", err.Error())
		return b
	}
	return r
}

// OpenFlash opens the SPI transport and probes the chip. When the bus
// cannot be brought up it returns a nil Device and the error; callers
// serve without flash in that case.
func OpenFlash(pm *power.Manager, b config.Board) (*spinor.Device, error) {
	port, err := SPIPort(b.SPI.Peripheral)
	if err != nil {
		return nil, err
	}
	tr, err := spibus.Open(pm, port, b.SPI)
	if err != nil {
		return nil, err
	}
	return spinor.New(tr, ChipSelect(b.CS), pm, spinor.Config{}), nil
}
