// Package config resolves the board wiring, optionally overridden by a pin
// record the loader places in target RAM next to the Doorbell.
//
// Record layout, little-endian, packed:
//
//	valid u32 | miso u32 | mosi u32 | csn u32 | clk u32
package config

import (
	"encoding/binary"

	"flashrover-go/drivers/spibus"
	"flashrover-go/errcode"
	"flashrover-go/power"
)

// Size is the encoded length of a Conf.
const Size = 20

// NumGPIO bounds pin numbers (RP2040 bank 0).
const NumGPIO = 30

// Conf is the loader's pin override. Valid == 0 means "use the board".
type Conf struct {
	Valid uint32
	MISO  uint32
	MOSI  uint32
	CSN   uint32
	CLK   uint32
}

// Decode parses a record. b must hold at least Size bytes.
func Decode(b []byte) (Conf, error) {
	if len(b) < Size {
		return Conf{}, &errcode.E{C: errcode.InvalidParams, Op: "config.decode", Msg: "short record"}
	}
	le := binary.LittleEndian
	return Conf{
		Valid: le.Uint32(b[0:]),
		MISO:  le.Uint32(b[4:]),
		MOSI:  le.Uint32(b[8:]),
		CSN:   le.Uint32(b[12:]),
		CLK:   le.Uint32(b[16:]),
	}, nil
}

// Encode writes c into b, which must hold Size bytes. Loader side.
func (c Conf) Encode(b []byte) {
	_ = b[Size-1]
	le := binary.LittleEndian
	le.PutUint32(b[0:], c.Valid)
	le.PutUint32(b[4:], c.MISO)
	le.PutUint32(b[8:], c.MOSI)
	le.PutUint32(b[12:], c.CSN)
	le.PutUint32(b[16:], c.CLK)
}

// Board is the resolved wiring for one flash chip.
type Board struct {
	SPI spibus.Config
	CS  uint8 // software chip select GPIO
}

// Pico is SPI0 on its default pads with CS on GP17.
func Pico() Board {
	return Board{SPI: spibus.DefaultConfig(), CS: 17}
}

// Resolve applies c to b. An invalid record leaves b untouched. A valid one
// must put MISO, MOSI and CLK on the RX, TX and SCK functions of a single
// SPI block; that block becomes the bus peripheral. CS may be any pin.
func (c Conf) Resolve(b Board) (Board, error) {
	if c.Valid == 0 {
		return b, nil
	}
	for _, p := range [...]uint32{c.MISO, c.MOSI, c.CSN, c.CLK} {
		if p >= NumGPIO {
			return b, &errcode.E{C: errcode.InvalidParams, Op: "config.resolve", Msg: "pin out of range"}
		}
	}
	if c.MISO%4 != 0 || c.MOSI%4 != 3 || c.CLK%4 != 2 {
		return b, &errcode.E{C: errcode.InvalidParams, Op: "config.resolve", Msg: "pin has no SPI function"}
	}
	inst := spiInstance(c.CLK)
	if spiInstance(c.MISO) != inst || spiInstance(c.MOSI) != inst {
		return b, &errcode.E{C: errcode.InvalidParams, Op: "config.resolve", Msg: "pins on different SPI blocks"}
	}
	b.SPI.Peripheral = power.PeriphSSI0
	if inst == 1 {
		b.SPI.Peripheral = power.PeriphSSI1
	}
	b.SPI.Pins = spibus.Pins{MISO: uint8(c.MISO), MOSI: uint8(c.MOSI), CLK: uint8(c.CLK)}
	b.CS = uint8(c.CSN)
	return b, nil
}

// spiInstance returns which SPI block owns a pad's SPI function.
func spiInstance(pin uint32) uint32 { return (pin >> 3) & 1 }
