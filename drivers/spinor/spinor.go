// Package spinor drives a SPI NOR flash chip (Macronix MX25R, Winbond W25X
// families) over a byte transport with a software chip select.
//
// Construction wakes the chip from deep power-down, waits for it to go idle
// and probes its manufacturer/device id against a table of known parts. An
// unknown or silent chip is put back into power-down and the driver stays
// unsupported for its whole life: Info still reports what was seen, every
// data operation returns ErrUnsupported.
//
// Every operation waits for a previous program/erase to finish first. The
// status poll has no timeout; the chip bounds it.
//
// Erase works in 4 KiB sectors only. A range is widened to whole sectors,
// so bytes that share a sector with the range are erased too.
package spinor

import (
	"errors"
	"time"

	"flashrover-go/power"
	"flashrover-go/x/conv"
	"flashrover-go/x/mathx"
)

// Opcodes.
const (
	opProgram     = 0x02 // page program
	opRead        = 0x03 // read data
	opReadStatus  = 0x05 // read status register
	opWriteEnable = 0x06 // set write enable latch
	opErase4K     = 0x20 // sector erase, 4 KiB
	opEraseAll    = 0xC7 // chip erase
	opMDID        = 0x90 // manufacturer/device id
	opPowerDown   = 0xB9 // deep power-down
	opStandby     = 0xAB // release from deep power-down
)

// Status register bits.
const (
	statusBusy = 0x01
	statusWEL  = 0x02
)

var (
	ErrUnsupported = errors.New("spinor: unsupported part")
	ErrClosed      = errors.New("spinor: closed")
	ErrPowerDown   = errors.New("spinor: chip still responding after power-down")
)

// Bus is the transport the driver needs. *spibus.Transport satisfies it.
type Bus interface {
	Write(p []byte) error
	Read(p []byte) error
	Flush() int
}

// ChipSelect drives the CS line; Set(false) selects the chip.
// machine.Pin satisfies it.
type ChipSelect interface {
	Set(high bool)
}

// Config holds chip timing and geometry. Zero fields take defaults.
type Config struct {
	PageSize   uint32 // program page, default 256
	SectorSize uint32 // erase sector, default 4096
	// WakeDelay is how long CS stays high after release from power-down.
	// Winbond needs 3 µs, Macronix up to 35 µs. Default 35 µs.
	WakeDelay time.Duration
	// PowerDownRetries bounds the probes used to confirm power-down. Default 10.
	PowerDownRetries int
}

func (c *Config) defaults() {
	if c.PageSize == 0 {
		c.PageSize = 256
	}
	if c.SectorSize == 0 {
		c.SectorSize = 4096
	}
	if c.WakeDelay <= 0 {
		c.WakeDelay = 35 * time.Microsecond
	}
	if c.PowerDownRetries <= 0 {
		c.PowerDownRetries = 10
	}
}

// Device is one flash chip.
type Device struct {
	bus  Bus
	cs   ChipSelect
	gpio power.Handle
	cfg  Config

	info   Info
	probed bool // ids were read from the chip
	closed bool

	cmd [4]byte
}

// New brings the chip up and probes it. It always returns a Device; check
// Info for the outcome.
func New(bus Bus, cs ChipSelect, pm *power.Manager, cfg Config) *Device {
	cfg.defaults()
	d := &Device{
		bus:  bus,
		cs:   cs,
		gpio: pm.AcquirePeripheral(power.PeriphGPIO),
		cfg:  cfg,
	}
	d.deselect()

	if err := d.powerStandby(); err != nil {
		println("[spinor] wake failed:", err.Error())
		_ = d.shutdown()
		return d
	}
	manf, dev, err := d.readID()
	if err != nil {
		println("[spinor] id read failed:", err.Error())
		_ = d.shutdown()
		return d
	}
	d.probed = true
	d.info.ManufacturerID = manf
	d.info.DeviceID = dev
	if size, ok := Lookup(manf, dev); ok {
		d.info.Size = size
		d.info.Supported = true
		println("[spinor] found", conv.Hex8(manf), conv.Hex8(dev), "size", size)
		return d
	}
	println("[spinor] unsupported part", conv.Hex8(manf), conv.Hex8(dev))
	if err := d.shutdown(); err != nil {
		println("[spinor] power-down failed:", err.Error())
	}
	return d
}

// Info returns the cached probe result. ok is false when the ids could not
// be read at all. It never touches the bus.
func (d *Device) Info() (info Info, ok bool) {
	return d.info, d.probed
}

// Config returns the effective configuration.
func (d *Device) Config() Config { return d.cfg }

func (d *Device) usable() error {
	if d.closed {
		return ErrClosed
	}
	if !d.info.Supported {
		return ErrUnsupported
	}
	return nil
}

// Read fills p from offset with a single read command.
func (d *Device) Read(offset uint32, p []byte) error {
	if err := d.usable(); err != nil {
		return err
	}
	if err := d.waitReady(); err != nil {
		return err
	}
	d.selectChip()
	err := d.bus.Write(d.command(opRead, offset))
	if err == nil {
		err = d.bus.Read(p)
	}
	d.deselect()
	return err
}

// Write programs p at offset, splitting it so no program instruction crosses
// a page boundary. The write enable latch is set before every page.
func (d *Device) Write(offset uint32, p []byte) error {
	if err := d.usable(); err != nil {
		return err
	}
	page := d.cfg.PageSize
	for len(p) > 0 {
		if err := d.waitReady(); err != nil {
			return err
		}
		if err := d.writeEnable(); err != nil {
			return err
		}
		n := mathx.Min(page-offset%page, uint32(len(p)))

		d.selectChip()
		err := d.bus.Write(d.command(opProgram, offset))
		if err == nil {
			err = d.bus.Write(p[:n])
		}
		d.deselect()
		if err != nil {
			return err
		}
		offset += n
		p = p[n:]
	}
	return nil
}

// Erase erases every sector touching [offset, offset+length).
func (d *Device) Erase(length, offset uint32) error {
	if err := d.usable(); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	start, n := SectorSpan(offset, length, d.cfg.SectorSize)
	addr := start
	for i := uint32(0); i < n; i++ {
		if err := d.waitReady(); err != nil {
			return err
		}
		if err := d.writeEnable(); err != nil {
			return err
		}
		d.selectChip()
		err := d.bus.Write(d.command(opErase4K, addr))
		d.deselect()
		if err != nil {
			return err
		}
		addr += d.cfg.SectorSize
	}
	return d.waitReady()
}

// SectorSpan returns the aligned start and the number of sectors covering
// [offset, offset+length). length must be non-zero. The range ends at
// offset+length-1, so a 1-byte erase never straddles sectors: (4095, 1) is
// one sector and (4095, 2) is two.
func SectorSpan(offset, length, sectorSize uint32) (start, count uint32) {
	start = mathx.AlignDown(offset, sectorSize)
	last := uint64(offset) + uint64(length) - 1 // inclusive end
	count = uint32(mathx.CeilDiv(last-uint64(start)+1, uint64(sectorSize)))
	return start, count
}

// MassErase erases the whole chip.
func (d *Device) MassErase() error {
	if err := d.usable(); err != nil {
		return err
	}
	if err := d.waitReady(); err != nil {
		return err
	}
	if err := d.writeEnable(); err != nil {
		return err
	}
	if err := d.single(opEraseAll); err != nil {
		return err
	}
	return d.waitReady()
}

// Close puts the chip into deep power-down and releases the GPIO dependency.
// It returns ErrPowerDown if the chip kept answering probes.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.shutdown()
	d.gpio.Release()
	return err
}

// ---- internals ----

func (d *Device) selectChip() { d.cs.Set(false) }
func (d *Device) deselect() { d.cs.Set(true) }

// command fills the shared 4-byte header: opcode plus 24-bit big-endian address.
func (d *Device) command(op byte, addr uint32) []byte {
	d.cmd[0] = op
	d.cmd[1] = byte(addr >> 16)
	d.cmd[2] = byte(addr >> 8)
	d.cmd[3] = byte(addr)
	return d.cmd[:]
}

func (d *Device) single(op byte) error {
	d.cmd[0] = op
	d.selectChip()
	err := d.bus.Write(d.cmd[:1])
	d.deselect()
	return err
}

func (d *Device) writeEnable() error { return d.single(opWriteEnable) }

func (d *Device) powerStandby() error {
	if err := d.single(opStandby); err != nil {
		return err
	}
	time.Sleep(d.cfg.WakeDelay)
	return d.waitReady()
}

// waitReady polls the status register until BUSY clears.
func (d *Device) waitReady() error {
	// Throw away stale receive data.
	d.selectChip()
	d.bus.Flush()
	d.deselect()

	var st [1]byte
	for {
		d.cmd[0] = opReadStatus
		d.selectChip()
		err := d.bus.Write(d.cmd[:1])
		if err == nil {
			err = d.bus.Read(st[:])
		}
		d.deselect()
		if err != nil {
			return err
		}
		if st[0]&statusBusy == 0 {
			return nil
		}
	}
}

func (d *Device) readID() (manf, dev uint8, err error) {
	d.cmd = [4]byte{opMDID, 0xFF, 0xFF, 0x00}
	var id [2]byte
	d.selectChip()
	err = d.bus.Write(d.cmd[:])
	if err == nil {
		err = d.bus.Read(id[:])
	}
	d.deselect()
	return id[0], id[1], err
}

// shutdown issues deep power-down and confirms it by probing until the chip
// stops identifying as a known part.
func (d *Device) shutdown() error {
	if err := d.single(opPowerDown); err != nil {
		return err
	}
	for i := 0; i < d.cfg.PowerDownRetries; i++ {
		manf, dev, err := d.readID()
		if err != nil {
			return err
		}
		if _, known := Lookup(manf, dev); !known {
			return nil
		}
	}
	return ErrPowerDown
}
