// internal/platform/platform_rp2040.go
//go:build rp2040

package platform

import (
	"device/rp"
	"machine"
	"runtime/volatile"
	"unsafe"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"flashrover-go/config"
	"flashrover-go/doorbell"
	"flashrover-go/drivers/spibus"
	"flashrover-go/drivers/spinor"
	"flashrover-go/errcode"
	"flashrover-go/power"
)

// Fixed addresses shared with the loader. SRAM4 and SRAM5 lie outside the
// 256 KiB striped RAM the linker hands to the Go runtime.
const (
	DoorbellAddr = 0x20040000 // SRAM4
	ConfAddr     = 0x20040040
	BufferAddr   = 0x20041000 // SRAM5
	BufferSize   = 0x1000
)

func Doorbell() *doorbell.Doorbell {
	return (*doorbell.Doorbell)(unsafe.Pointer(uintptr(DoorbellAddr)))
}

func Buffer() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(BufferAddr))), BufferSize)
}

func ConfRecord() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ConfAddr))), config.Size)
}

// ---- Power ----

var resets = (*rp.RESETS_Type)(unsafe.Pointer(rp.RESETS))

// Controller maps peripherals onto RESETS bits. The RP2040 has no
// switchable power islands for these blocks, so domains are bookkeeping
// only. Peripherals without a reset line (GPIO pads, the timer the runtime
// sleeps on) are left alone.
type Controller struct {
	domains [power.NumDomains]bool
}

func NewController() *Controller { return &Controller{} }

func resetBits(p power.Peripheral) uint32 {
	switch p {
	case power.PeriphSSI0:
		return rp.RESETS_RESET_SPI0
	case power.PeriphSSI1:
		return rp.RESETS_RESET_SPI1
	case power.PeriphUART0:
		return rp.RESETS_RESET_UART0
	case power.PeriphUART1:
		return rp.RESETS_RESET_UART1
	case power.PeriphI2C0:
		return rp.RESETS_RESET_I2C0
	case power.PeriphUDMA:
		return rp.RESETS_RESET_DMA
	}
	return 0
}

func (c *Controller) PowerOn(d power.Domain)  { c.domains[d] = true }
func (c *Controller) PowerOff(d power.Domain) { c.domains[d] = false }

func (c *Controller) DomainStatus(d power.Domain) power.Status {
	if c.domains[d] {
		return power.StatusOn
	}
	return power.StatusOff
}

func (c *Controller) EnableClock(p power.Peripheral) {
	if bits := resetBits(p); bits != 0 {
		resets.RESET.ClearBits(bits)
	}
}

func (c *Controller) DisableClock(p power.Peripheral) {
	if bits := resetBits(p); bits != 0 {
		resets.RESET.SetBits(bits)
	}
}

func (c *Controller) ClockSettled(p power.Peripheral, on bool) bool {
	bits := resetBits(p)
	if bits == 0 {
		return true
	}
	return resets.RESET_DONE.HasBits(bits) == on
}

// ---- SPI ----

// PL022 receive registers, by block base.
const (
	spi0Base = 0x4003C000
	spi1Base = 0x40040000

	sspdr    = 0x08
	sspsr    = 0x0C
	sspsrRNE = 1 << 2
)

func spiReg(base, off uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(base + off))
}

type spiPort struct {
	spi  *machine.SPI
	base uintptr
}

func (p *spiPort) Tx(w, r []byte) error          { return p.spi.Tx(w, r) }
func (p *spiPort) Transfer(b byte) (byte, error) { return p.spi.Transfer(b) }

func (p *spiPort) Configure(cfg spibus.Config) error {
	return p.spi.Configure(machine.SPIConfig{
		Frequency: cfg.Frequency,
		SCK:       machine.Pin(cfg.Pins.CLK),
		SDO:       machine.Pin(cfg.Pins.MOSI),
		SDI:       machine.Pin(cfg.Pins.MISO),
		Mode:      cfg.Mode,
	})
}

// Drain empties the receive FIFO without clocking the bus.
func (p *spiPort) Drain() int {
	n := 0
	for spiReg(p.base, sspsr).HasBits(sspsrRNE) {
		spiReg(p.base, sspdr).Get()
		n++
	}
	return n
}

// SPIPort returns the hardware block for an SSI peripheral.
func SPIPort(p power.Peripheral) (spibus.Port, error) {
	switch p {
	case power.PeriphSSI0:
		return &spiPort{spi: machine.SPI0, base: spi0Base}, nil
	case power.PeriphSSI1:
		return &spiPort{spi: machine.SPI1, base: spi1Base}, nil
	}
	return nil, &errcode.E{C: errcode.SPI, Op: "platform.spi", Msg: "not an SPI peripheral: " + p.String()}
}

// ChipSelect configures pin as a deselected output.
func ChipSelect(pin uint8) spinor.ChipSelect {
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.High()
	return p
}

// ---- Serial ----

// SerialPort configures UART0 on its default pads.
func SerialPort(baud uint32) *uartx.UART {
	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	return u
}
