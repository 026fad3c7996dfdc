// internal/platform/platform_host.go
//go:build !rp2040

package platform

import (
	"sync"

	"flashrover-go/config"
	"flashrover-go/doorbell"
	"flashrover-go/drivers/spibus"
	"flashrover-go/drivers/spinor"
	"flashrover-go/errcode"
	"flashrover-go/internal/norsim"
	"flashrover-go/power"
)

const BufferSize = 0x1000

// Host stand-ins for the fixed RAM regions and the wired chip.
var (
	hostMu   sync.Mutex
	hostChip *norsim.Chip
	hostDB   doorbell.Doorbell
	hostBuf  [BufferSize]byte
	hostConf [config.Size]byte
)

// UseChip wires c as the emulated flash. Call before OpenFlash.
func UseChip(c *norsim.Chip) {
	hostMu.Lock()
	hostChip = c
	hostMu.Unlock()
}

// Chip returns the emulated flash, an MX25R8035F unless UseChip was called.
func Chip() *norsim.Chip {
	hostMu.Lock()
	defer hostMu.Unlock()
	if hostChip == nil {
		hostChip = norsim.New(norsim.MX25R8035F)
	}
	return hostChip
}

func Doorbell() *doorbell.Doorbell { return &hostDB }
func Buffer() []byte               { return hostBuf[:] }

// ConfRecord is writable on the host; tests and the simulator play loader.
func ConfRecord() []byte { return hostConf[:] }

// ---- Power ----

// Controller settles every transition immediately and counts them.
type Controller struct {
	mu      sync.Mutex
	domains [power.NumDomains]bool
	clocks  [power.NumPeripherals]bool
	edges   int
}

func NewController() *Controller { return &Controller{} }

func (c *Controller) set(p *bool, v bool) {
	c.mu.Lock()
	*p = v
	c.edges++
	c.mu.Unlock()
}

func (c *Controller) PowerOn(d power.Domain)          { c.set(&c.domains[d], true) }
func (c *Controller) PowerOff(d power.Domain)         { c.set(&c.domains[d], false) }
func (c *Controller) EnableClock(p power.Peripheral)  { c.set(&c.clocks[p], true) }
func (c *Controller) DisableClock(p power.Peripheral) { c.set(&c.clocks[p], false) }

func (c *Controller) DomainStatus(d power.Domain) power.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.domains[d] {
		return power.StatusOn
	}
	return power.StatusOff
}

func (c *Controller) ClockSettled(p power.Peripheral, on bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clocks[p] == on
}

// Edges counts hardware transitions issued so far.
func (c *Controller) Edges() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edges
}

// ---- SPI ----

// SPIPort returns the emulated chip for either SSI block.
func SPIPort(p power.Peripheral) (spibus.Port, error) {
	switch p {
	case power.PeriphSSI0, power.PeriphSSI1:
		return Chip(), nil
	}
	return nil, &errcode.E{C: errcode.SPI, Op: "platform.spi", Msg: "not an SPI peripheral: " + p.String()}
}

func ChipSelect(uint8) spinor.ChipSelect { return Chip().CS() }
