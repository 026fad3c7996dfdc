// Package norsim emulates a SPI NOR flash chip on the host.
//
// It implements the tinygo drivers.SPI contract plus a chip-select line and
// understands the command subset used by drivers/spinor: manufacturer/device
// id, read, page program, 4K sector erase, chip erase, write enable, status,
// deep power-down and release. Program and erase set the write-in-progress
// bit for a configurable number of status polls; commands that arrive while
// it is set are ignored and counted as violations.
package norsim

import (
	"errors"
	"sync"

	"flashrover-go/drivers/spibus"
)

const (
	opProgram     = 0x02
	opRead        = 0x03
	opReadStatus  = 0x05
	opWriteEnable = 0x06
	opErase4K     = 0x20
	opEraseAll    = 0xC7
	opMDID        = 0x90
	opPowerDown   = 0xB9
	opRelease     = 0xAB

	statusBusy = 0x01
	statusWEL  = 0x02

	sectorSize = 4096
)

// Part describes an emulated chip.
type Part struct {
	Name           string
	ManufacturerID byte
	DeviceID       byte
	Size           int
	PageSize       int
}

var (
	MX25R8035F = Part{Name: "MX25R8035F", ManufacturerID: 0xC2, DeviceID: 0x14, Size: 1 << 20, PageSize: 256}
	MX25R1635F = Part{Name: "MX25R1635F", ManufacturerID: 0xC2, DeviceID: 0x15, Size: 2 << 20, PageSize: 256}
	W25X40CL   = Part{Name: "W25X40CL", ManufacturerID: 0xEF, DeviceID: 0x12, Size: 512 << 10, PageSize: 256}
)

// Op is one executed program or erase instruction.
type Op struct {
	Opcode byte
	Addr   uint32
	Data   []byte // program payload; nil for erase
}

// ErrInjected is returned from Tx/Transfer while FailAfter is exhausted.
var ErrInjected = errors.New("norsim: injected transfer failure")

// Chip is an emulated flash chip. All methods are safe for concurrent use.
type Chip struct {
	mu   sync.Mutex
	part Part
	mem  []byte

	selected    bool
	frame       []byte // bytes received in the current transaction
	outIdx      int    // response byte counter for streaming commands
	wel         bool
	busy        int // remaining status polls that report WIP
	poweredDown bool

	// BusyPolls is how many status reads report WIP after a program/erase.
	BusyPolls int
	// FailAfter, when >= 0, lets that many more bytes through and then fails
	// every transfer. Negative disables injection.
	FailAfter int
	// Residual is returned by Drain to model stale receive FIFO content.
	Residual int

	ops          []Op
	transactions int
	violations   int
	configured   spibus.Config
}

// New returns a powered-down chip filled with 0xFF.
func New(p Part) *Chip {
	c := &Chip{part: p, mem: make([]byte, p.Size), poweredDown: true, BusyPolls: 2, FailAfter: -1}
	for i := range c.mem {
		c.mem[i] = 0xFF
	}
	return c
}

// ---- spibus.Port ----

func (c *Chip) Configure(cfg spibus.Config) error {
	c.mu.Lock()
	c.configured = cfg
	c.mu.Unlock()
	return nil
}

func (c *Chip) Tx(w, r []byte) error {
	n := max(len(w), len(r))
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		var in byte
		if i < len(w) {
			in = w[i]
		}
		out, err := c.clock(in)
		if err != nil {
			return err
		}
		if i < len(r) {
			r[i] = out
		}
	}
	return nil
}

func (c *Chip) Transfer(b byte) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock(b)
}

func (c *Chip) Drain() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.Residual
	c.Residual = 0
	return n
}

// ---- Chip select ----

// CS returns the active-low chip-select line.
func (c *Chip) CS() *CS { return &CS{c: c} }

// CS is the chip-select pin; Set(false) selects the chip.
type CS struct{ c *Chip }

func (p *CS) Set(high bool) {
	c := p.c
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !high && !c.selected:
		c.selected = true
		c.frame = c.frame[:0]
		c.outIdx = 0
		c.transactions++
	case high && c.selected:
		c.selected = false
		c.commit()
	}
}

// ---- Inspection ----

func (c *Chip) Part() Part { return c.part }

// Mem returns a copy of [addr, addr+n).
func (c *Chip) Mem(addr, n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, n)
	copy(out, c.mem[addr:addr+n])
	return out
}

// Load writes raw content without going through the protocol.
func (c *Chip) Load(addr int, p []byte) {
	c.mu.Lock()
	copy(c.mem[addr:], p)
	c.mu.Unlock()
}

// Ops returns the executed program/erase instructions in order.
func (c *Chip) Ops() []Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Op(nil), c.ops...)
}

func (c *Chip) ResetOps() {
	c.mu.Lock()
	c.ops = nil
	c.mu.Unlock()
}

// Transactions counts chip-select assertions.
func (c *Chip) Transactions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transactions
}

// Violations counts commands issued while the chip was busy.
func (c *Chip) Violations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.violations
}

func (c *Chip) PoweredDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poweredDown
}

func (c *Chip) Configured() spibus.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configured
}

// ---- Protocol engine (caller holds c.mu) ----

func (c *Chip) clock(in byte) (byte, error) {
	if c.FailAfter == 0 {
		return 0, ErrInjected
	}
	if c.FailAfter > 0 {
		c.FailAfter--
	}
	if !c.selected {
		return 0xFF, nil
	}
	c.frame = append(c.frame, in)
	if c.poweredDown {
		return 0xFF, nil
	}
	if len(c.frame) == 1 {
		return 0xFF, nil
	}
	switch c.frame[0] {
	case opReadStatus:
		st := byte(0)
		if c.busy > 0 {
			st |= statusBusy
			c.busy--
		}
		if c.wel {
			st |= statusWEL
		}
		return st, nil
	case opRead:
		if len(c.frame) <= 4 || c.busy > 0 {
			return 0xFF, nil
		}
		a := (c.addr() + c.outIdx) % len(c.mem)
		c.outIdx++
		return c.mem[a], nil
	case opMDID:
		if len(c.frame) <= 4 {
			return 0xFF, nil
		}
		v := c.part.ManufacturerID
		if c.outIdx%2 == 1 {
			v = c.part.DeviceID
		}
		c.outIdx++
		return v, nil
	}
	return 0xFF, nil
}

func (c *Chip) addr() int {
	return int(c.frame[1])<<16 | int(c.frame[2])<<8 | int(c.frame[3])
}

func (c *Chip) commit() {
	if len(c.frame) == 0 {
		return
	}
	op := c.frame[0]
	if c.poweredDown {
		if op == opRelease {
			c.poweredDown = false
		}
		return
	}
	if c.busy > 0 && op != opReadStatus {
		c.violations++
		return
	}
	switch op {
	case opWriteEnable:
		c.wel = true
	case opPowerDown:
		c.poweredDown = true
	case opProgram:
		if !c.wel || len(c.frame) < 4 {
			return
		}
		base := c.addr() % len(c.mem)
		page := c.part.PageSize
		pageStart := base - base%page
		data := c.frame[4:]
		for i, b := range data {
			a := pageStart + (base-pageStart+i)%page // wraps within the page
			c.mem[a] &= b
		}
		c.ops = append(c.ops, Op{Opcode: op, Addr: uint32(base), Data: append([]byte(nil), data...)})
		c.wel = false
		c.busy = c.BusyPolls
	case opErase4K:
		if !c.wel || len(c.frame) < 4 {
			return
		}
		base := c.addr() % len(c.mem)
		base -= base % sectorSize
		for i := base; i < base+sectorSize && i < len(c.mem); i++ {
			c.mem[i] = 0xFF
		}
		c.ops = append(c.ops, Op{Opcode: op, Addr: uint32(base)})
		c.wel = false
		c.busy = c.BusyPolls
	case opEraseAll:
		if !c.wel {
			return
		}
		for i := range c.mem {
			c.mem[i] = 0xFF
		}
		c.ops = append(c.ops, Op{Opcode: op})
		c.wel = false
		c.busy = c.BusyPolls * 4
	}
}
