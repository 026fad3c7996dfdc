package norsim

import "testing"

func xfer(c *Chip, w []byte, rn int) []byte {
	cs := c.CS()
	cs.Set(false)
	_ = c.Tx(w, nil)
	r := make([]byte, rn)
	_ = c.Tx(nil, r)
	cs.Set(true)
	return r
}

func waitIdle(c *Chip) {
	for xfer(c, []byte{opReadStatus}, 1)[0]&statusBusy != 0 {
	}
}

func TestPowerDownIgnoresEverythingButRelease(t *testing.T) {
	c := New(MX25R8035F)
	if id := xfer(c, []byte{opMDID, 0xFF, 0xFF, 0x00}, 2); id[0] != 0xFF {
		t.Fatalf("powered-down chip answered id % x", id)
	}
	xfer(c, []byte{opRelease}, 0)
	if id := xfer(c, []byte{opMDID, 0xFF, 0xFF, 0x00}, 2); id[0] != 0xC2 || id[1] != 0x14 {
		t.Fatalf("id = % x", id)
	}
	xfer(c, []byte{opPowerDown}, 0)
	if !c.PoweredDown() {
		t.Fatal("deep power-down not entered")
	}
}

func TestProgramNeedsWELAndOnlyClearsBits(t *testing.T) {
	c := New(W25X40CL)
	xfer(c, []byte{opRelease}, 0)

	xfer(c, []byte{opProgram, 0, 0, 0, 0x00}, 0)
	if c.Mem(0, 1)[0] != 0xFF {
		t.Fatal("program without write enable took effect")
	}

	xfer(c, []byte{opWriteEnable}, 0)
	xfer(c, []byte{opProgram, 0, 0, 0, 0xF0}, 0)
	waitIdle(c)
	xfer(c, []byte{opWriteEnable}, 0)
	xfer(c, []byte{opProgram, 0, 0, 0, 0x3F}, 0)
	waitIdle(c)
	if got := c.Mem(0, 1)[0]; got != 0x30 {
		t.Fatalf("cell = %#x, want 0x30", got)
	}
	if c.Violations() != 0 {
		t.Fatalf("violations = %d", c.Violations())
	}
}

func TestProgramWrapsWithinPage(t *testing.T) {
	c := New(W25X40CL)
	xfer(c, []byte{opRelease}, 0)
	xfer(c, []byte{opWriteEnable}, 0)
	xfer(c, []byte{opProgram, 0, 0, 0xFF, 0x11, 0x22}, 0)
	waitIdle(c)
	if c.Mem(0xFF, 1)[0] != 0x11 || c.Mem(0x00, 1)[0] != 0x22 || c.Mem(0x100, 1)[0] != 0xFF {
		t.Fatal("page program did not wrap inside the page")
	}
}

func TestCommandWhileBusyIsViolation(t *testing.T) {
	c := New(W25X40CL)
	c.BusyPolls = 5
	xfer(c, []byte{opRelease}, 0)
	xfer(c, []byte{opWriteEnable}, 0)
	xfer(c, []byte{opErase4K, 0, 0x10, 0}, 0)
	xfer(c, []byte{opWriteEnable}, 0)
	if c.Violations() != 1 {
		t.Fatalf("violations = %d, want 1", c.Violations())
	}
}
