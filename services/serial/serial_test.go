package serial

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"flashrover-go/drivers/spibus"
	"flashrover-go/drivers/spinor"
	"flashrover-go/errcode"
	"flashrover-go/internal/norsim"
	"flashrover-go/power"
	"flashrover-go/x/shmring"
)

type instantCtl struct {
	dom [power.NumDomains]bool
	clk [power.NumPeripherals]bool
}

func (c *instantCtl) PowerOn(d power.Domain)  { c.dom[d] = true }
func (c *instantCtl) PowerOff(d power.Domain) { c.dom[d] = false }
func (c *instantCtl) DomainStatus(d power.Domain) power.Status {
	if c.dom[d] {
		return power.StatusOn
	}
	return power.StatusOff
}
func (c *instantCtl) EnableClock(p power.Peripheral)  { c.clk[p] = true }
func (c *instantCtl) DisableClock(p power.Peripheral) { c.clk[p] = false }
func (c *instantCtl) ClockSettled(p power.Peripheral, on bool) bool {
	return c.clk[p] == on
}

type rig struct {
	chip *norsim.Chip
	host *shmring.End
	cl   *Client
	ctx  context.Context
}

func start(t *testing.T, part norsim.Part) *rig {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	host, dev := shmring.NewLink(512)
	r := &rig{host: host, cl: NewClient(host), ctx: ctx}
	var flash Flash
	if part.Size != 0 {
		r.chip = norsim.New(part)
		pm := power.NewManager(&instantCtl{})
		tr, err := spibus.Open(pm, r.chip, spibus.DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		flash = spinor.New(tr, r.chip.CS(), pm, spinor.Config{})
	}
	svc := New(dev, flash)

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v", err)
		}
	})
	return r
}

// raw reads n bytes from the device side of the link.
func (r *rig) raw(t *testing.T, n int) []byte {
	t.Helper()
	out := make([]byte, n)
	if err := r.cl.rd.full(r.ctx, out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestSyncSkipsNoiseAndUnknownFrames(t *testing.T) {
	r := start(t, norsim.MX25R8035F)
	// Noise, then an unknown type, then a real Sync.
	r.host.Write([]byte{0x00, 0x13, StartOp, 0x55, 0x42, StartOp, byte(CmdSync)})
	if got := r.raw(t, 2); !bytes.Equal(got, []byte{StartOp, byte(RspAck)}) {
		t.Fatalf("got % x", got)
	}
	if err := r.cl.Sync(r.ctx); err != nil {
		t.Fatal(err)
	}
}

func TestFlashInfoWire(t *testing.T) {
	r := start(t, norsim.MX25R8035F)
	r.host.Write([]byte{StartOp, byte(CmdFlashInfo)})
	want := []byte{StartOp, byte(RspFlashInfo), 0xC2, 0x14, 0x00, 0x00, 0x10, 0x00}
	if got := r.raw(t, len(want)); !bytes.Equal(got, want) {
		t.Fatalf("got % x", got)
	}
}

func TestStartWriteReportsPageBuffer(t *testing.T) {
	r := start(t, norsim.MX25R8035F)
	r.host.Write([]byte{StartOp, byte(CmdStartWrite)})
	want := []byte{StartOp, byte(RspWriteSize), 0x00, 0x01, 0x00, 0x00}
	if got := r.raw(t, len(want)); !bytes.Equal(got, want) {
		t.Fatalf("got % x", got)
	}
}

func TestClientRoundTrip(t *testing.T) {
	r := start(t, norsim.W25X40CL)
	manf, dev, size, err := r.cl.FlashInfo(r.ctx)
	if err != nil || manf != 0xEF || dev != 0x12 || size != 512<<10 {
		t.Fatalf("info = %#x %#x %#x err=%v", manf, dev, size, err)
	}

	data := make([]byte, 700)
	for i := range data {
		data[i] = byte(i * 13)
	}
	const offset = 0x3F0
	if err := r.cl.Write(r.ctx, offset, data); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(data))
	if err := r.cl.Read(r.ctx, offset, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("read back differs")
	}

	if err := r.cl.Erase(r.ctx, offset, 1); err != nil {
		t.Fatal(err)
	}
	if r.chip.Mem(offset, 1)[0] != 0xFF {
		t.Fatal("not erased")
	}
	r.chip.Load(0x40000, []byte{0})
	if err := r.cl.MassErase(r.ctx); err != nil {
		t.Fatal(err)
	}
	if r.chip.Mem(0x40000, 1)[0] != 0xFF {
		t.Fatal("not mass erased")
	}
}

func TestReadStreamsBufferSizedFrames(t *testing.T) {
	r := start(t, norsim.MX25R8035F)
	r.host.Write([]byte{StartOp, byte(CmdRead), 0x00, 0x00, 0x00, 0x00, 0x2C, 0x01, 0x00, 0x00}) // 300 bytes at 0
	if got := r.raw(t, 2); got[1] != byte(RspAckPend) {
		t.Fatalf("got % x", got)
	}
	for _, want := range []uint32{256, 44} {
		h := r.raw(t, 10)
		if h[1] != byte(RspDataRead) || uint32(h[6])|uint32(h[7])<<8 != want {
			t.Fatalf("header % x", h)
		}
		r.raw(t, int(want))
	}
	if got := r.raw(t, 2); got[1] != byte(RspAck) {
		t.Fatalf("got % x", got)
	}
}

func TestErrors(t *testing.T) {
	r := start(t, norsim.MX25R8035F)

	err := r.cl.Read(r.ctx, 0xFFFFFFFF, make([]byte, 2))
	if errcode.Of(err) != errcode.AddressRange {
		t.Fatalf("read overflow: %v", err)
	}
	if err := r.cl.Erase(r.ctx, 0x100000, 1); errcode.Of(err) != errcode.AddressRange {
		t.Fatalf("erase past end: %v", err)
	}

	// A DataWrite larger than the buffer is rejected with a distinct code.
	before := r.chip.Transactions()
	big := make([]byte, BufferSize+1)
	r.cl.send(CmdDataWrite, 0, uint32(len(big)))
	r.host.Write(big)
	if _, err := r.cl.expect(r.ctx, "test", RspAck); errcode.Of(err) != errcode.BufferOverflow {
		t.Fatalf("overflow: %v", err)
	}
	if r.chip.Transactions() != before {
		t.Fatal("rejected write reached the bus")
	}
	// The oversize payload was consumed with its frame.
	if err := r.cl.Sync(r.ctx); err != nil {
		t.Fatal(err)
	}

	r.chip.FailAfter = 0
	if err := r.cl.MassErase(r.ctx); errcode.Of(err) != errcode.Xflash {
		t.Fatalf("transport failure: %v", err)
	}
}

func TestUnsupportedPart(t *testing.T) {
	r := start(t, norsim.Part{Name: "odd", ManufacturerID: 0x20, DeviceID: 0x30, Size: 4096, PageSize: 256})
	r.host.Write([]byte{StartOp, byte(CmdFlashInfo)})
	want := []byte{StartOp, byte(RspErrorUnsupported), 0x20, 0x30}
	if got := r.raw(t, len(want)); !bytes.Equal(got, want) {
		t.Fatalf("got % x", got)
	}
	if err := r.cl.Read(r.ctx, 0, make([]byte, 4)); errcode.Of(err) != errcode.Unsupported {
		t.Fatalf("read: %v", err)
	}
}

func TestNoFlash(t *testing.T) {
	r := start(t, norsim.Part{})
	if err := r.cl.Sync(r.ctx); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := r.cl.FlashInfo(r.ctx); errcode.Of(err) != errcode.Xflash {
		t.Fatalf("err = %v", err)
	}
}
