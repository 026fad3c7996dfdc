package doorbell

import (
	"context"
	"errors"
	"testing"
	"time"
	"unsafe"
)

func TestLayout(t *testing.T) {
	var db Doorbell
	if unsafe.Sizeof(db) != Size {
		t.Fatalf("sizeof Doorbell = %d", unsafe.Sizeof(db))
	}
	if unsafe.Offsetof(db.Rsp) != RspOffset {
		t.Fatalf("rsp offset = %d", unsafe.Offsetof(db.Rsp))
	}
	var f Frame
	offs := []uintptr{unsafe.Offsetof(f.Kind), unsafe.Offsetof(f.Arg0), unsafe.Offsetof(f.Arg1), unsafe.Offsetof(f.Arg2)}
	want := []uintptr{KindOffset, Arg0Offset, Arg1Offset, Arg2Offset}
	for i := range offs {
		if offs[i] != want[i] {
			t.Fatalf("field %d at %d, want %d", i, offs[i], want[i])
		}
	}
}

func TestCodecLittleEndian(t *testing.T) {
	b := make([]byte, FrameSize)
	EncodeCommand(b, Command{Kind: CmdReadBlock, Arg0: 0x11223344, Arg1: 0x100})
	want := []byte{0xC3, 0, 0, 0, 0x44, 0x33, 0x22, 0x11, 0x00, 0x01, 0, 0, 0, 0, 0, 0}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("byte %d = %#x want %#x", i, b[i], want[i])
		}
	}
	if c := DecodeCommand(b); c.Kind != CmdReadBlock || c.Arg0 != 0x11223344 || c.Arg1 != 0x100 {
		t.Fatalf("decoded %+v", c)
	}

	EncodeResponse(b, XflashInfo(0xC2, 0x14, 0x100000))
	r := DecodeResponse(b)
	if r.Kind != RspXflashInfo || r.Arg0 != 0xC2 || r.Arg1 != 0x14 || r.Arg2 != 0x100000 {
		t.Fatalf("decoded %+v", r)
	}
}

func TestKinds(t *testing.T) {
	for _, k := range []ResponseKind{RspError, RspErrorSpi, RspErrorXflash, RspErrorBufOverflow, RspErrorAddressRange, RspErrorUnsupported} {
		if !k.IsError() {
			t.Errorf("%v not an error", k)
		}
	}
	for _, k := range []ResponseKind{RspNone, RspOk, RspXflashInfo} {
		if k.IsError() {
			t.Errorf("%v is an error", k)
		}
	}
	if CmdNone.Known() || CommandKind(0x42).Known() || !CmdWriteBlock.Known() {
		t.Fatal("Known")
	}
	if CommandKind(0x42).String() != "cmd(0x00000042)" {
		t.Fatalf("got %q", CommandKind(0x42).String())
	}
}

// serve answers each command with Ok carrying the command's args.
func serve(ctx context.Context, s *Server, seen chan<- Command) {
	for {
		c, err := s.WaitForCommand(ctx)
		if err != nil {
			return
		}
		seen <- c
		if err := s.SendResponse(ctx, Response{Kind: RspOk, Arg0: c.Arg0, Arg1: c.Arg1, Arg2: uint32(c.Kind)}); err != nil {
			return
		}
	}
}

func TestRoundTripOneResponsePerCommand(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var db Doorbell
	srv := NewServer(&db)
	seen := make(chan Command, 16)
	done := make(chan struct{})
	go func() { serve(ctx, srv, seen); close(done) }()

	cl := NewClient(&db)
	kinds := []CommandKind{CmdXflashInfo, CmdSectorErase, CmdMassErase, CmdReadBlock, CmdWriteBlock}
	for i := 0; i < 50; i++ {
		k := kinds[i%len(kinds)]
		r, err := cl.Call(ctx, Command{Kind: k, Arg0: uint32(i), Arg1: uint32(i * 3)})
		if err != nil {
			t.Fatal(err)
		}
		if r.Kind != RspOk || r.Arg0 != uint32(i) || r.Arg1 != uint32(i*3) || r.Arg2 != uint32(k) {
			t.Fatalf("call %d: response %+v", i, r)
		}
		if c := <-seen; c.Kind != k || c.Arg0 != uint32(i) {
			t.Fatalf("call %d: server saw %+v", i, c)
		}
		if len(seen) != 0 {
			t.Fatal("server handled more than one command")
		}
	}
	cancel()
	<-done
}

func TestUnknownKindDropped(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var db Doorbell
	srv := NewServer(&db)

	db.Cmd.Arg0.Set(7)
	db.Cmd.Kind.Set(0x42)
	got := make(chan Command, 1)
	go func() {
		c, err := srv.WaitForCommand(ctx)
		if err == nil {
			got <- c
		}
	}()

	// The bogus kind is cleared without a response.
	for db.Cmd.Kind.Get() != 0 {
		if ctx.Err() != nil {
			t.Fatal("unknown kind never cleared")
		}
		time.Sleep(time.Millisecond)
	}
	if db.Rsp.Kind.Get() != 0 {
		t.Fatal("response posted for unknown kind")
	}
	db.Cmd.Kind.Set(uint32(CmdMassErase))
	select {
	case c := <-got:
		if c.Kind != CmdMassErase {
			t.Fatalf("got %+v", c)
		}
	case <-ctx.Done():
		t.Fatal("known command not picked up")
	}
	if srv.State() != StateProcessing {
		t.Fatalf("state = %v", srv.State())
	}
}

func TestStateMachineOrder(t *testing.T) {
	var db Doorbell
	srv := NewServer(&db)
	if srv.State() != StateWaitCommand {
		t.Fatalf("state = %v", srv.State())
	}
	if err := srv.SendResponse(context.Background(), Ok()); !errors.Is(err, ErrState) {
		t.Fatalf("err = %v", err)
	}

	db.Cmd.Kind.Set(uint32(CmdXflashInfo))
	if _, err := srv.WaitForCommand(context.Background()); err != nil {
		t.Fatal(err)
	}
	if db.Cmd.Kind.Get() != 0 {
		t.Fatal("command kind not cleared on consumption")
	}
	if _, err := srv.WaitForCommand(context.Background()); !errors.Is(err, ErrState) {
		t.Fatalf("err = %v", err)
	}

	// Nobody consumes the response: the wait is cancellable and resumes.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.SendResponse(ctx, Unsupported(1, 2)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if srv.State() != StateWaitResponseConsumed {
		t.Fatalf("state = %v", srv.State())
	}
	if db.Rsp.Kind.Get() != uint32(RspErrorUnsupported) || db.Rsp.Arg0.Get() != 1 || db.Rsp.Arg1.Get() != 2 {
		t.Fatal("response not published")
	}

	db.Rsp.Kind.Set(0)
	db.Cmd.Kind.Set(uint32(CmdMassErase))
	c, err := srv.WaitForCommand(context.Background())
	if err != nil || c.Kind != CmdMassErase {
		t.Fatalf("c=%+v err=%v", c, err)
	}
}

func TestClientDeadline(t *testing.T) {
	var db Doorbell
	cl := NewClient(&db)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := cl.Call(ctx, Command{Kind: CmdXflashInfo}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}
