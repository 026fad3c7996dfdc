//go:build !rp2040

package main

import (
	"context"
	"fmt"

	"flashrover-go/doorbell"
	"flashrover-go/internal/norsim"
	"flashrover-go/internal/platform"
	"flashrover-go/power"
	"flashrover-go/services/serial"
	"flashrover-go/services/xflash"
	"flashrover-go/x/shmring"
)

// target is the controller's view of the engine.
type target interface {
	Info(ctx context.Context) (manf, dev uint8, size uint32, err error)
	Erase(ctx context.Context, offset, length uint32) error
	MassErase(ctx context.Context) error
	Read(ctx context.Context, offset uint32, p []byte) error
	Write(ctx context.Context, offset uint32, p []byte) error
}

// start wires chip into the platform and runs the engine in a goroutine.
func start(ctx context.Context, proto string, chip *norsim.Chip) (target, error) {
	platform.UseChip(chip)
	pm := power.NewManager(platform.NewController())
	dev, err := platform.OpenFlash(pm, platform.Board())
	if err != nil {
		return nil, err
	}

	switch proto {
	case "doorbell":
		db := platform.Doorbell()
		svc := xflash.New(doorbell.NewServer(db), dev, platform.Buffer())
		go svc.Run(ctx)
		return &doorbellTarget{cl: doorbell.NewClient(db), buf: platform.Buffer()}, nil
	case "serial":
		host, fw := shmring.NewLink(1024)
		go serial.New(fw, dev).Run(ctx)
		return serialTarget{serial.NewClient(host)}, nil
	}
	return nil, fmt.Errorf("unknown protocol %q", proto)
}

// ---- Doorbell ----

// doorbellTarget chunks transfers to the shared buffer, as a probe-side
// controller must.
type doorbellTarget struct {
	cl  *doorbell.Client
	buf []byte
}

type rspError doorbell.Response

func (e rspError) Error() string {
	r := doorbell.Response(e)
	if r.Kind == doorbell.RspErrorUnsupported {
		return fmt.Sprintf("%v (manufacturer 0x%02X device 0x%02X)", r.Kind, r.Arg0, r.Arg1)
	}
	return r.Kind.String()
}

func (t *doorbellTarget) call(ctx context.Context, k doorbell.CommandKind, arg0, arg1 uint32) (doorbell.Response, error) {
	r, err := t.cl.Call(ctx, doorbell.Command{Kind: k, Arg0: arg0, Arg1: arg1})
	if err != nil {
		return r, err
	}
	if r.Kind.IsError() {
		return r, rspError(r)
	}
	return r, nil
}

func (t *doorbellTarget) Info(ctx context.Context) (uint8, uint8, uint32, error) {
	r, err := t.call(ctx, doorbell.CmdXflashInfo, 0, 0)
	return uint8(r.Arg0), uint8(r.Arg1), r.Arg2, err
}

func (t *doorbellTarget) Erase(ctx context.Context, offset, length uint32) error {
	_, err := t.call(ctx, doorbell.CmdSectorErase, offset, length)
	return err
}

func (t *doorbellTarget) MassErase(ctx context.Context) error {
	_, err := t.call(ctx, doorbell.CmdMassErase, 0, 0)
	return err
}

func (t *doorbellTarget) Read(ctx context.Context, offset uint32, p []byte) error {
	for len(p) > 0 {
		n := min(len(p), len(t.buf))
		if _, err := t.call(ctx, doorbell.CmdReadBlock, offset, uint32(n)); err != nil {
			return err
		}
		copy(p, t.buf[:n])
		offset += uint32(n)
		p = p[n:]
	}
	return nil
}

func (t *doorbellTarget) Write(ctx context.Context, offset uint32, p []byte) error {
	for len(p) > 0 {
		n := min(len(p), len(t.buf))
		copy(t.buf, p[:n])
		if _, err := t.call(ctx, doorbell.CmdWriteBlock, offset, uint32(n)); err != nil {
			return err
		}
		offset += uint32(n)
		p = p[n:]
	}
	return nil
}

// ---- Serial ----

type serialTarget struct{ *serial.Client }

func (t serialTarget) Info(ctx context.Context) (uint8, uint8, uint32, error) {
	return t.FlashInfo(ctx)
}
