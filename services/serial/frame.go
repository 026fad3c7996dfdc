// Package serial serves the external flash over a byte stream (UART).
//
// Every frame starts with StartOp, then a type byte, then little-endian
// u32 arguments and optional payload:
//
//	EF <type> [args...] [data...]
//
// This framing predates the Doorbell and is not wire-compatible with it.
package serial

import (
	"context"
	"encoding/binary"
)

const StartOp = 0xEF

// BufferSize is the per-frame payload bound, one program page.
const BufferSize = 256

// Port is a byte stream. *uartx.UART and *shmring.End satisfy it.
type Port interface {
	Write(p []byte) (int, error)
	RecvSomeContext(ctx context.Context, buf []byte) (int, error)
}

type CmdType uint8

const (
	CmdInvalid    CmdType = 0x00
	CmdSync       CmdType = 0xC0
	CmdFlashInfo  CmdType = 0xC1
	CmdErase      CmdType = 0xC2 // offset, length
	CmdMassErase  CmdType = 0xC3
	CmdRead       CmdType = 0xC4 // offset, length
	CmdStartWrite CmdType = 0xC5
	CmdDataWrite  CmdType = 0xC6 // offset, length, data
)

type RspType uint8

const (
	RspInvalid             RspType = 0x00
	RspAck                 RspType = 0x01
	RspAckPend             RspType = 0x02
	RspFlashInfo           RspType = 0x03 // manf u8, dev u8, size
	RspWriteSize           RspType = 0x04 // length
	RspDataRead            RspType = 0x05 // offset, length, data
	RspError               RspType = 0x80
	RspErrorExtFlash       RspType = 0x81
	RspErrorUnsupported    RspType = 0x82 // manf u8, dev u8
	RspErrorAddressRange   RspType = 0x83
	RspErrorBufferOverflow RspType = 0x84
)

func (t RspType) IsError() bool { return t&0x80 != 0 }

// ---- Buffered reader ----

type reader struct {
	port Port
	buf  [64]byte
	r, w int
}

func (rd *reader) fill(ctx context.Context) error {
	for rd.r == rd.w {
		n, err := rd.port.RecvSomeContext(ctx, rd.buf[:])
		if err != nil {
			return err
		}
		rd.r, rd.w = 0, n
	}
	return nil
}

func (rd *reader) byte(ctx context.Context) (byte, error) {
	if err := rd.fill(ctx); err != nil {
		return 0, err
	}
	b := rd.buf[rd.r]
	rd.r++
	return b, nil
}

func (rd *reader) full(ctx context.Context, p []byte) error {
	for i := 0; i < len(p); {
		if err := rd.fill(ctx); err != nil {
			return err
		}
		n := copy(p[i:], rd.buf[rd.r:rd.w])
		rd.r += n
		i += n
	}
	return nil
}

func (rd *reader) u32(ctx context.Context) (uint32, error) {
	var b [4]byte
	if err := rd.full(ctx, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// discard drops n bytes.
func (rd *reader) discard(ctx context.Context, n uint32) error {
	for ; n > 0; n-- {
		if _, err := rd.byte(ctx); err != nil {
			return err
		}
	}
	return nil
}

// sync skips to the next StartOp and returns the type byte after it.
func (rd *reader) sync(ctx context.Context) (byte, error) {
	for {
		b, err := rd.byte(ctx)
		if err != nil {
			return 0, err
		}
		if b == StartOp {
			return rd.byte(ctx)
		}
	}
}

// ---- Writer ----

type writer struct {
	port Port
	buf  [2 + 3*4]byte
	n    int
}

func (w *writer) begin(t byte) {
	w.buf[0], w.buf[1] = StartOp, t
	w.n = 2
}

func (w *writer) u8(v uint8) {
	w.buf[w.n] = v
	w.n++
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.n:], v)
	w.n += 4
}

// send writes the header and then the optional payload.
func (w *writer) send(payload []byte) error {
	if _, err := w.port.Write(w.buf[:w.n]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.port.Write(payload); err != nil {
			return err
		}
	}
	return nil
}
