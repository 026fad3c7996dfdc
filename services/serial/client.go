package serial

import (
	"context"

	"flashrover-go/errcode"
	"flashrover-go/x/conv"
)

// Client is the host side of the serial protocol.
type Client struct {
	rd reader
	wr writer
}

func NewClient(port Port) *Client {
	return &Client{rd: reader{port: port}, wr: writer{port: port}}
}

type rsp struct {
	typ        RspType
	arg0, arg1 uint32
	manf, dev  uint8
}

// next reads one response header. DataRead payload is left on the wire.
func (c *Client) next(ctx context.Context) (rsp, error) {
	for {
		t, err := c.rd.sync(ctx)
		if err != nil {
			return rsp{}, err
		}
		r := rsp{typ: RspType(t)}
		switch r.typ {
		case RspFlashInfo, RspErrorUnsupported:
			if r.manf, err = c.rd.byte(ctx); err != nil {
				return rsp{}, err
			}
			if r.dev, err = c.rd.byte(ctx); err != nil {
				return rsp{}, err
			}
			if r.typ == RspFlashInfo {
				r.arg0, err = c.rd.u32(ctx)
			}
		case RspWriteSize:
			r.arg0, err = c.rd.u32(ctx)
		case RspDataRead:
			if r.arg0, err = c.rd.u32(ctx); err == nil {
				r.arg1, err = c.rd.u32(ctx)
			}
		case RspAck, RspAckPend, RspError, RspErrorExtFlash, RspErrorAddressRange, RspErrorBufferOverflow:
		default:
			continue
		}
		if err != nil {
			return rsp{}, err
		}
		return r, nil
	}
}

func (r rsp) err(op string) error {
	var code errcode.Code
	switch r.typ {
	case RspErrorExtFlash:
		code = errcode.Xflash
	case RspErrorUnsupported:
		return &errcode.E{C: errcode.Unsupported, Op: op, Msg: conv.Hex8(r.manf) + "/" + conv.Hex8(r.dev)}
	case RspErrorAddressRange:
		code = errcode.AddressRange
	case RspErrorBufferOverflow:
		code = errcode.BufferOverflow
	default:
		code = errcode.Error
	}
	return &errcode.E{C: code, Op: op}
}

// expect reads responses until one of type want or an error arrives.
// AckPend is skipped.
func (c *Client) expect(ctx context.Context, op string, want RspType) (rsp, error) {
	for {
		r, err := c.next(ctx)
		if err != nil {
			return rsp{}, err
		}
		switch {
		case r.typ == want:
			return r, nil
		case r.typ == RspAckPend:
		case r.typ.IsError():
			return rsp{}, r.err(op)
		default:
			return rsp{}, &errcode.E{C: errcode.Error, Op: op, Msg: "unexpected response " + conv.Hex8(uint8(r.typ))}
		}
	}
}

func (c *Client) send(t CmdType, args ...uint32) error {
	c.wr.begin(byte(t))
	for _, a := range args {
		c.wr.u32(a)
	}
	return c.wr.send(nil)
}

func (c *Client) Sync(ctx context.Context) error {
	if err := c.send(CmdSync); err != nil {
		return err
	}
	_, err := c.expect(ctx, "serial.sync", RspAck)
	return err
}

func (c *Client) FlashInfo(ctx context.Context) (manf, dev uint8, size uint32, err error) {
	if err = c.send(CmdFlashInfo); err != nil {
		return
	}
	r, err := c.expect(ctx, "serial.flash_info", RspFlashInfo)
	return r.manf, r.dev, r.arg0, err
}

func (c *Client) Erase(ctx context.Context, offset, length uint32) error {
	if err := c.send(CmdErase, offset, length); err != nil {
		return err
	}
	_, err := c.expect(ctx, "serial.erase", RspAck)
	return err
}

func (c *Client) MassErase(ctx context.Context) error {
	if err := c.send(CmdMassErase); err != nil {
		return err
	}
	_, err := c.expect(ctx, "serial.mass_erase", RspAck)
	return err
}

// Read fills p from offset. The device streams DataRead frames then Ack.
func (c *Client) Read(ctx context.Context, offset uint32, p []byte) error {
	if err := c.send(CmdRead, offset, uint32(len(p))); err != nil {
		return err
	}
	for {
		r, err := c.next(ctx)
		if err != nil {
			return err
		}
		switch {
		case r.typ == RspAck:
			return nil
		case r.typ == RspAckPend:
		case r.typ == RspDataRead:
			if r.arg0 < offset || uint64(r.arg0-offset)+uint64(r.arg1) > uint64(len(p)) {
				return &errcode.E{C: errcode.Error, Op: "serial.read", Msg: "data outside request"}
			}
			if err := c.rd.full(ctx, p[r.arg0-offset:][:r.arg1]); err != nil {
				return err
			}
		case r.typ.IsError():
			return r.err("serial.read")
		}
	}
}

// Write programs p at offset in chunks of the device's reported write size.
func (c *Client) Write(ctx context.Context, offset uint32, p []byte) error {
	if err := c.send(CmdStartWrite); err != nil {
		return err
	}
	r, err := c.expect(ctx, "serial.start_write", RspWriteSize)
	if err != nil {
		return err
	}
	chunk := int(r.arg0)
	if chunk == 0 {
		return &errcode.E{C: errcode.Error, Op: "serial.start_write", Msg: "zero write size"}
	}
	for len(p) > 0 {
		n := min(chunk, len(p))
		if err := c.send(CmdDataWrite, offset, uint32(n)); err != nil {
			return err
		}
		if _, err := c.wr.port.Write(p[:n]); err != nil {
			return err
		}
		if _, err := c.expect(ctx, "serial.data_write", RspAck); err != nil {
			return err
		}
		offset += uint32(n)
		p = p[n:]
	}
	return nil
}
