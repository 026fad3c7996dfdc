package serial

import (
	"context"

	"flashrover-go/drivers/spinor"
	"flashrover-go/x/mathx"
)

// Flash is the driver surface the service needs. *spinor.Device satisfies it.
type Flash interface {
	Info() (spinor.Info, bool)
	Read(offset uint32, p []byte) error
	Write(offset uint32, p []byte) error
	Erase(length, offset uint32) error
	MassErase() error
}

type cmd struct {
	typ        CmdType
	arg0, arg1 uint32
}

// Service answers framed commands on a Port. A nil Flash answers every
// flash command with ErrorExtFlash.
type Service struct {
	rd    reader
	wr    writer
	flash Flash
	buf   [BufferSize]byte
}

func New(port Port, flash Flash) *Service {
	return &Service{rd: reader{port: port}, wr: writer{port: port}, flash: flash}
}

// Run serves commands until the port fails or ctx is done.
func (s *Service) Run(ctx context.Context) error {
	println("[serial] serving, write size", BufferSize)
	for {
		c, err := s.readCmd(ctx)
		if err != nil {
			return err
		}
		if err := s.handle(c); err != nil {
			return err
		}
	}
}

// readCmd returns the next well-formed command. Bytes before a StartOp and
// frames of unknown type are skipped. DataWrite payload lands in s.buf, as
// much of it as fits.
func (s *Service) readCmd(ctx context.Context) (cmd, error) {
	for {
		t, err := s.rd.sync(ctx)
		if err != nil {
			return cmd{}, err
		}
		c := cmd{typ: CmdType(t)}
		switch c.typ {
		case CmdSync, CmdFlashInfo, CmdMassErase, CmdStartWrite:
			return c, nil
		case CmdErase, CmdRead, CmdDataWrite:
		default:
			continue
		}
		if c.arg0, err = s.rd.u32(ctx); err != nil {
			return cmd{}, err
		}
		if c.arg1, err = s.rd.u32(ctx); err != nil {
			return cmd{}, err
		}
		if c.typ == CmdDataWrite {
			n := mathx.Min(c.arg1, BufferSize)
			if err := s.rd.full(ctx, s.buf[:n]); err != nil {
				return cmd{}, err
			}
			if err := s.rd.discard(ctx, c.arg1-n); err != nil {
				return cmd{}, err
			}
		}
		return c, nil
	}
}

func (s *Service) handle(c cmd) error {
	switch c.typ {
	case CmdSync:
		return s.reply(RspAck)
	case CmdFlashInfo:
		return s.flashInfo()
	case CmdStartWrite:
		s.wr.begin(byte(RspWriteSize))
		s.wr.u32(BufferSize)
		return s.wr.send(nil)
	}

	if err := s.reply(RspAckPend); err != nil {
		return err
	}
	info, rsp := s.usable()
	if rsp != RspAck {
		return s.replyErr(rsp, info)
	}

	var err error
	switch c.typ {
	case CmdMassErase:
		err = s.flash.MassErase()
	case CmdErase:
		if !info.Fits(c.arg0, c.arg1) {
			return s.reply(RspErrorAddressRange)
		}
		err = s.flash.Erase(c.arg1, c.arg0)
	case CmdRead:
		if !info.Fits(c.arg0, c.arg1) {
			return s.reply(RspErrorAddressRange)
		}
		return s.read(c.arg0, c.arg1)
	case CmdDataWrite:
		if c.arg1 > BufferSize {
			return s.reply(RspErrorBufferOverflow)
		}
		if !info.Fits(c.arg0, c.arg1) {
			return s.reply(RspErrorAddressRange)
		}
		err = s.flash.Write(c.arg0, s.buf[:c.arg1])
	}
	if err != nil {
		println("[serial] flash op failed:", err.Error())
		return s.reply(RspErrorExtFlash)
	}
	return s.reply(RspAck)
}

// usable returns RspAck when data commands may reach the flash.
func (s *Service) usable() (spinor.Info, RspType) {
	if s.flash == nil {
		return spinor.Info{}, RspErrorExtFlash
	}
	info, ok := s.flash.Info()
	switch {
	case !ok:
		return info, RspErrorExtFlash
	case !info.Supported:
		return info, RspErrorUnsupported
	}
	return info, RspAck
}

func (s *Service) flashInfo() error {
	info, rsp := s.usable()
	if rsp != RspAck {
		return s.replyErr(rsp, info)
	}
	s.wr.begin(byte(RspFlashInfo))
	s.wr.u8(info.ManufacturerID)
	s.wr.u8(info.DeviceID)
	s.wr.u32(info.Size)
	return s.wr.send(nil)
}

// read streams [offset, offset+length) in buffer-sized DataRead frames.
func (s *Service) read(offset, length uint32) error {
	for length > 0 {
		n := mathx.Min(length, BufferSize)
		if err := s.flash.Read(offset, s.buf[:n]); err != nil {
			println("[serial] read failed:", err.Error())
			return s.reply(RspErrorExtFlash)
		}
		s.wr.begin(byte(RspDataRead))
		s.wr.u32(offset)
		s.wr.u32(n)
		if err := s.wr.send(s.buf[:n]); err != nil {
			return err
		}
		offset += n
		length -= n
	}
	return s.reply(RspAck)
}

func (s *Service) reply(t RspType) error {
	s.wr.begin(byte(t))
	return s.wr.send(nil)
}

func (s *Service) replyErr(t RspType, info spinor.Info) error {
	if t != RspErrorUnsupported {
		return s.reply(t)
	}
	s.wr.begin(byte(t))
	s.wr.u8(info.ManufacturerID)
	s.wr.u8(info.DeviceID)
	return s.wr.send(nil)
}
