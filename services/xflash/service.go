// Package xflash serves external-flash commands posted on a Doorbell.
//
// Each command is validated before any bus access, in this order: missing
// transport, buffer bound, probe outcome, address range. Only then is the
// flash driver called.
package xflash

import (
	"context"

	"flashrover-go/doorbell"
	"flashrover-go/drivers/spinor"
)

// Flash is the driver surface the service needs. *spinor.Device satisfies it.
type Flash interface {
	Info() (spinor.Info, bool)
	Read(offset uint32, p []byte) error
	Write(offset uint32, p []byte) error
	Erase(length, offset uint32) error
	MassErase() error
}

// Service is the command loop. A nil Flash means the SPI transport could
// not be brought up; every command then answers ErrorSpi.
type Service struct {
	srv   *doorbell.Server
	flash Flash
	buf   []byte
}

// New binds a server, a flash driver and the shared transfer buffer. The
// buffer length is the bound on block reads and writes.
func New(srv *doorbell.Server, flash Flash, buf []byte) *Service {
	return &Service{srv: srv, flash: flash, buf: buf}
}

// Run serves commands until ctx is done. On the device it never returns.
func (s *Service) Run(ctx context.Context) error {
	println("[xflash] serving, buffer", len(s.buf), "bytes")
	for {
		cmd, err := s.srv.WaitForCommand(ctx)
		if err != nil {
			return err
		}
		if err := s.srv.SendResponse(ctx, s.Handle(cmd)); err != nil {
			return err
		}
	}
}

// Handle validates and executes one command.
func (s *Service) Handle(cmd doorbell.Command) doorbell.Response {
	if !cmd.Kind.Known() {
		return doorbell.Fail(doorbell.RspError)
	}
	if s.flash == nil {
		return doorbell.Fail(doorbell.RspErrorSpi)
	}

	offset, length := cmd.Arg0, cmd.Arg1
	switch cmd.Kind {
	case doorbell.CmdReadBlock, doorbell.CmdWriteBlock:
		if uint64(length) > uint64(len(s.buf)) {
			return doorbell.Fail(doorbell.RspErrorBufOverflow)
		}
	}

	info, ok := s.flash.Info()
	if !ok {
		return doorbell.Fail(doorbell.RspErrorXflash)
	}
	if !info.Supported {
		return doorbell.Unsupported(info.ManufacturerID, info.DeviceID)
	}

	switch cmd.Kind {
	case doorbell.CmdSectorErase, doorbell.CmdReadBlock, doorbell.CmdWriteBlock:
		if !info.Fits(offset, length) {
			return doorbell.Fail(doorbell.RspErrorAddressRange)
		}
	}

	var err error
	switch cmd.Kind {
	case doorbell.CmdXflashInfo:
		return doorbell.XflashInfo(info.ManufacturerID, info.DeviceID, info.Size)
	case doorbell.CmdMassErase:
		err = s.flash.MassErase()
	case doorbell.CmdSectorErase:
		err = s.flash.Erase(length, offset)
	case doorbell.CmdReadBlock:
		err = s.flash.Read(offset, s.buf[:length])
	case doorbell.CmdWriteBlock:
		err = s.flash.Write(offset, s.buf[:length])
	}
	if err != nil {
		println("[xflash]", cmd.Kind.String(), "failed:", err.Error())
		return doorbell.Fail(doorbell.RspErrorXflash)
	}
	return doorbell.Ok()
}
