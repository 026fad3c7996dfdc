// Package doorbell is the shared-memory command channel between the engine
// and an external controller (a debug probe poking target RAM).
//
// The layout is two 16-byte frames, little-endian, no padding:
//
//	offset 0x00  cmd.kind cmd.arg0 cmd.arg1 cmd.arg2
//	offset 0x10  rsp.kind rsp.arg0 rsp.arg1 rsp.arg2
//
// Kind is the trigger field of each frame. A writer stores the arguments
// first and the kind last; the reader acknowledges by clearing the kind.
// Zero means empty in both tag spaces.
package doorbell

import "flashrover-go/x/conv"

// Layout.
const (
	FrameSize  = 16
	CmdOffset  = 0
	RspOffset  = FrameSize
	Size       = 2 * FrameSize
	KindOffset = 0
	Arg0Offset = 4
	Arg1Offset = 8
	Arg2Offset = 12
)

// Frame is one {kind, arg0, arg1, arg2} record.
type Frame struct {
	Kind reg32
	Arg0 reg32
	Arg1 reg32
	Arg2 reg32
}

// Doorbell is the full shared structure. On the device it is placed at a
// fixed address known to the controller.
type Doorbell struct {
	Cmd Frame
	Rsp Frame
}

// ---- Command kinds ----

type CommandKind uint32

const (
	CmdNone        CommandKind = 0x00
	CmdXflashInfo  CommandKind = 0xC0 // identify
	CmdSectorErase CommandKind = 0xC1 // arg0 offset, arg1 length
	CmdMassErase   CommandKind = 0xC2
	CmdReadBlock   CommandKind = 0xC3 // arg0 offset, arg1 length
	CmdWriteBlock  CommandKind = 0xC4 // arg0 offset, arg1 length
)

// Known reports whether k is a recognised command tag.
func (k CommandKind) Known() bool {
	switch k {
	case CmdXflashInfo, CmdSectorErase, CmdMassErase, CmdReadBlock, CmdWriteBlock:
		return true
	}
	return false
}

func (k CommandKind) String() string {
	switch k {
	case CmdNone:
		return "none"
	case CmdXflashInfo:
		return "xflash-info"
	case CmdSectorErase:
		return "sector-erase"
	case CmdMassErase:
		return "mass-erase"
	case CmdReadBlock:
		return "read-block"
	case CmdWriteBlock:
		return "write-block"
	}
	return "cmd(" + conv.Hex32(uint32(k)) + ")"
}

// ---- Response kinds ----

type ResponseKind uint32

const (
	RspNone              ResponseKind = 0x00
	RspOk                ResponseKind = 0xD0
	RspXflashInfo        ResponseKind = 0xD1 // arg0 manf, arg1 dev, arg2 size
	RspError             ResponseKind = 0x80
	RspErrorSpi          ResponseKind = 0x81
	RspErrorXflash       ResponseKind = 0x82
	RspErrorBufOverflow  ResponseKind = 0x83
	RspErrorAddressRange ResponseKind = 0x84
	RspErrorUnsupported  ResponseKind = 0x85 // arg0 manf, arg1 dev
)

// IsError reports whether k is in the error tag range.
func (k ResponseKind) IsError() bool { return k&0xF0 == 0x80 }

func (k ResponseKind) String() string {
	switch k {
	case RspNone:
		return "none"
	case RspOk:
		return "ok"
	case RspXflashInfo:
		return "xflash-info"
	case RspError:
		return "error"
	case RspErrorSpi:
		return "error-spi"
	case RspErrorXflash:
		return "error-xflash"
	case RspErrorBufOverflow:
		return "error-buffer-overflow"
	case RspErrorAddressRange:
		return "error-address-range"
	case RspErrorUnsupported:
		return "error-unsupported"
	}
	return "rsp(" + conv.Hex32(uint32(k)) + ")"
}

// ---- Values ----

// Command is a copied-out command frame.
type Command struct {
	Kind             CommandKind
	Arg0, Arg1, Arg2 uint32
}

// Response is a response frame before it is published.
type Response struct {
	Kind             ResponseKind
	Arg0, Arg1, Arg2 uint32
}

func Ok() Response { return Response{Kind: RspOk} }

// Fail returns an argument-less response of kind k.
func Fail(k ResponseKind) Response { return Response{Kind: k} }

func XflashInfo(manf, dev uint8, size uint32) Response {
	return Response{Kind: RspXflashInfo, Arg0: uint32(manf), Arg1: uint32(dev), Arg2: size}
}

func Unsupported(manf, dev uint8) Response {
	return Response{Kind: RspErrorUnsupported, Arg0: uint32(manf), Arg1: uint32(dev)}
}
