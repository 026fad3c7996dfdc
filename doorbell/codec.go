package doorbell

import "encoding/binary"

// Byte-level view of the layout for controllers that read and write
// target memory as byte arrays. b must hold at least FrameSize bytes.

func EncodeCommand(b []byte, c Command) {
	putFrame(b, uint32(c.Kind), c.Arg0, c.Arg1, c.Arg2)
}

func DecodeCommand(b []byte) Command {
	k, a0, a1, a2 := getFrame(b)
	return Command{Kind: CommandKind(k), Arg0: a0, Arg1: a1, Arg2: a2}
}

func EncodeResponse(b []byte, r Response) {
	putFrame(b, uint32(r.Kind), r.Arg0, r.Arg1, r.Arg2)
}

func DecodeResponse(b []byte) Response {
	k, a0, a1, a2 := getFrame(b)
	return Response{Kind: ResponseKind(k), Arg0: a0, Arg1: a1, Arg2: a2}
}

func putFrame(b []byte, k, a0, a1, a2 uint32) {
	_ = b[FrameSize-1]
	binary.LittleEndian.PutUint32(b[KindOffset:], k)
	binary.LittleEndian.PutUint32(b[Arg0Offset:], a0)
	binary.LittleEndian.PutUint32(b[Arg1Offset:], a1)
	binary.LittleEndian.PutUint32(b[Arg2Offset:], a2)
}

func getFrame(b []byte) (k, a0, a1, a2 uint32) {
	_ = b[FrameSize-1]
	return binary.LittleEndian.Uint32(b[KindOffset:]),
		binary.LittleEndian.Uint32(b[Arg0Offset:]),
		binary.LittleEndian.Uint32(b[Arg1Offset:]),
		binary.LittleEndian.Uint32(b[Arg2Offset:])
}
