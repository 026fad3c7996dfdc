package conv

import "testing"

func TestHex(t *testing.T) {
	var b [8]byte
	if got := string(U32Hex(b[:], 0x00100000)); got != "00100000" {
		t.Fatalf("U32Hex = %q", got)
	}
	if got := string(U8Hex(b[:2], 0xC2)); got != "C2" {
		t.Fatalf("U8Hex = %q", got)
	}
	if got := string(U32Hex(b[:4], 1)); got != "" {
		t.Fatalf("short buffer should yield empty, got %q", got)
	}
	if Hex8(0x14) != "0x14" || Hex32(0xDEADBEEF) != "0xDEADBEEF" {
		t.Fatal("Hex8/Hex32")
	}
}
