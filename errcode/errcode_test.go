package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestOf(t *testing.T) {
	cause := errors.New("fifo stuck")
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{SPI, SPI},
		{&E{C: AddressRange, Op: "read"}, AddressRange},
		{fmt.Errorf("outer: %w", &E{C: SPI, Err: cause}), SPI},
		{cause, Error},
	}
	for i, c := range cases {
		if got := Of(c.err); got != c.want {
			t.Fatalf("case %d: got %q want %q", i, got, c.want)
		}
	}
}

func TestEUnwrapAndMessage(t *testing.T) {
	cause := errors.New("nak")
	e := &E{C: SPI, Op: "spi.write", Err: cause}
	if !errors.Is(e, cause) {
		t.Fatal("errors.Is should reach the cause")
	}
	if got, want := e.Error(), "spi.write: spi: nak"; got != want {
		t.Fatalf("Error() = %q want %q", got, want)
	}
}
