package errcode

// Code is a stable, wire-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Unsupported   Code = "unsupported"
	InvalidParams Code = "invalid_params"
	Closed        Code = "closed"

	SPI            Code = "spi"
	Xflash         Code = "xflash"
	BufferOverflow Code = "buffer_overflow"
	AddressRange   Code = "address_range"

	Error Code = "error" // generic fallback
)

// E wraps a cause with a code and the operation that failed.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
// Wrapped chains are searched so a Code survives fmt-style wrapping.
func Of(err error) Code {
	for err != nil {
		if c, ok := err.(Code); ok {
			return c
		}
		type coder interface{ Code() Code }
		if x, ok := err.(coder); ok {
			return x.Code()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if err == nil {
		return OK
	}
	return Error
}
