//go:build tinygo

package doorbell

import "runtime/volatile"

// reg32 is a field the other side of the channel may change at any time.
type reg32 = volatile.Register32

// The device has nothing else to run while it polls.
var defaultIdle func()
