//go:build !tinygo

package doorbell

import (
	"runtime"
	"sync/atomic"
)

// reg32 stands in for a volatile register on the host, where the
// controller is another goroutine.
type reg32 struct{ v atomic.Uint32 }

func (r *reg32) Get() uint32  { return r.v.Load() }
func (r *reg32) Set(v uint32) { r.v.Store(v) }

var defaultIdle = runtime.Gosched
