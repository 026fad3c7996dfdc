// Package power keeps reference counts for shared power domains and
// clock-gated peripherals and drives the hardware only on the 0->1 and 1->0
// edges of each count.
//
// Every acquisition returns a Handle. Releasing the Handle undoes exactly that
// acquisition, once. Acquiring a peripheral acquires its parent domain first;
// the domain is released after the peripheral's own count reaches zero, so a
// domain is never powered down beneath an active peripheral.
//
// Counts saturate at 255. An acquisition made while the count is saturated
// changes nothing and yields an inert Handle, so pairing stays balanced.
//
// Hardware polls have no timeout. A transition that never completes is a
// hardware fault and the caller hangs until an external reset.
package power

import "flashrover-go/x/mathx"

type count = uint8

// Status is the reported state of a power domain.
type Status uint8

const (
	StatusOff Status = iota
	StatusOn
)

// Controller is the register-level interface to the power/clock hardware.
type Controller interface {
	// PowerOn/PowerOff request a domain transition; DomainStatus reports the
	// current hardware state and is polled until it matches the request.
	PowerOn(d Domain)
	PowerOff(d Domain)
	DomainStatus(d Domain) Status

	// EnableClock/DisableClock gate a peripheral; ClockSettled reports whether
	// the requested state (on == enabled) has been latched by the hardware.
	EnableClock(p Peripheral)
	DisableClock(p Peripheral)
	ClockSettled(p Peripheral, on bool) bool
}

// Manager owns the dependency counters. It is not safe for concurrent use;
// the firmware has a single execution context.
type Manager struct {
	ctl     Controller
	domains [NumDomains]count
	periphs [NumPeripherals]count

	// parentHeld records whether a peripheral's 0->1 edge obtained a counted
	// reference on its parent domain, so the 1->0 edge returns exactly that.
	parentHeld [NumPeripherals]bool
}

// NewManager returns a manager with all counters at zero.
func NewManager(ctl Controller) *Manager {
	return &Manager{ctl: ctl}
}

// DomainCount returns the current dependency count of d.
func (m *Manager) DomainCount(d Domain) uint8 {
	if d >= NumDomains {
		return 0
	}
	return m.domains[d]
}

// PeripheralCount returns the current dependency count of p.
func (m *Manager) PeripheralCount(p Peripheral) uint8 {
	if p >= NumPeripherals {
		return 0
	}
	return m.periphs[p]
}

// AcquireDomain takes a reference on d, powering it on at the 0->1 edge.
func (m *Manager) AcquireDomain(d Domain) Handle {
	if !m.setDomain(d) {
		return Handle{}
	}
	return Handle{m: m, kind: kindDomain, id: uint8(d), held: true}
}

// AcquirePeripheral takes a reference on p, powering its parent domain and
// enabling its clock at the 0->1 edge.
func (m *Manager) AcquirePeripheral(p Peripheral) Handle {
	if !m.setPeriph(p) {
		return Handle{}
	}
	return Handle{m: m, kind: kindPeriph, id: uint8(p), held: true}
}

func (m *Manager) setDomain(d Domain) bool {
	if d >= NumDomains {
		return false
	}
	n, ok := mathx.SatInc(m.domains[d])
	if !ok {
		return false
	}
	m.domains[d] = n
	if n == 1 {
		m.ctl.PowerOn(d)
		for m.ctl.DomainStatus(d) != StatusOn {
		}
	}
	return true
}

func (m *Manager) clearDomain(d Domain) {
	n, ok := mathx.SatDec(m.domains[d])
	if !ok {
		return
	}
	m.domains[d] = n
	if n == 0 {
		m.ctl.PowerOff(d)
		for m.ctl.DomainStatus(d) != StatusOff {
		}
	}
}

func (m *Manager) setPeriph(p Peripheral) bool {
	if p >= NumPeripherals {
		return false
	}
	n, ok := mathx.SatInc(m.periphs[p])
	if !ok {
		return false
	}
	m.periphs[p] = n
	if n == 1 {
		m.parentHeld[p] = m.setDomain(parents[p])
		m.ctl.EnableClock(p)
		for !m.ctl.ClockSettled(p, true) {
		}
	}
	return true
}

func (m *Manager) clearPeriph(p Peripheral) {
	n, ok := mathx.SatDec(m.periphs[p])
	if !ok {
		return
	}
	m.periphs[p] = n
	if n == 0 {
		m.ctl.DisableClock(p)
		for !m.ctl.ClockSettled(p, false) {
		}
		if m.parentHeld[p] {
			m.parentHeld[p] = false
			m.clearDomain(parents[p])
		}
	}
}
