package power

type handleKind uint8

const (
	kindDomain handleKind = iota + 1
	kindPeriph
)

// Handle is the release obligation for one acquisition.
//
// Release it on every exit path, usually with defer or from the owner's
// Close. Release is idempotent. A Handle must not be copied after
// acquisition; the copy would carry its own release.
type Handle struct {
	m    *Manager
	kind handleKind
	id   uint8
	held bool
}

// Held reports whether the handle still owns a counted reference.
func (h *Handle) Held() bool { return h.held }

// Release drops the reference. Calls after the first are no-ops.
func (h *Handle) Release() {
	if !h.held {
		return
	}
	h.held = false
	switch h.kind {
	case kindDomain:
		h.m.clearDomain(Domain(h.id))
	case kindPeriph:
		h.m.clearPeriph(Peripheral(h.id))
	}
}
