package model

import (
	"sync"
)

// MCCSVersion is the cached VCP-version-of-record for a display, queried via
// get-VCP 0xDF once communication is confirmed working.
type MCCSVersion struct {
	Major, Minor uint8
	Queried      bool
}

// BusDetail carries transport-specific information a DisplayRef remembers
// about its I2C bus: whatever discovery learned while enumerating it.
type BusDetail struct {
	Busno           int
	DRMConnector    string
	DRMStatus       string // kernel-reported connector status, e.g. "disconnected"
	DRMEnabled      string // kernel-reported "enabled"/"disabled"
	EDIDExposed     bool   // whether the kernel currently exposes an edid attribute for this bus
	SupportsAddr50  bool
}

// USBDetail carries USB-HID specific information.
type USBDetail struct {
	Bus, Device int
	DevicePath  string
}

// DisplayRef is the stable, long-lived identity for a detected display.
// It is created during discovery and thereafter mutated only by the
// discovery/initial-checks pipeline; callers never construct one directly
// and the registry is the only owner.
type DisplayRef struct {
	mu sync.Mutex

	Path IOPath
	Edid *EDID

	Dispno int // > 0 real, or one of the Dispno* sentinels
	Flags  RefFlags

	MCCS MCCSVersion

	Bus *BusDetail
	USB *USBDetail

	// ActualDisplay is set only when Dispno == DispnoPhantom: it points at
	// the working DisplayRef this one is a duplicate observation of.
	ActualDisplay *DisplayRef

	// open is non-nil while exactly one DisplayHandle holds this ref open;
	// at most one handle may be open per DisplayRef at any time.
	open *DisplayHandle
}

// EdidID returns the identity key used for per-display persisted state.
func (d *DisplayRef) EdidID() string {
	if d == nil || d.Edid == nil {
		return ""
	}
	return d.Edid.ID()
}

// Lock/Unlock serialise access to a single DisplayRef's open-handle slot.
// The lock is held for the life of an open handle, so two goroutines can
// never interleave packets on one monitor.
func (d *DisplayRef) Lock()   { d.mu.Lock() }
func (d *DisplayRef) Unlock() { d.mu.Unlock() }

func (d *DisplayRef) SetOpenHandle(h *DisplayHandle) { d.open = h }
func (d *DisplayRef) OpenHandle() *DisplayHandle     { return d.open }

// IsWorking reports whether this ref was assigned a real display number:
// dispno > 0 iff communication works and the ref is not a phantom.
func (d *DisplayRef) IsWorking() bool {
	return d.Dispno > 0
}

// BusOpenError records a failed attempt to open a /dev/i2c-N or HID node for
// reasons other than "no such device", retained for diagnostic reporting.
type BusOpenError struct {
	Mode   IOMode
	Devno  int
	Errno  int
	Detail string
}
