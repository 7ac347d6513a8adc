package model

import "fmt"

// EDID holds the identity fields parsed out of a 128/256-byte EDID blob
// read from I2C address 0x50. Only the fields the detection pipeline needs
// for identity and phantom-matching are kept; full EDID timing/descriptor
// parsing is a CLI-level concern (vcpinfo/capabilities), out of the core.
type EDID struct {
	MfgID        string // 3-letter manufacturer id, e.g. "DEL"
	ModelName    string
	ProductCode  uint16
	SerialAscii  string
	SerialBinary uint32
	Raw          []byte // the 128 or 256 raw bytes, for EDID-id hashing
}

// ID returns a stable identifier for this EDID, used as the registry key for
// per-display persisted state (DSA multipliers, capability cache).
func (e *EDID) ID() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s-%s-%d-%s-%d", e.MfgID, e.ModelName, e.ProductCode, e.SerialAscii, e.SerialBinary)
}

// IDsMatch is the identifier comparison used for phantom-display matching:
// all five identity fields must match, not a raw byte-for-byte EDID
// comparison (two EDIDs for the same physical display can differ in a
// single descriptor byte).
func IDsMatch(a, b *EDID) bool {
	if a == nil || b == nil {
		return false
	}
	return a.MfgID == b.MfgID &&
		a.ModelName == b.ModelName &&
		a.ProductCode == b.ProductCode &&
		a.SerialAscii == b.SerialAscii &&
		a.SerialBinary == b.SerialBinary
}
