package model

// RefFlags is the quirks bitset initial checks attach to a DisplayRef:
// whether DDC communication works at all, and which convention the
// monitor uses to signal an unsupported feature.
type RefFlags uint32

const (
	FlagDDCCommunicationChecked RefFlags = 1 << iota
	FlagDDCCommunicationWorking
	FlagDDCIsMonitor
	FlagDDCIsMonitorChecked
	FlagDDCBusy
	FlagDDCUsesDDCFlagForUnsupported
	FlagDDCUsesNullResponseForUnsupported
	FlagDDCUsesMhMlShSlZeroForUnsupported
	FlagDDCDoesNotIndicateUnsupported
	FlagRemoved
	FlagTransient
)

func (f RefFlags) Has(bit RefFlags) bool { return f&bit != 0 }

func (f *RefFlags) Set(bit RefFlags)   { *f |= bit }
func (f *RefFlags) Clear(bit RefFlags) { *f &^= bit }

// Dispno sentinel values. Positive values are real, densely-assigned
// display numbers.
const (
	DispnoInvalid = -1
	DispnoPhantom = -2
	DispnoBusy    = -3
	DispnoRemoved = -4
)
