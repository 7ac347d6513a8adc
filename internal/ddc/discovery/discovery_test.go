package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
)

// candidateWithEdid builds a post-initial-checks candidate: disconnected
// candidates are invalid (FlagDDCCommunicationWorking unset) with all three
// kernel attributes reading "gone", live candidates are working with a
// connected, enabled, EDID-exposing bus — matching what initial checks
// actually leave behind on a ref by the time FilterPhantoms runs.
func candidateWithEdid(edid *model.EDID, disconnected bool) *Candidate {
	ref := &model.DisplayRef{
		Edid: edid,
		Bus: &model.BusDetail{
			DRMStatus:   map[bool]string{true: "disconnected", false: "connected"}[disconnected],
			DRMEnabled:  map[bool]string{true: "disabled", false: "enabled"}[disconnected],
			EDIDExposed: !disconnected,
		},
	}
	if !disconnected {
		ref.Flags.Set(model.FlagDDCCommunicationWorking)
	}
	return &Candidate{Ref: ref}
}

func TestFilterPhantoms_MarksDisconnectedDuplicateAsPhantom(t *testing.T) {
	edid := &model.EDID{MfgID: "DEL", ModelName: "U2720Q", ProductCode: 1, SerialAscii: "X", SerialBinary: 1}
	live := candidateWithEdid(edid, false)
	ghost := candidateWithEdid(edid, true)

	candidates := []*Candidate{ghost, live}
	FilterPhantoms(candidates)

	require.Equal(t, model.DispnoPhantom, ghost.Ref.Dispno)
	require.Same(t, live.Ref, ghost.Ref.ActualDisplay)
	require.NotEqual(t, model.DispnoPhantom, live.Ref.Dispno)
}

func TestFilterPhantoms_LeavesDistinctDisplaysAlone(t *testing.T) {
	a := candidateWithEdid(&model.EDID{MfgID: "DEL", SerialBinary: 1}, false)
	b := candidateWithEdid(&model.EDID{MfgID: "ACI", SerialBinary: 2}, false)

	FilterPhantoms([]*Candidate{a, b})

	require.NotEqual(t, model.DispnoPhantom, a.Ref.Dispno)
	require.NotEqual(t, model.DispnoPhantom, b.Ref.Dispno)
}

func TestFilterPhantoms_PartialDisconnectSignalIsNotEnough(t *testing.T) {
	edid := &model.EDID{MfgID: "DEL", SerialBinary: 1}
	live := candidateWithEdid(edid, false)

	// Invalid (not working), but only two of the three kernel conditions
	// read "gone" — the conjunction must reject it.
	almostGhost := candidateWithEdid(edid, true)
	almostGhost.Ref.Bus.DRMEnabled = "enabled"

	FilterPhantoms([]*Candidate{live, almostGhost})

	require.NotEqual(t, model.DispnoPhantom, almostGhost.Ref.Dispno)
}
