// Package checks implements the initial-checks state machine that
// determines, for one freshly discovered display, whether DDC/CI
// communication works and how the monitor signals "unsupported feature".
// Monitors disagree wildly on the latter: some set the protocol's
// unsupported bit, some answer with a null response, some zero-fill the
// value bytes, and a few indicate nothing at all.
//
// Each state splits into three phases — probe (issue the get-VCP),
// classify (turn the raw outcome into a symbolic classification), and
// apply (set the ref's flags) — driven by an explicit state enum and
// transition functions rather than one deeply nested branch.
package checks

import (
	"context"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/i2c"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/packet"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/retry"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/sleep"
	"github.com/VictorQueiroz/ddcutil/internal/log"
)

// state names the state machine's nodes.
type state int

const (
	stateGetFeature00 state = iota
	stateProbeZeroPattern
	stateProbeKnownFeature
	stateDone
)

// Feature codes the machine probes.
const (
	featureNull       = 0x00
	featureBrightness = 0x10 // expected to exist on any MCCS monitor
	featureUnused     = 0x41 // expected not to exist on any real monitor
	featureMCCSVer    = 0xDF
)

// classification is the symbolic shape classify() reduces a probe outcome
// to, decoupling "what happened" from "what flags that implies".
type classification int

const (
	classOK                  classification = iota // non-zero value, no unsupported marker
	classAllZero                                   // value decoded but all four bytes are zero
	classReportedUnsupported                       // monitor set the protocol's unsupported bit
	classNullResponse                              // every attempt (or the single attempt) got a null response
	classBusy
	classRetriesHeterogeneous
	classOther
)

// Runner bundles the per-display state retry.Do needs so Run doesn't take
// eight positional arguments.
type Runner struct {
	Transport i2c.Transport
	Addr      byte
	Stats     map[model.OpClass]*model.TryStats
	SleepData *model.PerDisplaySleepData
	Window    *sleep.Window
}

// stats returns the write-read TryStats for this runner, creating one with
// the default retry budget if the caller didn't supply one.
func (r Runner) stats() *model.TryStats {
	st, ok := r.Stats[model.OpWriteRead]
	if !ok {
		st = model.NewTryStats(model.OpWriteRead, model.DefaultMaxTries)
		if r.Stats != nil {
			r.Stats[model.OpWriteRead] = st
		}
	}
	return st
}

// Run executes the state machine against ref, mutating ref.Flags and, on
// success, ref.MCCS; ref.Dispno is left for the registry to assign from
// the resulting flags. It never returns an error: initial
// checks always terminate in a classified state, never a propagated
// failure.
func Run(ctx context.Context, r Runner, ref *model.DisplayRef) {
	ref.Flags.Set(model.FlagDDCCommunicationChecked)

	st := stateGetFeature00
	for st != stateDone {
		switch st {
		case stateGetFeature00:
			st = stepGetFeature00(ctx, r, ref)
		case stateProbeZeroPattern:
			st = stepProbeZeroPattern(ctx, r, ref)
		case stateProbeKnownFeature:
			st = stepProbeKnownFeature(ctx, r, ref)
		}
	}

	if ref.Flags.Has(model.FlagDDCCommunicationWorking) {
		queryMCCSVersion(ctx, r, ref)
	}
}

func stepGetFeature00(ctx context.Context, r Runner, ref *model.DisplayRef) state {
	fields, err := probeVCP(ctx, r, featureNull)
	switch classify(fields, err) {
	case classAllZero:
		return stateProbeZeroPattern
	case classOK:
		ref.Flags.Set(model.FlagDDCDoesNotIndicateUnsupported)
		ref.Flags.Set(model.FlagDDCCommunicationWorking)
		return stateDone
	case classReportedUnsupported:
		ref.Flags.Set(model.FlagDDCUsesDDCFlagForUnsupported)
		ref.Flags.Set(model.FlagDDCCommunicationWorking)
		return stateDone
	case classNullResponse:
		return stateProbeKnownFeature
	case classBusy:
		ref.Flags.Set(model.FlagDDCBusy)
		return stateDone
	case classRetriesHeterogeneous:
		ref.Flags.Clear(model.FlagDDCCommunicationWorking)
		return stateDone
	default:
		ref.Flags.Clear(model.FlagDDCCommunicationWorking)
		return stateDone
	}
}

func stepProbeKnownFeature(ctx context.Context, r Runner, ref *model.DisplayRef) state {
	fields, err := probeVCP(ctx, r, featureBrightness)
	switch classify(fields, err) {
	case classOK, classReportedUnsupported, classAllZero:
		ref.Flags.Set(model.FlagDDCUsesNullResponseForUnsupported)
		ref.Flags.Set(model.FlagDDCCommunicationWorking)
	default:
		ref.Flags.Clear(model.FlagDDCCommunicationWorking)
	}
	return stateDone
}

func stepProbeZeroPattern(ctx context.Context, r Runner, ref *model.DisplayRef) state {
	fields, err := probeVCP(ctx, r, featureUnused)
	switch classify(fields, err) {
	case classAllZero:
		ref.Flags.Set(model.FlagDDCUsesMhMlShSlZeroForUnsupported)
		ref.Flags.Set(model.FlagDDCCommunicationWorking)
	case classReportedUnsupported:
		ref.Flags.Set(model.FlagDDCUsesDDCFlagForUnsupported)
		ref.Flags.Set(model.FlagDDCCommunicationWorking)
	case classNullResponse:
		ref.Flags.Clear(model.FlagDDCCommunicationWorking)
	default:
		// A monitor that breaks every rule: neither zero-fill nor the
		// unsupported flag nor a null response. Fall back to the most
		// common real-world convention rather than declare it broken.
		log.Warnf("%s: unable to determine how monitor indicates unsupported features, assuming null response", ref.Path)
		ref.Flags.Set(model.FlagDDCUsesNullResponseForUnsupported)
		ref.Flags.Set(model.FlagDDCCommunicationWorking)
	}
	return stateDone
}

// classify reduces a probe outcome to the symbolic shape the transition
// functions branch on.
func classify(fields *packet.VCPReplyFields, err *model.ErrorInfo) classification {
	if err != nil {
		switch err.Status {
		case model.StatusBusy:
			return classBusy
		case model.StatusNullResponse, model.StatusAllResponsesNull:
			return classNullResponse
		case model.StatusRetries:
			return classRetriesHeterogeneous
		default:
			return classOther
		}
	}
	if fields.ResultCode == packet.ResultReportedUnsupported {
		return classReportedUnsupported
	}
	if fields.Max == 0 && fields.Current == 0 {
		return classAllZero
	}
	return classOK
}

func probeVCP(ctx context.Context, r Runner, feature byte) (*packet.VCPReplyFields, *model.ErrorInfo) {
	stats := r.stats()

	var fields *packet.VCPReplyFields
	result := retry.Do(ctx, "checks.getVCP", stats, r.SleepData, r.Window, func(ctx context.Context, pacing i2c.Pacing) error {
		req, err := packet.VCPRequest(feature)
		if err != nil {
			return err
		}
		buf := make([]byte, 32)
		n, err := r.Transport.Exchange(ctx, r.Addr, req, buf, pacing)
		if err != nil {
			return err
		}
		decoded, err := packet.DecodeResponse(buf[:n])
		if err != nil {
			return err
		}
		if decoded.IsNull {
			return model.New(model.StatusNullResponse, "checks.getVCP", "null response")
		}
		f, err := packet.DecodeVCPReply(decoded)
		if err != nil {
			return err
		}
		if f.Feature != feature {
			return model.New(model.StatusFeatureCodeMismatch, "checks.getVCP", "feature code echo mismatch")
		}
		fields = f
		return nil
	})
	return fields, result
}

func queryMCCSVersion(ctx context.Context, r Runner, ref *model.DisplayRef) {
	fields, err := probeVCP(ctx, r, featureMCCSVer)
	if err != nil || fields == nil {
		return
	}
	ref.MCCS = model.MCCSVersion{
		Major:   uint8(fields.Current >> 8),
		Minor:   uint8(fields.Current),
		Queried: true,
	}
}
