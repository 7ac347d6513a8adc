// Package sleep implements the dynamic sleep algorithm: scaling the
// minimum DDC/CI inter-exchange delays per display based on observed
// retry pressure. Fixed delays either waste time on monitors that keep up
// or drop packets on monitors that don't; a per-display multiplier grows
// when a display is retrying often and shrinks back down when it isn't.
package sleep

import (
	"time"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
)

// Base delays a multiplier of 1.0 reproduces, chosen from the DDC/CI
// minimum-delay requirements with headroom for common hardware.
const (
	BaseAfterWrite = 50 * time.Millisecond
	BaseBeforeRead = 10 * time.Millisecond
	BaseAfterRead  = 0 * time.Millisecond
)

// windowSize is how many outcomes DSA accumulates before deciding whether
// to adjust the multiplier.
const windowSize = 10

// Thresholds on retry rate within a window that trigger an adjustment.
const (
	highRetryRate = 0.4
	lowRetryRate  = 0.05
)

const (
	growFactor   = 1.5
	shrinkFactor = 1 / 1.25
)

// Window accumulates per-display try outcomes and decides, once windowSize
// outcomes have landed, whether the multiplier should move. It wraps a
// model.PerDisplaySleepData but owns the decision logic the model package
// intentionally leaves out (model is data, sleep is policy).
type Window struct {
	data *model.PerDisplaySleepData

	ok      int
	retried int
}

func NewWindow(data *model.PerDisplaySleepData) *Window {
	return &Window{data: data}
}

// RecordOutcome tells the window about one completed operation: retried is
// true if any attempt beyond the first was needed to succeed, or if the
// operation ultimately failed.
func (w *Window) RecordOutcome(retried bool) {
	if w.data.IsExplicitOverride() {
		return
	}
	if retried {
		w.retried++
	} else {
		w.ok++
	}
	if w.ok+w.retried < windowSize {
		return
	}
	w.adjust()
	w.ok, w.retried = 0, 0
}

func (w *Window) adjust() {
	total := w.ok + w.retried
	if total == 0 {
		return
	}
	rate := float64(w.retried) / float64(total)

	current := w.data.CurrentMultiplier()
	var next float64
	switch {
	case rate >= highRetryRate:
		next = current * growFactor
	case rate <= lowRetryRate:
		next = current * shrinkFactor
	default:
		return
	}
	w.data.SetAdaptive(next)
	w.data.SetLastAdjustment(timeNow())
}

// timeNow exists only so tests can be deterministic without faking the
// whole package behind an interface; production always uses time.Now.
var timeNow = time.Now

// Pacing computes the DSA-scaled delay triple for one exchange, given the
// display's current multiplier.
func Pacing(data *model.PerDisplaySleepData) (afterWrite, beforeRead, afterRead time.Duration) {
	m := data.CurrentMultiplier()
	scale := func(base time.Duration) time.Duration {
		return time.Duration(float64(base) * m)
	}
	return scale(BaseAfterWrite), scale(BaseBeforeRead), scale(BaseAfterRead)
}
