// Package retry implements the bounded retry loop every I2C or USB-HID
// exchange runs through, classifying the outcome and feeding the dynamic
// sleep algorithm. Cheap monitors fail individual exchanges routinely; a
// single failure means nothing until the loop has either recovered or
// collected enough causes to say how the display is failing.
package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/i2c"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/sleep"
)

// Op is one DDC/CI exchange attempt. Implementations call into a
// i2c.Transport (or the USB-HID equivalent) using the pacing they're
// handed; retry.Do recomputes pacing from the display's current DSA
// multiplier before every attempt.
type Op func(ctx context.Context, pacing i2c.Pacing) error

// Do runs op up to stats.MaxTries() times, stopping early on success or on
// a non-retryable status, and reports the outcome to window so DSA can
// adapt. The returned error is nil on success, the non-retryable leaf error
// on short-circuit, or, once the tries are exhausted, a composite wrapping
// every attempt's leaf error as a Cause: StatusAllResponsesNull if every
// attempt got a null response, the shared status if every attempt failed
// with the same status, StatusRetries otherwise.
func Do(ctx context.Context, site string, stats *model.TryStats, sleepData *model.PerDisplaySleepData, window *sleep.Window, op Op) *model.ErrorInfo {
	maxTries := stats.MaxTries()
	var causes []*model.ErrorInfo

	for attempt := 1; attempt <= maxTries; attempt++ {
		afterWrite, beforeRead, afterRead := sleep.Pacing(sleepData)
		pacing := i2c.Pacing{AfterWrite: afterWrite, BeforeRead: beforeRead, AfterRead: afterRead}

		err := op(ctx, pacing)
		if err == nil {
			stats.RecordSuccess(attempt)
			window.RecordOutcome(attempt > 1)
			return nil
		}

		info := asErrorInfo(err, site)
		causes = append(causes, info)

		if !info.Status.Retryable() {
			stats.RecordFailure()
			window.RecordOutcome(true)
			return info
		}
	}

	stats.RecordFailure()
	window.RecordOutcome(true)

	status := model.StatusRetries
	switch homogeneous := homogeneousStatus(causes); {
	case allNullResponses(causes):
		status = model.StatusAllResponsesNull
	case homogeneous != statusUnset:
		status = homogeneous
	}
	return model.Wrap(status, site, fmt.Sprintf("exhausted %d tries", maxTries), causes...)
}

func allNullResponses(causes []*model.ErrorInfo) bool {
	if len(causes) == 0 {
		return false
	}
	for _, c := range causes {
		if c.Status != model.StatusNullResponse {
			return false
		}
	}
	return true
}

// statusUnset is a sentinel distinct from every real model.Status value,
// used only to signal "causes aren't homogeneous" from homogeneousStatus.
const statusUnset = model.Status(-1)

// homogeneousStatus backs the aggregation rule for uniform failures: if
// every attempt failed with the same status, the aggregate surfaces that
// status directly rather than the generic StatusRetries, so a monitor
// that returns bad-checksum on every attempt is reported as
// StatusBadChecksum, not a retries-exhausted composite that loses the
// specific failure mode.
func homogeneousStatus(causes []*model.ErrorInfo) model.Status {
	if len(causes) == 0 {
		return statusUnset
	}
	first := causes[0].Status
	for _, c := range causes[1:] {
		if c.Status != first {
			return statusUnset
		}
	}
	return first
}

func asErrorInfo(err error, site string) *model.ErrorInfo {
	var info *model.ErrorInfo
	if errors.As(err, &info) {
		return info
	}
	return model.Wrap(model.StatusIOError, site, err.Error())
}
