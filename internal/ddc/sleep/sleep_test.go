package sleep

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
)

func TestWindow_GrowsOnHighRetryRate(t *testing.T) {
	data := model.NewPerDisplaySleepData()
	w := NewWindow(data)

	for i := 0; i < 5; i++ {
		w.RecordOutcome(true) // retried
	}
	for i := 0; i < 5; i++ {
		w.RecordOutcome(false)
	}

	require.Greater(t, data.CurrentMultiplier(), model.MultiplierDefault)
}

func TestWindow_ShrinksOnLowRetryRate(t *testing.T) {
	data := model.NewPerDisplaySleepData()
	data.SetAdaptive(2.0)
	w := NewWindow(data)

	for i := 0; i < windowSize; i++ {
		w.RecordOutcome(false)
	}

	require.Less(t, data.CurrentMultiplier(), 2.0)
}

func TestWindow_HoldsSteadyInMiddleBand(t *testing.T) {
	data := model.NewPerDisplaySleepData()
	w := NewWindow(data)

	for i := 0; i < 2; i++ {
		w.RecordOutcome(true)
	}
	for i := 0; i < 8; i++ {
		w.RecordOutcome(false)
	}

	require.Equal(t, model.MultiplierDefault, data.CurrentMultiplier())
}

func TestWindow_ExplicitOverrideDisablesAdaptation(t *testing.T) {
	data := model.NewPerDisplaySleepData()
	data.SetExplicit(3.0)
	w := NewWindow(data)

	for i := 0; i < windowSize; i++ {
		w.RecordOutcome(true)
	}

	require.Equal(t, 3.0, data.CurrentMultiplier())
}

func TestPacing_ScalesByMultiplier(t *testing.T) {
	data := model.NewPerDisplaySleepData()
	data.SetAdaptive(2.0)

	afterWrite, beforeRead, afterRead := Pacing(data)
	require.Equal(t, BaseAfterWrite*2, afterWrite)
	require.Equal(t, BaseBeforeRead*2, beforeRead)
	require.Equal(t, BaseAfterRead*2, afterRead)
}

func TestSetStarting_SeedsMultiplierButLeavesAdaptationEnabled(t *testing.T) {
	data := model.NewPerDisplaySleepData()
	data.SetStarting(3.0)
	require.Equal(t, 3.0, data.CurrentMultiplier())
	require.False(t, data.IsExplicitOverride())

	w := NewWindow(data)
	for i := 0; i < windowSize; i++ {
		w.RecordOutcome(false)
	}
	require.Less(t, data.CurrentMultiplier(), 3.0)
}

func TestSetStarting_NoOpAfterExplicitOverride(t *testing.T) {
	data := model.NewPerDisplaySleepData()
	data.SetExplicit(5.0)
	data.SetStarting(1.0)
	require.Equal(t, 5.0, data.CurrentMultiplier())
}

func TestMultiplier_ClampedToFloorAndCeiling(t *testing.T) {
	data := model.NewPerDisplaySleepData()
	data.SetAdaptive(100.0)
	require.Equal(t, model.MultiplierCeiling, data.CurrentMultiplier())

	data.SetAdaptive(0.0001)
	require.Equal(t, model.MultiplierFloor, data.CurrentMultiplier())
}
