package ddc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
)

func TestInit_SecondCallReportsAlreadyInitialised(t *testing.T) {
	require.Nil(t, Init("--enable-usb", syslogWarning))

	err := Init("", syslogWarning)
	require.NotNil(t, err)
	require.Equal(t, model.StatusAlreadyInitialised, err.Status)
}

func TestInit_RejectsUnknownOption(t *testing.T) {
	initMu.Lock()
	initialised = false
	initMu.Unlock()

	err := Init("--no-such-option", syslogWarning)
	require.NotNil(t, err)
	require.Equal(t, model.StatusBadConfigurationFile, err.Status)
}

func TestLastError_IsolatedPerRequestContext(t *testing.T) {
	a := NewRequestContext(context.Background(), "req-a")
	b := NewRequestContext(context.Background(), "req-b")

	errA := model.New(model.StatusIOError, "test", "a failed")
	RecordError(a, errA)

	require.Same(t, errA, LastError(a))
	require.Nil(t, LastError(b))
}

func TestLastError_FallsBackToSharedSlotWithoutRequestContext(t *testing.T) {
	ctx := context.Background()
	errShared := model.New(model.StatusBusy, "test", "shared")
	RecordError(ctx, errShared)
	require.Same(t, errShared, LastError(ctx))
}
