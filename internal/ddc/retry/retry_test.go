package retry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/i2c"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/mock"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/packet"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/sleep"
)

func newFixtures() (*model.TryStats, *model.PerDisplaySleepData, *sleep.Window) {
	stats := model.NewTryStats(model.OpWriteRead, 3)
	sleepData := model.NewPerDisplaySleepData()
	return stats, sleepData, sleep.NewWindow(sleepData)
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	stats, sleepData, window := newFixtures()
	tr := mock.New(mock.Response{Reply: []byte{0x01}})

	result := Do(context.Background(), "test.op", stats, sleepData, window, func(ctx context.Context, p i2c.Pacing) error {
		_, err := tr.Exchange(ctx, 0x37, []byte{1, 2, 3}, make([]byte, 1), p)
		return err
	})

	require.Nil(t, result)
	require.Equal(t, 1, stats.TotalCalls())
	require.Equal(t, 0, stats.Failed())
}

func TestDo_SucceedsAfterRetryableFailures(t *testing.T) {
	stats, sleepData, window := newFixtures()
	tr := mock.New(
		mock.Response{Err: model.New(model.StatusIOError, "mock", "transient")},
		mock.Response{Err: model.New(model.StatusIOError, "mock", "transient")},
		mock.Response{Reply: []byte{0x01}},
	)

	result := Do(context.Background(), "test.op", stats, sleepData, window, func(ctx context.Context, p i2c.Pacing) error {
		_, err := tr.Exchange(ctx, 0x37, nil, make([]byte, 1), p)
		return err
	})

	require.Nil(t, result)
	require.Equal(t, 1, stats.SucceededAtTry(3))
}

func TestDo_NonRetryableShortCircuits(t *testing.T) {
	stats, sleepData, window := newFixtures()
	tr := mock.New(mock.Response{Err: model.New(model.StatusPermissionDenied, "mock", "denied")})

	result := Do(context.Background(), "test.op", stats, sleepData, window, func(ctx context.Context, p i2c.Pacing) error {
		_, err := tr.Exchange(ctx, 0x37, nil, make([]byte, 1), p)
		return err
	})

	require.NotNil(t, result)
	require.Equal(t, model.StatusPermissionDenied, result.Status)
	require.Len(t, tr.Calls(), 1)
}

func TestDo_ExhaustsToRetriesComposite(t *testing.T) {
	stats, sleepData, window := newFixtures()
	tr := mock.New(
		mock.Response{Err: model.New(model.StatusIOError, "mock", "a")},
		mock.Response{Err: model.New(model.StatusShortRead, "mock", "b")},
		mock.Response{Err: model.New(model.StatusIOError, "mock", "c")},
	)

	result := Do(context.Background(), "test.op", stats, sleepData, window, func(ctx context.Context, p i2c.Pacing) error {
		_, err := tr.Exchange(ctx, 0x37, nil, make([]byte, 1), p)
		return err
	})

	require.NotNil(t, result)
	require.Equal(t, model.StatusRetries, result.Status)
	require.Len(t, result.Causes, 3)
	require.Equal(t, 1, stats.Failed())
	require.True(t, stats.Invariant())
}

func TestDo_ExhaustsToHomogeneousStatus(t *testing.T) {
	stats, sleepData, window := newFixtures()
	tr := mock.New(
		mock.Response{Err: model.New(model.StatusBadChecksum, "mock", "a")},
		mock.Response{Err: model.New(model.StatusBadChecksum, "mock", "b")},
		mock.Response{Err: model.New(model.StatusBadChecksum, "mock", "c")},
	)

	result := Do(context.Background(), "test.op", stats, sleepData, window, func(ctx context.Context, p i2c.Pacing) error {
		_, err := tr.Exchange(ctx, 0x37, nil, make([]byte, 1), p)
		return err
	})

	require.NotNil(t, result)
	require.Equal(t, model.StatusBadChecksum, result.Status)
	require.Len(t, result.Causes, 3)
}

func TestDo_ExhaustsToAllResponsesNull(t *testing.T) {
	stats, sleepData, window := newFixtures()
	tr := mock.New(
		mock.Response{Err: model.New(model.StatusNullResponse, "mock", "null")},
		mock.Response{Err: model.New(model.StatusNullResponse, "mock", "null")},
		mock.Response{Err: model.New(model.StatusNullResponse, "mock", "null")},
	)

	result := Do(context.Background(), "test.op", stats, sleepData, window, func(ctx context.Context, p i2c.Pacing) error {
		_, err := tr.Exchange(ctx, 0x37, nil, make([]byte, 1), p)
		return err
	})

	require.NotNil(t, result)
	require.Equal(t, model.StatusAllResponsesNull, result.Status)
}

func TestDo_EndToEndWithPacketCodec(t *testing.T) {
	stats, sleepData, window := newFixtures()

	reqBytes, err := packet.VCPRequest(0x10)
	require.NoError(t, err)

	replyBody := []byte{packet.OpcodeVCPReply, packet.ResultOK, 0x10, 0x00, 0x00, 100, 0x00, 42}
	reply := append([]byte{packet.ResponseSourceByte, byte(len(replyBody)) | 0x80}, replyBody...)
	reply = append(reply, checksumForTest(reply))

	tr := mock.New(mock.Response{Reply: reply})

	var fields *packet.VCPReplyFields
	result := Do(context.Background(), "vcp.get", stats, sleepData, window, func(ctx context.Context, p i2c.Pacing) error {
		buf := make([]byte, 32)
		n, err := tr.Exchange(ctx, 0x37, reqBytes, buf, p)
		if err != nil {
			return err
		}
		decoded, err := packet.DecodeResponse(buf[:n])
		if err != nil {
			return err
		}
		fields, err = packet.DecodeVCPReply(decoded)
		return err
	})

	require.Nil(t, result)
	require.Equal(t, uint16(42), fields.Current)
}

// checksumForTest mirrors the response checksum packet.go computes, so the
// fixture above builds a wire-valid frame without exporting the unexported
// checksum helper.
func checksumForTest(bytesBeforeChecksum []byte) byte {
	sum := byte(0x6E)
	for _, b := range bytesBeforeChecksum {
		sum ^= b
	}
	return sum
}
