package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/checks"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/mock"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/packet"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/sleep"
)

func vcpReplyFrame(feature, result byte, max, current uint16) []byte {
	body := []byte{
		packet.OpcodeVCPReply, result, feature, 0x00,
		byte(max >> 8), byte(max), byte(current >> 8), byte(current),
	}
	out := append([]byte{packet.ResponseSourceByte, byte(len(body)) | 0x80}, body...)
	sum := byte(0x6E)
	for _, b := range out {
		sum ^= b
	}
	return append(out, sum)
}

func newTask() Task {
	tr := mock.New(mock.Response{Reply: vcpReplyFrame(0x00, packet.ResultOK, 10, 5)})
	sleepData := model.NewPerDisplaySleepData()
	ref := &model.DisplayRef{}
	return Task{
		Ref: ref,
		Runner: checks.Runner{
			Transport: tr,
			Addr:      0x37,
			Stats:     map[model.OpClass]*model.TryStats{model.OpWriteRead: model.NewTryStats(model.OpWriteRead, 3)},
			SleepData: sleepData,
			Window:    sleep.NewWindow(sleepData),
		},
	}
}

func TestRun_SequentialBelowThreshold(t *testing.T) {
	tasks := []Task{newTask(), newTask()}
	Run(context.Background(), tasks, Options{Threshold: 3})
	for _, task := range tasks {
		require.True(t, task.Ref.Flags.Has(model.FlagDDCCommunicationWorking))
	}
}

func TestRun_ConcurrentAtOrAboveThreshold(t *testing.T) {
	tasks := []Task{newTask(), newTask(), newTask(), newTask()}
	Run(context.Background(), tasks, Options{Threshold: 3, Workers: 2})
	for _, task := range tasks {
		require.True(t, task.Ref.Flags.Has(model.FlagDDCCommunicationWorking))
	}
}
