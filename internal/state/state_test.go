package state

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReturnsEmptyStoreWhenFileMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := Load(fs, "/home/user/.local/share/ddcutil/state.yaml")
	require.NoError(t, err)
	require.Empty(t, store.SleepMultipliers)
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/home/user/.local/share/ddcutil/state.yaml"

	store := empty()
	store.SleepMultipliers["DEL-U2720Q-1-ABC-1"] = 2.5
	store.Displays["DEL-U2720Q-1-ABC-1"] = DisplaySnapshot{Dispno: 1, MfgID: "DEL", ModelName: "U2720Q", Busno: 7}

	require.NoError(t, Save(fs, path, store))

	loaded, err := Load(fs, path)
	require.NoError(t, err)
	require.Equal(t, 2.5, loaded.SleepMultipliers["DEL-U2720Q-1-ABC-1"])
	require.Equal(t, 7, loaded.Displays["DEL-U2720Q-1-ABC-1"].Busno)
}
