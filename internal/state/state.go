// Package state persists the three per-user caches: DSA sleep multipliers
// keyed by EDID id, the capabilities-string cache keyed by EDID id, and
// the last-detected displays cache. Filesystem access goes through afero
// so tests exercise the same code against an in-memory filesystem, and
// the file itself is YAML — these caches are ddcutil's own state, not an
// interchange format a user hand-edits like the dump/load .vcp files.
package state

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Store is the persisted-state file, keyed by EDID id throughout.
type Store struct {
	SleepMultipliers map[string]float64         `yaml:"sleep_multipliers"`
	Capabilities     map[string]string          `yaml:"capabilities"`
	Displays         map[string]DisplaySnapshot `yaml:"displays"`
}

// DisplaySnapshot is the last-detected-displays cache entry for one EDID id.
type DisplaySnapshot struct {
	Dispno    int    `yaml:"dispno"`
	MfgID     string `yaml:"mfg_id"`
	ModelName string `yaml:"model_name"`
	Busno     int    `yaml:"busno"`
}

func empty() *Store {
	return &Store{
		SleepMultipliers: map[string]float64{},
		Capabilities:     map[string]string{},
		Displays:         map[string]DisplaySnapshot{},
	}
}

// DefaultPath is the per-user state file location, under an XDG-style data
// directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "ddcutil", "state.yaml")
}

// Load reads the store at path, returning an empty Store if the file
// doesn't exist yet rather than an error — there is no persisted state on
// a brand new install.
func Load(fs afero.Fs, path string) (*Store, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return empty(), nil
		}
		return nil, err
	}
	store := empty()
	if err := yaml.Unmarshal(data, store); err != nil {
		return nil, err
	}
	if store.SleepMultipliers == nil {
		store.SleepMultipliers = map[string]float64{}
	}
	if store.Capabilities == nil {
		store.Capabilities = map[string]string{}
	}
	if store.Displays == nil {
		store.Displays = map[string]DisplaySnapshot{}
	}
	return store, nil
}

// Save writes the store to path, creating its parent directory tree first.
func Save(fs afero.Fs, path string, store *Store) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(store)
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0o644)
}
