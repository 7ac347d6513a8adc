package main

import (
	"context"
	"fmt"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
	"github.com/VictorQueiroz/ddcutil/internal/log"
	"github.com/VictorQueiroz/ddcutil/internal/state"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	invalidStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Discover attached displays",
	RunE:  runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.SetHelpTemplate(`Discover attached displays and report their identity and dispno.

Usage:
  {{.UseLine}}

Flags:
{{.LocalFlags.FlagUsages}}
`)
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reg, busErrs := discoverAll(ctx)

	for _, be := range busErrs {
		fmt.Printf("could not open %s: %s\n", model.IOPath{Mode: be.Mode, I2CBusno: be.Devno}, be.Detail)
	}

	refs := reg.All()
	if len(refs) == 0 {
		fmt.Println("No displays found.")
		return nil
	}

	saveDisplaysCache(refs)

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-4s %-8s %-20s %-10s %s", "DISP", "I2C BUS", "MODEL", "MFG", "STATUS")))
	for _, ref := range refs {
		status := "invalid"
		style := invalidStyle
		if ref.Flags.Has(model.FlagRemoved) {
			status = "removed"
		} else if ref.Dispno == model.DispnoPhantom {
			status = "phantom"
		} else if ref.Dispno == model.DispnoBusy {
			status = "busy"
		} else if ref.IsWorking() {
			status = "working"
			style = workingStyle
		}

		dispno := "-"
		if ref.Dispno > 0 {
			dispno = fmt.Sprintf("%d", ref.Dispno)
		}
		bus := "-"
		if ref.Path.Mode == model.IOModeI2C {
			bus = fmt.Sprintf("%d", ref.Path.I2CBusno)
		}
		modelName, mfg := "-", "-"
		if ref.Edid != nil {
			modelName, mfg = ref.Edid.ModelName, ref.Edid.MfgID
		}
		fmt.Println(style.Render(fmt.Sprintf("%-4s %-8s %-20s %-10s %s", dispno, bus, modelName, mfg, status)))
	}
	return nil
}

// saveDisplaysCache records the just-detected topology in the per-user
// state file, keyed by EDID id.
func saveDisplaysCache(refs []*model.DisplayRef) {
	fs := afero.NewOsFs()
	path := state.DefaultPath()
	store, err := state.Load(fs, path)
	if err != nil {
		log.Debug("displays cache not updated", "err", err)
		return
	}
	for _, ref := range refs {
		id := ref.EdidID()
		if id == "" {
			continue
		}
		snap := state.DisplaySnapshot{Dispno: ref.Dispno}
		if ref.Edid != nil {
			snap.MfgID = ref.Edid.MfgID
			snap.ModelName = ref.Edid.ModelName
		}
		if ref.Bus != nil {
			snap.Busno = ref.Bus.Busno
		}
		store.Displays[id] = snap
	}
	if err := state.Save(fs, path, store); err != nil {
		log.Debug("displays cache not updated", "err", err)
	}
}
