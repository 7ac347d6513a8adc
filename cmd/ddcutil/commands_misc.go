package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/i2c"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
	"github.com/spf13/cobra"
)

var environmentCmd = &cobra.Command{
	Use:   "environment",
	Short: "Report the runtime environment ddcutil sees",
	RunE:  runEnvironment,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe every candidate bus and report raw initial-checks results",
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(environmentCmd)
	rootCmd.AddCommand(probeCmd)
}

func runEnvironment(cmd *cobra.Command, args []string) error {
	fmt.Printf("ddcutil (go) running on %s/%s\n", runtime.GOOS, runtime.GOARCH)

	buses := i2c.EnumerateBuses()
	fmt.Printf("I2C buses found: %d\n", len(buses))
	for _, b := range buses {
		fmt.Printf("  /dev/i2c-%d\n", b)
	}

	fmt.Println("USB-HID detection:", enabledOrNot(flagEnableUSB))
	fmt.Println("DDCUTIL_DEBUG_LIBINIT:", envOrUnset("DDCUTIL_DEBUG_LIBINIT"))
	fmt.Println("DDCUTIL_DEBUG_PARSE:", envOrUnset("DDCUTIL_DEBUG_PARSE"))
	return nil
}

func enabledOrNot(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func envOrUnset(name string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return "(unset)"
}

// runProbe drives the same discovery + initial-checks pipeline `detect`
// does, but prints the raw quirk flags and dispno sentinel for every
// candidate rather than a user-friendly summary.
func runProbe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reg, busErrs := discoverAll(ctx)

	for _, be := range busErrs {
		fmt.Printf("%s: open failed: %s\n", model.IOPath{Mode: be.Mode, I2CBusno: be.Devno}, be.Detail)
	}

	for _, ref := range reg.All() {
		fmt.Printf("%s: dispno=%s flags=%s\n", ref.Path.String(), dispnoLabel(ref.Dispno), flagsLabel(ref.Flags))
		if ref.Edid != nil {
			fmt.Printf("  edid: mfg=%s model=%s product=%d serial=%s\n",
				ref.Edid.MfgID, ref.Edid.ModelName, ref.Edid.ProductCode, ref.Edid.SerialAscii)
		}
		if ref.MCCS.Queried {
			fmt.Printf("  mccs version: %d.%d\n", ref.MCCS.Major, ref.MCCS.Minor)
		}
	}
	return nil
}

func dispnoLabel(dispno int) string {
	switch dispno {
	case model.DispnoInvalid:
		return "INVALID"
	case model.DispnoPhantom:
		return "PHANTOM"
	case model.DispnoBusy:
		return "BUSY"
	case model.DispnoRemoved:
		return "REMOVED"
	default:
		return fmt.Sprintf("%d", dispno)
	}
}

func flagsLabel(flags model.RefFlags) string {
	named := []struct {
		bit  model.RefFlags
		name string
	}{
		{model.FlagDDCCommunicationChecked, "DDC_COMMUNICATION_CHECKED"},
		{model.FlagDDCCommunicationWorking, "DDC_COMMUNICATION_WORKING"},
		{model.FlagDDCBusy, "DDC_BUSY"},
		{model.FlagDDCUsesDDCFlagForUnsupported, "USES_DDC_FLAG_FOR_UNSUPPORTED"},
		{model.FlagDDCUsesNullResponseForUnsupported, "USES_NULL_RESPONSE_FOR_UNSUPPORTED"},
		{model.FlagDDCUsesMhMlShSlZeroForUnsupported, "USES_MH_ML_SH_SL_ZERO_FOR_UNSUPPORTED"},
		{model.FlagDDCDoesNotIndicateUnsupported, "DOES_NOT_INDICATE_UNSUPPORTED"},
		{model.FlagRemoved, "REMOVED"},
	}
	out := ""
	for _, n := range named {
		if flags.Has(n.bit) {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "(none)"
	}
	return out
}
