package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/vcp"
	"github.com/VictorQueiroz/ddcutil/internal/dumpload"
	"github.com/spf13/cobra"
)

// dumpedFeatures is the set of non-table VCP features dumpvcp records,
// mirroring knownFeatures minus the two probe-only codes (0x00, 0x41) that
// carry no meaningful user-facing value and the MCCS version code (0xDF).
var dumpedFeatures = []byte{0x10, 0x12, 0x14, 0x60}

var dumpvcpCmd = &cobra.Command{
	Use:   "dumpvcp [filename]",
	Short: "Write the display's current VCP feature values to a .vcp file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDumpVCP,
}

var loadvcpCmd = &cobra.Command{
	Use:   "loadvcp <filename>",
	Short: "Replay a .vcp dump file's VCP feature values onto a display",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoadVCP,
}

func init() {
	rootCmd.AddCommand(dumpvcpCmd)
	rootCmd.AddCommand(loadvcpCmd)
}

func runDumpVCP(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sel, err := parseSelection()
	if err != nil {
		return err
	}
	reg, _ := discoverAll(ctx)
	ref, err := resolveDisplay(reg, sel)
	if err != nil {
		return err
	}

	session, closeFn, err := openSession(ctx, ref)
	if err != nil {
		return err
	}
	defer closeFn()

	now := time.Now()
	d := dumpload.New()
	d.TimestampMillis = now.UnixMilli()
	d.TimestampText = now.Format(time.RFC3339)
	if ref.Edid != nil {
		d.MfgID = ref.Edid.MfgID
		d.Model = ref.Edid.ModelName
		d.ProductCode = ref.Edid.ProductCode
		d.SerialAscii = ref.Edid.SerialAscii
		d.EDID = hexEDID(ref.Edid.Raw)
	}

	for _, feature := range dumpedFeatures {
		fields, errInfo := vcp.GetNonTable(ctx, session, feature)
		if errInfo != nil {
			if errInfo.Status.IsUnsupported() {
				continue
			}
			return errInfo
		}
		d.VCP[feature] = fields.Current
	}

	filename := dumpload.Filename(d.Model, d.SerialAscii, now)
	if len(args) == 1 {
		filename = args[0]
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("dumpvcp: %w", err)
	}
	defer f.Close()
	if err := dumpload.Write(f, d); err != nil {
		return fmt.Errorf("dumpvcp: %w", err)
	}
	fmt.Println(filename)
	return nil
}

func runLoadVCP(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("loadvcp: %w", err)
	}
	defer f.Close()

	d, parseErrs := dumpload.Parse(f)
	if len(parseErrs) > 0 {
		for _, e := range parseErrs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return fmt.Errorf("loadvcp: %d unrecognised line(s) in %s", len(parseErrs), args[0])
	}

	ctx := context.Background()
	sel, err := parseSelection()
	if err != nil {
		return err
	}
	reg, _ := discoverAll(ctx)
	ref, err := resolveDisplay(reg, sel)
	if err != nil {
		return err
	}
	if ref.Edid != nil && d.MfgID != "" {
		if ref.Edid.MfgID != d.MfgID || ref.Edid.SerialAscii != d.SerialAscii {
			return fmt.Errorf("loadvcp: dump is for %s/%s, selected display is %s/%s",
				d.MfgID, d.SerialAscii, ref.Edid.MfgID, ref.Edid.SerialAscii)
		}
	}

	session, closeFn, err := openSession(ctx, ref)
	if err != nil {
		return err
	}
	defer closeFn()

	for feature, value := range d.VCP {
		if errInfo := vcp.SetNonTable(ctx, session, feature, value, verifyWrite); errInfo != nil {
			return fmt.Errorf("loadvcp: VCP %02X: %w", feature, errInfo)
		}
	}
	for featureHex, dataHex := range d.VCPTable {
		data, err := hexDecode(dataHex)
		if err != nil {
			return fmt.Errorf("loadvcp: VCP_TABLE %02X: %w", featureHex, err)
		}
		if errInfo := vcp.SetTable(ctx, session, featureHex, data); errInfo != nil {
			return fmt.Errorf("loadvcp: VCP_TABLE %02X: %w", featureHex, errInfo)
		}
	}
	fmt.Printf("loaded %d VCP value(s) onto display %d\n", len(d.VCP)+len(d.VCPTable), ref.Dispno)
	return nil
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexDigit(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexDigit(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexDigit(b byte) (byte, error) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', nil
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, nil
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", b)
	}
}
