package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/vcp"
	"github.com/spf13/cobra"
)

var verifyWrite bool

var getvcpCmd = &cobra.Command{
	Use:   "getvcp <feature>",
	Short: "Read a VCP feature value",
	Args:  cobra.ExactArgs(1),
	RunE:  runGetVCP,
}

var setvcpCmd = &cobra.Command{
	Use:   "setvcp <feature> [+|-] <value>",
	Short: "Write a VCP feature value",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runSetVCP,
}

func init() {
	rootCmd.AddCommand(getvcpCmd)
	rootCmd.AddCommand(setvcpCmd)
	setvcpCmd.Flags().BoolVar(&verifyWrite, "verify", true, "read the feature back after writing and fail if it wasn't retained")
}

// parseFeature accepts a bare hex byte ("10") or a "0x"-prefixed one.
func parseFeature(s string) (byte, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid feature code %q", s)
	}
	return byte(v), nil
}

func runGetVCP(cmd *cobra.Command, args []string) error {
	feature, err := parseFeature(args[0])
	if err != nil {
		return err
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

	session, closeFn, err := openSession(ctx, ref)
	if err != nil {
		return err
	}
	defer closeFn()

	fields, errInfo := vcp.GetNonTable(ctx, session, feature)
	if errInfo != nil {
		if errInfo.Status == model.StatusReportedUnsupported || errInfo.Status == model.StatusDeterminedUnsupported {
			fmt.Printf("VCP %02X is unsupported on this display\n", feature)
			return nil
		}
		return errInfo
	}
	fmt.Printf("VCP %02X current=%d max=%d\n", feature, fields.Current, fields.Max)
	return nil
}

func runSetVCP(cmd *cobra.Command, args []string) error {
	feature, err := parseFeature(args[0])
	if err != nil {
		return err
	}

	valueArg := args[len(args)-1]
	relative := byte(0)
	if len(args) == 3 {
		switch args[1] {
		case "+":
			relative = '+'
		case "-":
			relative = '-'
		default:
			return fmt.Errorf("expected + or - between feature and value, got %q", args[1])
		}
	}

	value, err := strconv.ParseUint(valueArg, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid value %q", valueArg)
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

	session, closeFn, err := openSession(ctx, ref)
	if err != nil {
		return err
	}
	defer closeFn()

	target := uint16(value)
	if relative != 0 {
		fields, errInfo := vcp.GetNonTable(ctx, session, feature)
		if errInfo != nil {
			return errInfo
		}
		if relative == '+' {
			target = fields.Current + uint16(value)
		} else {
			if uint16(value) > fields.Current {
				target = 0
			} else {
				target = fields.Current - uint16(value)
			}
		}
	}

	if errInfo := vcp.SetNonTable(ctx, session, feature, target, verifyWrite); errInfo != nil {
		return errInfo
	}
	fmt.Printf("VCP %02X set to %d\n", feature, target)
	return nil
}
