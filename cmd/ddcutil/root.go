package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/checks"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/discovery"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/i2c"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/registry"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/scan"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/sleep"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/usbhid"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/vcp"
	"github.com/VictorQueiroz/ddcutil/internal/log"
	"github.com/VictorQueiroz/ddcutil/internal/state"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "ddcutil",
	Short: "Query and control monitors over DDC/CI",
	Long:  "ddcutil talks DDC/CI to monitors over I2C (and, optionally, USB-HID) to read and set VCP features such as brightness and input source.",
}

// selection holds the parsed, mutually-exclusive display-selection flags;
// exactly zero or one of its fields should be non-zero once
// parseSelection validates it.
type selection struct {
	display int
	bus     int
	hiddev  int
	usbBus  int
	usbDev  int
	edidHex string
	mfg     string
	model   string
	sn      string
}

var (
	selDisplay int
	selBus     int
	selHiddev  int
	selUSB     string
	selEDID    string
	selMfg     string
	selModel   string
	selSN      string

	flagMaxTries        string
	flagSleepMultiplier float64
	flagEnableDynSleep  bool
	flagDisableDynSleep bool
	flagEDIDReadSize    int
	flagEnableUSB       bool
	flagVerbose         bool
)

// addSelectionFlags registers the mutually-exclusive display-selection
// flags on fs.
func addSelectionFlags(fs *pflag.FlagSet) {
	fs.IntVar(&selDisplay, "display", 0, "select display by dispno")
	fs.IntVar(&selBus, "bus", 0, "select display by I2C bus number")
	fs.IntVar(&selHiddev, "hiddev", 0, "select display by HID device index")
	fs.StringVar(&selUSB, "usb", "", "select display by USB bus.device, e.g. 1.4")
	fs.StringVar(&selEDID, "edid", "", "select display by 256-hex-digit EDID")
	fs.StringVar(&selMfg, "mfg", "", "select display by 3-letter manufacturer id")
	fs.StringVar(&selModel, "model", "", "select display by model name")
	fs.StringVar(&selSN, "sn", "", "select display by serial number")
}

// addTuningFlags registers the retry, sleep, and detection tuning flags
// on fs.
func addTuningFlags(fs *pflag.FlagSet) {
	fs.StringVar(&flagMaxTries, "maxtries", "", "retry budgets A,B,C (write-only,write-read,multi-part); use . to keep a field's default")
	fs.Float64Var(&flagSleepMultiplier, "sleep-multiplier", 0, "fix the DSA sleep multiplier instead of letting it adapt")
	fs.BoolVar(&flagEnableDynSleep, "enable-dynamic-sleep", false, "enable the dynamic sleep algorithm (default)")
	fs.BoolVar(&flagDisableDynSleep, "disable-dynamic-sleep", false, "disable the dynamic sleep algorithm")
	fs.IntVar(&flagEDIDReadSize, "edid-read-size", 256, "EDID bytes to read during detection: 0, 128, or 256")
	fs.BoolVar(&flagEnableUSB, "enable-usb", false, "also probe USB-HID monitors")
	fs.BoolVar(&flagVerbose, "verbose", false, "print the full error cause tree on failure")
}

func init() {
	addSelectionFlags(rootCmd.PersistentFlags())
	addTuningFlags(rootCmd.PersistentFlags())

	rootCmd.SetHelpTemplate(`{{.Long}}

Usage:
  {{.UseLine}}

{{if .HasAvailableSubCommands}}Available Commands:{{range .Commands}}
  {{rpad .Name .NamePadding}} {{.Short}}{{end}}{{end}}

Flags:
{{.LocalFlags.FlagUsages}}
`)
}

// Execute runs the root command, translating any returned error into a
// single-line summary (plus the full cause trace under --verbose) and a
// 0/1 exit code.
func Execute() {
	if os.Getenv("DDCUTIL_DEBUG_LIBINIT") != "" || os.Getenv("DDCUTIL_DEBUG_PARSE") != "" {
		log.SetLevel(charmlog.DebugLevel)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ddcutil:", err)
		if flagVerbose {
			if info, ok := err.(*model.ErrorInfo); ok {
				fmt.Fprint(os.Stderr, info.Pretty())
			}
		}
		os.Exit(1)
	}
}

// parseSelection validates that at most one selection mechanism is in use
// and normalises --usb into bus/device integers.
func parseSelection() (selection, error) {
	var sel selection
	sel.display = selDisplay
	sel.bus = selBus
	sel.hiddev = selHiddev
	sel.edidHex = selEDID
	sel.mfg = selMfg
	sel.model = selModel
	sel.sn = selSN

	count := 0
	if sel.display != 0 {
		count++
	}
	if sel.bus != 0 {
		count++
	}
	if sel.hiddev != 0 {
		count++
	}
	if selUSB != "" {
		parts := strings.SplitN(selUSB, ".", 2)
		if len(parts) != 2 {
			return sel, fmt.Errorf("--usb must be B.D, e.g. 1.4")
		}
		b, err1 := strconv.Atoi(parts[0])
		d, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return sel, fmt.Errorf("--usb must be B.D, e.g. 1.4")
		}
		sel.usbBus, sel.usbDev = b, d
		count++
	}
	if sel.edidHex != "" {
		count++
	}
	if sel.mfg != "" || sel.model != "" || sel.sn != "" {
		count++
	}
	if count > 1 {
		return sel, fmt.Errorf("--display, --bus, --hiddev, --usb, --edid, and --mfg/--model/--sn are mutually exclusive")
	}
	if flagEDIDReadSize != 0 && flagEDIDReadSize != 128 && flagEDIDReadSize != 256 {
		return sel, fmt.Errorf("--edid-read-size must be 0, 128, or 256")
	}
	if flagSleepMultiplier < 0 || flagSleepMultiplier >= 100 {
		return sel, fmt.Errorf("--sleep-multiplier must be in [0, 100)")
	}
	return sel, nil
}

// maxTries parses "--maxtries A,B,C" into the per-op-class retry budgets;
// a "." field keeps that class's default. Returns nil if the flag wasn't
// set.
func maxTries() (map[model.OpClass]int, error) {
	if flagMaxTries == "" {
		return nil, nil
	}
	fields := strings.Split(flagMaxTries, ",")
	if len(fields) != 3 {
		return nil, fmt.Errorf("--maxtries needs exactly 3 comma-separated fields (write-only,write-read,multi-part)")
	}
	// The third field is the multi-part budget, shared by capabilities
	// fragments and table segments.
	classes := [][]model.OpClass{
		{model.OpWriteOnly},
		{model.OpWriteRead},
		{model.OpCapability, model.OpTable},
	}
	out := map[model.OpClass]int{}
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "." {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("--maxtries field %d: %q is not an integer or '.'", i+1, f)
		}
		if n < 0 || n > model.MaxMaxTries {
			return nil, fmt.Errorf("--maxtries field %d: %d out of range 0..%d", i+1, n, model.MaxMaxTries)
		}
		for _, class := range classes[i] {
			out[class] = n
		}
	}
	return out, nil
}

// discoverAll runs a full discovery + initial-checks + registry population
// pass, the same sequence the `detect` command, and every command that
// needs to resolve a display by anything other than a raw --bus number,
// drives. The returned BusOpenErrors are the nodes that failed to open for
// reasons other than "no device", retained for diagnostic reporting.
func discoverAll(ctx context.Context) (*registry.Registry, []model.BusOpenError) {
	result := discovery.Scan(ctx, discovery.Options{
		EnableUSB:    flagEnableUSB,
		EDIDReadSize: flagEDIDReadSize,
	})

	tasks := make([]scan.Task, 0, len(result.Candidates))
	for _, cand := range result.Candidates {
		if cand.Ref.Path.Mode != model.IOModeI2C {
			// USB-HID candidates don't speak the I2C initial-checks
			// protocol; a working feature report stands in for the full
			// state machine.
			cand.Ref.Flags.Set(model.FlagDDCCommunicationChecked)
			if cand.Ref.USB != nil && usbhid.ProbeMonitor(ctx, cand.Ref.USB.DevicePath) == nil {
				cand.Ref.Flags.Set(model.FlagDDCCommunicationWorking)
			}
			continue
		}
		tr, err := i2c.Open(cand.Bus, i2c.StrategyFileIO)
		if err != nil {
			continue
		}
		sleepData := model.NewPerDisplaySleepData()
		tasks = append(tasks, scan.Task{Ref: cand.Ref, Runner: checks.Runner{
			Transport: tr,
			Addr:      i2c.DDCCIAddr,
			Stats:     map[model.OpClass]*model.TryStats{},
			SleepData: sleepData,
			Window:    sleep.NewWindow(sleepData),
		}})
	}

	scan.Run(ctx, tasks, scan.Options{})
	for _, task := range tasks {
		_ = task.Runner.Transport.Close()
	}
	discovery.FilterPhantoms(result.Candidates)

	reg := registry.New()
	refs := make([]*model.DisplayRef, 0, len(result.Candidates))
	for _, cand := range result.Candidates {
		refs = append(refs, cand.Ref)
	}
	reg.Populate(refs)
	return reg, result.BusErrors
}

// resolveDisplay finds the one DisplayRef matching sel among reg's refs, the
// "find by --display/--bus/--edid/--mfg+model+sn" step every command that
// targets a single display needs.
func resolveDisplay(reg *registry.Registry, sel selection) (*model.DisplayRef, error) {
	if sel.display != 0 {
		ref, ok := reg.ByDispno(sel.display)
		if !ok {
			return nil, fmt.Errorf("no display with --display %d", sel.display)
		}
		return ref, nil
	}
	for _, ref := range reg.All() {
		if sel.bus != 0 && ref.Path.Mode == model.IOModeI2C && ref.Path.I2CBusno == sel.bus {
			return ref, nil
		}
		if sel.hiddev != 0 && ref.Path.Mode == model.IOModeUSB && ref.Path.USBDevice == sel.hiddev {
			return ref, nil
		}
		if sel.usbBus != 0 && ref.Path.Mode == model.IOModeUSB &&
			ref.Path.USBBus == sel.usbBus && ref.Path.USBDevice == sel.usbDev {
			return ref, nil
		}
		if sel.edidHex != "" && ref.Edid != nil && strings.EqualFold(hexEDID(ref.Edid.Raw), sel.edidHex) {
			return ref, nil
		}
		if sel.mfg != "" || sel.model != "" || sel.sn != "" {
			if ref.Edid == nil {
				continue
			}
			if sel.mfg != "" && ref.Edid.MfgID != sel.mfg {
				continue
			}
			if sel.model != "" && ref.Edid.ModelName != sel.model {
				continue
			}
			if sel.sn != "" && ref.Edid.SerialAscii != sel.sn {
				continue
			}
			return ref, nil
		}
	}
	if sel.display == 0 && sel.bus == 0 && sel.hiddev == 0 && sel.usbBus == 0 &&
		sel.edidHex == "" && sel.mfg == "" && sel.model == "" && sel.sn == "" {
		if refs := reg.Working(); len(refs) == 1 {
			return refs[0], nil
		}
		return nil, fmt.Errorf("no display selected and more than one display detected; use --display, --bus, or --edid")
	}
	return nil, fmt.Errorf("no display matched the given selection")
}

func hexEDID(raw []byte) string {
	const hexdigits = "0123456789abcdef"
	b := make([]byte, len(raw)*2)
	for i, v := range raw {
		b[2*i] = hexdigits[v>>4]
		b[2*i+1] = hexdigits[v&0xf]
	}
	return string(b)
}

// openSession opens ref's transport and wraps it in a vcp.Session, loading
// its DSA multiplier from persisted state and applying --sleep-multiplier /
// --enable-dynamic-sleep / --disable-dynamic-sleep / --maxtries. The ref's
// exclusive lock is held for the life of the session, so two callers can
// never interleave packets on one monitor; the returned close func
// releases it and persists any DSA adjustment the session made.
func openSession(ctx context.Context, ref *model.DisplayRef) (*vcp.Session, func() error, error) {
	if ref.Path.Mode != model.IOModeI2C {
		return nil, nil, fmt.Errorf("only I2C-attached displays are supported by this build")
	}
	ref.Lock()
	tr, err := i2c.Open(ref.Path.I2CBusno, i2c.StrategyFileIO)
	if err != nil {
		ref.Unlock()
		return nil, nil, err
	}
	handle := model.NewDisplayHandle(ref, tr)
	ref.SetOpenHandle(handle)

	fs := afero.NewOsFs()
	path := state.DefaultPath()
	store, err := state.Load(fs, path)
	if err != nil {
		store = nil
	}

	sleepData := model.NewPerDisplaySleepData()
	edidID := ref.EdidID()
	if store != nil {
		if m, ok := store.SleepMultipliers[edidID]; ok {
			sleepData.SetStarting(m)
		}
	}
	if flagSleepMultiplier > 0 {
		sleepData.SetExplicit(flagSleepMultiplier)
	}
	if flagDisableDynSleep {
		sleepData.SetExplicit(sleepData.CurrentMultiplier())
	}
	if flagEnableDynSleep {
		sleepData.ClearExplicit()
	}

	stats := map[model.OpClass]*model.TryStats{}
	tries, err := maxTries()
	if err != nil {
		_ = handle.Close()
		ref.Unlock()
		return nil, nil, err
	}
	for class, n := range tries {
		stats[class] = model.NewTryStats(class, n)
	}

	session := &vcp.Session{
		Transport: tr,
		Addr:      i2c.DDCCIAddr,
		Stats:     stats,
		SleepData: sleepData,
		Window:    sleep.NewWindow(sleepData),
	}

	closeFn := func() error {
		if store != nil && edidID != "" {
			store.SleepMultipliers[edidID] = sleepData.CurrentMultiplier()
			_ = state.Save(fs, path, store)
		}
		err := handle.Close()
		ref.Unlock()
		return err
	}
	return session, closeFn, nil
}
