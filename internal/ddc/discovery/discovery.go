// Package discovery enumerates I2C buses (and, optionally, USB-HID nodes)
// and reads EDID at address 0x50 to produce candidate displays. It also
// exposes FilterPhantoms, the filter for the "phantom" duplicates DRM
// produces for disconnected-but-still-wired sinks — callers run it after
// initial checks have classified every candidate, not as part of Scan
// itself.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/i2c"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/usbhid"
)

// Buses whose kernel-reported adapter name marks them as SMBus or
// GPU-internal rather than a real display-facing I2C bus; probing an
// AMDGPU SMU bus can hang the GPU.
var ignorableAdapterNamePrefixes = []string{"SMBus", "AMDGPU SMU"}

// Options configures one discovery pass.
type Options struct {
	EnableUSB bool
	// EDIDReadSize restricts the EDID read length to one of 0 (skip EDID
	// entirely, bus-only detection), 128, or 256 bytes, backing the
	// --edid-read-size flag.
	EDIDReadSize int
}

// Candidate is one not-yet-checked display discovery produced; initial
// checks turn each into a fully classified DisplayRef.
type Candidate struct {
	Ref *model.DisplayRef
	Bus int // valid when Ref.Path.Mode == model.IOModeI2C
}

// Result is the outcome of one discovery pass.
type Result struct {
	Candidates []*Candidate
	BusErrors  []model.BusOpenError
}

// Scan enumerates I2C buses (and, if opts.EnableUSB, HID nodes), filters
// ignorable buses, and probes each survivor for EDID. Phantom collapsing
// happens later, via FilterPhantoms, once the candidates this returns have
// been run through initial checks.
func Scan(ctx context.Context, opts Options) Result {
	var result Result

	for _, busno := range i2c.EnumerateBuses() {
		if isIgnorableBus(busno) {
			continue
		}
		cand, busErr := probeBus(ctx, busno, opts)
		if busErr != nil {
			result.BusErrors = append(result.BusErrors, *busErr)
			continue
		}
		if cand != nil {
			result.Candidates = append(result.Candidates, cand)
		}
	}

	if opts.EnableUSB {
		for _, path := range usbhid.Enumerate() {
			devno := hidrawIndex(path)
			result.Candidates = append(result.Candidates, &Candidate{
				Ref: &model.DisplayRef{
					Path: model.USBPath(0, devno),
					USB:  &model.USBDetail{Device: devno, DevicePath: path},
				},
			})
		}
	}

	return result
}

// hidrawIndex extracts N from "/dev/hidrawN" so each USB candidate gets a
// distinct IOPath; the uniqueness invariant on (I/O path, EDID-id) pairs
// breaks if every hidraw node collapses onto the same path.
func hidrawIndex(path string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "hidraw"))
	if err != nil {
		return -1
	}
	return n
}

func isIgnorableBus(busno int) bool {
	name := adapterName(busno)
	return slices.ContainsFunc(ignorableAdapterNamePrefixes, func(prefix string) bool {
		return strings.HasPrefix(name, prefix)
	})
}

func adapterName(busno int) string {
	data, err := os.ReadFile(fmt.Sprintf("/sys/class/i2c-adapter/i2c-%d/name", busno))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func probeBus(ctx context.Context, busno int, opts Options) (*Candidate, *model.BusOpenError) {
	tr, err := i2c.Open(busno, i2c.StrategyFileIO)
	if err != nil {
		var info *model.ErrorInfo
		if asErrorInfo(err, &info) && info.Status == model.StatusNotFound {
			return nil, nil
		}
		return nil, &model.BusOpenError{Mode: model.IOModeI2C, Devno: busno, Detail: err.Error()}
	}
	defer tr.Close()

	bus := &model.BusDetail{
		Busno:        busno,
		DRMConnector: drmConnectorFor(busno),
	}
	bus.DRMStatus, bus.DRMEnabled = drmStatus(bus.DRMConnector)
	bus.EDIDExposed = drmEdidExposed(bus.DRMConnector)

	ref := &model.DisplayRef{
		Path: model.I2CPath(busno),
		Bus:  bus,
	}

	if opts.EDIDReadSize != 0 {
		edid, edidErr := readEDID(ctx, tr, opts.EDIDReadSize)
		if edidErr == nil {
			ref.Edid = edid
			bus.SupportsAddr50 = true
		}
	}

	return &Candidate{Ref: ref, Bus: busno}, nil
}

func asErrorInfo(err error, out **model.ErrorInfo) bool {
	info, ok := err.(*model.ErrorInfo)
	if ok {
		*out = info
	}
	return ok
}

func readEDID(ctx context.Context, tr i2c.Transport, size int) (*model.EDID, error) {
	buf := make([]byte, size)
	n, err := tr.Exchange(ctx, i2c.EDIDAddr, []byte{0x00}, buf, i2c.Pacing{})
	if err != nil {
		return nil, err
	}
	return ParseEDID(buf[:n])
}

// drmConnectorFor finds the /sys/class/drm/cardN-* connector directory
// whose i2c-N symlink matches busno, so phantom filtering can read that
// connector's reported status.
func drmConnectorFor(busno int) string {
	entries, err := filepath.Glob("/sys/class/drm/card*-*")
	if err != nil {
		return ""
	}
	want := fmt.Sprintf("i2c-%d", busno)
	for _, entry := range entries {
		link, err := os.Readlink(filepath.Join(entry, "ddc", "device"))
		if err != nil {
			continue
		}
		if strings.Contains(link, want) {
			return filepath.Base(entry)
		}
	}
	return ""
}

func drmStatus(connector string) (status, enabled string) {
	if connector == "" {
		return "", ""
	}
	base := filepath.Join("/sys/class/drm", connector)
	if data, err := os.ReadFile(filepath.Join(base, "status")); err == nil {
		status = strings.TrimSpace(string(data))
	}
	if data, err := os.ReadFile(filepath.Join(base, "enabled")); err == nil {
		enabled = strings.TrimSpace(string(data))
	}
	return status, enabled
}

// drmEdidExposed reports whether the kernel publishes a non-empty edid
// attribute for the connector. This is a distinct signal from the
// I2C-level EDID read at 0x50: a disconnected-but-wired sink can still
// answer on the bus while the connector's own edid attribute is empty,
// which is exactly the asymmetry phantom filtering keys on.
func drmEdidExposed(connector string) bool {
	if connector == "" {
		return false
	}
	data, err := os.ReadFile(filepath.Join("/sys/class/drm", connector, "edid"))
	return err == nil && len(data) > 0
}

// FilterPhantoms collapses duplicate observations of one physical display.
// It must run after the initial-checks state machine has classified every
// candidate (not from within Scan, which only ever sees candidates with
// FlagDDCCommunicationWorking unset, since that flag is the checks'
// output): for each pair of an invalid candidate and a working one whose
// EDID identity matches, if the invalid candidate's bus is simultaneously
// reported disconnected, disabled, and EDID-less by the kernel, it is
// marked a phantom of the working one.
func FilterPhantoms(candidates []*Candidate) {
	for _, invalid := range candidates {
		if invalid.Ref.Edid == nil || invalid.Ref.Flags.Has(model.FlagRemoved) {
			continue
		}
		if invalid.Ref.Flags.Has(model.FlagDDCCommunicationWorking) {
			continue
		}
		for _, working := range candidates {
			if working == invalid || working.Ref.Edid == nil {
				continue
			}
			if !working.Ref.Flags.Has(model.FlagDDCCommunicationWorking) {
				continue
			}
			if !model.IDsMatch(invalid.Ref.Edid, working.Ref.Edid) {
				continue
			}
			if !looksDisconnected(invalid) {
				continue
			}
			invalid.Ref.Dispno = model.DispnoPhantom
			invalid.Ref.ActualDisplay = working.Ref
			break
		}
	}
}

// looksDisconnected requires all three kernel-reported conditions, not any
// one of them: a disconnected status, a disabled attribute, and no EDID
// exposed for that bus. Any single off attribute
// (e.g. a working display whose DRM "enabled" flag briefly lags) must not
// be enough to misclassify a live display as a phantom.
func looksDisconnected(c *Candidate) bool {
	if c.Ref.Bus == nil {
		return false
	}
	b := c.Ref.Bus
	return b.DRMStatus == "disconnected" && b.DRMEnabled == "disabled" && !b.EDIDExposed
}
