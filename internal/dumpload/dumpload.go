// Package dumpload implements the .vcp dump/load file format: a
// line-oriented keyword format recording one display's identity and VCP
// feature values, loadable back onto the same (or a compatible) monitor.
//
// The format is an external artifact a user might hand-edit or diff
// between two dumps, so it stays line-oriented keyword text rather than
// being re-encoded as YAML the way internal/state's own caches are.
package dumpload

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Dump is one parsed or to-be-written .vcp file's contents.
type Dump struct {
	TimestampMillis int64
	TimestampText   string
	MfgID           string
	Model           string
	ProductCode     uint16
	SerialAscii     string
	EDID            string // hex-encoded raw EDID bytes
	VCP             map[byte]uint16
	VCPTable        map[byte]string // hex-encoded table feature values
}

func New() *Dump {
	return &Dump{VCP: map[byte]uint16{}, VCPTable: map[byte]string{}}
}

// Filename builds the default dump filename, "<model>-<serial>-<ts>.vcp"
// with spaces in model/serial replaced by underscores, timestamped to the
// second.
func Filename(model, serial string, ts time.Time) string {
	clean := func(s string) string { return strings.ReplaceAll(s, " ", "_") }
	return fmt.Sprintf("%s-%s-%s.vcp", clean(model), clean(serial), ts.Format("20060102-150405"))
}

// Write serialises d in keyword-per-line form.
func Write(w io.Writer, d *Dump) error {
	bw := bufio.NewWriter(w)
	line := func(format string, args ...any) { fmt.Fprintf(bw, format+"\n", args...) }

	line("TIMESTAMP_MILLIS %d", d.TimestampMillis)
	line("TIMESTAMP_TEXT %s", d.TimestampText)
	line("MFG_ID %s", d.MfgID)
	line("MODEL %s", d.Model)
	line("PRODUCT_CODE %d", d.ProductCode)
	line("SN %s", d.SerialAscii)
	if d.EDID != "" {
		line("EDID %s", d.EDID)
	}

	features := maps.Keys(d.VCP)
	slices.Sort(features)
	for _, f := range features {
		line("VCP %02X %d", f, d.VCP[f])
	}

	tableFeatures := maps.Keys(d.VCPTable)
	slices.Sort(tableFeatures)
	for _, f := range tableFeatures {
		line("VCP_TABLE %02X %s", f, d.VCPTable[f])
	}

	return bw.Flush()
}

// ParseError reports the offending line text and number for an unknown or
// malformed keyword, so the CLI can point the user at exactly what's wrong
// rather than failing the whole file with no context.
type ParseError struct {
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dumpload: line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// Parse reads a .vcp file, rejecting any line whose keyword it doesn't
// recognise.
func Parse(r io.Reader) (*Dump, []*ParseError) {
	d := New()
	var errs []*ParseError

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.SplitN(text, " ", 2)
		keyword := fields[0]
		rest := ""
		if len(fields) > 1 {
			rest = strings.TrimSpace(fields[1])
		}

		switch keyword {
		case "TIMESTAMP_MILLIS":
			v, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				errs = append(errs, &ParseError{lineNo, text, "bad timestamp"})
				continue
			}
			d.TimestampMillis = v
		case "TIMESTAMP_TEXT":
			d.TimestampText = rest
		case "MFG_ID":
			d.MfgID = rest
		case "MODEL":
			d.Model = rest
		case "PRODUCT_CODE":
			v, err := strconv.ParseUint(rest, 10, 16)
			if err != nil {
				errs = append(errs, &ParseError{lineNo, text, "bad product code"})
				continue
			}
			d.ProductCode = uint16(v)
		case "SN":
			d.SerialAscii = rest
		case "EDID":
			d.EDID = rest
		case "VCP":
			feature, value, err := parseVCPLine(rest)
			if err != nil {
				errs = append(errs, &ParseError{lineNo, text, err.Error()})
				continue
			}
			d.VCP[feature] = value
		case "VCP_TABLE":
			parts := strings.SplitN(rest, " ", 2)
			if len(parts) != 2 {
				errs = append(errs, &ParseError{lineNo, text, "malformed VCP_TABLE line"})
				continue
			}
			feature, err := strconv.ParseUint(parts[0], 16, 8)
			if err != nil {
				errs = append(errs, &ParseError{lineNo, text, "bad feature code"})
				continue
			}
			d.VCPTable[byte(feature)] = parts[1]
		default:
			errs = append(errs, &ParseError{lineNo, text, "unrecognised keyword"})
		}
	}

	return d, errs
}

func parseVCPLine(rest string) (feature byte, value uint16, err error) {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed VCP line")
	}
	f, err := strconv.ParseUint(parts[0], 16, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("bad feature code")
	}
	v, err := parseVCPValue(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad value")
	}
	return byte(f), uint16(v), nil
}

// parseVCPValue accepts both forms a VCP line's value field may take: a
// bare decimal integer, or a 0x/0X prefixed hex integer.
func parseVCPValue(s string) (uint64, error) {
	if rest, ok := stripHexPrefix(s); ok {
		return strconv.ParseUint(rest, 16, 16)
	}
	return strconv.ParseUint(s, 10, 16)
}

func stripHexPrefix(s string) (string, bool) {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:], true
	}
	return s, false
}
