package dumpload

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFilename_ReplacesSpacesAndFormatsTimestamp(t *testing.T) {
	ts := time.Date(2026, 7, 29, 14, 5, 3, 0, time.UTC)
	require.Equal(t, "Dell_U2720Q-ABC_123-20260729-140503.vcp", Filename("Dell U2720Q", "ABC 123", ts))
}

func TestWriteThenParse_RoundTrips(t *testing.T) {
	d := New()
	d.MfgID = "DEL"
	d.Model = "U2720Q"
	d.ProductCode = 4660
	d.SerialAscii = "ABC123"
	d.VCP[0x10] = 80
	d.VCP[0x12] = 50
	d.VCPTable[0x14] = "deadbeef"

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, d))

	parsed, errs := Parse(&buf)
	require.Empty(t, errs)
	require.Equal(t, d.MfgID, parsed.MfgID)
	require.Equal(t, d.ProductCode, parsed.ProductCode)
	require.Equal(t, uint16(80), parsed.VCP[0x10])
	require.Equal(t, "deadbeef", parsed.VCPTable[0x14])
}

func TestParse_RejectsUnknownKeyword(t *testing.T) {
	input := "MFG_ID DEL\nBOGUS_KEYWORD foo\nVCP 10 50\n"
	_, errs := Parse(bytes.NewBufferString(input))
	require.Len(t, errs, 1)
	require.Equal(t, 2, errs[0].Line)
}

func TestParse_RejectsMalformedVCPValue(t *testing.T) {
	input := "VCP 10 notanumber\n"
	_, errs := Parse(bytes.NewBufferString(input))
	require.Len(t, errs, 1)
}

func TestParse_AcceptsHexVCPValue(t *testing.T) {
	input := "VCP 10 0x4B\nVCP 12 50\n"
	d, errs := Parse(bytes.NewBufferString(input))
	require.Empty(t, errs)
	require.Equal(t, uint16(0x4B), d.VCP[0x10])
	require.Equal(t, uint16(50), d.VCP[0x12])
}
