package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildEDID(mfg string, model string, product uint16, serialBinary uint32) []byte {
	raw := make([]byte, 128)
	copy(raw, edidHeader)

	mfgWord := (uint16(mfg[0]-'A'+1) << 10) | (uint16(mfg[1]-'A'+1) << 5) | uint16(mfg[2]-'A'+1)
	raw[8] = byte(mfgWord >> 8)
	raw[9] = byte(mfgWord)
	raw[10] = byte(product)
	raw[11] = byte(product >> 8)
	raw[12] = byte(serialBinary)
	raw[13] = byte(serialBinary >> 8)
	raw[14] = byte(serialBinary >> 16)
	raw[15] = byte(serialBinary >> 24)

	nameDesc := firstDescriptorAt
	raw[nameDesc+3] = descriptorNameTag
	copy(raw[nameDesc+5:], []byte(model))

	return raw
}

func TestParseEDID_DecodesIdentityFields(t *testing.T) {
	raw := buildEDID("DEL", "U2720Q", 0x1234, 0xABCD0001)
	edid, err := ParseEDID(raw)
	require.NoError(t, err)
	require.Equal(t, "DEL", edid.MfgID)
	require.Equal(t, "U2720Q", edid.ModelName)
	require.Equal(t, uint16(0x1234), edid.ProductCode)
	require.Equal(t, uint32(0xABCD0001), edid.SerialBinary)
}

func TestParseEDID_RejectsShortBlob(t *testing.T) {
	_, err := ParseEDID(make([]byte, 64))
	require.Error(t, err)
}

func TestParseEDID_RejectsMissingHeader(t *testing.T) {
	raw := buildEDID("DEL", "U2720Q", 1, 2)
	raw[0] = 0x11
	_, err := ParseEDID(raw)
	require.Error(t, err)
}
