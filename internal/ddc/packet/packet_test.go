package packet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
)

func TestEncodeRequest_ChecksumInvariant(t *testing.T) {
	raw, err := VCPRequest(0x10)
	require.NoError(t, err)

	// final byte is the XOR checksum over every preceding byte, seeded
	// with the request pseudo-address.
	want := checksum(requestChecksumSeed, raw[:len(raw)-1]...)
	require.Equal(t, want, raw[len(raw)-1])
	require.Equal(t, byte(RequestStartByte), raw[0])
}

func TestEncodeDecode_VCPRoundTrip(t *testing.T) {
	req, err := VCPRequest(0x10)
	require.NoError(t, err)
	require.Equal(t, []byte{0x51, 0x82, 0x01, 0x10}, append([]byte{}, req[:4]...))

	reply := buildVCPReply(t, 0x10, ResultOK, 0x00, 100, 75)
	decoded, err := DecodeResponse(reply)
	require.NoError(t, err)
	require.False(t, decoded.IsNull)

	fields, err := DecodeVCPReply(decoded)
	require.NoError(t, err)
	require.Equal(t, byte(0x10), fields.Feature)
	require.Equal(t, uint16(100), fields.Max)
	require.Equal(t, uint16(75), fields.Current)
}

func TestDecodeResponse_BadChecksum(t *testing.T) {
	reply := buildVCPReply(t, 0x10, ResultOK, 0x00, 100, 75)
	reply[len(reply)-1] ^= 0xFF
	_, err := DecodeResponse(reply)
	require.Error(t, err)

	// The decode error carries the protocol-layer status so the retry
	// classifier aggregates a run of corrupt replies as bad-checksum, not
	// as a generic I/O failure.
	info, ok := err.(*model.ErrorInfo)
	require.True(t, ok)
	require.Equal(t, model.StatusBadChecksum, info.Status)
}

func TestDecodeResponse_ShortPacket(t *testing.T) {
	_, err := DecodeResponse([]byte{0x6e, 0x82})
	require.Error(t, err)

	info, ok := err.(*model.ErrorInfo)
	require.True(t, ok)
	require.Equal(t, model.StatusShortPacket, info.Status)
}

func TestDecodeResponse_NullResponse(t *testing.T) {
	decoded, err := DecodeResponse(NullResponsePattern)
	require.NoError(t, err)
	require.True(t, decoded.IsNull)
}

func TestDecodeVCPReply_WrongOpcode(t *testing.T) {
	decoded := &DecodedResponse{Opcode: OpcodeCapabilitiesReply, Payload: []byte{1, 2, 3, 4, 5, 6, 7}}
	_, err := DecodeVCPReply(decoded)
	require.Error(t, err)
}

func TestCapabilitiesRequest_EncodesOffset(t *testing.T) {
	raw, err := CapabilitiesRequest(0x0102)
	require.NoError(t, err)
	require.Equal(t, byte(OpcodeCapabilitiesRequest), raw[2])
	require.Equal(t, byte(0x01), raw[3])
	require.Equal(t, byte(0x02), raw[4])
}

func buildVCPReply(t *testing.T, feature, result, typeCode byte, max, current uint16) []byte {
	t.Helper()
	body := []byte{
		OpcodeVCPReply,
		result,
		feature,
		typeCode,
		byte(max >> 8), byte(max),
		byte(current >> 8), byte(current),
	}
	out := make([]byte, 0, 2+len(body)+1)
	out = append(out, ResponseSourceByte)
	out = append(out, byte(len(body))|0x80)
	out = append(out, body...)
	out = append(out, checksum(responseChecksumSeed, out...))
	return out
}
