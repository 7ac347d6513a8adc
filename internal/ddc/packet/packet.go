// Package packet encodes and decodes the four DDC/CI packet kinds:
// get-VCP request/reply, set-VCP, capabilities fragments, and table
// read/write segments. Frames are start byte, length with the high bit
// set, opcode, payload, and a trailing XOR checksum seeded with the
// destination pseudo-address, per the VESA DDC/CI standard.
package packet

import (
	"fmt"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
)

// Opcodes used in DDC/CI request and reply packets, per the MCCS/DDC-CI
// protocol.
const (
	OpcodeVCPRequest          = 0x01
	OpcodeVCPReply            = 0x02
	OpcodeVCPSet              = 0x03
	OpcodeCapabilitiesRequest = 0xF3
	OpcodeCapabilitiesReply   = 0xE3
	OpcodeTableReadRequest    = 0xE2
	OpcodeTableReadReply      = 0xE4
	OpcodeTableWrite          = 0xE7
)

// Framing addresses.
const (
	RequestStartByte   = 0x51
	ResponseSourceByte = 0x6E

	// Checksum seed bytes: the pseudo-address used as the initial XOR
	// value is 0x50 for requests and 0x6e for responses.
	requestChecksumSeed  = 0x50
	responseChecksumSeed = 0x6E
)

// NullResponsePattern is the DDC-defined "Null Message" response most
// monitors send in place of a real reply: source 0x6e, zero-length payload
// (0x80), checksum 0xbe. A few monitors reuse it to signal transient error
// instead of unsupported-feature; the retry classifier and the
// initial-checks state machine are responsible for interpreting which.
var NullResponsePattern = []byte{0x6e, 0x80, 0xbe}

func checksum(seed byte, bytes ...byte) byte {
	sum := seed
	for _, b := range bytes {
		sum ^= b
	}
	return sum
}

// EncodeRequest builds a full request packet: start byte, length byte (high
// bit set, low 7 bits = len(opcode+payload)), opcode, payload, checksum.
func EncodeRequest(opcode byte, payload []byte) ([]byte, error) {
	if len(payload) > 0x7F-1 {
		return nil, model.New(model.StatusInvalidArgument, "packet.EncodeRequest",
			fmt.Sprintf("payload too long for request framing: %d bytes", len(payload)))
	}
	data := make([]byte, 0, 1+len(payload))
	data = append(data, opcode)
	data = append(data, payload...)

	out := make([]byte, 0, 2+len(data)+1)
	out = append(out, RequestStartByte)
	out = append(out, byte(len(data))|0x80)
	out = append(out, data...)
	out = append(out, checksum(requestChecksumSeed, out...))
	return out, nil
}

// DecodedResponse is the parsed view over a response packet.
type DecodedResponse struct {
	Opcode  byte
	Payload []byte
	IsNull  bool
}

// DecodeResponse parses a response packet, verifying its framing and
// checksum. A null-response pattern is recognised and reported via IsNull
// rather than returned as an error — classification of what a null response
// means is the retry classifier's job, not the codec's.
// Framing failures are returned as *model.ErrorInfo leaves carrying the
// protocol-layer status (short-packet, bad-length, bad-checksum) so the
// retry classifier aggregates them without re-deriving the failure kind
// from error text.
func DecodeResponse(raw []byte) (*DecodedResponse, error) {
	if isNullResponse(raw) {
		return &DecodedResponse{IsNull: true}, nil
	}
	if len(raw) < 4 {
		return nil, model.New(model.StatusShortPacket, "packet.DecodeResponse",
			fmt.Sprintf("short response packet: %d bytes", len(raw)))
	}
	if raw[0] != ResponseSourceByte {
		return nil, model.New(model.StatusShortPacket, "packet.DecodeResponse",
			fmt.Sprintf("unexpected source byte 0x%02x", raw[0]))
	}
	length := int(raw[1] &^ 0x80)
	if raw[1]&0x80 == 0 {
		return nil, model.New(model.StatusBadLength, "packet.DecodeResponse", "response length byte missing high bit")
	}
	if len(raw) < 2+length+1 {
		return nil, model.New(model.StatusBadLength, "packet.DecodeResponse",
			fmt.Sprintf("declared length %d exceeds buffer of %d bytes", length, len(raw)))
	}
	body := raw[2 : 2+length]
	gotChecksum := raw[2+length]
	wantChecksum := checksum(responseChecksumSeed, raw[:2+length]...)
	if gotChecksum != wantChecksum {
		return nil, model.New(model.StatusBadChecksum, "packet.DecodeResponse",
			fmt.Sprintf("bad checksum: got 0x%02x want 0x%02x", gotChecksum, wantChecksum))
	}
	if length < 1 {
		return nil, model.New(model.StatusBadLength, "packet.DecodeResponse", "zero-length response body")
	}
	return &DecodedResponse{Opcode: body[0], Payload: body[1:]}, nil
}

func isNullResponse(raw []byte) bool {
	if len(raw) < len(NullResponsePattern) {
		return false
	}
	for i, b := range NullResponsePattern {
		if raw[i] != b {
			return false
		}
	}
	return true
}

// VCPRequest builds a get-VCP request for the given feature code.
func VCPRequest(feature byte) ([]byte, error) {
	return EncodeRequest(OpcodeVCPRequest, []byte{feature})
}

// VCPSetRequest builds a set-VCP request carrying a 16-bit value.
func VCPSetRequest(feature byte, value uint16) ([]byte, error) {
	return EncodeRequest(OpcodeVCPSet, []byte{feature, byte(value >> 8), byte(value)})
}

// CapabilitiesRequest builds a capabilities-fragment request starting at the
// given byte offset into the capability string (multi-part transfer).
func CapabilitiesRequest(offset uint16) ([]byte, error) {
	return EncodeRequest(OpcodeCapabilitiesRequest, []byte{byte(offset >> 8), byte(offset)})
}

// TableReadRequest builds a table-segment read request for a table feature
// code at the given byte offset.
func TableReadRequest(feature byte, offset uint16) ([]byte, error) {
	return EncodeRequest(OpcodeTableReadRequest, []byte{feature, byte(offset >> 8), byte(offset)})
}

// TableWriteRequest builds a table-segment write request.
func TableWriteRequest(feature byte, offset uint16, data []byte) ([]byte, error) {
	payload := make([]byte, 0, 3+len(data))
	payload = append(payload, feature, byte(offset>>8), byte(offset))
	payload = append(payload, data...)
	return EncodeRequest(OpcodeTableWrite, payload)
}

// VCPReplyFields is the decoded body of a get-VCP reply.
type VCPReplyFields struct {
	ResultCode byte
	Feature    byte
	TypeCode   byte
	Max        uint16
	Current    uint16
}

// DecodeVCPReply extracts the get-VCP reply fields from a DecodedResponse,
// rejecting any opcode other than the VCP reply opcode.
func DecodeVCPReply(resp *DecodedResponse) (*VCPReplyFields, error) {
	if resp.Opcode != OpcodeVCPReply {
		return nil, model.New(model.StatusOpcodeMismatch, "packet.DecodeVCPReply",
			fmt.Sprintf("expected VCP reply opcode 0x%02x, got 0x%02x", OpcodeVCPReply, resp.Opcode))
	}
	if len(resp.Payload) < 7 {
		return nil, model.New(model.StatusBadLength, "packet.DecodeVCPReply",
			fmt.Sprintf("short VCP reply payload: %d bytes", len(resp.Payload)))
	}
	p := resp.Payload
	return &VCPReplyFields{
		ResultCode: p[0],
		Feature:    p[1],
		TypeCode:   p[2],
		Max:        uint16(p[3])<<8 | uint16(p[4]),
		Current:    uint16(p[5])<<8 | uint16(p[6]),
	}, nil
}

// Result codes carried in a VCP reply's ResultCode byte.
const (
	ResultOK                  = 0x00
	ResultReportedUnsupported = 0x01
)

// CapabilitiesReplyFields is the decoded body of a capabilities-fragment
// reply: the echoed offset plus the ASCII fragment bytes.
type CapabilitiesReplyFields struct {
	Offset uint16
	Data   []byte
}

func DecodeCapabilitiesReply(resp *DecodedResponse) (*CapabilitiesReplyFields, error) {
	if resp.Opcode != OpcodeCapabilitiesReply {
		return nil, model.New(model.StatusOpcodeMismatch, "packet.DecodeCapabilitiesReply",
			fmt.Sprintf("expected capabilities reply opcode 0x%02x, got 0x%02x", OpcodeCapabilitiesReply, resp.Opcode))
	}
	if len(resp.Payload) < 2 {
		return nil, model.New(model.StatusBadLength, "packet.DecodeCapabilitiesReply",
			fmt.Sprintf("short capabilities reply payload: %d bytes", len(resp.Payload)))
	}
	offset := uint16(resp.Payload[0])<<8 | uint16(resp.Payload[1])
	return &CapabilitiesReplyFields{Offset: offset, Data: resp.Payload[2:]}, nil
}

// TableReadReplyFields is the decoded body of a table-segment read reply.
type TableReadReplyFields struct {
	Feature byte
	Offset  uint16
	Data    []byte
}

func DecodeTableReadReply(resp *DecodedResponse) (*TableReadReplyFields, error) {
	if resp.Opcode != OpcodeTableReadReply {
		return nil, model.New(model.StatusOpcodeMismatch, "packet.DecodeTableReadReply",
			fmt.Sprintf("expected table-read reply opcode 0x%02x, got 0x%02x", OpcodeTableReadReply, resp.Opcode))
	}
	if len(resp.Payload) < 3 {
		return nil, model.New(model.StatusBadLength, "packet.DecodeTableReadReply",
			fmt.Sprintf("short table-read reply payload: %d bytes", len(resp.Payload)))
	}
	return &TableReadReplyFields{
		Feature: resp.Payload[0],
		Offset:  uint16(resp.Payload[1])<<8 | uint16(resp.Payload[2]),
		Data:    resp.Payload[3:],
	}, nil
}
