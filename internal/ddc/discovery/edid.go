package discovery

import (
	"strings"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
)

// edidHeader is the fixed 8-byte magic every valid EDID blob starts with.
var edidHeader = []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

const (
	descriptorNameTag   = 0xFC
	descriptorSerialTag = 0xFF
	descriptorBlockSize = 18
	firstDescriptorAt   = 54
	numDescriptorBlocks = 4
)

// ParseEDID decodes the identity fields the detection pipeline needs out
// of a raw 128- or 256-byte EDID blob, per the VESA E-EDID layout.
func ParseEDID(raw []byte) (*model.EDID, error) {
	if len(raw) < 128 {
		return nil, model.New(model.StatusBadLength, "discovery.ParseEDID", "EDID blob shorter than 128 bytes")
	}
	for i, b := range edidHeader {
		if raw[i] != b {
			return nil, model.New(model.StatusIOError, "discovery.ParseEDID", "missing EDID magic header")
		}
	}

	mfgWord := uint16(raw[8])<<8 | uint16(raw[9])
	mfgID := string([]byte{
		byte('A' - 1 + (mfgWord>>10)&0x1F),
		byte('A' - 1 + (mfgWord>>5)&0x1F),
		byte('A' - 1 + mfgWord&0x1F),
	})

	productCode := uint16(raw[10]) | uint16(raw[11])<<8
	serialBinary := uint32(raw[12]) | uint32(raw[13])<<8 | uint32(raw[14])<<16 | uint32(raw[15])<<24

	edid := &model.EDID{
		MfgID:        mfgID,
		ProductCode:  productCode,
		SerialBinary: serialBinary,
		Raw:          append([]byte{}, raw...),
	}

	for i := 0; i < numDescriptorBlocks; i++ {
		offset := firstDescriptorAt + i*descriptorBlockSize
		block := raw[offset : offset+descriptorBlockSize]
		// A display-descriptor block starts with two zero bytes followed by
		// a zero flag byte and then the tag; a detailed timing descriptor
		// instead starts with a non-zero pixel clock, so checking the
		// leading zeros distinguishes the two.
		if block[0] != 0 || block[1] != 0 || block[2] != 0 {
			continue
		}
		tag := block[3]
		text := decodeDescriptorText(block[5:])
		switch tag {
		case descriptorNameTag:
			edid.ModelName = text
		case descriptorSerialTag:
			edid.SerialAscii = text
		}
	}

	return edid, nil
}

func decodeDescriptorText(b []byte) string {
	s := string(b)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimRight(s, " \x00")
}
