// Package vcp implements the get/set VCP, get-capabilities, and table
// read/write operations callers actually want, built on top of the packet
// codec, the retry classifier, and the dynamic sleep algorithm.
package vcp

import (
	"context"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/i2c"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/packet"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/retry"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/sleep"
)

// Session bundles everything one exchange with one open display needs: the
// transport it's reachable over, its I2C (or HID) address, its per-class
// TryStats, and its DSA state. The caller that opens a display builds the
// Session for it; the registry does not track Sessions.
type Session struct {
	Transport i2c.Transport
	Addr      byte
	Stats     map[model.OpClass]*model.TryStats
	SleepData *model.PerDisplaySleepData
	Window    *sleep.Window
}

func statsFor(s *Session, class model.OpClass) *model.TryStats {
	st, ok := s.Stats[class]
	if !ok {
		st = model.NewTryStats(class, model.DefaultMaxTries)
		s.Stats[class] = st
	}
	return st
}

// GetNonTable issues a get-VCP request and returns the decoded reply
// fields. If the reply's result code says the feature is unsupported, the
// fields come back together with a StatusReportedUnsupported
// *model.ErrorInfo (data at this API, not failure); any other
// *model.ErrorInfo is a genuine communication failure. Replies are not
// otherwise classified as unsupported.
func GetNonTable(ctx context.Context, s *Session, feature byte) (*packet.VCPReplyFields, *model.ErrorInfo) {
	stats := statsFor(s, model.OpWriteRead)

	var fields *packet.VCPReplyFields
	result := retry.Do(ctx, "vcp.GetNonTable", stats, s.SleepData, s.Window, func(ctx context.Context, pacing i2c.Pacing) error {
		req, err := packet.VCPRequest(feature)
		if err != nil {
			return err
		}
		buf := make([]byte, 32)
		n, err := s.Transport.Exchange(ctx, s.Addr, req, buf, pacing)
		if err != nil {
			return err
		}
		decoded, err := packet.DecodeResponse(buf[:n])
		if err != nil {
			return err
		}
		if decoded.IsNull {
			return model.New(model.StatusNullResponse, "vcp.GetNonTable", "null response")
		}
		f, err := packet.DecodeVCPReply(decoded)
		if err != nil {
			return err
		}
		if f.Feature != feature {
			return model.New(model.StatusFeatureCodeMismatch, "vcp.GetNonTable", "feature code echo mismatch")
		}
		fields = f
		return nil
	})
	if result != nil {
		return nil, result
	}
	if fields.ResultCode == packet.ResultReportedUnsupported {
		return fields, model.New(model.StatusReportedUnsupported, "vcp.GetNonTable", "monitor reports feature unsupported")
	}
	return fields, nil
}

// SetNonTable issues a set-VCP request and, if verify is true, re-reads the
// feature afterwards and fails with StatusInvalidOperation if the monitor
// didn't retain the value.
func SetNonTable(ctx context.Context, s *Session, feature byte, value uint16, verify bool) *model.ErrorInfo {
	stats := statsFor(s, model.OpWriteOnly)

	result := retry.Do(ctx, "vcp.SetNonTable", stats, s.SleepData, s.Window, func(ctx context.Context, pacing i2c.Pacing) error {
		req, err := packet.VCPSetRequest(feature, value)
		if err != nil {
			return err
		}
		_, err = s.Transport.Exchange(ctx, s.Addr, req, nil, pacing)
		return err
	})
	if result != nil {
		return result
	}
	if !verify {
		return nil
	}

	fields, err := GetNonTable(ctx, s, feature)
	if err != nil {
		return err
	}
	if fields.Current != value {
		return model.New(model.StatusInvalidOperation, "vcp.SetNonTable",
			"monitor did not retain the value written")
	}
	return nil
}

// capabilitiesFragmentSize is the largest payload a single capabilities
// fragment reply is expected to carry and sizes the read buffer; multi-part
// transfer keeps requesting at increasing offsets until a fragment comes
// back empty, whatever the length of the fragments before it.
const capabilitiesFragmentSize = 32

// GetCapabilities retrieves the full capability string via the segmented
// multi-part transfer, concatenating fragments until the monitor returns
// an empty one.
func GetCapabilities(ctx context.Context, s *Session) ([]byte, *model.ErrorInfo) {
	stats := statsFor(s, model.OpCapability)

	var out []byte
	offset := uint16(0)
	for {
		var fragment *packet.CapabilitiesReplyFields
		result := retry.Do(ctx, "vcp.GetCapabilities", stats, s.SleepData, s.Window, func(ctx context.Context, pacing i2c.Pacing) error {
			req, err := packet.CapabilitiesRequest(offset)
			if err != nil {
				return err
			}
			buf := make([]byte, capabilitiesFragmentSize+8)
			n, err := s.Transport.Exchange(ctx, s.Addr, req, buf, pacing)
			if err != nil {
				return err
			}
			decoded, err := packet.DecodeResponse(buf[:n])
			if err != nil {
				return err
			}
			if decoded.IsNull {
				return model.New(model.StatusNullResponse, "vcp.GetCapabilities", "null response")
			}
			f, err := packet.DecodeCapabilitiesReply(decoded)
			if err != nil {
				return err
			}
			if f.Offset != offset {
				return model.New(model.StatusBadLength, "vcp.GetCapabilities", "offset echo mismatch")
			}
			fragment = f
			return nil
		})
		if result != nil {
			return nil, result
		}
		if len(fragment.Data) == 0 {
			break
		}
		out = append(out, fragment.Data...)
		offset += uint16(len(fragment.Data))
	}
	return out, nil
}

const tableFragmentSize = 32

// GetTable retrieves a table-type feature's full byte content via the same
// segmented transfer GetCapabilities uses, addressed to a specific feature
// code instead of the fixed capabilities opcode.
func GetTable(ctx context.Context, s *Session, feature byte) ([]byte, *model.ErrorInfo) {
	stats := statsFor(s, model.OpTable)

	var out []byte
	offset := uint16(0)
	for {
		var fragment *packet.TableReadReplyFields
		result := retry.Do(ctx, "vcp.GetTable", stats, s.SleepData, s.Window, func(ctx context.Context, pacing i2c.Pacing) error {
			req, err := packet.TableReadRequest(feature, offset)
			if err != nil {
				return err
			}
			buf := make([]byte, tableFragmentSize+8)
			n, err := s.Transport.Exchange(ctx, s.Addr, req, buf, pacing)
			if err != nil {
				return err
			}
			decoded, err := packet.DecodeResponse(buf[:n])
			if err != nil {
				return err
			}
			if decoded.IsNull {
				return model.New(model.StatusNullResponse, "vcp.GetTable", "null response")
			}
			f, err := packet.DecodeTableReadReply(decoded)
			if err != nil {
				return err
			}
			if f.Feature != feature || f.Offset != offset {
				return model.New(model.StatusFeatureCodeMismatch, "vcp.GetTable", "feature or offset echo mismatch")
			}
			fragment = f
			return nil
		})
		if result != nil {
			return nil, result
		}
		if len(fragment.Data) == 0 {
			break
		}
		out = append(out, fragment.Data...)
		offset += uint16(len(fragment.Data))
	}
	return out, nil
}

// SetTable writes data to a table-type feature in tableFragmentSize-sized
// segments starting at offset 0.
func SetTable(ctx context.Context, s *Session, feature byte, data []byte) *model.ErrorInfo {
	stats := statsFor(s, model.OpTable)

	for offset := 0; offset < len(data) || (offset == 0 && len(data) == 0); offset += tableFragmentSize {
		end := offset + tableFragmentSize
		if end > len(data) {
			end = len(data)
		}
		segment := data[offset:end]

		result := retry.Do(ctx, "vcp.SetTable", stats, s.SleepData, s.Window, func(ctx context.Context, pacing i2c.Pacing) error {
			req, err := packet.TableWriteRequest(feature, uint16(offset), segment)
			if err != nil {
				return err
			}
			_, err = s.Transport.Exchange(ctx, s.Addr, req, nil, pacing)
			return err
		})
		if result != nil {
			return result
		}
		if len(data) == 0 {
			break
		}
	}
	return nil
}
