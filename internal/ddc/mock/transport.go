// Package mock provides in-memory i2c.Transport doubles for deterministic
// tests of the retry, sleep, checks, and vcp packages, standing in for a
// real /dev/i2c-N node.
//
// Transport is the linear scripted double most tests need: a plain ordered
// response list, not an expectation API, because the scripts are linear
// sequences of "what the monitor replies on the Nth write". Display is a
// stateful double for the handful of tests that need a monitor which
// actually remembers what was written to it.
package mock

import (
	"context"
	"sync"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/i2c"
	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
)

// Response scripts one exchange's outcome.
type Response struct {
	Reply []byte // bytes to copy into the caller's read buffer; ignored if Err != nil
	Err   error  // if set, Exchange returns this instead of copying Reply
}

// Transport is a scripted i2c.Transport. Responses are consumed in order;
// once exhausted, Exchange returns StatusIOError so a misconfigured test
// fails loudly instead of blocking.
type Transport struct {
	mu        sync.Mutex
	responses []Response
	calls     []Call
}

// Call records one observed Exchange invocation for assertions.
type Call struct {
	Addr  byte
	Write []byte
}

func New(responses ...Response) *Transport {
	return &Transport{responses: responses}
}

func (t *Transport) Exchange(ctx context.Context, addr byte, write []byte, readBuf []byte, pacing i2c.Pacing) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, Call{Addr: addr, Write: append([]byte{}, write...)})

	if len(t.responses) == 0 {
		return 0, model.New(model.StatusIOError, "mock.Exchange", "no scripted response left")
	}
	resp := t.responses[0]
	t.responses = t.responses[1:]

	if resp.Err != nil {
		return 0, resp.Err
	}
	n := copy(readBuf, resp.Reply)
	return n, nil
}

func (t *Transport) Close() error { return nil }

func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call{}, t.calls...)
}

var _ i2c.Transport = (*Transport)(nil)

// Display is a stateful i2c.Transport double that actually commits set-VCP
// writes and echoes them back on a later get-VCP, so tests can drive
// dump/load idempotence and intermittent-corruption retry scenarios
// against something closer to a real monitor than Transport's linear
// response script.
type Display struct {
	mu sync.Mutex

	values map[byte]uint16
	maxes  map[byte]uint16

	calls     int
	corruptOn map[int]bool // 1-based Exchange call numbers that get a flipped checksum byte
}

func NewDisplay() *Display {
	return &Display{values: map[byte]uint16{}, maxes: map[byte]uint16{}}
}

// SetFeature seeds the display's internal storage for feature, as if it
// shipped from the factory with that current/max pair.
func (d *Display) SetFeature(feature byte, current, max uint16) *Display {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[feature] = current
	d.maxes[feature] = max
	return d
}

// CorruptCalls marks specific 1-based Exchange call numbers to return a
// reply with a flipped checksum byte, simulating a monitor that corrupts
// some replies under load.
func (d *Display) CorruptCalls(calls ...int) *Display {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.corruptOn == nil {
		d.corruptOn = map[int]bool{}
	}
	for _, c := range calls {
		d.corruptOn[c] = true
	}
	return d
}

func (d *Display) Close() error { return nil }

// Exchange decodes a get-VCP or set-VCP request out of write, applies it
// against the display's internal storage, and encodes a matching reply
// into readBuf. Any other opcode is rejected as a protocol violation, since
// Display only models the non-table VCP exchange the idempotence scenario
// exercises.
func (d *Display) Exchange(ctx context.Context, addr byte, write []byte, readBuf []byte, pacing i2c.Pacing) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++

	if len(write) < 3 {
		return 0, model.New(model.StatusBadLength, "mock.Display", "request too short")
	}
	opcode := write[2]
	switch opcode {
	case 0x03: // set-VCP: feature, value-hi, value-lo
		if len(write) < 6 {
			return 0, model.New(model.StatusBadLength, "mock.Display", "short set-VCP request")
		}
		feature := write[3]
		value := uint16(write[4])<<8 | uint16(write[5])
		if _, ok := d.maxes[feature]; !ok {
			d.maxes[feature] = value
		}
		d.values[feature] = value
		return 0, nil
	case 0x01: // get-VCP: feature
		feature := write[3]
		current := d.values[feature]
		max := d.maxes[feature]
		reply := buildVCPReply(feature, current, max)
		if d.corruptOn[d.calls] {
			reply[len(reply)-1] ^= 0xFF
		}
		n := copy(readBuf, reply)
		return n, nil
	default:
		return 0, model.New(model.StatusOpcodeMismatch, "mock.Display", "unsupported opcode in mock")
	}
}

// buildVCPReply encodes a get-VCP reply frame. The checksum computation
// mirrors packet.go's unexported XOR helper, the same duplication
// vcp_test.go and retry_test.go already accept in their own fixture
// builders rather than exporting an internal checksum function for tests.
func buildVCPReply(feature byte, current, max uint16) []byte {
	const opcodeVCPReply = 0x02
	const resultOK = 0x00
	body := []byte{opcodeVCPReply, resultOK, feature, 0x00, byte(max >> 8), byte(max), byte(current >> 8), byte(current)}
	out := append([]byte{0x6E, byte(len(body)) | 0x80}, body...)
	sum := byte(0x6E)
	for _, b := range out {
		sum ^= b
	}
	return append(out, sum)
}

var _ i2c.Transport = (*Display)(nil)
