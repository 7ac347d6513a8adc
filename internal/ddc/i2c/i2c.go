// Package i2c implements the Linux I2C transport DDC/CI exchanges travel
// over: opening /dev/i2c-N, establishing the slave address, and issuing
// paced write/read exchanges. Two strategies are available — file-IO (set
// the slave address once via ioctl, then plain read/write) and ioctl-IO
// (carry the address in each I2C_RDWR message, bypassing per-fd address
// state entirely; the write and the read go out as two separate I2C_RDWR
// calls, not one combined call).
package i2c

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
)

// ioctl request codes from linux/i2c-dev.h, not exported by x/sys/unix.
const (
	ioctlSlave      = 0x0703
	ioctlSlaveForce = 0x0706
	ioctlRdwr       = 0x0707
)

// i2cMsgRead flags the read direction in an i2cMsg, from linux/i2c.h.
const i2cMsgRead = 0x0001

// DDCCIAddr and EDIDAddr are the two well-known 7-bit addresses DDC/CI
// traffic and EDID reads use.
const (
	DDCCIAddr = 0x37
	EDIDAddr  = 0x50
)

// Strategy selects how a LinuxI2C issues an exchange.
type Strategy int

const (
	// StrategyFileIO sets the slave address once via an I2C_SLAVE ioctl,
	// then issues plain read(2)/write(2) calls against the bus fd.
	StrategyFileIO Strategy = iota

	// StrategyIoctlIO issues the write and the subsequent read as I2C_RDWR
	// ioctls, bypassing the kernel's per-fd slave-address state entirely.
	// When an exchange has both a write and a read, they are sent as two
	// separate one-message I2C_RDWR calls with the after-write and
	// before-read delays between them; they are never combined into a
	// single two-message call.
	StrategyIoctlIO
)

// Pacing carries the three DSA-scaled delays a single exchange observes:
// after the write, before polling for a reply, and after a successful
// read. The sleep package computes these; this package only sleeps for
// the durations it is given.
type Pacing struct {
	AfterWrite time.Duration
	BeforeRead time.Duration
	AfterRead  time.Duration
}

// Transport is the minimal interface the retry loop and the VCP façade
// need from an I2C connection. internal/ddc/mock implements the same
// shape for tests.
type Transport interface {
	// Exchange writes write to addr, waits per pacing, then reads up to
	// len(readBuf) bytes into readBuf, returning the slice actually filled.
	// If readBuf is empty, Exchange only writes.
	Exchange(ctx context.Context, addr byte, write []byte, readBuf []byte, pacing Pacing) (int, error)
	Close() error
}

// LinuxI2C is a Transport backed by a /dev/i2c-N device node.
type LinuxI2C struct {
	f        *os.File
	busno    int
	strategy Strategy

	mu          sync.Mutex
	addrIsSet   bool
	currentAddr byte
}

// Open opens the bus device node for busno without setting a slave address;
// the address is established lazily by the first Exchange (file-IO
// strategy) or carried per-message (ioctl-IO strategy).
func Open(busno int, strategy Strategy) (*LinuxI2C, error) {
	path := model.I2CPath(busno).String()
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.New(model.StatusNotFound, "i2c.Open", path)
		}
		if os.IsPermission(err) {
			return nil, model.New(model.StatusPermissionDenied, "i2c.Open", path)
		}
		return nil, model.Wrap(model.StatusIOError, "i2c.Open", err.Error())
	}
	return &LinuxI2C{f: f, busno: busno, strategy: strategy}, nil
}

func (t *LinuxI2C) Close() error {
	return t.f.Close()
}

func (t *LinuxI2C) Exchange(ctx context.Context, addr byte, write []byte, readBuf []byte, pacing Pacing) (int, error) {
	switch t.strategy {
	case StrategyIoctlIO:
		return t.exchangeIoctl(ctx, addr, write, readBuf, pacing)
	default:
		return t.exchangeFileIO(ctx, addr, write, readBuf, pacing)
	}
}

func (t *LinuxI2C) exchangeFileIO(ctx context.Context, addr byte, write []byte, readBuf []byte, pacing Pacing) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.setAddressLocked(addr, false); err != nil {
		return 0, err
	}

	if len(write) > 0 {
		n, err := t.f.Write(write)
		if err != nil {
			return 0, classifyErrno(err, "i2c.Write")
		}
		if n != len(write) {
			return 0, model.New(model.StatusIOError, "i2c.Write", fmt.Sprintf("short write: %d/%d bytes", n, len(write)))
		}
	}

	if len(readBuf) == 0 {
		return 0, nil
	}

	if pacing.AfterWrite > 0 {
		sleep(ctx, pacing.AfterWrite)
	}
	if pacing.BeforeRead > 0 {
		sleep(ctx, pacing.BeforeRead)
	}

	if err := t.pollReadable(); err != nil {
		return 0, err
	}

	n, err := t.f.Read(readBuf)
	if err != nil {
		return 0, classifyErrno(err, "i2c.Read")
	}
	if n == 0 {
		return 0, model.New(model.StatusShortRead, "i2c.Read", "zero bytes read")
	}

	if pacing.AfterRead > 0 {
		sleep(ctx, pacing.AfterRead)
	}

	return n, nil
}

// setAddressLocked issues the I2C_SLAVE (or, if force is true, the
// I2C_SLAVE_FORCE) ioctl, skipping the syscall entirely when addr already
// matches the last address set on this fd.
func (t *LinuxI2C) setAddressLocked(addr byte, force bool) error {
	if t.addrIsSet && t.currentAddr == addr && !force {
		return nil
	}
	req := uint(ioctlSlave)
	if force {
		req = ioctlSlaveForce
	}
	if err := unix.IoctlSetInt(int(t.f.Fd()), req, int(addr)); err != nil {
		if err == unix.EBUSY {
			if !force {
				return t.setAddressLocked(addr, true)
			}
			return model.Wrap(model.StatusBusy, "i2c.setAddress", err.Error())
		}
		return classifyErrno(err, "i2c.setAddress")
	}
	t.addrIsSet = true
	t.currentAddr = addr
	return nil
}

func (t *LinuxI2C) pollReadable() error {
	fds := []unix.PollFd{{Fd: int32(t.f.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 200)
	if err != nil {
		return model.Wrap(model.StatusIOError, "i2c.poll", err.Error())
	}
	if n == 0 {
		return model.New(model.StatusIOError, "i2c.poll", "timed out waiting for a reply")
	}
	if fds[0].Revents&unix.POLLIN == 0 {
		return model.New(model.StatusIOError, "i2c.poll", "poll returned without POLLIN")
	}
	return nil
}

// i2cMsg and rdwrIoctlData mirror struct i2c_msg and struct
// i2c_rdwr_ioctl_data from linux/i2c.h and linux/i2c-dev.h; the kernel
// header isn't importable from pure Go, so the layout is restated here.
type i2cMsg struct {
	addr   uint16
	flags  uint16
	length uint16
	_      uint16 // padding to match the kernel's struct layout on amd64/arm64
	buf    uintptr
}

type rdwrIoctlData struct {
	msgs  uintptr
	nmsgs uint32
}

func (t *LinuxI2C) exchangeIoctl(ctx context.Context, addr byte, write []byte, readBuf []byte, pacing Pacing) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var msgs []i2cMsg
	if len(write) > 0 {
		msgs = append(msgs, i2cMsg{addr: uint16(addr), length: uint16(len(write)), buf: uintptr(unsafe.Pointer(&write[0]))})
	}

	if len(write) > 0 && len(readBuf) > 0 {
		if pacing.AfterWrite > 0 {
			sleep(ctx, pacing.AfterWrite)
		}
		if err := t.ioctlMsgs(msgs); err != nil {
			return 0, err
		}
		msgs = nil
	}

	if len(readBuf) == 0 {
		if msgs != nil {
			return 0, t.ioctlMsgs(msgs)
		}
		return 0, nil
	}

	if pacing.BeforeRead > 0 {
		sleep(ctx, pacing.BeforeRead)
	}
	msgs = append(msgs, i2cMsg{addr: uint16(addr), flags: i2cMsgRead, length: uint16(len(readBuf)), buf: uintptr(unsafe.Pointer(&readBuf[0]))})
	if err := t.ioctlMsgs(msgs); err != nil {
		return 0, err
	}
	if pacing.AfterRead > 0 {
		sleep(ctx, pacing.AfterRead)
	}
	return len(readBuf), nil
}

func (t *LinuxI2C) ioctlMsgs(msgs []i2cMsg) error {
	if len(msgs) == 0 {
		return nil
	}
	data := rdwrIoctlData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, t.f.Fd(), uintptr(ioctlRdwr), uintptr(unsafe.Pointer(&data)))
	if errno != 0 {
		return model.Wrap(model.StatusIOError, "i2c.ioctlRdwr", errno.Error())
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func classifyErrno(err error, site string) *model.ErrorInfo {
	if errors.Is(err, unix.EBUSY) || errors.Is(err, unix.EAGAIN) {
		return model.Wrap(model.StatusBusy, site, err.Error())
	}
	if os.IsPermission(err) {
		return model.Wrap(model.StatusPermissionDenied, site, err.Error())
	}
	return model.Wrap(model.StatusIOError, site, err.Error())
}

// EnumerateBuses lists the bus numbers with a /dev/i2c-N node present,
// scanning 0..31. Discovery uses this as its starting candidate set
// before EDID probing.
func EnumerateBuses() []int {
	var buses []int
	for i := 0; i < 32; i++ {
		if _, err := os.Stat(model.I2CPath(i).String()); err == nil {
			buses = append(buses, i)
		}
	}
	return buses
}
