// Package usbhid implements the optional USB-HID monitor control
// transport, feature-gated behind display discovery's --enable-usb step.
// Monitors with a USB upstream port expose VCP access as HID feature
// reports instead of DDC/CI over I2C.
//
// Device nodes are enumerated by globbing /dev/hidraw* and driven through
// raw HIDIOCGFEATURE/HIDIOCSFEATURE ioctls. The request codes are
// computed with the standard Linux _IOC encoding (linux/ioctl.h) because
// the kernel headers aren't importable from pure Go.
package usbhid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
)

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	hidIOCType = 'H'
)

func iocEncode(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | hidIOCType<<8 | nr
}

func hidiocGFeature(size int) uintptr {
	return iocEncode(iocWrite|iocRead, 0x07, uintptr(size))
}

func hidiocSFeature(size int) uintptr {
	return iocEncode(iocWrite|iocRead, 0x06, uintptr(size))
}

// MCCS-over-USB monitor control usages, from the VESA "Monitor Control
// Command Set (MCCS) over USB" supplement's usage page 0x80: the first byte
// of every feature report is this report id and the second is the VCP
// feature code, which the standard assigns one-to-one with usage IDs.
const (
	reportIDVCP = 0x00
)

// Device is a single open HID monitor-control node.
type Device struct {
	f    *os.File
	path string
	mu   sync.Mutex
}

// Enumerate lists /dev/hidraw* nodes present on the system. Component F
// calls this only when USB-HID detection is enabled; every returned path is
// a candidate, not yet known to be a monitor.
func Enumerate() []string {
	matches, _ := filepath.Glob("/dev/hidraw*")
	return matches
}

// Open opens a hidraw device node for feature-report based VCP access.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.New(model.StatusNotFound, "usbhid.Open", path)
		}
		if os.IsPermission(err) {
			return nil, model.New(model.StatusPermissionDenied, "usbhid.Open", path)
		}
		return nil, model.Wrap(model.StatusIOError, "usbhid.Open", err.Error())
	}
	return &Device{f: f, path: path}, nil
}

func (d *Device) Close() error { return d.f.Close() }

// GetVCP reads a feature report encoding the current/max value pair for the
// given VCP feature code, per the MCCS-over-USB GET_VCP_FEATURE report
// layout: [report id, feature code, max-hi, max-lo, current-hi, current-lo].
func (d *Device) GetVCP(ctx context.Context, feature byte) (current, max uint16, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := make([]byte, 8)
	buf[0] = reportIDVCP
	buf[1] = feature

	if ioErr := d.ioctl(hidiocGFeature(len(buf)), buf); ioErr != nil {
		return 0, 0, ioErr
	}

	max = uint16(buf[2])<<8 | uint16(buf[3])
	current = uint16(buf[4])<<8 | uint16(buf[5])
	return current, max, nil
}

// SetVCP writes a SET_VCP_FEATURE report for the given feature code and
// value.
func (d *Device) SetVCP(ctx context.Context, feature byte, value uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := make([]byte, 8)
	buf[0] = reportIDVCP
	buf[1] = feature
	buf[4] = byte(value >> 8)
	buf[5] = byte(value)

	return d.ioctl(hidiocSFeature(len(buf)), buf)
}

// ProbeMonitor reports whether the node at path behaves like an MCCS
// monitor-control device: it must open and answer a brightness feature
// report. Discovery uses this to classify USB candidates without running
// the I2C initial-checks state machine, which has no meaning over HID.
func ProbeMonitor(ctx context.Context, path string) *model.ErrorInfo {
	dev, err := Open(path)
	if err != nil {
		if info, ok := err.(*model.ErrorInfo); ok {
			return info
		}
		return model.Wrap(model.StatusIOError, "usbhid.ProbeMonitor", err.Error())
	}
	defer dev.Close()

	if _, _, err := dev.GetVCP(ctx, 0x10); err != nil {
		if info, ok := err.(*model.ErrorInfo); ok {
			return info
		}
		return model.Wrap(model.StatusIOError, "usbhid.ProbeMonitor", err.Error())
	}
	return nil
}

func (d *Device) ioctl(req uintptr, buf []byte) *model.ErrorInfo {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return model.Wrap(model.StatusIOError, "usbhid.ioctl", fmt.Sprintf("%s: %s", d.path, errno.Error()))
	}
	return nil
}
