//go:build linux && !386

// Package hci talks to a Bluetooth controller through a Linux raw HCI
// socket.
package hci

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	proto "github.com/ystepanoff/rssilock/protocol"
	"github.com/ystepanoff/rssilock/transport"
)

const (
	solHCI    = 0
	hciFilter = 2

	// _IOW('H', 201|202, int)
	ioctlDevUp   = 0x400448c9
	ioctlDevDown = 0x400448ca

	maxFrame = proto.EventHeaderSize + proto.MaxParamSize
)

// Driver is a raw HCI socket bound to one adapter.
type Driver struct {
	mu  sync.Mutex
	fd  int
	dev int
	buf [maxFrame]byte
}

func Open(dev int) (*Driver, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.BTPROTO_HCI)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrHCI{Dev: uint16(dev), Channel: unix.HCI_CHANNEL_RAW}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind hci%d: %w", dev, err)
	}
	return &Driver{fd: fd, dev: dev}, nil
}

// Filter reads the socket's current HCI_FILTER.
func (d *Driver) Filter() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := make([]byte, proto.FilterSize)
	l := uint32(len(b))
	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT, uintptr(d.fd), solHCI, hciFilter,
		uintptr(unsafe.Pointer(&b[0])), uintptr(unsafe.Pointer(&l)), 0)
	if errno != 0 {
		return nil, d.wrap("getsockopt HCI_FILTER", errno)
	}
	return b[:l], nil
}

func (d *Driver) SetFilter(f []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := unix.SetsockoptString(d.fd, solHCI, hciFilter, string(f)); err != nil {
		return d.wrap("setsockopt HCI_FILTER", err)
	}
	return nil
}

func (d *Driver) Write(frame []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		_, err := unix.Write(d.fd, frame)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return d.wrap("write", err)
		}
		return nil
	}
}

// Read waits up to timeout for one frame.
func (d *Driver) Read(timeout time.Duration) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	deadline := time.Now().Add(timeout)
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	for {
		ms := int(time.Until(deadline).Milliseconds())
		if ms < 0 {
			ms = 0
		}
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, d.wrap("poll", err)
		}
		if n == 0 {
			return nil, transport.ErrReadTimeout
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return nil, fmt.Errorf("%w: hci%d: poll revents 0x%x", transport.ErrAdapterUnavailable, d.dev, fds[0].Revents)
		}

		r, err := unix.Read(d.fd, d.buf[:])
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		if err != nil {
			return nil, d.wrap("read", err)
		}
		out := make([]byte, r)
		copy(out, d.buf[:r])
		return out, nil
	}
}

// Reset cycles the adapter down and up, dropping every ACL link.
func (d *Driver) Reset() error {
	ctl, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.BTPROTO_HCI)
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	defer unix.Close(ctl)

	if err := unix.IoctlSetInt(ctl, ioctlDevDown, d.dev); err != nil {
		return d.wrap("HCIDEVDOWN", err)
	}
	if err := unix.IoctlSetInt(ctl, ioctlDevUp, d.dev); err != nil && err != unix.EALREADY {
		return d.wrap("HCIDEVUP", err)
	}
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// wrap marks errors meaning the adapter is gone.
func (d *Driver) wrap(op string, err error) error {
	if isGone(err) {
		return fmt.Errorf("%w: hci%d: %s: %v", transport.ErrAdapterUnavailable, d.dev, op, err)
	}
	return fmt.Errorf("hci%d: %s: %w", d.dev, op, err)
}

func isGone(err error) bool {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case unix.ENODEV, unix.ENXIO, unix.EBADF, unix.EBADFD, unix.EPIPE:
		return true
	}
	return false
}
