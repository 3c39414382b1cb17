//go:build linux

package netio

import (
	"fmt"
	"log/slog"
	"net/netip"
	"sync"

	"golang.org/x/sys/unix"
)

// UDPSocket is the udp-bind-mode data socket: a plain UDP socket bound
// to the Geneve port. The kernel has already stripped the outer
// IPv4/UDP framing, so payloads start at the Geneve header and a
// response is sent back to the peer address the datagram arrived from
// rather than composed by hand.
type UDPSocket struct {
	logger *slog.Logger

	mu     sync.Mutex
	fd     int
	closed bool
}

// NewUDPSocket binds a UDP socket to 0.0.0.0:port.
func NewUDPSocket(logger *slog.Logger, port uint16) (*UDPSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("netio: open udp socket: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: set nonblocking: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: int(port)}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: bind udp socket to port %d: %w", port, err)
	}

	return &UDPSocket{logger: logger, fd: fd}, nil
}

// Fd returns the underlying file descriptor, for use in a poll(2) set.
func (s *UDPSocket) Fd() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fd
}

// LocalPort returns the port the socket is bound to, resolving an
// ephemeral (0) bind request to the port the kernel actually chose.
func (s *UDPSocket) LocalPort() (uint16, error) {
	s.mu.Lock()
	fd := s.fd
	s.mu.Unlock()

	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, fmt.Errorf("netio: getsockname: %w", err)
	}
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, fmt.Errorf("netio: getsockname: unexpected sockaddr type %T", sa)
	}
	return uint16(sa4.Port), nil
}

// RecvFrom reads one datagram and the peer it arrived from.
func (s *UDPSocket) RecvFrom(buf []byte) (int, netip.AddrPort, error) {
	s.mu.Lock()
	fd, closed := s.fd, s.closed
	s.mu.Unlock()
	if closed {
		return 0, netip.AddrPort{}, ErrSocketClosed
	}

	n, from, err := unix.Recvfrom(fd, buf, 0)
	if err != nil {
		return 0, netip.AddrPort{}, fmt.Errorf("netio: udp socket recv: %w", err)
	}

	sa4, ok := from.(*unix.SockaddrInet4)
	if !ok {
		return 0, netip.AddrPort{}, fmt.Errorf("netio: udp socket recv: unexpected sockaddr type %T", from)
	}
	peer := netip.AddrPortFrom(netip.AddrFrom4(sa4.Addr), uint16(sa4.Port))

	return n, peer, nil
}

// SendTo writes payload to peer.
func (s *UDPSocket) SendTo(payload []byte, peer netip.AddrPort) error {
	s.mu.Lock()
	fd, closed := s.fd, s.closed
	s.mu.Unlock()
	if closed {
		return ErrSocketClosed
	}

	addr := &unix.SockaddrInet4{Port: int(peer.Port()), Addr: peer.Addr().As4()}
	if err := unix.Sendto(fd, payload, 0, addr); err != nil {
		return fmt.Errorf("netio: udp socket send: %w", err)
	}
	return nil
}

// Close releases the socket. Safe to call more than once.
func (s *UDPSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}
