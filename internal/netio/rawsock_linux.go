//go:build linux

package netio

import (
	"fmt"
	"log/slog"
	"net/netip"
	"sync"

	"golang.org/x/sys/unix"
)

// RawSocket is the raw-socket-mode data socket: an IPPROTO_UDP raw
// socket with IP_HDRINCL set, so reads yield full IPv4 datagrams
// (outer header included) and writes must supply one too.
type RawSocket struct {
	logger *slog.Logger

	mu     sync.Mutex
	fd     int
	closed bool
}

// NewRawSocket opens and configures the raw data socket. The caller is
// responsible for running as (or holding CAP_NET_RAW as) a privileged
// process.
func NewRawSocket(logger *slog.Logger) (*RawSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("netio: open raw socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: set IP_HDRINCL: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: set nonblocking: %w", err)
	}

	return &RawSocket{logger: logger, fd: fd}, nil
}

// Fd returns the underlying file descriptor, for use in a poll(2) set.
func (s *RawSocket) Fd() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fd
}

// Recv reads one datagram (full IPv4 header included) into buf.
func (s *RawSocket) Recv(buf []byte) (int, error) {
	s.mu.Lock()
	fd, closed := s.fd, s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrSocketClosed
	}

	n, _, err := unix.Recvfrom(fd, buf, 0)
	if err != nil {
		return 0, fmt.Errorf("netio: raw socket recv: %w", err)
	}
	return n, nil
}

// Send writes a fully-formed IPv4 datagram (header included, per
// IP_HDRINCL) to dst. The kernel ignores the destination port embedded
// in the sockaddr for a raw IP socket; it is left zero.
func (s *RawSocket) Send(raw []byte, dst netip.Addr) error {
	s.mu.Lock()
	fd, closed := s.fd, s.closed
	s.mu.Unlock()
	if closed {
		return ErrSocketClosed
	}

	addr := &unix.SockaddrInet4{Addr: dst.As4()}
	if err := unix.Sendto(fd, raw, 0, addr); err != nil {
		return fmt.Errorf("netio: raw socket send: %w", err)
	}
	return nil
}

// Close releases the socket. Safe to call more than once.
func (s *RawSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}

// AnnounceSocket is a plain UDP socket bound to the Geneve port purely
// so the kernel considers the port owned: without it, a raw-socket-mode
// listener still shares the kernel's UDP demux, and an unclaimed port
// draws an ICMP port-unreachable reply to the sender for every Geneve
// datagram. Reads from it are drained and discarded.
type AnnounceSocket struct {
	logger *slog.Logger

	mu     sync.Mutex
	fd     int
	closed bool
}

// NewAnnounceSocket binds a UDP socket to 0.0.0.0:port.
func NewAnnounceSocket(logger *slog.Logger, port uint16) (*AnnounceSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("netio: open announce socket: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: set nonblocking: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: int(port)}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: bind announce socket to port %d: %w", port, err)
	}

	return &AnnounceSocket{logger: logger, fd: fd}, nil
}

// Fd returns the underlying file descriptor, for use in a poll(2) set.
func (s *AnnounceSocket) Fd() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fd
}

// Drain reads and discards one pending datagram.
func (s *AnnounceSocket) Drain(buf []byte) error {
	s.mu.Lock()
	fd, closed := s.fd, s.closed
	s.mu.Unlock()
	if closed {
		return ErrSocketClosed
	}

	if _, _, err := unix.Recvfrom(fd, buf, 0); err != nil {
		return fmt.Errorf("netio: announce socket drain: %w", err)
	}
	return nil
}

// Close releases the socket. Safe to call more than once.
func (s *AnnounceSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}
