//go:build linux

package netio

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"
)

// healthResponse is the fixed body returned to every health probe,
// regardless of what (if anything) it sent.
var healthResponse = []byte("HTTP/1.1 200 OK\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"Content-Length: 8\r\n" +
	"Connection: close\r\n" +
	"\r\n" +
	"Healthy\n")

// healthReadDeadline bounds how long the responder waits for (and
// discards) the probe's request before replying.
const healthReadDeadline = 1 * time.Second

// healthReadLimit is the maximum number of request bytes read and
// discarded before replying.
const healthReadLimit = 1024

// HealthListener is the TCP health-probe socket. One connection is
// handled at a time, synchronously, on the same readiness-driven loop
// as the data socket.
type HealthListener struct {
	logger *slog.Logger
	fd     int
}

// NewHealthListener binds and listens on 0.0.0.0:port.
func NewHealthListener(logger *slog.Logger, port uint16) (*HealthListener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("netio: open health listener: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: set SO_REUSEADDR: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: set nonblocking: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: int(port)}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: bind health listener to port %d: %w", port, err)
	}

	if err := unix.Listen(fd, 16); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: listen on health port %d: %w", port, err)
	}

	return &HealthListener{logger: logger, fd: fd}, nil
}

// Fd returns the underlying file descriptor, for use in a poll(2) set.
func (h *HealthListener) Fd() int {
	return h.fd
}

// Close releases the listening socket.
func (h *HealthListener) Close() error {
	return unix.Close(h.fd)
}

// Accept takes one pending connection and serves the fixed health
// response on it, then closes it. It never returns an error for
// protocol-level problems (short reads, client resets, timeouts);
// those are logged and treated as a closed connection, since a failed
// health probe is the balancer's concern, not this process's.
func (h *HealthListener) Accept() error {
	clientFd, _, err := unix.Accept(h.fd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil
		}
		return fmt.Errorf("netio: accept health connection: %w", err)
	}
	defer unix.Close(clientFd)

	if err := unix.SetNonblock(clientFd, false); err != nil {
		if h.logger != nil {
			h.logger.Warn("health connection: set blocking failed", slog.String("error", err.Error()))
		}
		return nil
	}

	tv := unix.NsecToTimeval(healthReadDeadline.Nanoseconds())
	if err := unix.SetsockoptTimeval(clientFd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		if h.logger != nil {
			h.logger.Warn("health connection: set read deadline failed", slog.String("error", err.Error()))
		}
		return nil
	}

	buf := make([]byte, healthReadLimit)
	if _, err := unix.Read(clientFd, buf); err != nil {
		if h.logger != nil {
			h.logger.Warn("health connection: read timed out or failed, closing without reply", slog.String("error", err.Error()))
		}
		return nil
	}

	if _, err := unix.Write(clientFd, healthResponse); err != nil && h.logger != nil {
		h.logger.Warn("health connection: write failed", slog.String("error", err.Error()))
	}

	return nil
}
