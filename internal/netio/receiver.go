//go:build linux

package netio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"github.com/netplane-oss/gwlbtun/internal/flowtrack"
	"github.com/netplane-oss/gwlbtun/internal/geneve"
)

// maxDatagram is large enough for any IPv4 datagram, Geneve header and
// options included.
const maxDatagram = 65535

// defaultPollTimeout bounds how long a single poll(2) call blocks when
// the context carries no deadline, so the loop periodically revisits
// its shutdown check even if nothing external ever wakes it.
const defaultPollTimeout = 10 * time.Second

// MetricsSink receives packet-pipeline events. A nil Receiver.Metrics is
// valid; all calls go through a no-op check first.
type MetricsSink interface {
	IncPacketsReceived()
	IncPacketsSent()
	IncPacketsDropped(reason string)
	SetActiveFlows(n int)
}

// Receiver runs the readiness-multiplexed packet pipeline: it waits on
// the data socket, the health listener, and (in raw-socket mode) the
// announce socket, and dispatches each readable event to the Geneve
// parser, the flow tracker, and back out a response.
type Receiver struct {
	Logger *slog.Logger
	Mode   geneve.Mode

	GenevePort       uint16
	ParseGeneveOpts  bool
	ChecksumOffload  bool

	Raw      *RawSocket
	Announce *AnnounceSocket
	UDP      *UDPSocket
	Health   *HealthListener

	Tracker *flowtrack.Tracker
	Metrics MetricsSink
}

// Run blocks, servicing events until ctx is canceled or an unrecoverable
// poll(2) error occurs. A canceled context is not reported as an error.
func (r *Receiver) Run(ctx context.Context) error {
	shutdownFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return fmt.Errorf("netio: create shutdown eventfd: %w", err)
	}
	defer unix.Close(shutdownFd)

	go func() {
		<-ctx.Done()
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, 1)
		unix.Write(shutdownFd, buf)
	}()

	fds, dataIdx, healthIdx, announceIdx := r.buildPollSet(shutdownFd)
	buf := make([]byte, maxDatagram)

	for {
		timeout := pollTimeoutMs(ctx, defaultPollTimeout)
		n, err := unix.Poll(fds, timeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("netio: poll: %w", err)
		}
		if n == 0 {
			continue
		}

		if fds[len(fds)-1].Revents&unix.POLLIN != 0 {
			return nil
		}

		if fds[dataIdx].Revents&unix.POLLIN != 0 {
			r.handleData(buf)
		}
		if healthIdx >= 0 && fds[healthIdx].Revents&unix.POLLIN != 0 {
			if err := r.Health.Accept(); err != nil && r.Logger != nil {
				r.Logger.Warn("health accept failed", slog.String("error", err.Error()))
			}
		}
		if announceIdx >= 0 && fds[announceIdx].Revents&unix.POLLIN != 0 {
			if err := r.Announce.Drain(buf); err != nil && r.Logger != nil {
				r.Logger.Warn("announce drain failed", slog.String("error", err.Error()))
			}
		}
	}
}

// buildPollSet assembles the poll(2) fd list for the configured mode.
// The shutdown eventfd is always last.
func (r *Receiver) buildPollSet(shutdownFd int) (fds []unix.PollFd, dataIdx, healthIdx, announceIdx int) {
	dataIdx, healthIdx, announceIdx = 0, -1, -1

	switch r.Mode {
	case geneve.ModeRawSocket:
		fds = append(fds, unix.PollFd{Fd: int32(r.Raw.Fd()), Events: unix.POLLIN})
		if r.Announce != nil {
			announceIdx = len(fds)
			fds = append(fds, unix.PollFd{Fd: int32(r.Announce.Fd()), Events: unix.POLLIN})
		}
	case geneve.ModeUDPBind:
		fds = append(fds, unix.PollFd{Fd: int32(r.UDP.Fd()), Events: unix.POLLIN})
	}

	if r.Health != nil {
		healthIdx = len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(r.Health.Fd()), Events: unix.POLLIN})
	}

	fds = append(fds, unix.PollFd{Fd: int32(shutdownFd), Events: unix.POLLIN})
	return fds, dataIdx, healthIdx, announceIdx
}

// handleData reads one datagram from the active data socket, parses it,
// updates the flow table, and writes the response back out.
func (r *Receiver) handleData(buf []byte) {
	switch r.Mode {
	case geneve.ModeRawSocket:
		r.handleRawDatagram(buf)
	case geneve.ModeUDPBind:
		r.handleUDPDatagram(buf)
	}
}

func (r *Receiver) handleRawDatagram(buf []byte) {
	n, err := r.Raw.Recv(buf)
	if err != nil {
		r.drop("recv")
		if r.Logger != nil {
			r.Logger.Warn("raw socket recv failed", slog.String("error", err.Error()))
		}
		return
	}
	r.received()

	pkt, err := geneve.NewRawPacket(r.Logger, buf[:n], geneve.ModeRawSocket, r.GenevePort, r.ParseGeneveOpts)
	if err != nil {
		r.drop("parse")
		if r.Logger != nil {
			r.Logger.Warn("failed to parse datagram", slog.String("error", err.Error()))
		}
		return
	}

	r.updateFlow(pkt)

	resp := pkt.Response(r.ChecksumOffload)
	if err := r.Raw.Send(resp, pkt.OuterIPv4.SrcAddr); err != nil {
		if r.Logger != nil {
			r.Logger.Warn("raw socket send failed", slog.String("error", err.Error()))
		}
		return
	}
	r.sent()
}

func (r *Receiver) handleUDPDatagram(buf []byte) {
	n, peer, err := r.UDP.RecvFrom(buf)
	if err != nil {
		r.drop("recv")
		if r.Logger != nil {
			r.Logger.Warn("udp socket recv failed", slog.String("error", err.Error()))
		}
		return
	}
	r.received()

	pkt, err := geneve.NewRawPacket(r.Logger, buf[:n], geneve.ModeUDPBind, r.GenevePort, r.ParseGeneveOpts)
	if err != nil {
		r.drop("parse")
		if r.Logger != nil {
			r.Logger.Warn("failed to parse datagram", slog.String("error", err.Error()))
		}
		return
	}

	r.updateFlow(pkt)

	resp := pkt.Response(r.ChecksumOffload)
	if err := r.UDP.SendTo(resp, peer); err != nil {
		if r.Logger != nil {
			r.Logger.Warn("udp socket send failed", slog.String("error", err.Error()))
		}
		return
	}
	r.sent()
}

// updateFlow feeds pkt to the flow tracker, if one is configured and the
// inner protocol is one the tracker understands (UDP, TCP, ICMP). Any
// other inner protocol, IGMP included, gets a response but no flow
// entry. A tracker error (e.g. no flow cookie present) is logged but
// never prevents the response from being sent back to the balancer.
func (r *Receiver) updateFlow(pkt *geneve.RawPacket) {
	if r.Tracker == nil || pkt.InnerKind == geneve.InnerNone {
		return
	}
	if err := r.Tracker.Update(pkt); err != nil {
		r.drop("flow_update")
		if r.Logger != nil {
			r.Logger.Warn("flow update failed", slog.String("error", err.Error()))
		}
		return
	}
	if r.Metrics != nil {
		r.Metrics.SetActiveFlows(r.Tracker.Len())
	}
}

func (r *Receiver) received() {
	if r.Metrics != nil {
		r.Metrics.IncPacketsReceived()
	}
}

func (r *Receiver) sent() {
	if r.Metrics != nil {
		r.Metrics.IncPacketsSent()
	}
}

func (r *Receiver) drop(reason string) {
	if r.Metrics != nil {
		r.Metrics.IncPacketsDropped(reason)
	}
}

// pollTimeoutMs computes the poll(2) timeout in milliseconds bounded by
// ctx's deadline, or fallback if ctx carries none.
func pollTimeoutMs(ctx context.Context, fallback time.Duration) int {
	deadline, ok := ctx.Deadline()
	if !ok {
		return int(fallback.Milliseconds())
	}
	remaining := time.Until(deadline)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Milliseconds())
}
