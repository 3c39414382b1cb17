// Package flowtrack tracks inner flows carried inside Geneve datagrams:
// a process-wide table keyed by flow cookie, directional packet/byte
// counters, and a pure TCP connection state machine.
package flowtrack

import (
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/netplane-oss/gwlbtun/internal/geneve"
)

const (
	protoICMP = 1
	protoTCP  = 6
	protoUDP  = 17
)

// State is a TCP connection state as tracked for one flow. UDP and ICMP
// flows are created directly in StateRun and never transition.
//
// StateNone is the zero value: it represents a TCP flow whose first
// packet was not a clean SYN and TCP_NONSYN_BLOCK is disabled. Such a
// flow is recorded (for counter purposes) but its state machine never
// advances, mirroring the original tracker leaving self.state unset.
type State int

const (
	StateNone State = iota
	StateSYN
	StateSYNACK
	StateRun
	StateFIN
	StateFINACK
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSYN:
		return "SYN"
	case StateSYNACK:
		return "SYNACK"
	case StateRun:
		return "RUN"
	case StateFIN:
		return "FIN"
	case StateFINACK:
		return "FINACK"
	case StateClosed:
		return "CLOSED"
	default:
		return "NONE"
	}
}

// TCPFlags is the subset of TCP header flags the state machine examines.
type TCPFlags struct {
	SYN bool
	ACK bool
	FIN bool
	RST bool
}

func tcpFlagsFromHeader(h geneve.TCPHeader) TCPFlags {
	return TCPFlags{SYN: h.SYN, ACK: h.ACK, FIN: h.FIN, RST: h.RST}
}

// TCPTransition is the pure TCP connection state machine. Given the
// current state and the flags of a newly observed packet, it returns the
// next state. Unlisted (state, flags) combinations leave the state
// unchanged: this is a self-loop, not an error.
//
// RST handling beyond the SYNACK->RUN exclusion is not modeled: a flow
// that receives RST stays in its current state until the sweeper expires
// it.
func TCPTransition(state State, f TCPFlags) State {
	switch state {
	case StateSYN:
		if f.SYN && f.ACK {
			return StateSYNACK
		}
		return state
	case StateSYNACK:
		if f.ACK && !f.SYN && !f.RST {
			return StateRun
		}
		return state
	case StateRun:
		if f.FIN {
			return StateFIN
		}
		return state
	case StateFIN:
		if f.FIN && f.ACK {
			return StateFINACK
		}
		return state
	case StateFINACK:
		if f.ACK && !f.SYN {
			return StateClosed
		}
		return state
	default:
		return state
	}
}

// Disposition tells the tracker what to do with a flow record after a
// state-machine-driving operation. The state machine never deletes a
// record itself; it only signals the intent, and the tracker (which owns
// the table) performs the removal.
type Disposition int

const (
	KeepFlow Disposition = iota
	DropFlow
)

// Flow is one tracked inner flow, keyed by its Geneve flow cookie.
type Flow struct {
	Cookie   string
	Protocol uint8
	SrcAddr  netip.Addr
	DstAddr  netip.Addr
	SrcPort  uint16
	DstPort  uint16

	StartTimestamp      int64
	LastPacketTimestamp int64

	State State

	PktsSent     uint64
	PktsReceived uint64
	BytesSent    uint64
	BytesReceived uint64
}

// newFlow constructs the flow record for an unseen cookie's first
// packet. now is Unix epoch seconds. Returns DropFlow when the first TCP
// packet is not a clean SYN and tcpNonSynBlock is enabled; the caller
// must not insert the returned record into the table in that case.
func newFlow(logger *slog.Logger, cookie string, pkt *geneve.RawPacket, now int64, tcpNonSynBlock bool, metrics MetricsSink) (*Flow, Disposition) {
	f := &Flow{
		Cookie:              cookie,
		Protocol:            pkt.InnerIPv4.Protocol,
		SrcAddr:             pkt.InnerIPv4.SrcAddr,
		DstAddr:             pkt.InnerIPv4.DstAddr,
		StartTimestamp:      now,
		LastPacketTimestamp: now,
		PktsSent:            1,
		BytesSent:           uint64(pkt.PayloadLength()),
	}

	switch f.Protocol {
	case protoTCP:
		f.SrcPort = pkt.InnerTCP.SrcPort
		f.DstPort = pkt.InnerTCP.DstPort

		flags := tcpFlagsFromHeader(pkt.InnerTCP)
		if flags.SYN && !flags.ACK {
			f.State = StateSYN
			recordFlowEvent(metrics, eventCreated)
			return f, KeepFlow
		}

		if logger != nil {
			logger.Warn("first packet for new TCP flow is not a clean SYN", slog.String("cookie", cookie))
		}
		if tcpNonSynBlock {
			recordFlowEvent(metrics, eventBlocked)
			return f, DropFlow
		}
		// f.State stays StateNone: the record is kept for counter
		// purposes but its state machine never advances.
		recordFlowEvent(metrics, eventCreated)
		return f, KeepFlow

	case protoUDP:
		f.SrcPort = pkt.InnerUDP.SrcPort
		f.DstPort = pkt.InnerUDP.DstPort
		f.State = StateRun
		recordFlowEvent(metrics, eventCreated)
		return f, KeepFlow

	default: // ICMP, or any other protocol the tracker was asked to track
		f.State = StateRun
		recordFlowEvent(metrics, eventCreated)
		return f, KeepFlow
	}
}

// update applies one subsequent packet to an existing flow: directional
// counters, then (for TCP) the state machine. Returns DropFlow when the
// flow just entered CLOSED and tcpImmediateClean is enabled.
func (f *Flow) update(logger *slog.Logger, pkt *geneve.RawPacket, now int64, tcpImmediateClean bool, metrics MetricsSink) Disposition {
	payload := uint64(pkt.PayloadLength())

	switch {
	case pkt.InnerIPv4.DstAddr == f.DstAddr:
		f.PktsSent++
		f.BytesSent += payload
	case pkt.InnerIPv4.DstAddr == f.SrcAddr:
		f.PktsReceived++
		f.BytesReceived += payload
	default:
		// Direction mismatch: counters are left untouched, but the TCP
		// state machine below still observes this packet's flags.
		if logger != nil {
			logger.Error("flow direction mismatch", slog.String("cookie", f.Cookie))
		}
	}

	disposition := KeepFlow
	if f.Protocol == protoTCP {
		prev := f.State
		next := TCPTransition(prev, tcpFlagsFromHeader(pkt.InnerTCP))
		f.State = next
		if next != prev && next == StateClosed {
			if logger != nil {
				logger.Info("tcp flow closed", slog.String("cookie", f.Cookie))
			}
			recordFlowEvent(metrics, eventClosed)
			if tcpImmediateClean {
				disposition = DropFlow
			}
		}
	}

	f.LastPacketTimestamp = now
	return disposition
}

// String renders a one-line human-readable summary of the flow. The debug
// flow-listing endpoint does not use it; it serves Tracker.Snapshot.
func (f *Flow) String() string {
	return fmt.Sprintf(
		"flow %s proto=%d %s:%d -> %s:%d pkts sent/recv=%d/%d bytes sent/recv=%d/%d state=%s",
		f.Cookie, f.Protocol, f.SrcAddr, f.SrcPort, f.DstAddr, f.DstPort,
		f.PktsSent, f.PktsReceived, f.BytesSent, f.BytesReceived, f.State,
	)
}
