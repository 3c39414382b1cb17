package flowtrack

import (
	"log/slog"
	"sync"
	"time"

	"github.com/netplane-oss/gwlbtun/internal/geneve"
)

// Config controls the tracker's policy toggles. Timeout is both the idle
// expiry threshold and the sweeper's wake period, matching the original
// single FLOW_TIMEOUT setting.
type Config struct {
	Timeout           time.Duration
	TCPNonSynBlock    bool
	TCPImmediateClean bool
}

// MetricsSink receives flow lifecycle events. A nil Tracker.Metrics is
// valid; every call site goes through recordFlowEvent, which no-ops on a
// nil sink.
type MetricsSink interface {
	RecordFlowEvent(event string)
}

// Flow lifecycle event names, passed to MetricsSink.RecordFlowEvent.
const (
	eventCreated = "created"
	eventClosed  = "closed"
	eventExpired = "expired"
	eventBlocked = "blocked"
)

func recordFlowEvent(sink MetricsSink, event string) {
	if sink != nil {
		sink.RecordFlowEvent(event)
	}
}

// FlowSnapshot is a read-only copy of a Flow's fields, safe to hand out
// beyond the tracker's lock.
type FlowSnapshot struct {
	Cookie               string
	Protocol             uint8
	SrcAddr              string
	DstAddr              string
	SrcPort              uint16
	DstPort              uint16
	StartTimestamp       int64
	LastPacketTimestamp  int64
	State                string
	PktsSent             uint64
	PktsReceived         uint64
	BytesSent            uint64
	BytesReceived        uint64
}

// Tracker is the process-wide flow table: a mutex-guarded map from flow
// cookie to Flow, plus a background sweeper goroutine that expires idle
// entries. The receive loop and the sweeper are the only two writers;
// both go through Update/Delete/the sweep loop, all of which take the
// same lock.
type Tracker struct {
	logger *slog.Logger
	cfg    Config

	// Metrics receives flow lifecycle events. It is nil until the caller
	// assigns it (the daemon entrypoint wires its Collector in after
	// construction, the same way netio.Receiver takes its sink).
	Metrics MetricsSink

	mu    sync.Mutex
	flows map[string]*Flow

	now func() int64

	stop chan struct{}
	done chan struct{}
}

// New constructs a Tracker and starts its background sweeper goroutine.
// Close must be called to stop the sweeper.
func New(logger *slog.Logger, cfg Config) *Tracker {
	t := &Tracker{
		logger: logger,
		cfg:    cfg,
		flows:  make(map[string]*Flow),
		now:    func() int64 { return time.Now().Unix() },
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.sweepLoop()
	return t
}

// Update upserts the flow for pkt's Geneve flow cookie: on an unseen
// cookie a new record is created from pkt; on an existing cookie the
// record is updated in place. A packet with no flow cookie option is
// logged and left untracked; response composition still proceeds for
// that datagram (the caller decides that, independent of this method).
func (t *Tracker) Update(pkt *geneve.RawPacket) error {
	cookie, ok := pkt.FlowCookie()
	if !ok {
		if t.logger != nil {
			t.logger.Debug("packet has no flow cookie, skipping tracker update")
		}
		return geneve.ErrMissingFlowCookie
	}

	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, found := t.flows[cookie]
	if !found {
		f, disposition := newFlow(t.logger, cookie, pkt, now, t.cfg.TCPNonSynBlock, t.Metrics)
		if disposition == DropFlow {
			return nil
		}
		t.flows[cookie] = f
		if t.logger != nil {
			t.logger.Info("new flow", slog.String("cookie", cookie))
		}
		return nil
	}

	if disposition := existing.update(t.logger, pkt, now, t.cfg.TCPImmediateClean, t.Metrics); disposition == DropFlow {
		delete(t.flows, cookie)
	}
	return nil
}

// Delete removes cookie from the table unconditionally. Deleting an
// absent cookie is a no-op.
func (t *Tracker) Delete(cookie string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.flows, cookie)
}

// Snapshot returns a point-in-time copy of every tracked flow, safe for
// the caller to range over without holding the tracker's lock.
func (t *Tracker) Snapshot() []FlowSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]FlowSnapshot, 0, len(t.flows))
	for _, f := range t.flows {
		out = append(out, FlowSnapshot{
			Cookie:              f.Cookie,
			Protocol:            f.Protocol,
			SrcAddr:             f.SrcAddr.String(),
			DstAddr:             f.DstAddr.String(),
			SrcPort:             f.SrcPort,
			DstPort:             f.DstPort,
			StartTimestamp:      f.StartTimestamp,
			LastPacketTimestamp: f.LastPacketTimestamp,
			State:               f.State.String(),
			PktsSent:            f.PktsSent,
			PktsReceived:        f.PktsReceived,
			BytesSent:           f.BytesSent,
			BytesReceived:       f.BytesReceived,
		})
	}
	return out
}

// Len returns the number of currently tracked flows.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.flows)
}

// Close stops the sweeper goroutine and waits for it to exit.
func (t *Tracker) Close() {
	close(t.stop)
	<-t.done
}

func (t *Tracker) sweepLoop() {
	defer close(t.done)

	ticker := time.NewTicker(t.cfg.Timeout)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Tracker) sweep() {
	cutoff := t.now() - int64(t.cfg.Timeout/time.Second)

	t.mu.Lock()
	defer t.mu.Unlock()

	for cookie, f := range t.flows {
		if f.LastPacketTimestamp < cutoff {
			delete(t.flows, cookie)
			recordFlowEvent(t.Metrics, eventExpired)
		}
	}

	if t.logger != nil {
		t.logger.Debug("sweep complete", slog.Int("remaining", len(t.flows)))
	}
}
