package flowtrack

// SweepForTest forces an immediate sweep using nowOverride as the
// current time, bypassing the sweeper's ticker so expiry behavior can be
// asserted without waiting out a real Timeout.
func (t *Tracker) SweepForTest(nowOverride int64) {
	t.mu.Lock()
	orig := t.now
	t.now = func() int64 { return nowOverride }
	t.mu.Unlock()

	t.sweep()

	t.mu.Lock()
	t.now = orig
	t.mu.Unlock()
}
