package flowtrack_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain runs every test in this package and checks for goroutine
// leaks afterward -- in particular that a Tracker's sweeper goroutine
// exits once Close is called.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
