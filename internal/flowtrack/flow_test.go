package flowtrack_test

import (
	"testing"

	"github.com/netplane-oss/gwlbtun/internal/flowtrack"
)

func TestTCPTransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		from  flowtrack.State
		flags flowtrack.TCPFlags
		want  flowtrack.State
	}{
		{"syn+ack advances to synack", flowtrack.StateSYN, flowtrack.TCPFlags{SYN: true, ACK: true}, flowtrack.StateSYNACK},
		{"duplicate syn stays at syn", flowtrack.StateSYN, flowtrack.TCPFlags{SYN: true}, flowtrack.StateSYN},
		{"ack advances synack to run", flowtrack.StateSYNACK, flowtrack.TCPFlags{ACK: true}, flowtrack.StateRun},
		{"rst in synack does not advance to run", flowtrack.StateSYNACK, flowtrack.TCPFlags{ACK: true, RST: true}, flowtrack.StateSYNACK},
		{"syn in synack does not advance to run", flowtrack.StateSYNACK, flowtrack.TCPFlags{ACK: true, SYN: true}, flowtrack.StateSYNACK},
		{"fin advances run to fin", flowtrack.StateRun, flowtrack.TCPFlags{FIN: true}, flowtrack.StateFIN},
		{"run ignores plain ack", flowtrack.StateRun, flowtrack.TCPFlags{ACK: true}, flowtrack.StateRun},
		{"fin+ack advances fin to finack", flowtrack.StateFIN, flowtrack.TCPFlags{FIN: true, ACK: true}, flowtrack.StateFINACK},
		{"fin alone does not advance fin", flowtrack.StateFIN, flowtrack.TCPFlags{FIN: true}, flowtrack.StateFIN},
		{"ack advances finack to closed", flowtrack.StateFINACK, flowtrack.TCPFlags{ACK: true}, flowtrack.StateClosed},
		{"syn+ack in finack does not close", flowtrack.StateFINACK, flowtrack.TCPFlags{ACK: true, SYN: true}, flowtrack.StateFINACK},
		{"none state never advances", flowtrack.StateNone, flowtrack.TCPFlags{SYN: true, ACK: true}, flowtrack.StateNone},
		{"closed state is terminal", flowtrack.StateClosed, flowtrack.TCPFlags{SYN: true}, flowtrack.StateClosed},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := flowtrack.TCPTransition(tt.from, tt.flags)
			if got != tt.want {
				t.Fatalf("TCPTransition(%v, %+v) = %v, want %v", tt.from, tt.flags, got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	if got := flowtrack.StateRun.String(); got != "RUN" {
		t.Fatalf("StateRun.String() = %q, want %q", got, "RUN")
	}
	if got := flowtrack.StateNone.String(); got != "NONE" {
		t.Fatalf("StateNone.String() = %q, want %q", got, "NONE")
	}
}
