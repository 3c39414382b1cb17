//go:build linux

package netio

import "github.com/netplane-oss/gwlbtun/internal/geneve"

// PollTimeoutMsForTest exposes pollTimeoutMs to the black-box test
// package.
var PollTimeoutMsForTest = pollTimeoutMs

// HealthResponseForTest exposes the fixed health-check response body.
var HealthResponseForTest = healthResponse

// UpdateFlowForTest exposes updateFlow to the black-box test package.
func (r *Receiver) UpdateFlowForTest(pkt *geneve.RawPacket) {
	r.updateFlow(pkt)
}
