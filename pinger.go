// Package sipping sends SIP OPTIONS probes to a device at a fixed cadence
// and keeps loss and latency statistics of the replies.
package sipping

import (
	"context"
	"net/netip"

	"github.com/pouriyajamshidi/sipping/pingers"
)

var (
	// List of compile time checks for all pingers
	_ Pinger = (*pingers.UDPPinger)(nil)
)

// Pinger performs a single probe attempt against a fixed target.
type Pinger interface {
	Ping(ctx context.Context, build pingers.RequestFunc) (pingers.Outcome, error)
	IP() netip.Addr
	Port() uint16
}
