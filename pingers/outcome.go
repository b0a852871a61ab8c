package pingers

import (
	"math"
	"net/netip"
	"time"

	"github.com/pouriyajamshidi/sipping/sip"
)

// Kind discriminates the result of a single probe attempt.
type Kind uint8

const (
	// None means no probe left the socket, so there is nothing to record.
	None Kind = iota
	// Success means a datagram came back before the timeout.
	Success
	// Timeout means the wait expired without any datagram.
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	default:
		return "none"
	}
}

// Outcome is what a single attempt produced.
// Peer, FirstLine, Raw and Elapsed are only set for Success.
type Outcome struct {
	Kind      Kind
	Request   sip.Request
	SentAt    time.Time
	Elapsed   float64 // milliseconds, two decimals
	Peer      netip.AddrPort
	FirstLine string
	Raw       []byte
}

// Succeeded reports whether the attempt got a reply.
func (o Outcome) Succeeded() bool {
	return o.Kind == Success
}

// Recorded reports whether the attempt should be counted at all.
func (o Outcome) Recorded() bool {
	return o.Kind != None
}

// DurationToMilliseconds converts d to milliseconds rounded to two decimals.
// Using d.Milliseconds() is not an option, it drops the fractional part.
func DurationToMilliseconds(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
