// Package printers contains the logic for printing information
package printers

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pouriyajamshidi/sipping/pingers"
	"github.com/pouriyajamshidi/sipping/sip"
	"github.com/pouriyajamshidi/sipping/statistics"
)

// now is replaced in tests.
var now = time.Now

func startMessage(s *statistics.Statistics) string {
	if !s.DestIsIP {
		return fmt.Sprintf("SIP pinging %s (%s) on port %d", s.Hostname, s.IP, s.Port)
	}
	return fmt.Sprintf("SIP pinging %s on port %d", s.IP, s.Port)
}

const abortHint = "Press Ctrl+C to abort"

func sentMessage(s *statistics.Statistics, req sip.Request) string {
	return fmt.Sprintf("> (%s) Sending to %s [id: %s]",
		statistics.FormatDisplayTime(now()),
		s.Target(),
		req.CallID)
}

func successMessage(o pingers.Outcome) string {
	return fmt.Sprintf("< (%s) Reply from %s (%sms): %s",
		statistics.FormatDisplayTime(now()),
		o.Peer.Addr(),
		statistics.FormatLatency(o.Elapsed),
		o.FirstLine)
}

func failureMessage(s *statistics.Statistics) string {
	return fmt.Sprintf("X (%s) Timed out waiting for response from %s",
		statistics.FormatDisplayTime(now()),
		s.IP)
}

// countersMessage renders the received/lost counters and, when there was
// any loss, the loss run lengths.
func countersMessage(snap statistics.Snapshot) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "\t[Recd: %d | Lost: %d]", snap.Received, snap.Lost)

	var runs []string
	if snap.LongestRunLoss > 0 {
		runs = append(runs, fmt.Sprintf("longest run: %d", snap.LongestRunLoss))
	}
	if snap.LastRunLoss > 0 {
		runs = append(runs, fmt.Sprintf("length of last run: %d", snap.LastRunLoss))
	}
	if snap.CurrentRunLoss > 0 {
		runs = append(runs, fmt.Sprintf("length of current run: %d", snap.CurrentRunLoss))
	}

	if len(runs) > 0 {
		fmt.Fprintf(&sb, " \t[loss stats: %s]", strings.Join(runs, " | "))
	}

	return sb.String()
}

// latencyMessage returns "" while no reply has been seen.
func latencyMessage(snap statistics.Snapshot) string {
	if !snap.Latency.HasResults {
		return ""
	}
	return fmt.Sprintf("\t[min/max/avg %s/%s/%s]",
		statistics.FormatLatency(snap.Latency.Min),
		statistics.FormatLatency(snap.Latency.Max),
		statistics.FormatLatency(round2(snap.Latency.Average)))
}

func summaryHeader(s *statistics.Statistics) string {
	if !s.DestIsIP {
		return fmt.Sprintf("--- %s (%s) SIP ping statistics ---", s.Hostname, s.Target())
	}
	return fmt.Sprintf("--- %s SIP ping statistics ---", s.Target())
}

func summaryTotals(s *statistics.Statistics) string {
	return fmt.Sprintf("%d probes sent, %d received, %.2f%% packet loss, duration %s",
		s.Total(),
		s.Received,
		s.PacketLoss(),
		statistics.DurationToString(s.Duration()))
}

const interruptedMessage = "Ctrl+C - exiting."

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
