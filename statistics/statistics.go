// Package statistics accumulates the running loss and latency figures of a probe run.
package statistics

import (
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"time"

	"github.com/pouriyajamshidi/sipping/pingers"
)

// WindowSize is the number of most recent latencies kept for min/max/avg.
const WindowSize = 200

// Statistics is the state of a probe run. It is owned by the prober and
// mutated once per recorded outcome; it is not safe for concurrent use.
type Statistics struct {
	// Target information
	IP        netip.Addr
	Port      uint16
	Hostname  string
	DestIsIP  bool
	LocalAddr netip.Addr

	// Time tracking
	StartTime             time.Time
	EndTime               time.Time
	LastSuccessfulProbe   time.Time
	LastUnsuccessfulProbe time.Time

	// Probe counters
	Received uint
	Lost     uint

	// Loss runs
	CurrentRunLoss uint
	LastRunLoss    uint
	LongestRunLoss uint

	// Latency tracking, all-time extremes and the latest sample
	MinLatency    float64
	MaxLatency    float64
	LatestLatency float64

	// LastOutcome is the most recently recorded attempt.
	LastOutcome pingers.Outcome

	// Interrupted is set when the run was cancelled instead of exhausted.
	Interrupted bool

	window      []float64
	initialized bool
}

// New returns Statistics for the given target with the latency extremes
// set to their sentinels.
func New(ip netip.Addr, port uint16) Statistics {
	s := Statistics{
		IP:       ip,
		Port:     port,
		Hostname: ip.String(),
		DestIsIP: true,
	}
	s.init()
	return s
}

func (s *Statistics) init() {
	if s.initialized {
		return
	}
	s.MinLatency = math.Inf(1)
	s.MaxLatency = math.Inf(-1)
	s.window = make([]float64, 0, WindowSize)
	s.initialized = true
}

// Record applies one attempt outcome. Outcomes that never left the socket
// are ignored.
func (s *Statistics) Record(o pingers.Outcome) {
	s.init()

	switch o.Kind {
	case pingers.Success:
		s.recordSuccess(o)
	case pingers.Timeout:
		s.recordLoss(o)
	default:
		return
	}

	s.LastOutcome = o
}

func (s *Statistics) recordSuccess(o pingers.Outcome) {
	s.Received++
	s.LatestLatency = o.Elapsed
	s.LastSuccessfulProbe = o.SentAt

	if len(s.window) == WindowSize {
		copy(s.window, s.window[1:])
		s.window = s.window[:WindowSize-1]
	}
	s.window = append(s.window, o.Elapsed)

	s.MinLatency = math.Min(s.MinLatency, o.Elapsed)
	s.MaxLatency = math.Max(s.MaxLatency, o.Elapsed)

	if s.CurrentRunLoss > 0 {
		s.LastRunLoss = s.CurrentRunLoss
		s.LongestRunLoss = max(s.LongestRunLoss, s.LastRunLoss)
		s.CurrentRunLoss = 0
	}
}

func (s *Statistics) recordLoss(o pingers.Outcome) {
	s.Lost++
	s.CurrentRunLoss++
	s.LastUnsuccessfulProbe = o.SentAt
}

// Window returns a copy of the latency window, oldest first.
func (s *Statistics) Window() []float64 {
	return append([]float64(nil), s.window...)
}

// Total returns the number of recorded attempts.
func (s *Statistics) Total() uint {
	return s.Received + s.Lost
}

// PacketLoss returns the share of lost attempts in percent.
func (s *Statistics) PacketLoss() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.Lost) / float64(total) * 100
}

// HasLoss reports whether any attempt went unanswered.
func (s *Statistics) HasLoss() bool {
	return s.Lost > 0
}

// Snapshot returns the reporting view of s.
func (s *Statistics) Snapshot() Snapshot {
	s.init()

	return Snapshot{
		Received:       s.Received,
		Lost:           s.Lost,
		CurrentRunLoss: s.CurrentRunLoss,
		LastRunLoss:    s.LastRunLoss,
		LongestRunLoss: s.LongestRunLoss,
		Latency:        CalcMinAvgMax(s.window),
	}
}

// Snapshot is a point-in-time summary used by printers.
type Snapshot struct {
	Received       uint
	Lost           uint
	CurrentRunLoss uint
	LastRunLoss    uint
	LongestRunLoss uint
	Latency        LatencyResult
}

// LatencyResult holds min/max/average latency over the window in milliseconds.
type LatencyResult struct {
	Min        float64
	Max        float64
	Average    float64
	Samples    int
	HasResults bool
}

// CalcMinAvgMax computes min, max and average of samples. With no samples
// the average is 0 and min/max stay at +Inf/-Inf.
func CalcMinAvgMax(samples []float64) LatencyResult {
	result := LatencyResult{
		Min: math.Inf(1),
		Max: math.Inf(-1),
	}

	if len(samples) == 0 {
		return result
	}

	var sum float64
	for _, v := range samples {
		sum += v
		result.Min = math.Min(result.Min, v)
		result.Max = math.Max(result.Max, v)
	}

	result.Average = sum / float64(len(samples))
	result.Samples = len(samples)
	result.HasResults = true

	return result
}

// Target returns "host:port" of the probed device.
func (s *Statistics) Target() string {
	return netip.AddrPortFrom(s.IP, s.Port).String()
}

func (s *Statistics) StartTimeFormatted() string {
	return s.StartTime.Format(time.DateTime)
}

// EndTimeFormatted is empty while the run is still going.
func (s *Statistics) EndTimeFormatted() string {
	if s.EndTime.IsZero() {
		return ""
	}
	return s.EndTime.Format(time.DateTime)
}

// Duration returns how long the run has been going, or went on for.
func (s *Statistics) Duration() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// FormatLatency renders a latency the way results are logged: shortest
// form, so 12.30 becomes "12.3".
func FormatLatency(ms float64) string {
	return strconv.FormatFloat(ms, 'f', -1, 64)
}

// FormatDisplayTime renders t as day/month/year hour:min:sec:micro on a
// 12 hour clock, the layout used for console and result lines.
func FormatDisplayTime(t time.Time) string {
	return fmt.Sprintf("%s:%06d", t.Format("02/01/06 03:04:05"), t.Nanosecond()/int(time.Microsecond))
}

// DurationToString creates a human-readable string for a given duration
func DurationToString(duration time.Duration) string {
	hours := math.Floor(duration.Hours())
	if hours > 0 {
		duration -= time.Duration(hours * float64(time.Hour))
	}

	minutes := math.Floor(duration.Minutes())
	if minutes > 0 {
		duration -= time.Duration(minutes * float64(time.Minute))
	}

	seconds := duration.Seconds()

	switch {
	case hours >= 2:
		return fmt.Sprintf("%.0f hours %.0f minutes %.0f seconds", hours, minutes, seconds)
	case hours == 1 && minutes == 0 && seconds == 0:
		return fmt.Sprintf("%.0f hour", hours)
	case hours == 1:
		return fmt.Sprintf("%.0f hour %.0f minutes %.0f seconds", hours, minutes, seconds)

	case minutes >= 2:
		return fmt.Sprintf("%.0f minutes %.0f seconds", minutes, seconds)
	case minutes == 1 && seconds == 0:
		return fmt.Sprintf("%.0f minute", minutes)
	case minutes == 1:
		return fmt.Sprintf("%.0f minute %.0f seconds", minutes, seconds)

	case seconds == 0 || seconds == 1 || seconds >= 1 && seconds < 1.1:
		return fmt.Sprintf("%.0f second", seconds)
	case seconds < 1:
		return fmt.Sprintf("%.1f seconds", seconds)

	default:
		return fmt.Sprintf("%.0f seconds", seconds)
	}
}

// MillisecondsToDuration returns the duration of ms milliseconds.
func MillisecondsToDuration(ms uint) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
