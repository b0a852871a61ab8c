package printers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pouriyajamshidi/sipping/option"
	"github.com/pouriyajamshidi/sipping/pingers"
	"github.com/pouriyajamshidi/sipping/sip"
	"github.com/pouriyajamshidi/sipping/statistics"
)

// JSONEventType is a special type for each method
// in the printer interface so that automatic tools
// can understand what kind of an event they've received.
// For instance, start vs probe vs statistics...
type JSONEventType string

const (
	startEvent      JSONEventType = "start"      // Event type for `PrintStart` method.
	sentEvent       JSONEventType = "sent"       // Event type for `PrintProbeSent` method.
	probeEvent      JSONEventType = "probe"      // Event type for both `PrintProbeSuccess` and `PrintProbeFailure`.
	statisticsEvent JSONEventType = "statistics" // Event type for `PrintStatistics` method.
	summaryEvent    JSONEventType = "summary"    // Event type for `Shutdown` method.
	errorEvent      JSONEventType = "error"      // Event type for `PrintError` method.
)

// JSONData contains all possible fields for JSON output.
// Because one event usually contains only a subset of fields,
// other fields will be omitted in the output.
type JSONData struct {
	Type JSONEventType `json:"type"`
	// Success is a pointer so that success=false is still printed for
	// probe events while being omitted everywhere else.
	Success        *bool   `json:"success,omitempty"`
	Timestamp      string  `json:"timestamp,omitempty"`
	Message        string  `json:"message"`
	IPAddr         string  `json:"ipAddress,omitempty"`
	Hostname       string  `json:"hostname,omitempty"`
	Port           uint16  `json:"port,omitempty"`
	LocalAddr      string  `json:"localAddress,omitempty"` // Address announced in the Via header.
	CallID         string  `json:"callId,omitempty"`
	Peer           string  `json:"peer,omitempty"`
	Response       string  `json:"response,omitempty"`
	Raw            string  `json:"raw,omitempty"`
	Latency        float64 `json:"latency,omitempty"` // Latency in ms for successful probes.
	Received       *uint   `json:"received,omitempty"`
	Lost           *uint   `json:"lost,omitempty"`
	LongestRunLoss uint    `json:"longestRunLoss,omitempty"`
	LastRunLoss    uint    `json:"lastRunLoss,omitempty"`
	CurrentRunLoss uint    `json:"currentRunLoss,omitempty"`
	LatencyMin     string  `json:"latencyMin,omitempty"`
	LatencyAvg     string  `json:"latencyAvg,omitempty"`
	LatencyMax     string  `json:"latencyMax,omitempty"`
	PacketLoss     string  `json:"packetLoss,omitempty"`
	StartTimestamp string  `json:"startTimestamp,omitempty"`
	EndTimestamp   string  `json:"endTimestamp,omitempty"`
	TotalDuration  string  `json:"totalDuration,omitempty"` // TotalDuration in seconds.
	Interrupted    bool    `json:"interrupted,omitempty"`
}

// JSONPrinter is a struct that holds a JSON encoder to print structured JSON output.
type JSONPrinter struct {
	encoder *json.Encoder
	pretty  bool
	opt     options
}

type JSONPrinterOption = option.Option[JSONPrinter]

func (p *JSONPrinter) options() *options {
	return &p.opt
}

// NewJSONPrinter creates a new JSONPrinter instance.
// If pretty is true, the JSON output will be formatted with indentation.
func NewJSONPrinter(pretty bool, opts ...JSONPrinterOption) *JSONPrinter {
	p := &JSONPrinter{pretty: pretty}
	option.Apply(p, opts...)

	p.encoder = json.NewEncoder(p.opt.out())
	if pretty {
		p.encoder.SetIndent("", "\t")
	}

	return p
}

func (p *JSONPrinter) encode(data JSONData) {
	if data.Timestamp == "" {
		data.Timestamp = now().Format(time.RFC3339Nano)
	}
	p.encoder.Encode(data) //nolint:errcheck
}

func (p *JSONPrinter) target(s *statistics.Statistics, data *JSONData) {
	data.IPAddr = s.IP.String()
	data.Port = s.Port
	if s.LocalAddr.IsValid() {
		data.LocalAddr = s.LocalAddr.String()
	}
	if !s.DestIsIP {
		data.Hostname = s.Hostname
	}
}

// PrintStart prints the initial message before doing probes.
func (p *JSONPrinter) PrintStart(s *statistics.Statistics) {
	data := JSONData{
		Type:    startEvent,
		Message: startMessage(s),
	}
	p.target(s, &data)
	p.encode(data)
}

// PrintProbeSent prints an event for every request that is about to be sent.
func (p *JSONPrinter) PrintProbeSent(s *statistics.Statistics, req sip.Request) {
	if p.opt.Quiet && !p.opt.RawSent {
		return
	}

	data := JSONData{
		Type:    sentEvent,
		Message: sentMessage(s, req),
		CallID:  req.CallID,
	}
	if p.opt.RawSent {
		data.Raw = req.Text
	}
	p.target(s, &data)
	p.encode(data)
}

// PrintProbeSuccess prints a probe event for a reply.
func (p *JSONPrinter) PrintProbeSuccess(s *statistics.Statistics, o pingers.Outcome) {
	if p.opt.Quiet {
		return
	}

	t := true
	data := JSONData{
		Type:     probeEvent,
		Success:  &t,
		Message:  successMessage(o),
		CallID:   o.Request.CallID,
		Peer:     o.Peer.String(),
		Response: o.FirstLine,
		Latency:  o.Elapsed,
	}
	if p.opt.RawReceived {
		data.Raw = string(o.Raw)
	}
	p.target(s, &data)
	p.encode(data)
}

// PrintProbeFailure prints a probe event for a timeout.
func (p *JSONPrinter) PrintProbeFailure(s *statistics.Statistics, o pingers.Outcome) {
	if p.opt.Quiet {
		return
	}

	f := false
	data := JSONData{
		Type:           probeEvent,
		Success:        &f,
		Message:        failureMessage(s),
		CallID:         o.Request.CallID,
		CurrentRunLoss: s.CurrentRunLoss,
	}
	p.target(s, &data)
	p.encode(data)
}

// PrintStatistics prints the periodic counters.
func (p *JSONPrinter) PrintStatistics(s *statistics.Statistics) {
	if p.opt.NoStats {
		return
	}
	p.encode(p.statistics(s, statisticsEvent))
}

func (p *JSONPrinter) statistics(s *statistics.Statistics, typ JSONEventType) JSONData {
	snap := s.Snapshot()

	data := JSONData{
		Type:           typ,
		Message:        countersMessage(snap),
		Received:       &snap.Received,
		Lost:           &snap.Lost,
		LongestRunLoss: snap.LongestRunLoss,
		LastRunLoss:    snap.LastRunLoss,
		CurrentRunLoss: snap.CurrentRunLoss,
		PacketLoss:     fmt.Sprintf("%.2f", s.PacketLoss()),
	}
	p.target(s, &data)

	if snap.Latency.HasResults {
		data.LatencyMin = fmt.Sprintf("%.3f", snap.Latency.Min)
		data.LatencyAvg = fmt.Sprintf("%.3f", snap.Latency.Average)
		data.LatencyMax = fmt.Sprintf("%.3f", snap.Latency.Max)
	}

	return data
}

// PrintError formats and prints an error message in JSON format.
func (p *JSONPrinter) PrintError(format string, args ...any) {
	p.encode(JSONData{
		Type:    errorEvent,
		Message: fmt.Sprintf(format, args...),
	})
}

// Shutdown prints the final summary event.
func (p *JSONPrinter) Shutdown(s *statistics.Statistics) {
	data := p.statistics(s, summaryEvent)
	data.Message = summaryTotals(s)
	data.Interrupted = s.Interrupted

	if !s.StartTime.IsZero() {
		data.StartTimestamp = s.StartTime.Format(time.RFC3339Nano)
	}
	if !s.EndTime.IsZero() {
		data.EndTimestamp = s.EndTime.Format(time.RFC3339Nano)
	}
	data.TotalDuration = fmt.Sprintf("%.0f", s.Duration().Seconds())

	p.encode(data)
}
