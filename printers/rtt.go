package printers

import (
	"fmt"
	"os"
	"strings"

	"github.com/pouriyajamshidi/sipping/option"
	"github.com/pouriyajamshidi/sipping/pingers"
	"github.com/pouriyajamshidi/sipping/sip"
	"github.com/pouriyajamshidi/sipping/statistics"
)

// LostRTT is printed for an unanswered probe in RTT mode.
const LostRTT = "0.0"

// RTTPrinter prints nothing but the latency of each probe, one per line,
// for consumption by other programs.
type RTTPrinter struct {
	opt options
}

type RTTPrinterOption = option.Option[RTTPrinter]

func (p *RTTPrinter) options() *options {
	return &p.opt
}

// NewRTTPrinter creates a new RTTPrinter instance.
func NewRTTPrinter(opts ...RTTPrinterOption) *RTTPrinter {
	p := &RTTPrinter{}
	option.Apply(p, opts...)
	return p
}

// FormatRTT renders a latency the way RTT mode prints it, always with a
// fractional part.
func FormatRTT(ms float64) string {
	s := statistics.FormatLatency(ms)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// PrintStart satisfies the "printer" interface but does nothing in this implementation
func (p *RTTPrinter) PrintStart(_ *statistics.Statistics) {}

// PrintProbeSent dumps the request when asked to.
func (p *RTTPrinter) PrintProbeSent(_ *statistics.Statistics, req sip.Request) {
	if p.opt.RawSent {
		fmt.Fprintln(p.opt.out(), req.Text)
	}
}

// PrintProbeSuccess prints the latency.
func (p *RTTPrinter) PrintProbeSuccess(_ *statistics.Statistics, o pingers.Outcome) {
	fmt.Fprintln(p.opt.out(), FormatRTT(o.Elapsed))
	if p.opt.RawReceived {
		fmt.Fprintln(p.opt.out(), string(o.Raw))
	}
}

// PrintProbeFailure prints LostRTT.
func (p *RTTPrinter) PrintProbeFailure(_ *statistics.Statistics, _ pingers.Outcome) {
	fmt.Fprintln(p.opt.out(), LostRTT)
}

// PrintStatistics prints the periodic summary unless NoStats is set.
func (p *RTTPrinter) PrintStatistics(s *statistics.Statistics) {
	if p.opt.NoStats {
		return
	}
	p.printStats(s)
}

func (p *RTTPrinter) printStats(s *statistics.Statistics) {
	snap := s.Snapshot()
	fmt.Fprintln(p.opt.out(), countersMessage(snap))
	if msg := latencyMessage(snap); msg != "" {
		fmt.Fprintln(p.opt.out(), msg)
	}
}

// PrintError prints an error message to stderr, keeping stdout parseable.
func (p *RTTPrinter) PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Shutdown prints the statistics of an interrupted run. A run that used
// up its count ends on the last latency line.
func (p *RTTPrinter) Shutdown(s *statistics.Statistics) {
	if !s.Interrupted {
		return
	}
	fmt.Fprintf(p.opt.out(), "\n%s\n", interruptedMessage)
	p.printStats(s)
}
