package printers

import (
	"fmt"
	"os"

	"github.com/pouriyajamshidi/sipping/option"
	"github.com/pouriyajamshidi/sipping/pingers"
	"github.com/pouriyajamshidi/sipping/sip"
	"github.com/pouriyajamshidi/sipping/statistics"
)

// PlainPrinter is a printer that prints the results in a simple, plain text format.
type PlainPrinter struct {
	opt options
}

type PlainPrinterOption = option.Option[PlainPrinter]

func (p *PlainPrinter) options() *options {
	return &p.opt
}

// NewPlainPrinter creates a new PlainPrinter instance.
func NewPlainPrinter(opts ...PlainPrinterOption) *PlainPrinter {
	p := &PlainPrinter{}
	option.Apply(p, opts...)
	return p
}

func (p *PlainPrinter) println(a ...any) {
	fmt.Fprintln(p.opt.out(), a...)
}

// PrintStart prints the target and how to stop the run.
func (p *PlainPrinter) PrintStart(s *statistics.Statistics) {
	if p.opt.Quiet {
		return
	}
	p.println(startMessage(s))
	p.println(abortHint)
}

// PrintProbeSent announces a request and dumps it when asked to.
func (p *PlainPrinter) PrintProbeSent(s *statistics.Statistics, req sip.Request) {
	if !p.opt.Quiet {
		p.println(sentMessage(s, req))
	}
	if p.opt.RawSent {
		p.println(req.Text)
	}
}

// PrintProbeSuccess prints the reply line and dumps the datagram when asked to.
func (p *PlainPrinter) PrintProbeSuccess(_ *statistics.Statistics, o pingers.Outcome) {
	if !p.opt.Quiet {
		p.println(successMessage(o))
	}
	if p.opt.RawReceived {
		p.println(string(o.Raw))
	}
}

// PrintProbeFailure prints a timeout line.
func (p *PlainPrinter) PrintProbeFailure(s *statistics.Statistics, _ pingers.Outcome) {
	if p.opt.Quiet {
		return
	}
	p.println(failureMessage(s))
}

// PrintStatistics prints the periodic loss and latency summary.
func (p *PlainPrinter) PrintStatistics(s *statistics.Statistics) {
	if p.opt.NoStats {
		return
	}
	p.printStats(s)
}

func (p *PlainPrinter) printStats(s *statistics.Statistics) {
	snap := s.Snapshot()
	p.println(countersMessage(snap))
	if msg := latencyMessage(snap); msg != "" {
		p.println(msg)
	}
}

// PrintError prints an error message to stderr.
func (p *PlainPrinter) PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Shutdown prints the final summary. It ignores NoStats.
func (p *PlainPrinter) Shutdown(s *statistics.Statistics) {
	if s.Interrupted {
		p.println()
		p.println(interruptedMessage)
	}

	p.printStats(s)

	p.println()
	p.println(summaryHeader(s))
	p.println(summaryTotals(s))
}
