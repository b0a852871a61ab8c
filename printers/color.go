package printers

import (
	"fmt"
	"os"

	"github.com/gookit/color"

	"github.com/pouriyajamshidi/sipping/option"
	"github.com/pouriyajamshidi/sipping/pingers"
	"github.com/pouriyajamshidi/sipping/sip"
	"github.com/pouriyajamshidi/sipping/statistics"
)

// ColorPrinter prints the same lines as PlainPrinter with ANSI colors.
type ColorPrinter struct {
	opt options
}

type ColorPrinterOption = option.Option[ColorPrinter]

func (p *ColorPrinter) options() *options {
	return &p.opt
}

// NewColorPrinter creates a new ColorPrinter instance.
func NewColorPrinter(opts ...ColorPrinterOption) *ColorPrinter {
	p := &ColorPrinter{}
	option.Apply(p, opts...)
	return p
}

func (p *ColorPrinter) println(c color.Color, msg string) {
	fmt.Fprintln(p.opt.out(), c.Sprint(msg))
}

// PrintStart prints the target in light cyan.
func (p *ColorPrinter) PrintStart(s *statistics.Statistics) {
	if p.opt.Quiet {
		return
	}
	p.println(color.LightCyan, startMessage(s))
	p.println(color.Gray, abortHint)
}

// PrintProbeSent announces a request in cyan and dumps it when asked to.
func (p *ColorPrinter) PrintProbeSent(s *statistics.Statistics, req sip.Request) {
	if !p.opt.Quiet {
		p.println(color.Cyan, sentMessage(s, req))
	}
	if p.opt.RawSent {
		p.println(color.Gray, req.Text)
	}
}

// PrintProbeSuccess prints the reply line in light green.
func (p *ColorPrinter) PrintProbeSuccess(_ *statistics.Statistics, o pingers.Outcome) {
	if !p.opt.Quiet {
		p.println(color.LightGreen, successMessage(o))
	}
	if p.opt.RawReceived {
		p.println(color.Gray, string(o.Raw))
	}
}

// PrintProbeFailure prints a timeout line in red.
func (p *ColorPrinter) PrintProbeFailure(s *statistics.Statistics, _ pingers.Outcome) {
	if p.opt.Quiet {
		return
	}
	p.println(color.Red, failureMessage(s))
}

// PrintStatistics prints the periodic loss and latency summary in yellow.
func (p *ColorPrinter) PrintStatistics(s *statistics.Statistics) {
	if p.opt.NoStats {
		return
	}
	p.printStats(s)
}

func (p *ColorPrinter) printStats(s *statistics.Statistics) {
	snap := s.Snapshot()

	counters := color.Yellow
	if snap.CurrentRunLoss > 0 {
		counters = color.LightRed
	}
	p.println(counters, countersMessage(snap))

	if msg := latencyMessage(snap); msg != "" {
		p.println(color.LightBlue, msg)
	}
}

// PrintError prints an error message in red to stderr.
func (p *ColorPrinter) PrintError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, color.Red.Sprintf(format, args...))
}

// Shutdown prints the final summary. It ignores NoStats.
func (p *ColorPrinter) Shutdown(s *statistics.Statistics) {
	if s.Interrupted {
		fmt.Fprintln(p.opt.out())
		p.println(color.LightYellow, interruptedMessage)
	}

	p.printStats(s)

	fmt.Fprintln(p.opt.out())
	p.println(color.Yellow, summaryHeader(s))

	totals := color.Green
	switch loss := s.PacketLoss(); {
	case loss > 30:
		totals = color.Red
	case loss > 0:
		totals = color.LightYellow
	}
	p.println(totals, summaryTotals(s))
}
