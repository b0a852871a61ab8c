package printers

import (
	"github.com/pouriyajamshidi/sipping/pingers"
	"github.com/pouriyajamshidi/sipping/sip"
	"github.com/pouriyajamshidi/sipping/statistics"
)

type printer interface {
	PrintStart(s *statistics.Statistics)
	PrintProbeSent(s *statistics.Statistics, req sip.Request)
	PrintProbeSuccess(s *statistics.Statistics, o pingers.Outcome)
	PrintProbeFailure(s *statistics.Statistics, o pingers.Outcome)
	PrintStatistics(s *statistics.Statistics)
	PrintError(format string, args ...any)
	Shutdown(s *statistics.Statistics)
}

// MultiPrinter forwards every call to each of its printers in order.
type MultiPrinter struct {
	printers []printer
}

// NewMultiPrinter combines printers, e.g. a console printer with the database.
func NewMultiPrinter(printers ...printer) *MultiPrinter {
	return &MultiPrinter{printers: printers}
}

func (m *MultiPrinter) PrintStart(s *statistics.Statistics) {
	for _, p := range m.printers {
		p.PrintStart(s)
	}
}

func (m *MultiPrinter) PrintProbeSent(s *statistics.Statistics, req sip.Request) {
	for _, p := range m.printers {
		p.PrintProbeSent(s, req)
	}
}

func (m *MultiPrinter) PrintProbeSuccess(s *statistics.Statistics, o pingers.Outcome) {
	for _, p := range m.printers {
		p.PrintProbeSuccess(s, o)
	}
}

func (m *MultiPrinter) PrintProbeFailure(s *statistics.Statistics, o pingers.Outcome) {
	for _, p := range m.printers {
		p.PrintProbeFailure(s, o)
	}
}

func (m *MultiPrinter) PrintStatistics(s *statistics.Statistics) {
	for _, p := range m.printers {
		p.PrintStatistics(s)
	}
}

// PrintError is only forwarded to the first printer, so an error shows up once.
func (m *MultiPrinter) PrintError(format string, args ...any) {
	if len(m.printers) > 0 {
		m.printers[0].PrintError(format, args...)
	}
}

func (m *MultiPrinter) Shutdown(s *statistics.Statistics) {
	for _, p := range m.printers {
		p.Shutdown(s)
	}
}
