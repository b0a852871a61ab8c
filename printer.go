package sipping

import (
	"errors"
	"io"
	"os"

	"github.com/pouriyajamshidi/sipping/pingers"
	"github.com/pouriyajamshidi/sipping/printers"
	"github.com/pouriyajamshidi/sipping/sip"
	"github.com/pouriyajamshidi/sipping/statistics"
)

var (
	_ Printer = (*printers.ColorPrinter)(nil)
	_ Printer = (*printers.PlainPrinter)(nil)
	_ Printer = (*printers.JSONPrinter)(nil)
	_ Printer = (*printers.RTTPrinter)(nil)
	_ Printer = (*printers.DatabasePrinter)(nil)
	_ Printer = (*printers.MultiPrinter)(nil)
)

var (
	ErrPrettyWithoutJSON = errors.New("--pretty has no effect without the -j flag")
	ErrConflictingOutput = errors.New("--rtt cannot be combined with -j")
)

// Printer defines a set of methods that any printer implementation must provide.
// Printers are responsible for outputting information, but should not modify data or perform calculations.
type Printer interface {
	// PrintStart is printed once, before the first probe.
	PrintStart(s *statistics.Statistics)

	// PrintProbeSent is called right before a request leaves the socket.
	PrintProbeSent(s *statistics.Statistics, req sip.Request)

	// PrintProbeSuccess is called after a reply has been recorded.
	PrintProbeSuccess(s *statistics.Statistics, o pingers.Outcome)

	// PrintProbeFailure is called after a timeout has been recorded.
	PrintProbeFailure(s *statistics.Statistics, o pingers.Outcome)

	// PrintStatistics prints the periodic summary, every few probes.
	PrintStatistics(s *statistics.Statistics)

	// PrintError should print an error message.
	// Printer should also apply \n to the given string, if needed.
	PrintError(format string, args ...any)

	// Shutdown prints the final summary and releases whatever the printer holds.
	// It is called exactly once, after the last probe.
	Shutdown(s *statistics.Statistics)
}

// NewPrinter creates and returns an appropriate printer based on configuration
func NewPrinter(cfg PrinterConfig) (Printer, error) {
	if cfg.PrettyJSON && !cfg.OutputJSON {
		return nil, ErrPrettyWithoutJSON
	}
	if cfg.RTTOnly && cfg.OutputJSON {
		return nil, ErrConflictingOutput
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}

	var console Printer
	switch {
	case cfg.RTTOnly:
		console = printers.NewRTTPrinter(
			printers.WithWriter[*printers.RTTPrinter](w),
			printers.WithNoStats[*printers.RTTPrinter](cfg.NoStats),
			printers.WithRawSent[*printers.RTTPrinter](cfg.RawSent),
			printers.WithRawReceived[*printers.RTTPrinter](cfg.RawReceived),
		)

	case cfg.OutputJSON:
		console = printers.NewJSONPrinter(cfg.PrettyJSON,
			printers.WithWriter[*printers.JSONPrinter](w),
			printers.WithQuiet[*printers.JSONPrinter](cfg.Quiet),
			printers.WithNoStats[*printers.JSONPrinter](cfg.NoStats),
		)

	case cfg.NoColor:
		console = printers.NewPlainPrinter(
			printers.WithWriter[*printers.PlainPrinter](w),
			printers.WithQuiet[*printers.PlainPrinter](cfg.Quiet),
			printers.WithNoStats[*printers.PlainPrinter](cfg.NoStats),
			printers.WithRawSent[*printers.PlainPrinter](cfg.RawSent),
			printers.WithRawReceived[*printers.PlainPrinter](cfg.RawReceived),
		)

	default:
		console = printers.NewColorPrinter(
			printers.WithWriter[*printers.ColorPrinter](w),
			printers.WithQuiet[*printers.ColorPrinter](cfg.Quiet),
			printers.WithNoStats[*printers.ColorPrinter](cfg.NoStats),
			printers.WithRawSent[*printers.ColorPrinter](cfg.RawSent),
			printers.WithRawReceived[*printers.ColorPrinter](cfg.RawReceived),
		)
	}

	if cfg.OutputDBPath == "" {
		return console, nil
	}

	db, err := printers.NewDatabasePrinter(cfg.Target, cfg.Port, cfg.OutputDBPath,
		printers.WithWriter[*printers.DatabasePrinter](w),
	)
	if err != nil {
		return nil, err
	}

	return printers.NewMultiPrinter(console, db), nil
}

// PrinterConfig holds all configuration options for Printer creation
type PrinterConfig struct {
	OutputJSON   bool
	PrettyJSON   bool
	NoColor      bool
	RTTOnly      bool
	Quiet        bool
	NoStats      bool
	RawSent      bool
	RawReceived  bool
	OutputDBPath string
	Target       string
	Port         uint16
	Writer       io.Writer
}
