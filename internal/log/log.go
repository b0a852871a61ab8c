// Package log builds the diagnostic loggers. Probe results never go through
// here; they belong to the printers.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/golang-cz/devslog"
	"github.com/phsym/console-slog"
	slogformatter "github.com/samber/slog-formatter"
)

var newHandler = slogformatter.NewFormatterHandler(
	slogformatter.ErrorFormatter("error"),
	slogformatter.FormatByType(func(c net.PacketConn) slog.Value {
		return slog.GroupValue(
			slog.String("type", fmt.Sprintf("%T", c)),
			slog.Any("local_addr", c.LocalAddr()),
		)
	}),
	slogformatter.FormatByType(func(ap netip.AddrPort) slog.Value {
		return slog.StringValue(ap.String())
	}),
	slogformatter.FormatByType(func(a netip.Addr) slog.Value {
		return slog.StringValue(a.String())
	}),
)

// Options selects the handler of a logger.
type Options struct {
	// Level below which records are dropped.
	Level slog.Level
	// Dev switches to the verbose developer handler.
	Dev bool
	// NoColor disables ANSI colors of the console handler.
	NoColor bool
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	if opts.Dev {
		return slog.New(newHandler(
			devslog.NewHandler(w, &devslog.Options{
				HandlerOptions: &slog.HandlerOptions{
					AddSource: true,
					Level:     opts.Level,
				},
				SortKeys:   true,
				TimeFormat: time.RFC3339Nano,
			}),
		))
	}

	return slog.New(newHandler(
		console.NewHandler(w, &console.HandlerOptions{
			Level:      opts.Level,
			NoColor:    opts.NoColor,
			TimeFormat: time.TimeOnly,
		}),
	))
}
