// Package app wires the command line to the prober.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"github.com/pouriyajamshidi/sipping"
	"github.com/pouriyajamshidi/sipping/dns"
	"github.com/pouriyajamshidi/sipping/internal/log"
	"github.com/pouriyajamshidi/sipping/localaddr"
	"github.com/pouriyajamshidi/sipping/pingers"
	"github.com/pouriyajamshidi/sipping/printers"
	"github.com/pouriyajamshidi/sipping/resultlog"
)

// env is what Run takes from the process. Tests supply their own.
type env struct {
	stdout   io.Writer
	stderr   io.Writer
	terminal bool
	// discover replaces local address discovery when set.
	discover localaddr.DiscoverFunc
	// resolver replaces the default DNS resolver when set.
	resolver *dns.Resolver
}

// Run executes the sipping application and returns an exit code
func Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, os.Args[1:], env{
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		terminal: term.IsTerminal(int(os.Stdout.Fd())),
	})
}

func run(ctx context.Context, args []string, e env) int {
	cfg, err := ProcessUserInput(args)
	if err != nil {
		return handleError(ctx, err, e)
	}

	if !e.terminal {
		cfg.PrinterConfig.NoColor = true
	}
	cfg.PrinterConfig.Writer = e.stdout

	logger := newLogger(cfg, e)

	ip, port, err := resolveTarget(ctx, cfg, e.resolver)
	if err != nil {
		logger.Debug("target resolution failed", slog.String("host", cfg.Host), slog.Any("error", err))
		if cfg.PrinterConfig.RTTOnly {
			fmt.Fprintln(e.stdout, printers.LostRTT)
			return 1
		}
		fmt.Fprintf(e.stderr, "error: %v\n", err)
		return 1
	}
	cfg.Port = port
	cfg.PrinterConfig.Port = port

	local, err := newLocalAddr(ctx, cfg, e.discover, logger)
	if err != nil {
		fmt.Fprintf(e.stderr, "error: %v\n", err)
		return 1
	}

	results, err := resultlog.New(logPath(cfg, ip), resultlog.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(e.stderr, "error: %v\n", err)
		return 1
	}
	defer results.Close()

	printer, err := sipping.NewPrinter(cfg.PrinterConfig)
	if err != nil {
		fmt.Fprintf(e.stderr, "error: %v\n", err)
		return 1
	}

	pinger := pingers.NewUDPPinger(ip, port,
		pingers.WithTimeout(cfg.Timeout),
		pingers.WithStrictMatch(cfg.Strict),
		pingers.WithLogger(logger),
	)

	prober := buildProber(pinger, printer, results, local, cfg, ip, logger)

	stats, err := prober.Probe(ctx)
	if err != nil {
		printer.PrintError("%v", err)
	}

	return sipping.ExitCode(stats, err)
}

func newLogger(cfg Config, e env) *slog.Logger {
	if !cfg.Debug {
		return log.New(e.stderr, log.Options{Level: slog.LevelWarn, NoColor: !e.terminal})
	}
	return log.New(e.stderr, log.Options{Level: slog.LevelDebug, Dev: true})
}

// resolveTarget returns the address and port to probe. With SRV lookup the
// port comes from the record unless -p was given.
func resolveTarget(ctx context.Context, cfg Config, resolver *dns.Resolver) (netip.Addr, uint16, error) {
	if ip, err := netip.ParseAddr(cfg.Host); err == nil {
		return ip.Unmap(), cfg.Port, nil
	}

	if resolver == nil {
		var opts []dns.ResolverOption
		switch {
		case cfg.UseIPv4:
			opts = append(opts, dns.WithIPv4Only())
		case cfg.UseIPv6:
			opts = append(opts, dns.WithIPv6Only())
		}
		resolver = dns.NewResolver(opts...)
	}

	if cfg.SRV {
		ap, err := resolver.LookupSIPServer(ctx, cfg.Host)
		if err != nil {
			return netip.Addr{}, 0, err
		}
		if cfg.PortSet {
			return ap.Addr(), cfg.Port, nil
		}
		return ap.Addr(), ap.Port(), nil
	}

	ip, err := resolver.ResolveHostname(ctx, cfg.Host)
	if err != nil {
		return netip.Addr{}, 0, err
	}
	return ip, cfg.Port, nil
}

// newLocalAddr checks the Via address once up front, so a host without a
// usable address fails before the first probe.
func newLocalAddr(ctx context.Context, cfg Config, discover localaddr.DiscoverFunc, logger *slog.Logger) (*localaddr.Resolver, error) {
	opts := []localaddr.ResolverOption{localaddr.WithLogger(logger)}
	if discover != nil {
		opts = append(opts, localaddr.WithDiscoverFunc(discover))
	}

	local, err := localaddr.New(cfg.LocalIP, opts...)
	if err != nil {
		return nil, err
	}

	if _, err := local.Addr(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", sipping.ErrLocalAddr, err)
	}

	return local, nil
}

func logPath(cfg Config, ip netip.Addr) string {
	if cfg.LogPath != "" {
		return cfg.LogPath
	}
	return resultlog.DefaultPath(ip.String())
}

func buildProber(pinger sipping.Pinger, printer sipping.Printer, results sipping.ResultLogger,
	local *localaddr.Resolver, cfg Config, ip netip.Addr, logger *slog.Logger,
) *sipping.Prober {
	opts := []sipping.ProberOption{
		sipping.WithPrinter(printer),
		sipping.WithInterval(cfg.Interval),
		sipping.WithCount(cfg.Count),
		sipping.WithResultLogger(results),
		sipping.WithLocalAddr(local.Addr),
		sipping.WithUserID(cfg.UserID),
		sipping.WithDomain(cfg.Domain),
		sipping.WithMaxForwards(cfg.MaxForwards),
		sipping.WithLogger(logger),
	}

	if cfg.Host != ip.String() {
		opts = append(opts, sipping.WithHostname(cfg.Host))
	}

	return sipping.NewProber(pinger, opts...)
}

func handleError(ctx context.Context, err error, e env) int {
	switch {
	case errors.Is(err, ErrVersionRequested):
		PrintVersion(e.stdout)
		return 0

	case errors.Is(err, ErrUpdateCheckRequested):
		msg, checkErr := CheckForUpdates(ctx, nil)
		if checkErr != nil {
			fmt.Fprintf(e.stderr, "error: %v\n", checkErr)
			return 1
		}
		fmt.Fprintln(e.stdout, msg)
		return 0

	case errors.Is(err, ErrUsageRequested):
		if err != ErrUsageRequested { //nolint:errorlint // wrapped usage errors carry the reason
			fmt.Fprintf(e.stderr, "error: %v\n", err)
		}
		PrintUsage(e.stdout, filepath.Base(os.Args[0]))
		return 1
	}

	fmt.Fprintf(e.stderr, "error: %v\n", err)
	return 1
}
