package app

import (
	"errors"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/pouriyajamshidi/sipping"
	"github.com/pouriyajamshidi/sipping/localaddr"
	"github.com/pouriyajamshidi/sipping/statistics"
)

var (
	// ErrUsageRequested indicates usage help was requested
	ErrUsageRequested = errors.New("usage requested")

	// ErrVersionRequested indicates version display was requested
	ErrVersionRequested = errors.New("version requested")

	// ErrUpdateCheckRequested indicates update check was requested
	ErrUpdateCheckRequested = errors.New("update check requested")
)

const (
	defaultPort      = 5060
	defaultTimeoutMs = 1000
	defaultLogPath   = "[[default]]"
)

// Config contains all configuration needed to create and run a prober.
type Config struct {
	// Target configuration
	Host    string
	Port    uint16
	PortSet bool
	SRV     bool
	UseIPv4 bool
	UseIPv6 bool

	// Request content
	UserID      string
	Domain      string
	MaxForwards uint
	LocalIP     string

	// Timing options
	Interval time.Duration
	Timeout  time.Duration

	// Probe control
	Count  sipping.Count
	Strict bool

	// LogPath is empty when the default per-target file should be used.
	LogPath string

	// Output options
	PrinterConfig sipping.PrinterConfig

	// Diagnostics
	Debug bool
}

// newFlagSet declares every flag on a fresh set, so parsing has no global state.
func newFlagSet(cfg *Config, logPath *string, intervalMs, timeoutMs, count *uint, showVer, checkUpdate *bool) *flag.FlagSet {
	fs := flag.NewFlagSet("sipping", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false
	fs.Usage = func() {
		// no-op, usage is printed by the app package
	}

	pc := &cfg.PrinterConfig

	fs.UintVarP(intervalMs, "interval", "I", uint(sipping.DefaultInterval/time.Millisecond), "interval in milliseconds between pings")
	fs.StringVarP(&cfg.UserID, "user", "u", sipping.DefaultUserID, "user part of the From header")
	fs.StringVarP(&cfg.LocalIP, "local-ip", "i", localaddr.Auto, "IP to send in the Via header (detected when *)")
	fs.StringVarP(&cfg.Domain, "domain", "d", sipping.DefaultDomain, "domain part of the From header")
	fs.Uint16VarP(&cfg.Port, "port", "p", defaultPort, "destination port")
	fs.UintVar(&cfg.MaxForwards, "ttl", sipping.DefaultMaxForwards, "value of the Max-Forwards header")
	fs.StringVarP(logPath, "write", "w", defaultLogPath, "file to write results to, sipping-logs/<ip>.csv by default, * to disable")
	fs.UintVarP(timeoutMs, "timeout", "t", defaultTimeoutMs, "time in milliseconds to wait for a response")
	fs.UintVarP(count, "count", "c", 0, "number of pings to send, 0 for infinite")
	fs.BoolVarP(&pc.RawSent, "raw-sent", "x", false, "print raw transmitted requests")
	fs.BoolVarP(&pc.RawReceived, "raw-received", "X", false, "print raw received responses")
	fs.BoolVarP(&pc.Quiet, "quiet", "q", false, "do not print status messages (-x and -X ignore this)")
	fs.BoolVarP(&pc.NoStats, "no-stats", "S", false, "do not print loss statistics")
	fs.BoolVar(&pc.RTTOnly, "rtt", false, "only print the rtt in ms on success, or 0.0 on failure")
	fs.BoolVarP(&pc.OutputJSON, "json", "j", false, "output in JSON format")
	fs.BoolVar(&pc.PrettyJSON, "pretty", false, "use indentation when using json output format. No effect without the -j flag")
	fs.BoolVar(&pc.NoColor, "no-color", false, "do not colorize output")
	fs.StringVar(&pc.OutputDBPath, "db", "", "path and file name to store results in a sqlite database")
	fs.BoolVar(&cfg.SRV, "srv", false, "look up the target through _sip._udp SRV records")
	fs.BoolVar(&cfg.Strict, "strict", false, "only accept replies carrying the Call-ID of the request")
	fs.BoolVarP(&cfg.UseIPv4, "ipv4", "4", false, "only use IPv4")
	fs.BoolVarP(&cfg.UseIPv6, "ipv6", "6", false, "only use IPv6")
	fs.BoolVar(&cfg.Debug, "debug", false, "print diagnostic logs to stderr")
	fs.BoolVarP(showVer, "version", "v", false, "show version and exit")
	fs.BoolVar(checkUpdate, "check-update", false, "check for updates and exit")

	return fs
}

// ProcessUserInput parses args, the command line without the program name.
func ProcessUserInput(args []string) (Config, error) {
	var (
		cfg                      Config
		logPath                  string
		intervalMs, timeoutMs, n uint
		showVer, checkUpdate     bool
	)

	fs := newFlagSet(&cfg, &logPath, &intervalMs, &timeoutMs, &n, &showVer, &checkUpdate)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, ErrUsageRequested
		}
		return Config{}, fmt.Errorf("%w: %w", ErrUsageRequested, err)
	}

	if showVer {
		return Config{}, ErrVersionRequested
	}

	if checkUpdate {
		return Config{}, ErrUpdateCheckRequested
	}

	if fs.NArg() != 1 {
		return Config{}, ErrUsageRequested
	}

	if err := validate(cfg, timeoutMs); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrUsageRequested, err)
	}

	cfg.Host = fs.Arg(0)
	cfg.PortSet = fs.Changed("port")
	cfg.Interval = statistics.MillisecondsToDuration(intervalMs)
	cfg.Timeout = statistics.MillisecondsToDuration(timeoutMs)
	cfg.Count = sipping.CountFromFlag(n)

	if logPath != defaultLogPath {
		cfg.LogPath = logPath
	}

	cfg.PrinterConfig.Target = cfg.Host
	cfg.PrinterConfig.Port = cfg.Port

	return cfg, nil
}

func validate(cfg Config, timeoutMs uint) error {
	switch {
	case cfg.UseIPv4 && cfg.UseIPv6:
		return errors.New("only one IP version can be specified")
	case cfg.Port == 0:
		return errors.New("port should be in 1..65535 range")
	case timeoutMs == 0:
		return errors.New("timeout should be at least 1 ms")
	case cfg.PrinterConfig.PrettyJSON && !cfg.PrinterConfig.OutputJSON:
		return sipping.ErrPrettyWithoutJSON
	case cfg.PrinterConfig.RTTOnly && cfg.PrinterConfig.OutputJSON:
		return sipping.ErrConflictingOutput
	}
	return nil
}
