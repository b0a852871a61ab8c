package sipping

//go:generate errtrace -w .

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"braces.dev/errtrace"
	"github.com/qmuntal/stateless"

	"github.com/pouriyajamshidi/sipping/option"
	"github.com/pouriyajamshidi/sipping/pingers"
	"github.com/pouriyajamshidi/sipping/resultlog"
	"github.com/pouriyajamshidi/sipping/sip"
	"github.com/pouriyajamshidi/sipping/statistics"
)

var (
	// ErrTransport aborts a run when the socket could not be used.
	ErrTransport = errors.New("probe transport failed")
	// ErrLocalAddr aborts a run when no address for the Via header is available.
	ErrLocalAddr = errors.New("no local address")
	// ErrResultLog aborts a run when result lines cannot be written.
	ErrResultLog = errors.New("result log failed")
)

const (
	DefaultInterval    = 1 * time.Second
	DefaultUserID      = "sipping"
	DefaultDomain      = "gekk.info"
	DefaultMaxForwards = 70
)

// State is the lifecycle phase of a Prober.
type State string

const (
	StateIdle        State = "idle"
	StateRunning     State = "running"
	StateExhausted   State = "exhausted"
	StateInterrupted State = "interrupted"
	StateAborted     State = "aborted"
	StateTerminated  State = "terminated"
)

const (
	evtStart     = "start"
	evtExhaust   = "exhaust"
	evtInterrupt = "interrupt"
	evtAbort     = "abort"
	evtTerminate = "terminate"
)

// ResultLogger persists one line per recorded attempt. *resultlog.Logger satisfies it.
type ResultLogger interface {
	Append(r resultlog.Record)
	Flush() error
	Terminate() error
}

// LocalAddrFunc returns the address advertised in the Via header.
type LocalAddrFunc func(ctx context.Context) (netip.Addr, error)

// Prober drives probe attempts one after another and keeps their statistics.
type Prober struct {
	pinger    Pinger
	printer   Printer
	results   ResultLogger
	localAddr LocalAddrFunc
	logger    *slog.Logger
	fsm       *stateless.StateMachine

	Interval   time.Duration
	Count      Count
	Request    sip.OptionsParams
	Statistics statistics.Statistics

	sinceFlush  int
	shutdownErr error
}

type ProberOption = option.Option[Prober]

// WithInterval configures the pause between probe attempts.
func WithInterval(interval time.Duration) ProberOption {
	return func(p *Prober) {
		p.Interval = interval
	}
}

// WithPrinter configures the printer for probe output formatting.
func WithPrinter(printer Printer) ProberOption {
	return func(p *Prober) {
		p.printer = printer
	}
}

// WithCount configures how many probes are sent.
func WithCount(count Count) ProberOption {
	return func(p *Prober) {
		p.Count = count
	}
}

// WithResultLogger configures where result lines are persisted.
func WithResultLogger(l ResultLogger) ProberOption {
	return func(p *Prober) {
		p.results = l
	}
}

// WithLocalAddr configures how the Via address is obtained for each attempt.
func WithLocalAddr(fn LocalAddrFunc) ProberOption {
	return func(p *Prober) {
		p.localAddr = fn
	}
}

// WithUserID sets the user part of the To and From URIs.
func WithUserID(userID string) ProberOption {
	return func(p *Prober) {
		p.Request.UserID = userID
	}
}

// WithDomain sets the request URI domain.
func WithDomain(domain string) ProberOption {
	return func(p *Prober) {
		p.Request.Domain = domain
	}
}

// WithMaxForwards sets the Max-Forwards header.
func WithMaxForwards(hops uint) ProberOption {
	return func(p *Prober) {
		p.Request.MaxForwards = hops
	}
}

// WithHostname records the name the target was resolved from.
func WithHostname(hostname string) ProberOption {
	return func(p *Prober) {
		p.Statistics.Hostname = hostname
		p.Statistics.DestIsIP = false
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) ProberOption {
	return func(p *Prober) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProber creates a new prober with the given pinger and optional configuration.
func NewProber(p Pinger, opts ...ProberOption) *Prober {
	pr := &Prober{
		pinger:    p,
		results:   resultlog.Nop(),
		localAddr: unspecifiedFor(p.IP()),
		logger:    slog.New(slog.DiscardHandler),
		Interval:  DefaultInterval,
		Count:     Unbounded(),
		Request: sip.OptionsParams{
			Domain:      DefaultDomain,
			UserID:      DefaultUserID,
			MaxForwards: DefaultMaxForwards,
		},
		Statistics: statistics.New(p.IP(), p.Port()),
	}

	option.Apply(pr, opts...)

	if pr.printer == nil {
		pr.printer, _ = NewPrinter(PrinterConfig{})
	}

	pr.fsm = pr.newFSM()

	return pr
}

func unspecifiedFor(target netip.Addr) LocalAddrFunc {
	addr := netip.IPv4Unspecified()
	if target.Is6() && !target.Is4In6() {
		addr = netip.IPv6Unspecified()
	}
	return func(context.Context) (netip.Addr, error) {
		return addr, nil
	}
}

func (p *Prober) newFSM() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateIdle)

	fsm.Configure(StateIdle).
		Permit(evtStart, StateRunning)

	fsm.Configure(StateRunning).
		OnEntry(p.actRunning).
		Permit(evtExhaust, StateExhausted).
		Permit(evtInterrupt, StateInterrupted).
		Permit(evtAbort, StateAborted)

	fsm.Configure(StateExhausted).
		OnEntry(p.actExhausted).
		Permit(evtTerminate, StateTerminated)

	fsm.Configure(StateInterrupted).
		OnEntry(p.actInterrupted).
		Permit(evtTerminate, StateTerminated)

	fsm.Configure(StateAborted).
		OnEntryFrom(evtAbort, p.actAborted).
		Permit(evtTerminate, StateTerminated)

	fsm.Configure(StateTerminated).
		OnEntry(p.actTerminated)

	return fsm
}

// State returns the current lifecycle phase.
func (p *Prober) State() State {
	return p.fsm.MustState().(State) //nolint:forcetypeassert
}

func (p *Prober) actRunning(ctx context.Context, _ ...any) error {
	p.Statistics.StartTime = time.Now()
	p.printer.PrintStart(&p.Statistics)

	p.logger.LogAttrs(ctx, slog.LevelDebug, "probing started",
		slog.String("target", p.Statistics.Target()),
		slog.String("count", p.Count.String()),
		slog.Duration("interval", p.Interval),
	)
	return nil
}

func (p *Prober) actExhausted(ctx context.Context, _ ...any) error {
	p.logger.LogAttrs(ctx, slog.LevelDebug, "probe count exhausted", slog.Uint64("probes", uint64(p.Statistics.Total())))

	if err := p.results.Flush(); err != nil {
		p.shutdownErr = errtrace.Wrap(fmt.Errorf("%w: %w", ErrResultLog, err))
	}
	return nil
}

func (p *Prober) actInterrupted(ctx context.Context, _ ...any) error {
	p.Statistics.Interrupted = true
	p.logger.LogAttrs(ctx, slog.LevelDebug, "probing interrupted", slog.Uint64("probes", uint64(p.Statistics.Total())))

	if err := p.results.Terminate(); err != nil {
		p.shutdownErr = errtrace.Wrap(fmt.Errorf("%w: %w", ErrResultLog, err))
	}
	return nil
}

func (p *Prober) actAborted(ctx context.Context, args ...any) error {
	cause, _ := args[0].(error)
	p.logger.LogAttrs(ctx, slog.LevelError, "probing aborted", slog.Any("error", cause))

	if err := p.results.Terminate(); err != nil {
		p.shutdownErr = errtrace.Wrap(fmt.Errorf("%w: %w", ErrResultLog, err))
	}
	return nil
}

func (p *Prober) actTerminated(_ context.Context, _ ...any) error {
	p.Statistics.EndTime = time.Now()
	p.printer.Shutdown(&p.Statistics)
	return nil
}

// Probe sends probes until the count is exhausted, ctx is cancelled or the
// transport fails. Buffered result lines are always flushed before it returns.
// Cancellation is not an error.
func (p *Prober) Probe(ctx context.Context) (statistics.Statistics, error) {
	if err := p.fsm.FireCtx(ctx, evtStart); err != nil {
		return p.Statistics, errtrace.Wrap(err)
	}

	runErr := p.run(ctx)

	// shutdown must complete even though ctx may be done
	sctx := context.WithoutCancel(ctx)

	var err error
	switch {
	case runErr == nil:
		err = p.fsm.FireCtx(sctx, evtExhaust)
	case errors.Is(runErr, pingers.ErrInterrupted):
		runErr = nil
		err = p.fsm.FireCtx(sctx, evtInterrupt)
	default:
		err = p.fsm.FireCtx(sctx, evtAbort, runErr)
	}
	if err != nil {
		return p.Statistics, errtrace.Wrap(errors.Join(runErr, err))
	}

	if err := p.fsm.FireCtx(sctx, evtTerminate); err != nil {
		return p.Statistics, errtrace.Wrap(errors.Join(runErr, err))
	}

	return p.Statistics, errtrace.Wrap(errors.Join(runErr, p.shutdownErr))
}

func (p *Prober) run(ctx context.Context) error {
	for done := uint(0); p.Count.Allows(done); done++ {
		if done > 0 {
			if err := p.sleep(ctx); err != nil {
				return errtrace.Wrap(err)
			}
		}

		if err := p.probeOnce(ctx); err != nil {
			return errtrace.Wrap(err)
		}
	}

	return nil
}

func (p *Prober) sleep(ctx context.Context) error {
	timer := time.NewTimer(p.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errtrace.Wrap(fmt.Errorf("%w: %w", pingers.ErrInterrupted, context.Cause(ctx)))
	case <-timer.C:
		return nil
	}
}

func (p *Prober) probeOnce(ctx context.Context) error {
	local, err := p.localAddr(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return errtrace.Wrap(fmt.Errorf("%w: %w", pingers.ErrInterrupted, context.Cause(ctx)))
		}
		return errtrace.Wrap(fmt.Errorf("%w: %w", ErrLocalAddr, err))
	}

	p.Statistics.LocalAddr = local
	params := p.Request
	params.LocalAddr = local

	o, err := p.pinger.Ping(ctx, func(localPort uint16) sip.Request {
		params.LocalPort = localPort
		req := sip.NewRequest(params)
		p.printer.PrintProbeSent(&p.Statistics, req)
		return req
	})

	if o.Recorded() {
		if rerr := p.record(o); rerr != nil {
			return errtrace.Wrap(rerr)
		}
	}

	if err != nil {
		if errors.Is(err, pingers.ErrInterrupted) {
			return errtrace.Wrap(err)
		}
		return errtrace.Wrap(fmt.Errorf("%w: %w", ErrTransport, err))
	}

	return nil
}

func (p *Prober) record(o pingers.Outcome) error {
	p.Statistics.Record(o)

	rec := resultlog.Record{
		Time:    time.Now(),
		Host:    p.Statistics.IP.String(),
		CallID:  o.Request.CallID,
		Dropped: !o.Succeeded(),
	}
	if o.Succeeded() {
		if o.Peer.IsValid() {
			rec.Host = o.Peer.Addr().String()
		}
		rec.Latency = o.Elapsed
		rec.Response = o.FirstLine
	}
	p.results.Append(rec)

	if o.Succeeded() {
		p.printer.PrintProbeSuccess(&p.Statistics, o)
	} else {
		p.printer.PrintProbeFailure(&p.Statistics, o)
	}

	p.sinceFlush++
	if p.sinceFlush < resultlog.FlushEvery {
		return nil
	}
	p.sinceFlush = 0

	p.printer.PrintStatistics(&p.Statistics)

	if err := p.results.Flush(); err != nil {
		return errtrace.Wrap(fmt.Errorf("%w: %w", ErrResultLog, err))
	}
	return nil
}

// ExitCode maps the result of Probe to a process exit status: 1 when the
// run failed or lost any probe, 0 otherwise.
func ExitCode(s statistics.Statistics, err error) int {
	if err != nil || s.HasLoss() {
		return 1
	}
	return 0
}
