// Package pingers implements the probe transport: one SIP OPTIONS round trip per call.
package pingers

//go:generate errtrace -w .

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"time"

	"braces.dev/errtrace"

	"github.com/pouriyajamshidi/sipping/option"
	"github.com/pouriyajamshidi/sipping/sip"
)

var (
	// ErrTransport is returned when the socket cannot be used; the run should stop.
	ErrTransport = errors.New("transport failure")
	// ErrInterrupted is returned when the context is cancelled while an attempt is in flight.
	ErrInterrupted = errors.New("probe interrupted")
)

const (
	// DefaultPort is the well-known SIP port.
	DefaultPort = 5060
	// DefaultTimeout bounds the wait for a reply.
	DefaultTimeout = time.Second
	// ReadBufferSize matches the receive buffer of the original tool.
	ReadBufferSize = 1024

	udp4 = "udp4"
	udp6 = "udp6"
)

// PacketListener opens datagram sockets. *net.ListenConfig satisfies it.
type PacketListener interface {
	ListenPacket(ctx context.Context, network, address string) (net.PacketConn, error)
}

// RequestFunc renders the request once the local port of the fresh socket is known.
type RequestFunc func(localPort uint16) sip.Request

// UDPPinger sends a single OPTIONS per Ping over a freshly bound UDP socket.
type UDPPinger struct {
	listener PacketListener
	ip       netip.Addr
	port     uint16
	timeout  time.Duration
	strict   bool
	logger   *slog.Logger
}

// UDPOptions configures a UDPPinger.
type UDPOptions = option.Option[UDPPinger]

// NewUDPPinger creates a pinger for ip:port.
func NewUDPPinger(ip netip.Addr, port uint16, opts ...UDPOptions) *UDPPinger {
	u := &UDPPinger{
		listener: &net.ListenConfig{},
		ip:       ip.Unmap(),
		port:     port,
		timeout:  DefaultTimeout,
		logger:   slog.New(slog.DiscardHandler),
	}
	option.Apply(u, opts...)
	return u
}

// WithTimeout sets how long Ping waits for a reply.
func WithTimeout(timeout time.Duration) UDPOptions {
	return func(u *UDPPinger) {
		u.timeout = timeout
	}
}

// WithListener replaces the socket factory.
func WithListener(l PacketListener) UDPOptions {
	return func(u *UDPPinger) {
		u.listener = l
	}
}

// WithStrictMatch makes Ping ignore datagrams whose Call-ID differs from
// the request. By default the first datagram on the socket is the reply.
func WithStrictMatch(strict bool) UDPOptions {
	return func(u *UDPPinger) {
		u.strict = strict
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) UDPOptions {
	return func(u *UDPPinger) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// IP returns the target address.
func (u *UDPPinger) IP() netip.Addr {
	return u.ip
}

// Port returns the target port.
func (u *UDPPinger) Port() uint16 {
	return u.port
}

// Timeout returns the per-attempt reply timeout.
func (u *UDPPinger) Timeout() time.Duration {
	return u.timeout
}

func (u *UDPPinger) target() netip.AddrPort {
	return netip.AddrPortFrom(u.ip, u.port)
}

func (u *UDPPinger) network() string {
	if u.ip.Is4() {
		return udp4
	}
	return udp6
}

func (u *UDPPinger) bindAddress() string {
	if u.ip.Is4() {
		return "0.0.0.0:0"
	}
	return "[::]:0"
}

// Ping performs one attempt. A missing reply is reported as a Timeout
// outcome with a nil error. If ctx is cancelled during the wait the
// Timeout outcome is returned together with ErrInterrupted.
func (u *UDPPinger) Ping(ctx context.Context, build RequestFunc) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, errtrace.Wrap(fmt.Errorf("%w: %w", ErrInterrupted, err))
	}

	conn, err := u.listener.ListenPacket(ctx, u.network(), u.bindAddress())
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, errtrace.Wrap(fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err()))
		}
		return Outcome{}, errtrace.Wrap(fmt.Errorf("%w: bind: %w", ErrTransport, err))
	}
	defer conn.Close()

	localPort, err := portOf(conn.LocalAddr())
	if err != nil {
		return Outcome{}, errtrace.Wrap(fmt.Errorf("%w: local port: %w", ErrTransport, err))
	}
	u.logger.Debug("socket bound", slog.Any("conn", conn))

	req := build(localPort)
	out := Outcome{Request: req}

	start := time.Now()
	if err := conn.SetReadDeadline(start.Add(u.timeout)); err != nil {
		return Outcome{}, errtrace.Wrap(fmt.Errorf("%w: set deadline: %w", ErrTransport, err))
	}

	// unblocks ReadFrom as soon as ctx is done
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now()) //nolint:errcheck
	})
	defer stop()

	out.SentAt = start
	if _, err := conn.WriteTo(req.Bytes(), net.UDPAddrFromAddrPort(u.target())); err != nil {
		return Outcome{}, errtrace.Wrap(fmt.Errorf("%w: send: %w", ErrTransport, err))
	}

	u.logger.Debug("probe sent",
		slog.String("call_id", req.CallID),
		slog.Any("target", u.target()),
		slog.Int("local_port", int(localPort)),
	)

	buf := make([]byte, ReadBufferSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			out.Kind = Timeout

			if ctx.Err() != nil {
				return out, errtrace.Wrap(fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx)))
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				u.logger.Debug("probe timed out", slog.String("call_id", req.CallID), slog.Duration("timeout", u.timeout))
				return out, nil
			}

			return Outcome{}, errtrace.Wrap(fmt.Errorf("%w: receive: %w", ErrTransport, err))
		}

		elapsed := time.Since(start)
		raw := bytes.Clone(buf[:n])

		if u.strict && !sip.MatchesRequest(raw, req) {
			u.logger.Debug("ignoring unrelated datagram", slog.String("call_id", req.CallID), slog.Any("from", addr))
			continue
		}

		out.Kind = Success
		out.Elapsed = DurationToMilliseconds(elapsed)
		out.Peer = addrPortOf(addr)
		out.FirstLine = sip.FirstLine(raw)
		out.Raw = raw

		u.logger.Debug("probe answered",
			slog.String("call_id", req.CallID),
			slog.Any("peer", out.Peer),
			slog.Float64("elapsed_ms", out.Elapsed),
		)

		return out, nil
	}
}

func portOf(addr net.Addr) (uint16, error) {
	if ua, ok := addr.(*net.UDPAddr); ok {
		return uint16(ua.Port), nil
	}
	if addr == nil {
		return 0, errtrace.Wrap(errors.New("no local address"))
	}

	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0, errtrace.Wrap(err)
	}

	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return 0, errtrace.Wrap(err)
	}

	return uint16(p), nil
}

func addrPortOf(addr net.Addr) netip.AddrPort {
	if ua, ok := addr.(*net.UDPAddr); ok {
		ap := ua.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	if addr == nil {
		return netip.AddrPort{}
	}

	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return netip.AddrPort{}
	}
	return ap
}
