// Package localaddr finds the address placed in the Via header of outgoing
// requests, either fixed by the user or discovered from the default route.
package localaddr

//go:generate errtrace -w .

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"time"

	"braces.dev/errtrace"
	"github.com/jackpal/gateway"
	"github.com/jellydator/ttlcache/v3"

	"github.com/pouriyajamshidi/sipping/option"
)

// Auto asks for discovery instead of a fixed address.
const Auto = "*"

// DefaultTTL is how long a discovered address is reused before discovering again.
const DefaultTTL = 30 * time.Second

const cacheKey = "local"

var (
	// ErrInvalidAddress is returned for a fixed address that does not parse.
	ErrInvalidAddress = errors.New("invalid local address")
	// ErrDiscovery is returned when no local address could be found.
	ErrDiscovery = errors.New("discover local address")
)

// DiscoverFunc returns the current local address.
type DiscoverFunc func(ctx context.Context) (netip.Addr, error)

// Resolver hands out the local address for each attempt.
type Resolver struct {
	fixed    netip.Addr
	discover DiscoverFunc
	cache    *ttlcache.Cache[string, netip.Addr]
	last     netip.Addr
	ttl      time.Duration
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption = option.Option[Resolver]

// WithTTL sets how long a discovered address stays cached.
func WithTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.ttl = ttl
	}
}

// WithDiscoverFunc replaces the default route based discovery.
func WithDiscoverFunc(fn DiscoverFunc) ResolverOption {
	return func(r *Resolver) {
		r.discover = fn
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New returns a Resolver for local. An empty local or Auto enables
// discovery; anything else must be an IP address.
func New(local string, opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{
		discover: Discover,
		ttl:      DefaultTTL,
		logger:   slog.New(slog.DiscardHandler),
	}
	option.Apply(r, opts...)

	if local != "" && local != Auto {
		ip, err := netip.ParseAddr(local)
		if err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("%w: %q: %w", ErrInvalidAddress, local, err))
		}
		r.fixed = ip.Unmap()
		return r, nil
	}

	r.cache = ttlcache.New(
		ttlcache.WithTTL[string, netip.Addr](r.ttl),
		ttlcache.WithDisableTouchOnHit[string, netip.Addr](),
	)

	return r, nil
}

// Fixed reports whether the address was given by the user.
func (r *Resolver) Fixed() bool {
	return r.fixed.IsValid()
}

// Addr returns the local address. Discovered addresses are cached; when
// discovery fails after an earlier success the last known address is
// returned instead of an error.
func (r *Resolver) Addr(ctx context.Context) (netip.Addr, error) {
	if r.Fixed() {
		return r.fixed, nil
	}

	if item := r.cache.Get(cacheKey); item != nil {
		return item.Value(), nil
	}

	ip, err := r.discover(ctx)
	if err != nil {
		if r.last.IsValid() {
			r.logger.Warn("local address discovery failed, reusing last address",
				slog.Any("error", err),
				slog.String("addr", r.last.String()),
			)
			return r.last, nil
		}
		return netip.Addr{}, errtrace.Wrap(fmt.Errorf("%w: %w", ErrDiscovery, err))
	}

	ip = ip.Unmap()
	if ip != r.last {
		r.logger.Debug("local address discovered", slog.String("addr", ip.String()))
	}

	r.last = ip
	r.cache.Set(cacheKey, ip, ttlcache.DefaultTTL)

	return ip, nil
}

// Discover returns the address of the interface holding the default route,
// falling back to the addresses the hostname resolves to.
func Discover(ctx context.Context) (netip.Addr, error) {
	ip, gwErr := gateway.DiscoverInterface()
	if gwErr == nil {
		if addr, ok := netip.AddrFromSlice(ip); ok {
			return addr.Unmap(), nil
		}
	}

	addr, err := fromHostname(ctx)
	if err != nil {
		return netip.Addr{}, errtrace.Wrap(errors.Join(gwErr, err))
	}
	return addr, nil
}

func fromHostname(ctx context.Context) (netip.Addr, error) {
	host, err := os.Hostname()
	if err != nil {
		return netip.Addr{}, errtrace.Wrap(err)
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, errtrace.Wrap(err)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, errtrace.Wrap(fmt.Errorf("no address for hostname %s", host))
	}

	return addrs[0].Unmap(), nil
}
