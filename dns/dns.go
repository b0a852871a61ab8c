// Package dns handles all hostname resolution logic
package dns

//go:generate errtrace -w .

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/netip"
	"slices"
	"strings"
	"time"

	"braces.dev/errtrace"
	mdns "github.com/miekg/dns"

	"github.com/pouriyajamshidi/sipping/option"
)

var (
	ErrNoIPv4Address = errors.New("no ipv4 address found")
	ErrNoIPv6Address = errors.New("no ipv6 address found")
	ErrNoIPAddresses = errors.New("no ip addresses")
	ErrResolve       = errors.New("resolve hostname")
	ErrNoSRVRecords  = errors.New("no SRV records")
)

// SIP service labels used for SRV discovery.
const (
	SIPService = "sip"
	SIPProto   = "udp"
)

// Resolver handles hostname resolution with configurable options
type Resolver struct {
	timeout    time.Duration
	useIPv4    bool
	useIPv6    bool
	nameServer string
	resolvConf string
}

type ResolverOption = option.Option[Resolver]

// WithTimeout sets the DNS resolution timeout
func WithTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.timeout = timeout
	}
}

// WithIPv4Only configures the resolver to only return IPv4 addresses
func WithIPv4Only() ResolverOption {
	return func(r *Resolver) {
		r.useIPv4 = true
		r.useIPv6 = false
	}
}

// WithIPv6Only configures the resolver to only return IPv6 addresses
func WithIPv6Only() ResolverOption {
	return func(r *Resolver) {
		r.useIPv4 = false
		r.useIPv6 = true
	}
}

// WithNameServer sets the server queried for SRV records (e.g. "9.9.9.9:53").
// Without it the first server of resolv.conf is used.
func WithNameServer(addr string) ResolverOption {
	return func(r *Resolver) {
		r.nameServer = addr
	}
}

// WithResolvConf sets the resolv.conf consulted when no name server is given.
func WithResolvConf(path string) ResolverOption {
	return func(r *Resolver) {
		r.resolvConf = path
	}
}

const (
	defaultTimeout    = 2 * time.Second
	defaultResolvConf = "/etc/resolv.conf"
	ipv4OrIPv6        = "ip" // allows LookupNetIP to use both IPv4 and IPv6
)

// NewResolver creates a new DNS resolver with optional configuration
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		timeout:    defaultTimeout,
		resolvConf: defaultResolvConf,
	}
	option.Apply(r, opts...)
	return r
}

// ResolveHostname resolves a hostname to an IP address respecting the context deadline
func (r *Resolver) ResolveHostname(ctx context.Context, hostname string) (netip.Addr, error) {
	ip, err := netip.ParseAddr(hostname)
	if err == nil {
		return ip.Unmap(), nil
	}

	lctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ipAddrs, err := net.DefaultResolver.LookupNetIP(lctx, ipv4OrIPv6, hostname)
	if err != nil {
		return netip.Addr{}, errtrace.Wrap(fmt.Errorf("%w: %s: %w", ErrResolve, hostname, err))
	}

	filtered, err := r.filter(hostname, ipAddrs)
	if err != nil {
		return netip.Addr{}, errtrace.Wrap(err)
	}

	return errtrace.Wrap2(selectRandomIP(filtered))
}

// LookupSIPServer finds the SIP server of domain through its _sip._udp SRV
// records. The record with the lowest priority and highest weight wins; its
// target is resolved using the additional section when present.
func (r *Resolver) LookupSIPServer(ctx context.Context, domain string) (netip.AddrPort, error) {
	name := fmt.Sprintf("_%s._%s.%s", SIPService, SIPProto, strings.TrimSuffix(domain, "."))

	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(name), mdns.TypeSRV)
	m.RecursionDesired = true

	nameserver, err := r.nameserverAddr()
	if err != nil {
		return netip.AddrPort{}, errtrace.Wrap(fmt.Errorf("%w: %s: %w", ErrResolve, name, err))
	}

	client := &mdns.Client{Timeout: r.timeout}
	resp, _, err := client.ExchangeContext(ctx, m, nameserver)
	if err != nil {
		return netip.AddrPort{}, errtrace.Wrap(fmt.Errorf("%w: %s: %w", ErrResolve, name, err))
	}

	if resp.Rcode != mdns.RcodeSuccess {
		return netip.AddrPort{}, errtrace.Wrap(fmt.Errorf("%w: %s: %w", ErrResolve, name, &net.DNSError{
			Err:        mdns.RcodeToString[resp.Rcode],
			Name:       name,
			IsNotFound: resp.Rcode == mdns.RcodeNameError,
		}))
	}

	var srvs []*mdns.SRV
	for _, ans := range resp.Answer {
		if rr, ok := ans.(*mdns.SRV); ok {
			srvs = append(srvs, rr)
		}
	}
	if len(srvs) == 0 {
		return netip.AddrPort{}, errtrace.Wrap(fmt.Errorf("%w: %s", ErrNoSRVRecords, name))
	}

	slices.SortFunc(srvs, func(a, b *mdns.SRV) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(b.Weight, a.Weight)
	})
	best := srvs[0]

	if ip, ok := r.fromExtra(best.Target, resp.Extra); ok {
		return netip.AddrPortFrom(ip, best.Port), nil
	}

	ip, err := r.ResolveHostname(ctx, strings.TrimSuffix(best.Target, "."))
	if err != nil {
		return netip.AddrPort{}, errtrace.Wrap(err)
	}

	return netip.AddrPortFrom(ip, best.Port), nil
}

func (r *Resolver) fromExtra(target string, extra []mdns.RR) (netip.Addr, bool) {
	var addrs []netip.Addr
	for _, rr := range extra {
		if !strings.EqualFold(rr.Header().Name, target) {
			continue
		}
		switch v := rr.(type) {
		case *mdns.A:
			if ip, ok := netip.AddrFromSlice(v.A); ok {
				addrs = append(addrs, ip.Unmap())
			}
		case *mdns.AAAA:
			if ip, ok := netip.AddrFromSlice(v.AAAA); ok {
				addrs = append(addrs, ip)
			}
		}
	}

	filtered, err := r.filter(target, addrs)
	if err != nil || len(filtered) == 0 {
		return netip.Addr{}, false
	}
	return filtered[0], true
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Resolver) filter(hostname string, ipAddrs []netip.Addr) ([]netip.Addr, error) {
	switch {
	case r.useIPv4:
		filtered := filterIPv4(ipAddrs)
		if len(filtered) == 0 {
			return nil, errtrace.Wrap(fmt.Errorf("%w: %s", ErrNoIPv4Address, hostname))
		}
		return filtered, nil
	case r.useIPv6:
		filtered := filterIPv6(ipAddrs)
		if len(filtered) == 0 {
			return nil, errtrace.Wrap(fmt.Errorf("%w: %s", ErrNoIPv6Address, hostname))
		}
		return filtered, nil
	default:
		return unmapAddresses(ipAddrs), nil
	}
}

func (r *Resolver) nameserverAddr() (string, error) {
	if r.nameServer != "" {
		if _, _, err := net.SplitHostPort(r.nameServer); err != nil {
			return net.JoinHostPort(r.nameServer, "53"), nil //nolint:nilerr
		}
		return r.nameServer, nil
	}

	conf, err := mdns.ClientConfigFromFile(r.resolvConf)
	if err != nil {
		return "", errtrace.Wrap(err)
	}
	if len(conf.Servers) == 0 {
		return "", errtrace.Wrap(&net.DNSError{
			Err:  "no DNS servers configured",
			Name: r.resolvConf,
		})
	}

	return net.JoinHostPort(conf.Servers[0], conf.Port), nil
}

// ResolveHostname is a package-level convenience function that uses default settings
func ResolveHostname(ctx context.Context, hostname string, useIPv4, useIPv6 bool) (netip.Addr, error) {
	var opts []ResolverOption
	if useIPv4 {
		opts = append(opts, WithIPv4Only())
	} else if useIPv6 {
		opts = append(opts, WithIPv6Only())
	}
	r := NewResolver(opts...)
	return errtrace.Wrap2(r.ResolveHostname(ctx, hostname))
}

func selectRandomIP(ipAddrs []netip.Addr) (netip.Addr, error) {
	if len(ipAddrs) == 0 {
		return netip.Addr{}, errtrace.Wrap(ErrNoIPAddresses)
	}
	return ipAddrs[rand.IntN(len(ipAddrs))], nil
}

func filterIPv4(ipAddrs []netip.Addr) []netip.Addr {
	var ipList []netip.Addr
	for _, ip := range ipAddrs {
		// static builds (CGO=0) return IPv4-mapped IPv6 addresses
		if ip.Is4() || ip.Is4In6() {
			ipList = append(ipList, ip.Unmap())
		}
	}
	return ipList
}

func filterIPv6(ipAddrs []netip.Addr) []netip.Addr {
	var ipList []netip.Addr
	for _, ip := range ipAddrs {
		if ip.Is6() && !ip.Is4In6() {
			ipList = append(ipList, ip)
		}
	}
	return ipList
}

func unmapAddresses(ipAddrs []netip.Addr) []netip.Addr {
	ipList := make([]netip.Addr, len(ipAddrs))
	for i, ip := range ipAddrs {
		ipList[i] = ip.Unmap()
	}
	return ipList
}
