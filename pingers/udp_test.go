package pingers_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/pouriyajamshidi/sipping/internal/log"
	"github.com/pouriyajamshidi/sipping/internal/testutil/netmock"
	"github.com/pouriyajamshidi/sipping/pingers"
	"github.com/pouriyajamshidi/sipping/sip"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type listenerFunc func(ctx context.Context, network, address string) (net.PacketConn, error)

func (f listenerFunc) ListenPacket(ctx context.Context, network, address string) (net.PacketConn, error) {
	return f(ctx, network, address)
}

func mockListener(conn net.PacketConn) pingers.PacketListener {
	return listenerFunc(func(context.Context, string, string) (net.PacketConn, error) {
		return conn, nil
	})
}

func requestFor(port uint16) sip.Request {
	return sip.NewRequest(sip.OptionsParams{
		Domain:      "gekk.info",
		UserID:      "sipping",
		MaxForwards: 70,
		LocalAddr:   netip.MustParseAddr("127.0.0.1"),
		LocalPort:   port,
	})
}

// startServer runs a UDP server on loopback that hands every datagram to reply.
func startServer(t *testing.T, reply func(req []byte) []byte) netip.AddrPort {
	t.Helper()

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("start test server: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 2048)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if resp := reply(buf[:n]); resp != nil {
				conn.WriteTo(resp, addr) //nolint:errcheck
			}
		}
	}()

	t.Cleanup(func() {
		conn.Close()
		<-done
	})

	return conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

func okFor(req []byte) []byte {
	id, _ := sip.CallID(req)
	return []byte("SIP/2.0 200 OK\r\nCall-ID: " + id + "\r\nCSeq: 1 OPTIONS\r\nContent-Length: 0\r\n\r\n")
}

func TestUDPPinger_Ping_LogsSocket(t *testing.T) {
	server := startServer(t, okFor)

	var buf bytes.Buffer
	logger := log.New(&buf, log.Options{Level: slog.LevelDebug, NoColor: true})
	pinger := pingers.NewUDPPinger(server.Addr(), server.Port(),
		pingers.WithTimeout(2*time.Second),
		pingers.WithLogger(logger),
	)

	var localPort uint16
	if _, err := pinger.Ping(t.Context(), func(port uint16) sip.Request {
		localPort = port
		return requestFor(port)
	}); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"socket bound", "*net.UDPConn", ":" + strconv.Itoa(int(localPort))} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestNewUDPPinger(t *testing.T) {
	ip := netip.MustParseAddr("192.0.2.1")
	pinger := pingers.NewUDPPinger(ip, pingers.DefaultPort)

	if pinger.IP() != ip {
		t.Errorf("IP() = %v, want %v", pinger.IP(), ip)
	}
	if pinger.Port() != pingers.DefaultPort {
		t.Errorf("Port() = %d, want %d", pinger.Port(), pingers.DefaultPort)
	}
	if pinger.Timeout() != pingers.DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", pinger.Timeout(), pingers.DefaultTimeout)
	}

	pinger = pingers.NewUDPPinger(ip, 5080, pingers.WithTimeout(250*time.Millisecond))
	if pinger.Timeout() != 250*time.Millisecond {
		t.Errorf("Timeout() = %v, want 250ms", pinger.Timeout())
	}
}

func TestUDPPinger_Ping_Reply(t *testing.T) {
	server := startServer(t, okFor)
	pinger := pingers.NewUDPPinger(server.Addr(), server.Port(), pingers.WithTimeout(2*time.Second))

	var localPort uint16
	out, err := pinger.Ping(t.Context(), func(port uint16) sip.Request {
		localPort = port
		return requestFor(port)
	})
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if localPort == 0 {
		t.Error("request was built without a local port")
	}
	if out.Kind != pingers.Success {
		t.Fatalf("Kind = %v, want %v", out.Kind, pingers.Success)
	}
	if out.FirstLine != "SIP/2.0 200 OK" {
		t.Errorf("FirstLine = %q, want %q", out.FirstLine, "SIP/2.0 200 OK")
	}
	if out.Peer != server {
		t.Errorf("Peer = %v, want %v", out.Peer, server)
	}
	if out.Elapsed < 0 || out.Elapsed > 2000 {
		t.Errorf("Elapsed = %v, want within [0, 2000]", out.Elapsed)
	}
	if !strings.Contains(string(out.Raw), "Call-ID: "+out.Request.CallID) {
		t.Errorf("Raw = %q, want the echoed Call-ID %q", out.Raw, out.Request.CallID)
	}
	if out.SentAt.IsZero() {
		t.Error("SentAt is zero")
	}
}

func TestUDPPinger_Ping_Timeout(t *testing.T) {
	server := startServer(t, func([]byte) []byte { return nil })
	pinger := pingers.NewUDPPinger(server.Addr(), server.Port(), pingers.WithTimeout(50*time.Millisecond))

	start := time.Now()
	out, err := pinger.Ping(t.Context(), requestFor)
	if err != nil {
		t.Fatalf("Ping() error = %v, a timeout is not an error", err)
	}

	if out.Kind != pingers.Timeout {
		t.Errorf("Kind = %v, want %v", out.Kind, pingers.Timeout)
	}
	if out.Request.CallID == "" {
		t.Error("timeout outcome lost its request")
	}
	if waited := time.Since(start); waited < 50*time.Millisecond {
		t.Errorf("Ping() returned after %v, before the timeout", waited)
	}
}

func TestUDPPinger_Ping_InterruptedDuringWait(t *testing.T) {
	server := startServer(t, func([]byte) []byte { return nil })
	pinger := pingers.NewUDPPinger(server.Addr(), server.Port(), pingers.WithTimeout(10*time.Second))

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	out, err := pinger.Ping(ctx, requestFor)

	if !errors.Is(err, pingers.ErrInterrupted) {
		t.Fatalf("Ping() error = %v, want %v", err, pingers.ErrInterrupted)
	}
	if out.Kind != pingers.Timeout {
		t.Errorf("Kind = %v, want %v for an attempt cut short", out.Kind, pingers.Timeout)
	}
	if waited := time.Since(start); waited > 5*time.Second {
		t.Errorf("Ping() took %v, the wait was not aborted", waited)
	}
}

func TestUDPPinger_Ping_CancelledBeforeSend(t *testing.T) {
	pinger := pingers.NewUDPPinger(netip.MustParseAddr("127.0.0.1"), 5060)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	built := false
	out, err := pinger.Ping(ctx, func(port uint16) sip.Request {
		built = true
		return requestFor(port)
	})

	if !errors.Is(err, pingers.ErrInterrupted) {
		t.Fatalf("Ping() error = %v, want %v", err, pingers.ErrInterrupted)
	}
	if out.Recorded() {
		t.Errorf("Kind = %v, want %v", out.Kind, pingers.None)
	}
	if built {
		t.Error("request built although nothing was sent")
	}
}

func TestUDPPinger_Ping_BindFailure(t *testing.T) {
	bindErr := errors.New("no sockets left")
	pinger := pingers.NewUDPPinger(
		netip.MustParseAddr("127.0.0.1"),
		5060,
		pingers.WithListener(listenerFunc(func(context.Context, string, string) (net.PacketConn, error) {
			return nil, bindErr
		})),
	)

	out, err := pinger.Ping(context.Background(), requestFor)

	if !errors.Is(err, pingers.ErrTransport) || !errors.Is(err, bindErr) {
		t.Fatalf("Ping() error = %v, want %v wrapping %v", err, pingers.ErrTransport, bindErr)
	}
	if out.Recorded() {
		t.Errorf("Kind = %v, want %v", out.Kind, pingers.None)
	}
}

func TestUDPPinger_Ping_SendFailureReleasesSocket(t *testing.T) {
	ctrl := gomock.NewController(t)

	sendErr := errors.New("network is unreachable")
	conn := netmock.NewMockPacketConn(ctrl)
	conn.EXPECT().LocalAddr().Return(&net.UDPAddr{IP: net.IPv4zero, Port: 40000})
	conn.EXPECT().SetReadDeadline(gomock.AssignableToTypeOf(time.Time{})).Return(nil)
	conn.EXPECT().WriteTo(gomock.Any(), gomock.Any()).Return(0, sendErr)
	conn.EXPECT().Close().Return(nil).Times(1)

	pinger := pingers.NewUDPPinger(netip.MustParseAddr("192.0.2.1"), 5060, pingers.WithListener(mockListener(conn)))

	_, err := pinger.Ping(context.Background(), requestFor)
	if !errors.Is(err, pingers.ErrTransport) || !errors.Is(err, sendErr) {
		t.Fatalf("Ping() error = %v, want %v wrapping %v", err, pingers.ErrTransport, sendErr)
	}
}

func TestUDPPinger_Ping_TimeoutReleasesSocket(t *testing.T) {
	ctrl := gomock.NewController(t)

	target := netip.MustParseAddrPort("192.0.2.1:5060")
	conn := netmock.NewMockPacketConn(ctrl)
	conn.EXPECT().LocalAddr().Return(&net.UDPAddr{IP: net.IPv4zero, Port: 40001})
	conn.EXPECT().SetReadDeadline(gomock.AssignableToTypeOf(time.Time{})).Return(nil)
	conn.EXPECT().
		WriteTo(gomock.Any(), gomock.Cond(func(addr *net.UDPAddr) bool {
			return addr.AddrPort() == target
		})).
		DoAndReturn(func(p []byte, _ net.Addr) (int, error) { return len(p), nil })
	conn.EXPECT().ReadFrom(gomock.Any()).Return(0, nil, os.ErrDeadlineExceeded)
	conn.EXPECT().Close().Return(nil).Times(1)

	pinger := pingers.NewUDPPinger(target.Addr(), target.Port(), pingers.WithListener(mockListener(conn)))

	var localPort uint16
	out, err := pinger.Ping(context.Background(), func(port uint16) sip.Request {
		localPort = port
		return requestFor(port)
	})
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if out.Kind != pingers.Timeout {
		t.Errorf("Kind = %v, want %v", out.Kind, pingers.Timeout)
	}
	if localPort != 40001 {
		t.Errorf("local port = %d, want 40001", localPort)
	}
}

func TestUDPPinger_Ping_Correlation(t *testing.T) {
	peer := &net.UDPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 5060}
	stray := []byte("SIP/2.0 503 Service Unavailable\r\nCall-ID: 0000000000\r\n\r\n")

	cases := []struct {
		name      string
		strict    bool
		wantFirst string
		reads     int
	}{
		{"first datagram wins", false, "SIP/2.0 503 Service Unavailable", 1},
		{"strict skips foreign call-id", true, "SIP/2.0 200 OK", 2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			var sent []byte
			conn := netmock.NewMockPacketConn(ctrl)
			conn.EXPECT().LocalAddr().Return(&net.UDPAddr{IP: net.IPv4zero, Port: 40002})
			conn.EXPECT().SetReadDeadline(gomock.Any()).Return(nil)
			conn.EXPECT().WriteTo(gomock.Any(), gomock.Any()).DoAndReturn(func(p []byte, _ net.Addr) (int, error) {
				sent = append([]byte(nil), p...)
				return len(p), nil
			})
			first := conn.EXPECT().ReadFrom(gomock.Any()).DoAndReturn(func(p []byte) (int, net.Addr, error) {
				return copy(p, stray), peer, nil
			})
			if c.reads > 1 {
				conn.EXPECT().ReadFrom(gomock.Any()).After(first).DoAndReturn(func(p []byte) (int, net.Addr, error) {
					return copy(p, okFor(sent)), peer, nil
				})
			}
			conn.EXPECT().Close().Return(nil)

			pinger := pingers.NewUDPPinger(
				netip.MustParseAddr("192.0.2.1"),
				5060,
				pingers.WithListener(mockListener(conn)),
				pingers.WithStrictMatch(c.strict),
			)

			out, err := pinger.Ping(context.Background(), requestFor)
			if err != nil {
				t.Fatalf("Ping() error = %v", err)
			}
			if out.FirstLine != c.wantFirst {
				t.Errorf("FirstLine = %q, want %q", out.FirstLine, c.wantFirst)
			}
			if out.Peer != netip.MustParseAddrPort("192.0.2.1:5060") {
				t.Errorf("Peer = %v, want 192.0.2.1:5060", out.Peer)
			}
		})
	}
}

func TestDurationToMilliseconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want float64
	}{
		{0, 0},
		{time.Millisecond, 1},
		{12345678 * time.Nanosecond, 12.35},
		{12344999 * time.Nanosecond, 12.34},
		{1500 * time.Microsecond, 1.5},
		{2 * time.Second, 2000},
	}

	for _, tt := range tests {
		if got := pingers.DurationToMilliseconds(tt.in); got != tt.want {
			t.Errorf("DurationToMilliseconds(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	for kind, want := range map[pingers.Kind]string{
		pingers.None:    "none",
		pingers.Success: "success",
		pingers.Timeout: "timeout",
	} {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
