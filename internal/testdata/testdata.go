// Package testdata provides shared test helpers and fixtures.
package testdata

import (
	"bytes"
	"io"
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/pouriyajamshidi/sipping/pingers"
	"github.com/pouriyajamshidi/sipping/sip"
	"github.com/pouriyajamshidi/sipping/statistics"
)

// Common test fixture values
const (
	TestHostname = "sip.example.com"
	TestPort     = uint16(5060)
	TestCallID   = "a84b4c76e6"
	TestResponse = "SIP/2.0 200 OK"
)

var (
	TestIP        = netip.MustParseAddr("192.0.2.10")
	TestPeer      = netip.AddrPortFrom(TestIP, TestPort)
	TestTimestamp = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
)

// ToPtr returns a pointer to the provided value.
func ToPtr[T any](v T) *T {
	return &v
}

// NewStats returns statistics for TestIP that started at TestTimestamp.
func NewStats() *statistics.Statistics {
	s := statistics.New(TestIP, TestPort)
	s.StartTime = TestTimestamp
	return &s
}

// NewHostnameStats is NewStats for a target given as TestHostname.
func NewHostnameStats() *statistics.Statistics {
	s := NewStats()
	s.Hostname = TestHostname
	s.DestIsIP = false
	return s
}

// Request returns a request carrying TestCallID.
func Request() sip.Request {
	return sip.Request{
		CallID: TestCallID,
		Branch: sip.BranchMagicCookie + "776asdhds",
		Text:   "OPTIONS sip:ping@192.0.2.10 SIP/2.0\r\n",
	}
}

// Success returns an answered attempt that took ms milliseconds.
func Success(ms float64) pingers.Outcome {
	return pingers.Outcome{
		Kind:      pingers.Success,
		Request:   Request(),
		SentAt:    TestTimestamp,
		Elapsed:   ms,
		Peer:      TestPeer,
		FirstLine: TestResponse,
		Raw:       []byte(TestResponse + "\r\nCall-ID: " + TestCallID + "\r\n\r\n"),
	}
}

// Timeout returns an unanswered attempt.
func Timeout() pingers.Outcome {
	return pingers.Outcome{
		Kind:    pingers.Timeout,
		Request: Request(),
		SentAt:  TestTimestamp,
	}
}

// CaptureStderr captures stderr during function execution and returns it as a string.
func CaptureStderr(t *testing.T, fn func()) string {
	t.Helper()

	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stderr = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r) //nolint:errcheck
		done <- buf.String()
	}()

	fn()

	w.Close()
	output := <-done
	os.Stderr = oldStderr

	return output
}
