package printers_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pouriyajamshidi/sipping/internal/testdata"
	"github.com/pouriyajamshidi/sipping/printers"
)

func TestMultiPrinter(t *testing.T) {
	plainPrinter, plainBuf := newPlain()
	var rttBuf bytes.Buffer
	rttPrinter := printers.NewRTTPrinter(printers.WithWriter[*printers.RTTPrinter](&rttBuf))

	m := printers.NewMultiPrinter(plainPrinter, rttPrinter)

	s := testdata.NewStats()
	m.PrintStart(s)
	m.PrintProbeSent(s, testdata.Request())
	s.Record(testdata.Success(5))
	m.PrintProbeSuccess(s, testdata.Success(5))
	s.Record(testdata.Timeout())
	m.PrintProbeFailure(s, testdata.Timeout())
	m.PrintStatistics(s)
	m.Shutdown(s)

	if got, want := rttBuf.String(), "5.0\n0.0\n"; got != want {
		t.Errorf("rtt output = %q, want %q", got, want)
	}

	for _, want := range []string{
		"SIP pinging 192.0.2.10",
		"Sending to",
		"Reply from",
		"Timed out",
		"SIP ping statistics",
	} {
		if !strings.Contains(plainBuf.String(), want) {
			t.Errorf("expected %q in plain output, got: %q", want, plainBuf.String())
		}
	}
}

func TestMultiPrinter_Empty(t *testing.T) {
	m := printers.NewMultiPrinter()

	// nothing to forward to
	m.PrintStart(testdata.NewStats())
	m.PrintError("ignored")
	m.Shutdown(testdata.NewStats())
}
