package printers_test

import (
	"bytes"
	"testing"

	"github.com/pouriyajamshidi/sipping/internal/testdata"
	"github.com/pouriyajamshidi/sipping/printers"
)

func TestFormatRTT(t *testing.T) {
	tests := []struct {
		ms   float64
		want string
	}{
		{12, "12.0"},
		{12.3, "12.3"},
		{0.25, "0.25"},
		{0, "0.0"},
	}

	for _, tt := range tests {
		if got := printers.FormatRTT(tt.ms); got != tt.want {
			t.Errorf("FormatRTT(%v) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestRTTPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := printers.NewRTTPrinter(
		printers.WithWriter[*printers.RTTPrinter](&buf),
		printers.WithNoStats[*printers.RTTPrinter](true),
	)

	s := testdata.NewStats()
	p.PrintStart(s)
	p.PrintProbeSent(s, testdata.Request())
	p.PrintProbeSuccess(s, testdata.Success(12))
	p.PrintProbeSent(s, testdata.Request())
	p.PrintProbeFailure(s, testdata.Timeout())
	p.PrintStatistics(s)
	p.Shutdown(s)

	want := "12.0\n" + printers.LostRTT + "\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestRTTPrinter_PeriodicStatistics(t *testing.T) {
	var buf bytes.Buffer
	p := printers.NewRTTPrinter(printers.WithWriter[*printers.RTTPrinter](&buf))

	s := testdata.NewStats()
	s.Record(testdata.Success(12))
	s.Record(testdata.Timeout())
	p.PrintStatistics(s)

	want := "\t[Recd: 1 | Lost: 1] \t[loss stats: length of current run: 1]\n" +
		"\t[min/max/avg 12/12/12]\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestRTTPrinter_RawDumps(t *testing.T) {
	var buf bytes.Buffer
	p := printers.NewRTTPrinter(
		printers.WithWriter[*printers.RTTPrinter](&buf),
		printers.WithRawSent[*printers.RTTPrinter](true),
		printers.WithRawReceived[*printers.RTTPrinter](true),
	)

	s := testdata.NewStats()
	success := testdata.Success(7.5)
	p.PrintProbeSent(s, testdata.Request())
	p.PrintProbeSuccess(s, success)

	want := testdata.Request().Text + "\n" + "7.5\n" + string(success.Raw) + "\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestRTTPrinter_Shutdown(t *testing.T) {
	tests := []struct {
		name        string
		interrupted bool
		want        string
	}{
		{
			name: "count used up",
			want: "",
		},
		{
			name:        "interrupted",
			interrupted: true,
			want:        "\nCtrl+C - exiting.\n\t[Recd: 1 | Lost: 0]\n\t[min/max/avg 3.5/3.5/3.5]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := printers.NewRTTPrinter(
				printers.WithWriter[*printers.RTTPrinter](&buf),
				printers.WithNoStats[*printers.RTTPrinter](true),
			)

			s := testdata.NewStats()
			s.Record(testdata.Success(3.5))
			s.Interrupted = tt.interrupted
			p.Shutdown(s)

			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
