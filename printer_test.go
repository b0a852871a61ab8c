package sipping_test

import (
	"bytes"
	"net/netip"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pouriyajamshidi/sipping"
	"github.com/pouriyajamshidi/sipping/printers"
	"github.com/pouriyajamshidi/sipping/sip"
	"github.com/pouriyajamshidi/sipping/statistics"
)

func TestNewPrinter(t *testing.T) {
	tests := []struct {
		name string
		cfg  sipping.PrinterConfig
		want sipping.Printer
	}{
		{"color by default", sipping.PrinterConfig{}, &printers.ColorPrinter{}},
		{"plain", sipping.PrinterConfig{NoColor: true}, &printers.PlainPrinter{}},
		{"json", sipping.PrinterConfig{OutputJSON: true, NoColor: true}, &printers.JSONPrinter{}},
		{"rtt wins over color settings", sipping.PrinterConfig{RTTOnly: true, NoColor: true}, &printers.RTTPrinter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Writer = &bytes.Buffer{}
			p, err := sipping.NewPrinter(tt.cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
		})
	}
}

func TestNewPrinter_Conflicts(t *testing.T) {
	_, err := sipping.NewPrinter(sipping.PrinterConfig{PrettyJSON: true})
	assert.ErrorIs(t, err, sipping.ErrPrettyWithoutJSON)

	_, err = sipping.NewPrinter(sipping.PrinterConfig{RTTOnly: true, OutputJSON: true})
	assert.ErrorIs(t, err, sipping.ErrConflictingOutput)
}

func TestNewPrinter_Database(t *testing.T) {
	var buf bytes.Buffer
	p, err := sipping.NewPrinter(sipping.PrinterConfig{
		NoColor:      true,
		Writer:       &buf,
		OutputDBPath: filepath.Join(t.TempDir(), "results.db"),
		Target:       "pbx.example.com",
		Port:         5060,
	})
	require.NoError(t, err)
	require.IsType(t, &printers.MultiPrinter{}, p)

	stats := statistics.New(netip.MustParseAddr("192.0.2.1"), 5060)
	p.Shutdown(&stats)
	assert.Contains(t, buf.String(), "Results have been saved to")
}

func TestNewPrinter_RTTRawSent(t *testing.T) {
	var buf bytes.Buffer
	p, err := sipping.NewPrinter(sipping.PrinterConfig{
		RTTOnly: true,
		RawSent: true,
		Writer:  &buf,
	})
	require.NoError(t, err)

	stats := statistics.New(netip.MustParseAddr("192.0.2.1"), 5060)
	p.PrintProbeSent(&stats, sip.Request{Text: "OPTIONS sip:pbx.example.com SIP/2.0"})
	assert.Equal(t, "OPTIONS sip:pbx.example.com SIP/2.0\n", buf.String())
}

func TestNewPrinter_DatabaseError(t *testing.T) {
	_, err := sipping.NewPrinter(sipping.PrinterConfig{
		OutputDBPath: filepath.Join(t.TempDir(), "missing", "results.db"),
		Target:       "pbx.example.com",
		Port:         5060,
	})
	assert.Error(t, err)
}
