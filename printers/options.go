package printers

import (
	"io"
	"os"
)

// options contains common display options shared by all printers
type options struct {
	Writer      io.Writer
	Quiet       bool
	NoStats     bool
	RawSent     bool
	RawReceived bool
}

func (o *options) out() io.Writer {
	if o.Writer == nil {
		return os.Stdout
	}
	return o.Writer
}

type hasOptions interface {
	options() *options
}

// WithWriter sends printer output to w instead of stdout
func WithWriter[T hasOptions](w io.Writer) func(T) {
	return func(p T) {
		p.options().Writer = w
	}
}

// WithQuiet suppresses the per probe status lines
func WithQuiet[T hasOptions](quiet bool) func(T) {
	return func(p T) {
		p.options().Quiet = quiet
	}
}

// WithNoStats suppresses the periodic loss statistics
func WithNoStats[T hasOptions](noStats bool) func(T) {
	return func(p T) {
		p.options().NoStats = noStats
	}
}

// WithRawSent prints every transmitted request
func WithRawSent[T hasOptions](raw bool) func(T) {
	return func(p T) {
		p.options().RawSent = raw
	}
}

// WithRawReceived prints every received datagram
func WithRawReceived[T hasOptions](raw bool) func(T) {
	return func(p T) {
		p.options().RawReceived = raw
	}
}
