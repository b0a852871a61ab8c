// Package resultlog persists one line per probe attempt to an append-only
// CSV file, buffered and flushed in small batches.
package resultlog

//go:generate errtrace -w .

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"braces.dev/errtrace"

	"github.com/pouriyajamshidi/sipping/option"
	"github.com/pouriyajamshidi/sipping/statistics"
)

const (
	// Disabled as a path turns the logger into a no-op.
	Disabled = "*"
	// Header is the first line of every new result file.
	Header = "time,timestamp,host,latency,callid,response"
	// FlushEvery is the number of buffered lines after which the prober flushes.
	FlushEvery = 5
	// Drop marks the latency and response columns of an unanswered attempt.
	Drop = "drop"
	// DefaultDir holds result files when no path is given.
	DefaultDir = "sipping-logs"
)

const (
	filePermission os.FileMode = 0644
	dirPermission  os.FileMode = 0755
	fileFlag       int         = os.O_CREATE | os.O_WRONLY | os.O_APPEND
)

const (
	colTime = iota
	colTimestamp
	colHost
	colLatency
	colCallID
	colResponse
	numColumns
)

var (
	// ErrOpen is returned when the result file or its directory cannot be created.
	ErrOpen = errors.New("open result log")
	// ErrWrite is returned when buffered lines cannot be written.
	ErrWrite = errors.New("write result log")
	// ErrMalformedLine is returned by ParseLine for lines without six fields.
	ErrMalformedLine = errors.New("malformed result line")
)

// Record is one probe attempt as it appears in the result file.
type Record struct {
	Time     time.Time
	Host     string
	Latency  float64
	Dropped  bool
	CallID   string
	Response string
}

// Logger buffers formatted records and appends them to a file.
// The zero value is not usable; create one with New.
type Logger struct {
	file       *os.File
	pending    []string
	terminated bool
	logger     *slog.Logger
}

// LoggerOption configures a Logger.
type LoggerOption = option.Option[Logger]

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) LoggerOption {
	return func(l *Logger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Nop returns a disabled logger.
func Nop() *Logger {
	return &Logger{logger: slog.New(slog.DiscardHandler)}
}

// DefaultPath returns the result file used when none is configured.
func DefaultPath(addr string) string {
	return filepath.Join(DefaultDir, addr+".csv")
}

// New opens path for appending, creating parent directories and writing
// the header when the file does not exist yet. A path of Disabled returns
// a logger that never touches the filesystem.
func New(path string, opts ...LoggerOption) (*Logger, error) {
	l := &Logger{logger: slog.New(slog.DiscardHandler)}
	option.Apply(l, opts...)

	if path == Disabled {
		return l, nil
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, dirPermission); err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("%w: %s: %w", ErrOpen, dir, err))
		}
	}

	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	file, err := os.OpenFile(path, fileFlag, filePermission)
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("%w: %s: %w", ErrOpen, path, err))
	}
	l.file = file

	if isNew {
		if _, err := file.WriteString(Header); err != nil {
			file.Close()
			return nil, errtrace.Wrap(fmt.Errorf("%w: header: %w", ErrWrite, err))
		}
		l.logger.Debug("created result log", slog.String("path", path))
	}

	return l, nil
}

// Enabled reports whether the logger writes to a file.
func (l *Logger) Enabled() bool {
	return l.file != nil
}

// Append buffers r. Nothing is written until Flush.
func (l *Logger) Append(r Record) {
	if !l.Enabled() {
		return
	}
	l.pending = append(l.pending, FormatLine(r))
}

// Flush writes the buffered lines, each preceded by a newline, and clears
// the buffer. Flushing an empty buffer writes nothing.
func (l *Logger) Flush() error {
	if !l.Enabled() || len(l.pending) == 0 {
		return nil
	}

	chunk := "\n" + strings.Join(l.pending, "\n")
	l.pending = l.pending[:0]

	if _, err := l.file.WriteString(chunk); err != nil {
		return errtrace.Wrap(fmt.Errorf("%w: %w", ErrWrite, err))
	}
	return nil
}

// Terminate flushes and writes the closing newline that separates runs.
// Only the first call has an effect.
func (l *Logger) Terminate() error {
	if !l.Enabled() || l.terminated {
		return nil
	}
	l.terminated = true

	if err := l.Flush(); err != nil {
		return errtrace.Wrap(err)
	}
	if _, err := l.file.WriteString("\n"); err != nil {
		return errtrace.Wrap(fmt.Errorf("%w: %w", ErrWrite, err))
	}
	return nil
}

// Close flushes what is left and releases the file.
func (l *Logger) Close() error {
	if !l.Enabled() {
		return nil
	}

	flushErr := l.Flush()
	closeErr := l.file.Close()
	l.file = nil

	return errtrace.Wrap(errors.Join(flushErr, closeErr))
}

// FormatLine renders r without a trailing newline.
func FormatLine(r Record) string {
	latency, response := Drop, Drop
	if !r.Dropped {
		latency = statistics.FormatLatency(r.Latency)
		response = r.Response
	}

	fields := []string{
		statistics.FormatDisplayTime(r.Time),
		FormatTimestamp(r.Time),
		r.Host,
		latency,
		r.CallID,
		response,
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	w.Write(fields) //nolint:errcheck // strings.Builder never fails
	w.Flush()

	return strings.TrimRight(b.String(), "\n")
}

// FormatTimestamp renders t as epoch seconds with microsecond precision.
func FormatTimestamp(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}

// Line holds the fields of a parsed result line, as strings.
type Line struct {
	Time      string
	Timestamp string
	Host      string
	Latency   string
	CallID    string
	Response  string
}

// Dropped reports whether the line records an unanswered attempt.
func (l Line) Dropped() bool {
	return l.Latency == Drop
}

// ParseLine splits a result line into its fields by position.
func ParseLine(s string) (Line, error) {
	r := csv.NewReader(strings.NewReader(s))
	r.FieldsPerRecord = numColumns

	fields, err := r.Read()
	if err != nil {
		return Line{}, errtrace.Wrap(fmt.Errorf("%w: %q: %w", ErrMalformedLine, s, err))
	}

	return Line{
		Time:      fields[colTime],
		Timestamp: fields[colTimestamp],
		Host:      fields[colHost],
		Latency:   fields[colLatency],
		CallID:    fields[colCallID],
		Response:  fields[colResponse],
	}, nil
}
