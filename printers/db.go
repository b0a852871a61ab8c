package printers

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/pouriyajamshidi/sipping/option"
	"github.com/pouriyajamshidi/sipping/pingers"
	"github.com/pouriyajamshidi/sipping/sip"
	"github.com/pouriyajamshidi/sipping/statistics"
)

const (
	eventTypeProbe      = "probe"
	eventTypeStatistics = "statistics"
)

const (
	dataTableSchema = `CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY,
    event_type TEXT NOT NULL, -- probe or statistics
    timestamp DATETIME,
    ip_address TEXT,
    hostname TEXT,
    port INTEGER,

    call_id TEXT,
    success INTEGER,
    peer TEXT,
    response TEXT,
    latency REAL,

    received INTEGER,
    lost INTEGER,
    longest_run_loss INTEGER,
    last_run_loss INTEGER,
    current_run_loss INTEGER,
    packet_loss REAL,

    latency_min REAL,
    latency_avg REAL,
    latency_max REAL,

    start_time DATETIME,
    end_time DATETIME,
    total_duration TEXT,
    interrupted INTEGER
	);`

	probeSaveSchema = `INSERT INTO %s (
	event_type,
	timestamp,
	ip_address,
	hostname,
	port,
	call_id,
	success,
	peer,
	response,
	latency) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	statSaveSchema = `INSERT INTO %s (
	event_type,
	timestamp,
	ip_address,
	hostname,
	port,
	received,
	lost,
	longest_run_loss,
	last_run_loss,
	current_run_loss,
	packet_loss,
	latency_min,
	latency_avg,
	latency_max,
	start_time,
	end_time,
	total_duration,
	interrupted) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
)

// DatabasePrinter stores every probe and the final statistics of a run in
// its own SQLite table.
type DatabasePrinter struct {
	Conn      *sqlite.Conn
	DBPath    string
	TableName string
	opt       options
}

type DatabasePrinterOption = option.Option[DatabasePrinter]

func (p *DatabasePrinter) options() *options {
	return &p.opt
}

// NewDatabasePrinter opens (or creates) the database at dbPath and creates
// the table for this run.
func NewDatabasePrinter(target string, port uint16, dbPath string, opts ...DatabasePrinterOption) (*DatabasePrinter, error) {
	filename := addDBExtension(dbPath)

	conn, err := sqlite.OpenConn(filename, sqlite.OpenCreate, sqlite.OpenReadWrite)
	if err != nil {
		return nil, fmt.Errorf("create database %q: %w", filename, err)
	}

	tableName := sanitizeTableName(target, port, time.Now())

	if err := sqlitex.Execute(conn, fmt.Sprintf(dataTableSchema, tableName), nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create data table %q: %w", tableName, err)
	}

	p := &DatabasePrinter{
		Conn:      conn,
		DBPath:    filename,
		TableName: tableName,
	}
	option.Apply(p, opts...)

	return p, nil
}

func addDBExtension(filename string) string {
	if strings.HasSuffix(filename, ".db") {
		return filename
	}

	return filename + ".db"
}

// sanitizeTableName will return the sanitized and correctly formatted table name
// formatting the table name as "example_com_port__year_month_day_hour_minute_sec"
// table name can't have '.','-',':' and can't start with numbers
func sanitizeTableName(hostname string, port uint16, at time.Time) string {
	replacer := strings.NewReplacer(".", "_", "-", "_", ":", "_", " ", "_", "[", "", "]", "")

	tableName := fmt.Sprintf("%s_%d__%s",
		replacer.Replace(hostname),
		port,
		replacer.Replace(at.Format(time.DateTime)),
	)

	if unicode.IsNumber(rune(tableName[0])) || tableName[0] == '_' {
		tableName = "_" + tableName
	}

	return tableName
}

func (p *DatabasePrinter) hostname(s *statistics.Statistics) string {
	if s.DestIsIP {
		return ""
	}
	return s.Hostname
}

func (p *DatabasePrinter) saveProbe(s *statistics.Statistics, o pingers.Outcome) error {
	var peer, response string
	var latency any
	if o.Succeeded() {
		peer = o.Peer.String()
		response = o.FirstLine
		latency = o.Elapsed
	}

	args := []any{
		eventTypeProbe,
		o.SentAt.Format(time.DateTime),
		s.IP.String(),
		p.hostname(s),
		s.Port,
		o.Request.CallID,
		o.Succeeded(),
		peer,
		response,
		latency,
	}

	return sqlitex.Execute(p.Conn, fmt.Sprintf(probeSaveSchema, p.TableName), &sqlitex.ExecOptions{Args: args})
}

func (p *DatabasePrinter) saveStats(s *statistics.Statistics) error {
	snap := s.Snapshot()

	var latencyMin, latencyAvg, latencyMax any
	if snap.Latency.HasResults {
		latencyMin = snap.Latency.Min
		latencyAvg = snap.Latency.Average
		latencyMax = snap.Latency.Max
	}

	args := []any{
		eventTypeStatistics,
		time.Now().Format(time.DateTime),
		s.IP.String(),
		p.hostname(s),
		s.Port,
		snap.Received,
		snap.Lost,
		snap.LongestRunLoss,
		snap.LastRunLoss,
		snap.CurrentRunLoss,
		s.PacketLoss(),
		latencyMin,
		latencyAvg,
		latencyMax,
		s.StartTimeFormatted(),
		s.EndTimeFormatted(),
		s.Duration().String(),
		s.Interrupted,
	}

	return sqlitex.Execute(p.Conn, fmt.Sprintf(statSaveSchema, p.TableName), &sqlitex.ExecOptions{Args: args})
}

// PrintStart satisfies the "printer" interface but does nothing in this implementation
func (p *DatabasePrinter) PrintStart(_ *statistics.Statistics) {}

// PrintProbeSent satisfies the "printer" interface but does nothing in this implementation
func (p *DatabasePrinter) PrintProbeSent(_ *statistics.Statistics, _ sip.Request) {}

// PrintProbeSuccess stores the reply.
func (p *DatabasePrinter) PrintProbeSuccess(s *statistics.Statistics, o pingers.Outcome) {
	if err := p.saveProbe(s, o); err != nil {
		p.PrintError("Error while writing probe to the database %q: %s", p.DBPath, err)
	}
}

// PrintProbeFailure stores the timeout.
func (p *DatabasePrinter) PrintProbeFailure(s *statistics.Statistics, o pingers.Outcome) {
	if err := p.saveProbe(s, o); err != nil {
		p.PrintError("Error while writing probe to the database %q: %s", p.DBPath, err)
	}
}

// PrintStatistics satisfies the "printer" interface but does nothing in this implementation
func (p *DatabasePrinter) PrintStatistics(_ *statistics.Statistics) {}

// PrintError prints an error message to stderr.
func (p *DatabasePrinter) PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Shutdown stores the final statistics and closes the database.
func (p *DatabasePrinter) Shutdown(s *statistics.Statistics) {
	if p.Conn == nil {
		return
	}

	if err := p.saveStats(s); err != nil {
		p.PrintError("Error while writing stats to the database %q: %s", p.DBPath, err)
	}

	if err := p.Conn.Close(); err != nil {
		p.PrintError("Error while closing the database %q: %s", p.DBPath, err)
	}
	p.Conn = nil

	fmt.Fprintf(p.opt.out(), "Results have been saved to %q in the table %q\n", p.DBPath, p.TableName)
}
