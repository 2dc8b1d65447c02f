// Package parser turns raw application log lines into LogRecords.
package parser

import (
	"regexp"
	"strings"
	"time"

	"log-sentinel/internal/model"
)

var (
	linePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3}) \[(\w+)\] (\S+) - (.+)`)
	ipPattern   = regexp.MustCompile(`\d+\.\d+\.\d+\.\d+`)
)

// Parser parses lines of the form
// "2026-01-05 10:30:45,123 [INFO] logger - message".
type Parser struct {
	now func() time.Time
}

// New returns a Parser that stamps malformed lines with the wall clock.
func New() *Parser {
	return &Parser{now: time.Now}
}

// NewWithClock is New with an injectable clock.
func NewWithClock(now func() time.Time) *Parser {
	if now == nil {
		now = time.Now
	}
	return &Parser{now: now}
}

// Parse never fails. Lines outside the grammar become UNKNOWN records
// carrying the whole line as message.
func (p *Parser) Parse(line string) model.LogRecord {
	line = strings.TrimRight(line, "\r\n")

	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		now := p.now()
		return model.LogRecord{
			Timestamp: now.Format(model.TimestampLayout),
			Level:     model.LevelUnknown,
			Logger:    "unknown",
			Message:   line,
			Raw:       line,
			LoggedAt:  now,
		}
	}

	rec := model.LogRecord{
		Timestamp: m[1],
		Level:     model.Level(m[2]),
		Logger:    m[3],
		Message:   m[4],
		SourceIP:  ipPattern.FindString(m[4]),
		Raw:       line,
	}

	loggedAt, err := time.ParseInLocation(model.TimestampLayout, m[1], time.Local)
	if err != nil {
		// matches the grammar but is not a real date, e.g. month 13
		loggedAt = p.now()
	}
	rec.LoggedAt = loggedAt

	return rec
}

var defaultParser = New()

// Parse parses line with the package default parser.
func Parse(line string) model.LogRecord {
	return defaultParser.Parse(line)
}
