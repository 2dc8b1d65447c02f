package model

import "time"

// TimestampLayout is the timestamp format of the ingested log lines.
const TimestampLayout = "2006-01-02 15:04:05,000"

// Level is the severity level written by the producing application.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
	LevelDebug   Level = "DEBUG"
	LevelUnknown Level = "UNKNOWN"
)

// LogRecord is one parsed log line. It is never mutated after parsing;
// ID is assigned by the store.
type LogRecord struct {
	ID        int64     `json:"id"`
	Timestamp string    `json:"timestamp"`
	Level     Level     `json:"level"`
	Logger    string    `json:"logger"`
	Message   string    `json:"message"`
	SourceIP  string    `json:"source_ip"`
	Raw       string    `json:"raw"`
	LoggedAt  time.Time `json:"logged_at"`
}

// HasSourceIP reports whether an address was extracted from the message.
func (r LogRecord) HasSourceIP() bool {
	return r.SourceIP != ""
}
