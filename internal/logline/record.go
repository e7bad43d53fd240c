package logline

import (
	"regexp"
	"time"
)

// Level is the severity of a log line as written by the node.
type Level string

// Severity levels understood by the parser.
const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical:
		return true
	}
	return false
}

// TimeLayout is the timestamp layout at the start of every line.
// Fractional seconds are optional.
const TimeLayout = "2006-01-02T15:04:05.999999999"

// Record is one parsed log line. It is a value type and is never mutated
// after Parse returns it.
type Record struct {
	Time    time.Time
	Service string
	Module  string
	Level   Level
	Message string
}

var lineRE = regexp.MustCompile(`^([0-9-]+T[0-9:.]+) ([a-z_]+) ([a-z_.]+): ([A-Z]+) \s*(.*)$`)

// Parse parses a single line. Timestamps carry no zone and are interpreted
// in the local time zone, which is what the node writes.
func Parse(line string) (Record, bool) {
	return ParseInLocation(line, time.Local)
}

// ParseInLocation is like Parse but interprets the timestamp in loc.
func ParseInLocation(line string, loc *time.Location) (Record, bool) {
	m := lineRE.FindStringSubmatch(trimEOL(line))
	if m == nil {
		return Record{}, false
	}
	lvl := Level(m[4])
	if !lvl.Valid() {
		return Record{}, false
	}
	ts, err := time.ParseInLocation(TimeLayout, m[1], loc)
	if err != nil {
		return Record{}, false
	}
	return Record{
		Time:    ts,
		Service: m[2],
		Module:  m[3],
		Level:   lvl,
		Message: m[5],
	}, true
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
