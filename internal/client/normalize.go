package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Logger name prefixes the server uses.
const (
	rootPrefix     = "maubot."
	clientPrefix   = "client."
	instancePrefix = "instance."
)

// ErrMalformed is wrapped by every frame decoding failure.
var ErrMalformed = errors.New("malformed message")

// pythonISO is datetime.isoformat() output without a zone.
const pythonISO = "2006-01-02T15:04:05"

// Normalize decodes a raw log record and applies the display rules: parse
// the time, drop the root logger prefix, and derive NameLink for client and
// instance loggers. History replay and live entries go through the same path.
func Normalize(raw json.RawMessage) (LogRecord, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return LogRecord{}, err
	}
	return normalizeFields(fields), nil
}

func decodeObject(raw []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected JSON object", ErrMalformed)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fields, nil
}

func normalizeFields(fields map[string]json.RawMessage) LogRecord {
	var rec LogRecord
	take(fields, "id", &rec.ID)
	take(fields, "name", &rec.Name)
	if !take(fields, "levelname", &rec.Level) {
		take(fields, "level", &rec.Level)
	}
	if !take(fields, "msg", &rec.Message) {
		take(fields, "message", &rec.Message)
	}
	take(fields, "module", &rec.Module)
	take(fields, "funcName", &rec.FuncName)
	take(fields, "lineno", &rec.Line)
	take(fields, "pathname", &rec.Path)
	if raw, ok := fields["time"]; ok {
		rec.Time = parseTime(raw)
		delete(fields, "time")
	}
	if len(fields) > 0 {
		rec.Extra = fields
	}

	rec.Name, rec.NameLink = linkName(rec.Name)
	return rec
}

// take decodes fields[key] into dst and removes it. Values of the wrong type
// stay in the map so they survive in Extra.
func take(fields map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false
	}
	delete(fields, key)
	return true
}

func linkName(name string) (display, link string) {
	name = strings.TrimPrefix(name, rootPrefix)
	switch {
	case strings.HasPrefix(name, clientPrefix):
		name = strings.TrimPrefix(name, clientPrefix)
		return name, "/client/" + name
	case strings.HasPrefix(name, instancePrefix):
		return name, "/instance/" + strings.TrimPrefix(name, instancePrefix)
	default:
		return name, ""
	}
}

// maxEpochMillis keeps ms*1000 inside int64.
const maxEpochMillis = math.MaxInt64 / 1000

// parseTime accepts epoch milliseconds (fractions kept to the microsecond)
// or an ISO 8601 string. Anything else, including timestamps out of range,
// yields the zero time.
func parseTime(raw json.RawMessage) time.Time {
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		if math.Abs(ms) >= maxEpochMillis {
			return time.Time{}
		}
		return time.UnixMicro(int64(math.Round(ms * 1000)))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(pythonISO, s, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
