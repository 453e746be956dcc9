package logger

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

const defaultRecentSize = 1000

// LogEntry is a parsed log line as served by the admin API.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// RecentLogs is an io.Writer that keeps the last entries written by zerolog.
type RecentLogs struct {
	buffer *RingBuffer[LogEntry]
}

// NewRecentLogs creates a buffer holding up to size entries.
func NewRecentLogs(size int) *RecentLogs {
	if size <= 0 {
		size = defaultRecentSize
	}
	return &RecentLogs{buffer: NewRingBuffer[LogEntry](size)}
}

// Write implements io.Writer. It receives JSON log entries from zerolog;
// malformed input is dropped.
func (r *RecentLogs) Write(p []byte) (int, error) {
	if entry, err := parseLogEntry(p); err == nil {
		r.buffer.Push(entry)
	}
	return len(p), nil
}

// Entries returns up to limit of the newest entries at or above minLevel,
// oldest first. An empty minLevel returns every level.
func (r *RecentLogs) Entries(limit int, minLevel string) []LogEntry {
	all := r.buffer.GetAll()
	if minLevel != "" {
		threshold := ParseLevel(minLevel)
		filtered := all[:0]
		for _, e := range all {
			if lvl, err := zerolog.ParseLevel(e.Level); err == nil && lvl >= threshold {
				filtered = append(filtered, e)
			}
		}
		all = filtered
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

func parseLogEntry(data []byte) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{}
	take := func(key string) string {
		v, _ := raw[key].(string)
		delete(raw, key)
		return v
	}
	entry.Timestamp = take(zerolog.TimestampFieldName)
	entry.Level = take(zerolog.LevelFieldName)
	entry.Component = take("component")
	entry.Message = take(zerolog.MessageFieldName)

	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, nil
}
