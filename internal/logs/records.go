package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Record is one decoded line of the JSON log file.
type Record struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	Project   string
	Phase     string
	RequestID string
	EventType string
	// Fields holds every other attribute, keyed as logged.
	Fields map[string]any
	// Raw is the undecoded line; set for lines that are not JSON.
	Raw string
}

// Filter narrows records. Empty fields match everything.
type Filter struct {
	Project   string
	RequestID string
	Phase     string
	MinLevel  string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "warning": 2, "error": 3}

// ParseRecord decodes a JSON log line. Lines that are not JSON objects come
// back with only Raw set and ok false.
func ParseRecord(line string) (Record, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil || fields == nil {
		return Record{Raw: line}, false
	}
	rec := Record{Fields: map[string]any{}}
	take := func(key string) string {
		v, ok := fields[key]
		if !ok {
			return ""
		}
		delete(fields, key)
		s, _ := v.(string)
		return s
	}
	if ts := take("ts"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.Time = parsed
		}
	}
	rec.Level = strings.ToLower(take("level"))
	rec.Message = take("msg")
	rec.Component = take("component")
	rec.Project = take("project")
	rec.Phase = take("phase")
	rec.RequestID = take("request_id")
	rec.EventType = take("event_type")
	delete(fields, "source")
	for k, v := range fields {
		rec.Fields[k] = v
	}
	return rec, true
}

// Match reports whether rec passes f. Undecodable lines only pass an empty
// filter.
func (f Filter) Match(rec Record) bool {
	if rec.Raw != "" {
		return f == Filter{}
	}
	if f.Project != "" && rec.Project != f.Project {
		return false
	}
	if f.RequestID != "" && !strings.HasPrefix(rec.RequestID, f.RequestID) {
		return false
	}
	if f.Phase != "" && rec.Phase != f.Phase {
		return false
	}
	if min, ok := levelRank[strings.ToLower(f.MinLevel)]; ok {
		if rank, known := levelRank[rec.Level]; known && rank < min {
			return false
		}
	}
	return true
}

// Records decodes lines and keeps those matching f, in order.
func Records(lines []string, f Filter) []Record {
	out := make([]Record, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, _ := ParseRecord(line)
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Format renders rec on one line: time, level, component, message, then the
// remaining attributes sorted by key.
func Format(rec Record) string {
	if rec.Raw != "" {
		return rec.Raw
	}
	var b strings.Builder
	if !rec.Time.IsZero() {
		b.WriteString(rec.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", strings.ToUpper(rec.Level))
	if rec.Component != "" {
		fmt.Fprintf(&b, " [%s]", rec.Component)
	}
	b.WriteByte(' ')
	b.WriteString(rec.Message)

	extras := map[string]any{}
	for k, v := range rec.Fields {
		extras[k] = v
	}
	for k, v := range map[string]string{"phase": rec.Phase, "event_type": rec.EventType, "request_id": rec.RequestID} {
		if v != "" {
			extras[k] = v
		}
	}
	keys := make([]string, 0, len(extras))
	for k := range extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, extras[k])
	}
	return b.String()
}
