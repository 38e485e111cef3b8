/*
Package tasklog turns WMS operator task exports into counts of valid tasks.

PURPOSE:
  Equipment operators are paid per valid task. The warehouse management
  system exports one CSV row per task; this package reads that export
  (repairing it when the export tool mangled it) and counts the tasks an
  operator completed inside the allowed time window.

KEY CONCEPTS:
  TaskRecord  - one data row of the export, never persisted
  Parser      - corruption detection, reconstruction and structural parse
  Filter      - operator matching and the per-type validity window

FLOW:
  raw CSV ──► Parser.Parse ──► ParseResult{Records, Status}
                                      │
                                      ▼
              Filter.CountValidTasks(records, operator) ──► Summary

  A corrupted file is not a failure: Parse returns zero records with a
  status and a message so callers can continue.

SEE ALSO:
  - compensation: valid_tasks_count feeds the task-count branch
  - factory/catalog.go: loads the per-type target table
*/
package tasklog

import (
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the only accepted timestamp shape (DD/MM/YYYY HH:mm:ss).
const TimestampLayout = "02/01/2006 15:04:05"

var timestampPattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}$`)

// TaskRecord is one task row of an operator export.
// A zero AssociatedAt or AlteredAt means the cell held no usable timestamp.
type TaskRecord struct {
	Type         string
	OperatorName string
	AssociatedAt time.Time
	AlteredAt    time.Time
	Completed    string
}

// IsCompleted reports whether the completion flag is set.
func (r TaskRecord) IsCompleted() bool {
	return strings.TrimSpace(r.Completed) == "1"
}

// Elapsed returns |AlteredAt - AssociatedAt|. ok is false when either
// timestamp is missing.
func (r TaskRecord) Elapsed() (d time.Duration, ok bool) {
	if r.AssociatedAt.IsZero() || r.AlteredAt.IsZero() {
		return 0, false
	}
	d = r.AlteredAt.Sub(r.AssociatedAt)
	if d < 0 {
		d = -d
	}
	return d, true
}

// ParseTimestamp parses a DD/MM/YYYY HH:mm:ss cell. Any other shape, or an
// impossible date, yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if !timestampPattern.MatchString(s) {
		return time.Time{}
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatTimestamp is the inverse of ParseTimestamp; the zero time formats as "".
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}
