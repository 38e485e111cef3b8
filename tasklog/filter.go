package tasklog

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/warp/incentive-engine/textfold"
)

// MinElapsed is the floor of the validity window: tasks closed this fast
// (or faster) were scanned through, not performed.
const MinElapsed = 10 * time.Second

// =============================================================================
// TARGET TABLE
// =============================================================================

// TypeTarget is the maximum time allowed for one task type.
type TypeTarget struct {
	Type   string
	Target time.Duration
}

// TargetTable maps task types to their target time. Lookups ignore accents,
// case and surrounding whitespace.
type TargetTable struct {
	byKey map[string]TypeTarget
}

// NewTargetTable builds a table from type name to target.
func NewTargetTable(targets map[string]time.Duration) TargetTable {
	t := TargetTable{byKey: make(map[string]TypeTarget, len(targets))}
	for name, d := range targets {
		t.byKey[textfold.Key(name)] = TypeTarget{Type: strings.TrimSpace(name), Target: d}
	}
	return t
}

// DefaultTargets is the table shipped with the standard catalog.
func DefaultTargets() TargetTable {
	return NewTargetTable(map[string]time.Duration{
		"Armazenagem":   5 * time.Minute,
		"Ressuprimento": 4 * time.Minute,
		"Transferência": 3 * time.Minute,
		"Remanejamento": 6 * time.Minute,
		"Expedição":     4 * time.Minute,
	})
}

// Lookup returns the target of a task type.
func (t TargetTable) Lookup(taskType string) (TypeTarget, bool) {
	tt, ok := t.byKey[textfold.Key(taskType)]
	return tt, ok
}

// Targets returns every entry sorted by type name.
func (t TargetTable) Targets() []TypeTarget {
	out := make([]TypeTarget, 0, len(t.byKey))
	for _, tt := range t.byKey {
		out = append(out, tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Len returns the number of task types.
func (t TargetTable) Len() int {
	return len(t.byKey)
}

// =============================================================================
// OPERATOR MATCHING
// =============================================================================

var dotsAndSpaces = regexp.MustCompile(`[.\s]+`)

// NormalizeOperator trims, upper-cases and collapses dots and whitespace
// into single spaces: " maria.  souza " becomes "MARIA SOUZA".
func NormalizeOperator(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = dotsAndSpaces.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// IsOperatorMatch reports whether a record's operator field refers to the
// searched operator: equal after normalization, or either one contains the
// other. Partial names are common in exports. An empty name matches nothing.
func IsOperatorMatch(recordOperator, searched string) bool {
	a, b := NormalizeOperator(recordOperator), NormalizeOperator(searched)
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// =============================================================================
// VALIDITY FILTER
// =============================================================================

// TypeCount is the number of valid tasks of one type.
type TypeCount struct {
	Type   string
	Count  int
	Target time.Duration
}

// Summary is the result of CountValidTasks.
type Summary struct {
	Total   int
	PerType []TypeCount
	// Matched counts completed records of the operator, valid or not.
	Matched int
}

// Filter counts valid tasks against a target table.
type Filter struct {
	Targets TargetTable
}

// NewFilter creates a filter over the given targets.
func NewFilter(targets TargetTable) *Filter {
	return &Filter{Targets: targets}
}

// CountValidTasks counts the operator's completed tasks whose elapsed time
// is in (MinElapsed, target]. Types missing from the table and records
// without both timestamps are skipped. PerType omits types with no valid
// task and is sorted by type name.
func (f *Filter) CountValidTasks(records []TaskRecord, operator string) Summary {
	counts := make(map[string]*TypeCount)
	var s Summary

	for _, r := range records {
		if !IsOperatorMatch(r.OperatorName, operator) || !r.IsCompleted() {
			continue
		}
		s.Matched++

		target, ok := f.Targets.Lookup(r.Type)
		if !ok {
			continue
		}
		elapsed, ok := r.Elapsed()
		if !ok || !IsValidElapsed(elapsed, target.Target) {
			continue
		}

		tc, ok := counts[target.Type]
		if !ok {
			tc = &TypeCount{Type: target.Type, Target: target.Target}
			counts[target.Type] = tc
		}
		tc.Count++
		s.Total++
	}

	s.PerType = make([]TypeCount, 0, len(counts))
	for _, tc := range counts {
		s.PerType = append(s.PerType, *tc)
	}
	sort.Slice(s.PerType, func(i, j int) bool { return s.PerType[i].Type < s.PerType[j].Type })
	return s
}

// IsValidElapsed applies the validity window.
func IsValidElapsed(elapsed, target time.Duration) bool {
	return elapsed > MinElapsed && elapsed <= target
}
