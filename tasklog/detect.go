package tasklog

import (
	"regexp"
	"strings"

	"github.com/warp/incentive-engine/textfold"
)

// =============================================================================
// COLUMNS
// =============================================================================

// Columns names the five header cells the parser looks for. Matching is
// accent and case insensitive.
type Columns struct {
	Type         string
	AssociatedAt string
	AlteredAt    string
	Completed    string
	Operator     string
}

// DefaultColumns returns the header names of the standard WMS export.
func DefaultColumns() Columns {
	return Columns{
		Type:         "Tipo",
		AssociatedAt: "Data Última Associação",
		AlteredAt:    "Data de Alteração",
		Completed:    "Concluído Task",
		Operator:     "Usuário",
	}
}

func (c Columns) names() []string {
	return []string{c.Type, c.AssociatedAt, c.AlteredAt, c.Completed, c.Operator}
}

// keywords are the folded first words of the column names ("tipo", "data",
// "concluido", "usuario"). They survive most kinds of export damage.
type keywords struct {
	operator  string
	taskType  string
	date      string
	completed string
}

func keywordOf(column string) string {
	f := strings.Fields(textfold.Key(column))
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

func (c Columns) keywords() keywords {
	return keywords{
		operator:  keywordOf(c.Operator),
		taskType:  keywordOf(c.Type),
		date:      keywordOf(c.AssociatedAt),
		completed: keywordOf(c.Completed),
	}
}

// isHeader reports whether a line carries the operator, type and date keywords.
func (k keywords) isHeader(line string) bool {
	folded := textfold.Key(stripQuotes(line))
	return containsAll(folded, k.operator, k.taskType, k.date)
}

// allPresent reports whether every keyword occurs somewhere in the text.
func (k keywords) allPresent(text string) bool {
	folded := textfold.Key(stripQuotes(text))
	return containsAll(folded, k.operator, k.taskType, k.date, k.completed)
}

func (k keywords) anyPresent(text string) bool {
	folded := textfold.Key(stripQuotes(text))
	for _, w := range []string{k.operator, k.taskType, k.date, k.completed} {
		if w != "" && strings.Contains(folded, w) {
			return true
		}
	}
	return false
}

func containsAll(s string, words ...string) bool {
	for _, w := range words {
		if w == "" || !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

// =============================================================================
// CORRUPTION DETECTION
// =============================================================================

type inputKind int

const (
	kindValid inputKind = iota
	kindFragmented
	kindGarbage
	kindUnknown
)

const (
	garbageSampleLines = 10
	garbageRatio       = 0.8
)

var (
	timestampInLine   = regexp.MustCompile(`\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}`)
	timestampOnlyLine = regexp.MustCompile(`^[\s"';,]*(\d{2}/\d{2}/\d{4}(\s+\d{2}:\d{2}(:\d{2})?)?[\s"';,]*)+$`)
)

// classify decides which path Parse takes.
//
//	valid      - the first line is a header, holds no data, and no rows are glued
//	fragmented - a header is not first (or is glued to data) but every keyword occurs
//	garbage    - >= 80% of the first 10 lines are bare timestamps and no keyword occurs
func classify(lines []string, kw keywords) inputKind {
	if len(lines) == 0 {
		return kindUnknown
	}
	if kw.isHeader(lines[0]) && !timestampInLine.MatchString(lines[0]) && !anyGlued(lines) {
		return kindValid
	}
	text := strings.Join(lines, "\n")
	if kw.allPresent(text) {
		return kindFragmented
	}
	if isGarbage(lines) && !kw.anyPresent(text) {
		return kindGarbage
	}
	return kindUnknown
}

// anyGlued reports whether some row ends in a timestamp that runs straight
// into the next row.
func anyGlued(lines []string) bool {
	for _, l := range lines {
		if gluedTimestamp.MatchString(stripQuotes(l)) {
			return true
		}
	}
	return false
}

func isGarbage(lines []string) bool {
	sample := lines
	if len(sample) > garbageSampleLines {
		sample = sample[:garbageSampleLines]
	}
	hits := 0
	for _, l := range sample {
		if timestampOnlyLine.MatchString(l) {
			hits++
		}
	}
	return float64(hits) >= garbageRatio*float64(len(sample))
}

// nonBlankLines normalizes line endings and drops blank lines and a UTF-8 BOM.
func nonBlankLines(raw string) []string {
	raw = strings.TrimPrefix(raw, "\ufeff")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var out []string
	for _, l := range strings.Split(raw, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
