package tasklog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/warp/incentive-engine/textfold"
)

// =============================================================================
// PARSE RESULT
// =============================================================================

// Status classifies how an export was read.
type Status string

const (
	StatusClean       Status = "clean"       // header found on the first line
	StatusRepaired    Status = "repaired"    // line structure was reconstructed
	StatusCorrupted   Status = "corrupted"   // bare timestamps, nothing to recover
	StatusUnparseable Status = "unparseable" // no usable header, even after repair
)

// ParseResult is the outcome of Parse. Records is empty (never nil) when
// Status is Corrupted or Unparseable.
type ParseResult struct {
	Records     []TaskRecord
	Status      Status
	Messages    []string
	SkippedRows int
	Separator   string
}

// HasRecords reports whether the export produced at least one record.
func (r ParseResult) HasRecords() bool {
	return len(r.Records) > 0
}

// =============================================================================
// PARSER
// =============================================================================

// SpacesSeparator is the Separator reported for columns aligned with runs of spaces.
const SpacesSeparator = "  "

var spaceRun = regexp.MustCompile(` {2,}`)

// separatorOrder is the detection order for the header line.
var separatorOrder = []string{";", "\t", ",", SpacesSeparator}

// Parser reads operator task exports.
type Parser struct {
	Columns Columns
}

// NewParser returns a parser for the standard WMS column names.
func NewParser() *Parser {
	return &Parser{Columns: DefaultColumns()}
}

// Parse reads an export with the standard column names.
func Parse(raw string) ParseResult {
	return NewParser().Parse(raw)
}

// Parse classifies the input, repairs it when possible and maps every data
// row into a TaskRecord. It never fails: problems are reported through
// Status and Messages.
func (p *Parser) Parse(raw string) ParseResult {
	kw := p.Columns.keywords()
	lines := nonBlankLines(raw)

	switch classify(lines, kw) {
	case kindValid:
		res := p.parseStructured(lines)
		res.Status = StatusClean
		return res

	case kindFragmented:
		rebuilt := reconstruct(lines, kw)
		if rebuilt == nil {
			return p.failed(StatusUnparseable, "the file structure could not be reconstructed")
		}
		res := p.parseStructured(rebuilt)
		if !res.HasRecords() {
			return p.failed(StatusUnparseable, "the file structure was reconstructed but no task rows were found")
		}
		res.Status = StatusRepaired
		res.Messages = append([]string{
			fmt.Sprintf("the file had lost its line breaks and was reconstructed; %d task rows recovered, please check the totals", len(res.Records)),
		}, res.Messages...)
		return res

	case kindGarbage:
		return p.failed(StatusCorrupted, "the file is corrupted: it holds only timestamps and no task columns")

	default:
		if len(lines) == 0 {
			return p.failed(StatusUnparseable, "the file is empty")
		}
		return p.failed(StatusUnparseable, "no header row with the task columns was found")
	}
}

func (p *Parser) failed(status Status, reason string) ParseResult {
	return ParseResult{
		Records:  []TaskRecord{},
		Status:   status,
		Messages: []string{reason, p.FormatHint()},
	}
}

// FormatHint tells the user how the export must look.
func (p *Parser) FormatHint() string {
	return fmt.Sprintf("export the task report as CSV (separated by ';', tab or ',') with one header row containing the columns %s",
		strings.Join(quoteAll(p.Columns.names()), ", "))
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}

// =============================================================================
// STRUCTURAL PARSE
// =============================================================================

type columnIndex struct {
	taskType, associatedAt, alteredAt, completed, operator int
}

func (ci columnIndex) max() int {
	m := -1
	for _, i := range []int{ci.taskType, ci.associatedAt, ci.alteredAt, ci.completed, ci.operator} {
		if i > m {
			m = i
		}
	}
	return m
}

// parseStructured treats lines[0] as the header.
func (p *Parser) parseStructured(lines []string) ParseResult {
	res := ParseResult{Records: []TaskRecord{}}
	header := lines[0]
	sep := detectSeparator(header)
	res.Separator = sep

	cells := splitFields(header, sep)
	idx := columnIndex{
		taskType:     findColumn(cells, p.Columns.Type),
		associatedAt: findColumn(cells, p.Columns.AssociatedAt),
		alteredAt:    findColumn(cells, p.Columns.AlteredAt),
		completed:    findColumn(cells, p.Columns.Completed),
		operator:     findColumn(cells, p.Columns.Operator),
	}
	for _, c := range []struct {
		name string
		i    int
	}{
		{p.Columns.Type, idx.taskType},
		{p.Columns.AssociatedAt, idx.associatedAt},
		{p.Columns.AlteredAt, idx.alteredAt},
		{p.Columns.Completed, idx.completed},
		{p.Columns.Operator, idx.operator},
	} {
		if c.i < 0 {
			res.Messages = append(res.Messages, fmt.Sprintf("column %q not found; its values are left empty", c.name))
		}
	}

	need := idx.max()
	for _, line := range lines[1:] {
		fields := splitFields(line, sep)
		if len(fields) <= need {
			res.SkippedRows++
			continue
		}
		res.Records = append(res.Records, TaskRecord{
			Type:         cell(fields, idx.taskType),
			OperatorName: cell(fields, idx.operator),
			AssociatedAt: ParseTimestamp(cell(fields, idx.associatedAt)),
			AlteredAt:    ParseTimestamp(cell(fields, idx.alteredAt)),
			Completed:    cell(fields, idx.completed),
		})
	}
	if res.SkippedRows > 0 {
		res.Messages = append(res.Messages, fmt.Sprintf("%d rows skipped: fewer than %d fields", res.SkippedRows, need+1))
	}
	return res
}

func detectSeparator(header string) string {
	for _, sep := range separatorOrder {
		if strings.Contains(header, sep) {
			return sep
		}
	}
	return ";"
}

func splitFields(line, sep string) []string {
	var parts []string
	if sep == SpacesSeparator {
		parts = spaceRun.Split(strings.TrimSpace(line), -1)
	} else {
		parts = strings.Split(line, sep)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(stripQuotes(parts[i]))
	}
	return parts
}

// findColumn matches the folded header cell exactly, then by containment.
func findColumn(cells []string, name string) int {
	want := textfold.Key(name)
	if want == "" {
		return -1
	}
	for i, c := range cells {
		if textfold.Key(c) == want {
			return i
		}
	}
	for i, c := range cells {
		if strings.Contains(textfold.Key(c), want) {
			return i
		}
	}
	return -1
}

func cell(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

// =============================================================================
// FORMAT
// =============================================================================

// Format writes records as a clean semicolon separated export with the
// standard header.
func Format(records []TaskRecord) string {
	return NewParser().Format(records)
}

// Format writes records with the parser's column names. Separators and line
// breaks inside values are replaced by spaces.
func (p *Parser) Format(records []TaskRecord) string {
	clean := strings.NewReplacer(";", " ", "\n", " ", "\r", " ")
	var b strings.Builder
	b.WriteString(strings.Join(p.Columns.names(), ";"))
	b.WriteByte('\n')
	for _, r := range records {
		b.WriteString(strings.Join([]string{
			clean.Replace(r.Type),
			FormatTimestamp(r.AssociatedAt),
			FormatTimestamp(r.AlteredAt),
			clean.Replace(r.Completed),
			clean.Replace(r.OperatorName),
		}, ";"))
		b.WriteByte('\n')
	}
	return b.String()
}
