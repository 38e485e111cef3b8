package tasklog

import (
	"regexp"
	"strings"
)

// quoteStripper removes stray quote characters left by spreadsheet exports.
var quoteStripper = strings.NewReplacer(`"`, "", "'", "", "“", "", "”", "")

// gluedTimestamp finds a full date-time immediately followed by a character
// that starts the next row. Whitespace and field separators do not count:
// those mean the timestamp is inside a row.
var gluedTimestamp = regexp.MustCompile(`(\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2})([^\s;,])`)

func stripQuotes(s string) string {
	return quoteStripper.Replace(s)
}

// reconstruct rebuilds the line structure of a fragmented export. It returns
// the lines starting at the header, or nil when no header can be found.
func reconstruct(lines []string, kw keywords) []string {
	text := stripQuotes(strings.Join(lines, "\n"))
	text = gluedTimestamp.ReplaceAllString(text, "$1\n$2")

	rebuilt := nonBlankLines(text)
	for i, l := range rebuilt {
		if kw.isHeader(l) {
			return rebuilt[i:]
		}
	}
	return nil
}
