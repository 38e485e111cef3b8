// Package textfold normalizes human-entered labels (roles, shifts, CSV
// headers) so that "Usuário", " usuario " and "USUARIO" compare equal.
package textfold

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents removes combining marks: "Concluído" -> "Concluido".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Key returns the comparison key of a label: accents stripped, lower case,
// inner whitespace collapsed, outer whitespace trimmed.
func Key(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(StripAccents(s))), " ")
}

// Equal reports whether two labels share the same Key.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}
