package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeSymbol folds compatibility characters (full-width letters from
// some feeds) and upper-cases the ticker.
func NormalizeSymbol(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// Casers are stateful, so one per call.
	return cases.Upper(language.Und).String(norm.NFKC.String(s))
}
