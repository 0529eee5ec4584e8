package reader

import (
	"strings"
	"time"
)

// dateLayouts are the free-form layouts the engine has been seen to emit,
// tried in order after the compact numeric forms.
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// NormalizeDate converts an engine-supplied date string to YYYY-MM-DD.
// Accepted inputs are the 8-digit yyyyMMdd form, the 6-digit yyMMdd form,
// and a small set of spelled-out layouts. Anything that does not parse is
// passed through unchanged rather than dropped.
func NormalizeDate(s string) string {
	return normalizeDateAt(s, time.Now())
}

// normalizeDateAt is NormalizeDate with an injected clock for the two-digit
// century rule. Two-digit years up to ten years past the current year are
// read as 2000s, everything above as 1900s, so freshly issued documents and
// elderly holders both land in the right century.
func normalizeDateAt(s string, now time.Time) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}

	if isDigits(trimmed) {
		switch len(trimmed) {
		case 8:
			if t, err := time.Parse("20060102", trimmed); err == nil {
				return t.Format("2006-01-02")
			}
		case 6:
			pivot := now.Year()%100 + 10
			yy := int(trimmed[0]-'0')*10 + int(trimmed[1]-'0')
			century := "19"
			if yy <= pivot {
				century = "20"
			}
			if t, err := time.Parse("20060102", century+trimmed); err == nil {
				return t.Format("2006-01-02")
			}
		}
		return s
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
