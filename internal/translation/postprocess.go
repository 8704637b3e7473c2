package translation

import (
	"regexp"
	"strings"
	"unicode"
)

// stopMarkers are labels small models like to prepend or append around the
// actual translation. A marker at the start is dropped; a later marker
// truncates the output there.
var stopMarkers = []string{
	"譯文:", "譯文：",
	"翻譯:", "翻譯：",
	"Translation:", "translation:",
	"原文:", "原文：",
	"Original:",
}

// quotePairs are the wrapping quotes stripped from a fully quoted output.
var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"「", "」"},
	{"『", "』"},
}

var (
	leadingDecorations = regexp.MustCompile(`^[\s\-<>|｜]+`)
	blankRuns          = regexp.MustCompile(`\n{3,}`)
)

// CleanOutput normalises raw model output into the final translation.
func CleanOutput(text string) string {
	cleaned := strings.TrimSpace(text)

	cleaned = stripWrappingQuotes(cleaned)
	cleaned = leadingDecorations.ReplaceAllString(cleaned, "")
	cleaned = applyStopMarkers(cleaned)
	cleaned = dropNoiseLines(cleaned)
	cleaned = blankRuns.ReplaceAllString(cleaned, "\n\n")

	return strings.TrimSpace(cleaned)
}

func stripWrappingQuotes(s string) string {
	for changed := true; changed; {
		changed = false
		for _, p := range quotePairs {
			if len(s) > len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
				s = strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
				changed = true
			}
		}
	}
	return s
}

// applyStopMarkers drops a leading marker and truncates at the earliest
// later one.
func applyStopMarkers(s string) string {
	for changed := true; changed; {
		changed = false
		trimmed := strings.TrimLeft(s, " \t\n")
		for _, m := range stopMarkers {
			if strings.HasPrefix(trimmed, m) {
				s = strings.TrimSpace(trimmed[len(m):])
				changed = true
				break
			}
		}
	}

	cut := -1
	for _, m := range stopMarkers {
		if idx := strings.Index(s, m); idx > 0 && (cut == -1 || idx < cut) {
			cut = idx
		}
	}
	if cut > 0 {
		s = strings.TrimSpace(s[:cut])
	}
	return s
}

// dropNoiseLines removes lines that carry no translation: bare stop
// markers and lines of pure punctuation.
func dropNoiseLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && (isStopMarker(trimmed) || isPurePunctuation(trimmed)) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isStopMarker(s string) bool {
	for _, m := range stopMarkers {
		if s == m {
			return true
		}
	}
	return false
}

func isPurePunctuation(s string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

// FirstNonEmptyLine reduces multi-line output to its first line with
// content; used when the input itself had no newline.
func FirstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return strings.TrimSpace(s)
}
