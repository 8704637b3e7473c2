package prompt

import (
	"regexp"
	"strings"
)

// Instruction-scope markers stripped from user text before it is embedded
// in a prompt. Newlines and all other characters survive.
var (
	literalMarkers = []string{
		"[INST]",
		"[/INST]",
		"<<SYS>>",
		"<</SYS>>",
		"```",
	}

	hashRuns = regexp.MustCompile(`#{3,}`)
	dashRuns = regexp.MustCompile(`-{3,}`)
)

// sanitizeMaxPasses bounds the fixpoint loop; marker removal can expose a
// new marker (e.g. "[IN[INST]ST]"), so a single pass is not enough.
const sanitizeMaxPasses = 10

// Sanitize strips prompt-injection markers from user text. The result is a
// fixpoint: sanitising it again returns the same string.
func Sanitize(text string) string {
	current := text
	for range sanitizeMaxPasses {
		next := sanitizeOnce(current)
		if next == current {
			return next
		}
		current = next
	}
	return current
}

func sanitizeOnce(text string) string {
	for _, m := range literalMarkers {
		text = strings.ReplaceAll(text, m, "")
	}
	text = hashRuns.ReplaceAllString(text, "")
	text = dashRuns.ReplaceAllString(text, "")
	return text
}
