package prompt

import (
	"fmt"
	"strings"

	xlang "golang.org/x/text/language"
)

// The translate-gemma model family has no system role and requires the
// user turn to carry a structured content payload instead of a plain
// string. Its built-in language table also differs from ours: simplified
// Chinese is "zh-Hans", traditional is "zh-TW".

// IsGemmaFamily reports whether a model name or path belongs to the
// translate-gemma family.
func IsGemmaFamily(nameOrPath string) bool {
	return strings.Contains(strings.ToLower(nameOrPath), "translategemma")
}

// GemmaContent is one element of the structured user-message content.
type GemmaContent struct {
	Type           string `json:"type"`
	SourceLangCode string `json:"source_lang_code"`
	TargetLangCode string `json:"target_lang_code"`
	Text           string `json:"text"`
}

// GemmaMessage is a chat message whose content is the structured payload.
type GemmaMessage struct {
	Role    string         `json:"role"`
	Content []GemmaContent `json:"content"`
}

// GemmaMessages rewrites a chat envelope into the single structured user
// message the translate-gemma template expects. Language codes are
// normalised to the family's accepted vocabulary.
func GemmaMessages(c *Chat) []GemmaMessage {
	return []GemmaMessage{{
		Role: "user",
		Content: []GemmaContent{{
			Type:           "text",
			SourceLangCode: NormalizeGemmaLangCode(c.Extras.SourceLangCode, "en"),
			TargetLangCode: NormalizeGemmaLangCode(c.Extras.TargetLangCode, "zh-TW"),
			Text:           c.Extras.Text,
		}},
	}}
}

// RenderGemma renders the envelope in the gemma turn dialect, ending with
// an open model turn so generation continues from there.
func (c *Chat) RenderGemma() string {
	msgs := GemmaMessages(c)
	content := msgs[0].Content[0]
	return fmt.Sprintf(
		"<start_of_turn>user\nTranslate the following text from %s to %s:\n%s<end_of_turn>\n<start_of_turn>model\n",
		content.SourceLangCode, content.TargetLangCode, content.Text,
	)
}

// NormalizeGemmaLangCode maps a system language code onto the
// translate-gemma vocabulary: any simplified-Chinese variant becomes
// "zh-Hans", any traditional variant "zh-TW". Empty, "auto" and unparsable
// codes return fallback; everything else passes through with underscores
// normalised to hyphens.
func NormalizeGemmaLangCode(code, fallback string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if normalized == "" || strings.EqualFold(normalized, "auto") {
		return fallback
	}

	tag, err := xlang.Parse(normalized)
	if err != nil {
		return fallback
	}

	if base, _ := tag.Base(); base.String() == "zh" {
		if script, _ := tag.Script(); script.String() == "Hant" {
			return "zh-TW"
		}
		return "zh-Hans"
	}
	return normalized
}
