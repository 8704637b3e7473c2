// Package language holds the process-wide language registry and the
// rule-based script detection used when a request's source language is
// "auto".
package language

import (
	"sort"

	"github.com/example/lingoflow/internal/config"
)

// Auto is the sentinel source-language code for automatic detection.
const Auto = "auto"

// Language is one enabled translation language. Immutable after load.
type Language struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	NameEN    string `json:"name_en"`
	Enabled   bool   `json:"is_enabled"`
	SortOrder int    `json:"sort_order"`
}

// builtin is used when languages.yaml supplies no list.
var builtin = []Language{
	{Code: "zh-TW", Name: "繁體中文", NameEN: "Traditional Chinese", Enabled: true, SortOrder: 1},
	{Code: "zh-CN", Name: "簡體中文", NameEN: "Simplified Chinese", Enabled: true, SortOrder: 2},
	{Code: "en", Name: "英文", NameEN: "English", Enabled: true, SortOrder: 3},
	{Code: "ja", Name: "日文", NameEN: "Japanese", Enabled: true, SortOrder: 4},
	{Code: "ko", Name: "韓文", NameEN: "Korean", Enabled: true, SortOrder: 5},
	{Code: "fr", Name: "法文", NameEN: "French", Enabled: true, SortOrder: 6},
	{Code: "de", Name: "德文", NameEN: "German", Enabled: true, SortOrder: 7},
	{Code: "es", Name: "西班牙文", NameEN: "Spanish", Enabled: true, SortOrder: 8},
}

// Registry answers language-code questions for the rest of the process.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	langs         []Language
	byCode        map[string]Language
	defaultSource string
	defaultTarget string
}

// NewRegistry builds a Registry from the languages document. An empty
// language list falls back to the built-in set.
func NewRegistry(cfg config.LanguagesConfig) *Registry {
	langs := make([]Language, 0, len(cfg.Languages))
	for _, spec := range cfg.Languages {
		langs = append(langs, Language{
			Code:      spec.Code,
			Name:      spec.Name,
			NameEN:    spec.NameEN,
			Enabled:   spec.Enabled,
			SortOrder: spec.SortOrder,
		})
	}
	if len(langs) == 0 {
		langs = append(langs, builtin...)
	}
	sort.SliceStable(langs, func(i, j int) bool {
		return langs[i].SortOrder < langs[j].SortOrder
	})

	byCode := make(map[string]Language, len(langs))
	for _, l := range langs {
		byCode[l.Code] = l
	}

	return &Registry{
		langs:         langs,
		byCode:        byCode,
		defaultSource: cfg.Defaults.SourceLanguage,
		defaultTarget: cfg.Defaults.TargetLanguage,
	}
}

// Enabled returns the enabled languages in display order.
func (r *Registry) Enabled() []Language {
	out := make([]Language, 0, len(r.langs))
	for _, l := range r.langs {
		if l.Enabled {
			out = append(out, l)
		}
	}
	return out
}

// Lookup returns the language for code.
func (r *Registry) Lookup(code string) (Language, bool) {
	l, ok := r.byCode[code]
	return l, ok
}

// IsValidCode reports whether code is "auto" or an enabled language code.
func (r *Registry) IsValidCode(code string) bool {
	if code == Auto {
		return true
	}
	l, ok := r.byCode[code]
	return ok && l.Enabled
}

// PromptName returns the prompt-facing name for code. Unknown codes map to
// themselves, which is what non-ambiguous codes want anyway.
func (r *Registry) PromptName(code string) string {
	if code == Auto {
		return "自動偵測"
	}
	if l, ok := r.byCode[code]; ok && l.Name != "" {
		return l.Name
	}
	return code
}

// DefaultSource returns the default source-language code (usually "auto").
func (r *Registry) DefaultSource() string { return r.defaultSource }

// DefaultTarget returns the default target-language code.
func (r *Registry) DefaultTarget() string { return r.defaultTarget }
