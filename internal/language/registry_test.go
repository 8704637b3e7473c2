package language

import (
	"testing"

	"github.com/example/lingoflow/internal/config"
)

func TestBuiltinRegistry(t *testing.T) {
	reg := NewRegistry(config.Default().Languages)

	if !reg.IsValidCode("auto") {
		t.Error(`"auto" must always be a valid code`)
	}
	for _, code := range []string{"zh-TW", "zh-CN", "en", "ja", "ko", "fr", "de", "es"} {
		if !reg.IsValidCode(code) {
			t.Errorf("builtin code %s should be valid", code)
		}
	}
	if reg.IsValidCode("xx") {
		t.Error("unknown code should be invalid")
	}
	if reg.IsValidCode("") {
		t.Error("empty code should be invalid")
	}
}

func TestDisabledLanguageIsInvalid(t *testing.T) {
	cfg := config.LanguagesConfig{
		Languages: []config.LanguageSpec{
			{Code: "en", Name: "英文", NameEN: "English", Enabled: true, SortOrder: 1},
			{Code: "fr", Name: "法文", NameEN: "French", Enabled: false, SortOrder: 2},
		},
	}
	reg := NewRegistry(cfg)

	if !reg.IsValidCode("en") {
		t.Error("enabled code should be valid")
	}
	if reg.IsValidCode("fr") {
		t.Error("disabled code should be invalid")
	}
	if got := len(reg.Enabled()); got != 1 {
		t.Errorf("Enabled() returned %d languages, want 1", got)
	}
}

func TestSortOrder(t *testing.T) {
	cfg := config.LanguagesConfig{
		Languages: []config.LanguageSpec{
			{Code: "b", Name: "B", Enabled: true, SortOrder: 2},
			{Code: "a", Name: "A", Enabled: true, SortOrder: 1},
		},
	}
	reg := NewRegistry(cfg)
	enabled := reg.Enabled()
	if enabled[0].Code != "a" || enabled[1].Code != "b" {
		t.Errorf("languages not sorted by sort_order: %v", enabled)
	}
}

func TestPromptName(t *testing.T) {
	reg := NewRegistry(config.Default().Languages)

	if got := reg.PromptName("zh-TW"); got != "繁體中文" {
		t.Errorf("PromptName(zh-TW) = %q", got)
	}
	if got := reg.PromptName("xx-YY"); got != "xx-YY" {
		t.Errorf("unknown code should map to itself, got %q", got)
	}
}

func TestDefaults(t *testing.T) {
	reg := NewRegistry(config.Default().Languages)
	if reg.DefaultSource() != "auto" {
		t.Errorf("default source = %q", reg.DefaultSource())
	}
	if reg.DefaultTarget() != "zh-TW" {
		t.Errorf("default target = %q", reg.DefaultTarget())
	}
}
