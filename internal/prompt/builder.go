package prompt

import (
	"strings"

	"github.com/example/lingoflow/internal/config"
	"github.com/example/lingoflow/internal/language"
)

// detectionSampleRunes bounds the input excerpt handed to the
// language-detection prompt.
const detectionSampleRunes = 200

// Builder constructs translation and detection prompts according to the
// configured format. Safe for concurrent use.
type Builder struct {
	cfg config.PromptsConfig
	reg *language.Registry
}

// NewBuilder returns a Builder over the prompts configuration.
func NewBuilder(cfg config.PromptsConfig, reg *language.Registry) *Builder {
	return &Builder{cfg: cfg, reg: reg}
}

// TranslationInput is everything the builder needs for one prompt.
type TranslationInput struct {
	Text       string
	SourceCode string
	TargetCode string

	// ForceOutputOnly selects the retry variant that demands a single
	// line with no echoed original and no bullets.
	ForceOutputOnly bool
}

// Translation builds the prompt for one translation call. The returned
// variant depends on the configured format_type: "chat" yields a *Chat
// envelope, anything else the templated Plain string.
func (b *Builder) Translation(in TranslationInput) Prompt {
	sanitized := Sanitize(in.Text)
	body := b.instructionBody(sanitized, in)

	if b.cfg.FormatType == "chat" {
		return b.chatPrompt(body, sanitized, in)
	}
	return b.templatePrompt(body)
}

// instructionBody expands the translation template. All task constraints
// live in this single block; nothing task-related may follow it.
func (b *Builder) instructionBody(sanitized string, in TranslationInput) string {
	tmpl := b.cfg.Translation
	if in.ForceOutputOnly {
		tmpl = b.cfg.TranslationRetry
	}
	return expand(tmpl,
		b.reg.PromptName(in.SourceCode),
		b.reg.PromptName(in.TargetCode),
		sanitized,
	)
}

// templatePrompt wraps the instruction body in the configured instruction
// delimiters. The closing delimiter ends the prompt.
func (b *Builder) templatePrompt(body string) Prompt {
	var s strings.Builder
	if b.cfg.AddBOSToken {
		s.WriteString("<s>")
	}
	s.WriteString("[INST] ")
	if b.cfg.UseSystemPrompt && b.cfg.SystemPrompt != "" {
		s.WriteString("<<SYS>>\n")
		s.WriteString(b.cfg.SystemPrompt)
		s.WriteString("\n<</SYS>>\n\n")
	}
	s.WriteString(body)
	s.WriteString(" [/INST]")
	return Plain(s.String())
}

func (b *Builder) chatPrompt(body, sanitized string, in TranslationInput) Prompt {
	var messages []Message
	if b.cfg.UseSystemPrompt && b.cfg.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: b.cfg.SystemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: body})

	return &Chat{
		Messages: messages,
		Extras: Extras{
			SourceLangCode: in.SourceCode,
			TargetLangCode: in.TargetCode,
			Text:           sanitized,
		},
	}
}

// LanguageDetection builds the short prompt asking for "code:confidence"
// on a single line. It is always a Plain prompt regardless of format_type.
func (b *Builder) LanguageDetection(text string) Prompt {
	sample := text
	count := 0
	for i := range text {
		if count == detectionSampleRunes {
			sample = text[:i]
			break
		}
		count++
	}
	out := strings.ReplaceAll(b.cfg.LanguageDetection, "{text}", Sanitize(sample))
	return Plain(out)
}

func expand(tmpl, sourceName, targetName, text string) string {
	r := strings.NewReplacer(
		"{source_language}", sourceName,
		"{target_language}", targetName,
		"{text}", text,
	)
	return r.Replace(tmpl)
}
