// Package prompt builds the inputs fed to inference providers: the
// sanitised, templated instruction string and the structured chat envelope.
//
// The chat envelope is the canonical internal representation; providers
// receive a typed Prompt variant and render it to their model's native
// format themselves.
package prompt

import (
	"encoding/json"
	"strings"
)

// Message is one (role, content) pair of a chat envelope.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Extras carries the raw translation parameters alongside the rendered
// messages, for providers that need them (the translate-gemma family).
type Extras struct {
	SourceLangCode string `json:"source_lang_code"`
	TargetLangCode string `json:"target_lang_code"`
	Text           string `json:"text"`
}

// Prompt is either a Plain instruction string or a *Chat envelope.
type Prompt interface {
	isPrompt()
}

// Plain is a single templated instruction string.
type Plain string

func (Plain) isPrompt() {}

// Chat is the structured message envelope.
type Chat struct {
	Messages []Message
	Extras   Extras
}

func (*Chat) isPrompt() {}

// Flatten renders any Prompt to a single string. Plain prompts pass
// through; chat envelopes use the Llama-2 instruction dialect, which is the
// interoperable fallback for providers without a native chat template.
func Flatten(p Prompt) string {
	switch v := p.(type) {
	case Plain:
		return string(v)
	case *Chat:
		return v.RenderLlama()
	default:
		return ""
	}
}

// RenderLlama renders the envelope in the Llama-2 chat dialect. A system
// message is folded into the first user turn, since that dialect has no
// standalone system role.
func (c *Chat) RenderLlama() string {
	var b strings.Builder
	system := ""

	for _, msg := range c.Messages {
		switch msg.Role {
		case "system":
			system = msg.Content
		case "user":
			if system != "" {
				b.WriteString("<s>[INST] <<SYS>>\n")
				b.WriteString(system)
				b.WriteString("\n<</SYS>>\n\n")
				b.WriteString(msg.Content)
				b.WriteString(" [/INST]")
				system = ""
			} else {
				b.WriteString("<s>[INST] ")
				b.WriteString(msg.Content)
				b.WriteString(" [/INST]")
			}
		case "assistant":
			b.WriteString(" ")
			b.WriteString(msg.Content)
			b.WriteString(" </s>")
		}
	}
	return b.String()
}

// envelope is the serialised wire form of a chat prompt.
type envelope struct {
	Format   string    `json:"format"`
	Messages []Message `json:"messages"`
	Extras   Extras    `json:"extras"`
}

// Envelope serialises the chat prompt as the tagged JSON envelope
// {"format":"chat","messages":[...],"extras":{...}}.
func (c *Chat) Envelope() ([]byte, error) {
	return json.Marshal(envelope{Format: "chat", Messages: c.Messages, Extras: c.Extras})
}
