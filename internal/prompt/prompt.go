// Package prompt renders the system and user prompts for a conversation
// turn from the loaded persona, the optional retrieved context, and the
// current user message. Construction is pure string work — deterministic
// given its inputs, no I/O.
package prompt

import (
	"fmt"
	"strings"

	"github.com/eoeldroal/3-character-chat/internal/persona"
)

// Section headers rendered into prompts. The persona speaks Korean, so the
// headers do too — they are part of the prompt contract, not UI strings.
const (
	// rulesHeader introduces the conversation-rule bullet list in the
	// system prompt.
	rulesHeader = "[대화 규칙]"
	// contextHeader introduces retrieved reference material in the user
	// prompt.
	contextHeader = "[참고 정보]"
)

// Builder renders prompts for a fixed persona.
type Builder struct {
	// persona is the immutable character configuration.
	persona *persona.Persona
}

// NewBuilder constructs a Builder for the given persona.
func NewBuilder(p *persona.Persona) (*Builder, error) {
	if p == nil {
		return nil, fmt.Errorf("prompt: persona must not be nil")
	}
	return &Builder{persona: p}, nil
}

// Build returns the (system, user) prompt pair for one turn.
//
// The system prompt is the persona's base prompt; when conversation rules
// are configured they are appended as a bullet list under a fixed header.
//
// The user prompt is the optional context block (header + verbatim
// retrieved text + blank line) followed by "{username}: {userMessage}".
// When context is empty no context header is emitted at all.
func (b *Builder) Build(userMessage, context, username string) (string, string) {
	return b.System(), b.User(userMessage, context, username)
}

// System renders the persona system prompt.
func (b *Builder) System() string {
	sp := b.persona.SystemPrompt

	if len(sp.Rules) == 0 {
		return sp.Base
	}

	var sb strings.Builder
	sb.WriteString(sp.Base)
	sb.WriteString("\n\n")
	sb.WriteString(rulesHeader)
	for _, rule := range sp.Rules {
		sb.WriteString("\n- ")
		sb.WriteString(rule)
	}
	return sb.String()
}

// User renders the user prompt for a turn. context may be empty.
func (b *Builder) User(userMessage, context, username string) string {
	var sb strings.Builder
	if context != "" {
		sb.WriteString(contextHeader)
		sb.WriteString("\n")
		sb.WriteString(context)
		sb.WriteString("\n\n")
	}
	sb.WriteString(username)
	sb.WriteString(": ")
	sb.WriteString(userMessage)
	return sb.String()
}

// Greeting renders the fixed reply to the "init" message: the persona
// introduces itself by name, with its description on a second line when
// one is configured.
func (b *Builder) Greeting() string {
	greeting := fmt.Sprintf("안녕! 나는 %s이야.", b.persona.Name)
	if b.persona.Description != "" {
		greeting += "\n" + b.persona.Description
	}
	return greeting
}
