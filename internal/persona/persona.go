// Package persona loads the character configuration that defines who the
// chatbot is: its name, self-description, and the system prompt it speaks
// from. The configuration is read once at startup and is immutable for the
// process lifetime.
//
// A missing configuration file is not an error — the built-in default
// persona is substituted so the bot always has an identity. A file that
// exists but fails to parse IS an error: the process must not start with a
// corrupt persona.
package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// DefaultPath is the persona file location used when PERSONA_CONFIG is unset.
const DefaultPath = "config/chatbot_config.json"

// SystemPrompt holds the prompt material the persona speaks from.
type SystemPrompt struct {
	// Base is the opening system prompt establishing the character.
	Base string `json:"base"`
	// Rules is the ordered list of conversation rules appended to Base.
	Rules []string `json:"rules"`
}

// Persona is the immutable character configuration.
type Persona struct {
	// Name is the character's display name, used in the init greeting.
	Name string `json:"name"`
	// Description is a short self-introduction, appended to the greeting.
	Description string `json:"description"`
	// Tags are free-form labels (e.g. "#대학생").
	Tags []string `json:"tags"`
	// Character holds arbitrary persona attributes. Opaque to the pipeline;
	// retained so operators can round-trip their config files.
	Character map[string]any `json:"character"`
	// SystemPrompt is the prompt material rendered by the prompt builder.
	SystemPrompt SystemPrompt `json:"system_prompt"`
}

// Default returns the built-in fallback persona used when no configuration
// file is present.
func Default() *Persona {
	return &Persona{
		Name:        "챗봇",
		Description: "챗봇 설명",
		Tags:        []string{"#챗봇"},
		Character:   map[string]any{},
		SystemPrompt: SystemPrompt{
			Base:  "당신은 친근한 AI 어시스턴트입니다.",
			Rules: []string{"친절하게 대답하세요"},
		},
	}
}

// Load reads the persona configuration from path. If path is empty the
// PERSONA_CONFIG environment variable is consulted, then [DefaultPath].
//
// A missing file returns [Default] with a warning — startup continues.
// A file that exists but contains invalid JSON returns an error; callers
// must treat that as fatal.
func Load(path string, log *slog.Logger) (*Persona, error) {
	if path == "" {
		path = os.Getenv("PERSONA_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("persona: config file not found, using default persona",
			slog.String("path", path),
		)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}

	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("persona: parse %s: %w", path, err)
	}

	// Fill holes with defaults so downstream code never sees empty prompt
	// material even for a sparse config file.
	def := Default()
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.SystemPrompt.Base == "" {
		p.SystemPrompt.Base = def.SystemPrompt.Base
	}

	log.Info("persona: loaded",
		slog.String("path", path),
		slog.String("name", p.Name),
		slog.Int("rules", len(p.SystemPrompt.Rules)),
	)

	return &p, nil
}
