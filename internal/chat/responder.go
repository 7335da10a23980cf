// Package chat implements the conversational core: it retrieves knowledge
// context for a user message, assembles the persona prompt and session
// history, invokes the LLM, and records the exchange. The caller-facing
// Respond contract never returns an error; every internal failure collapses
// into a fixed fallback reply so the surface stays stable.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/eoeldroal/3-character-chat/internal/budget"
	"github.com/eoeldroal/3-character-chat/internal/logging"
	"github.com/eoeldroal/3-character-chat/internal/prompt"
	"github.com/eoeldroal/3-character-chat/internal/rag"
	"github.com/eoeldroal/3-character-chat/internal/session"
)

const (
	// Temperature is the fixed sampling temperature for reply generation.
	Temperature float32 = 0.7

	// MaxResponseTokens caps the length of a generated reply.
	MaxResponseTokens = 500

	// DefaultUsername is used when the caller omits a username.
	DefaultUsername = "사용자"

	// DefaultSessionID is used when the caller omits a session ID.
	DefaultSessionID = "default"

	// fallbackReply is returned whenever reply generation fails for any
	// reason. The full error is logged; the caller only ever sees this text.
	fallbackReply = "죄송해요, 일시적인 오류가 발생했어요. 다시 시도해주세요."
)

// Result is the caller-facing outcome of a chat turn.
type Result struct {
	// Reply is the generated (or fallback) reply text.
	Reply string `json:"reply"`

	// Image is reserved for future media retrieval and is always null.
	Image *string `json:"image"`

	// Fallback reports whether Reply is the fixed error fallback.
	Fallback bool `json:"-"`

	// ContextUsed reports whether a retrieved knowledge chunk was injected
	// into the prompt for this turn.
	ContextUsed bool `json:"-"`
}

// Generator is the slice of the eino chat model the responder needs.
// model.ToolCallingChatModel satisfies it.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Config holds the dependencies required to construct a Responder.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel Generator

	// Retriever supplies knowledge context for user messages.
	// May be nil if retrieval is not configured.
	Retriever rag.Retriever

	// Prompts renders the persona system and user prompts.
	Prompts *prompt.Builder

	// Sessions holds per-session conversation history.
	Sessions *session.Store

	// MaxContextTokens is the estimated input budget used for oversize
	// warnings. History is never trimmed; the warning is the only effect.
	// Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Responder generates persona replies for user messages.
type Responder struct {
	model            Generator
	retriever        rag.Retriever
	prompts          *prompt.Builder
	sessions         *session.Store
	maxContextTokens int
}

// New constructs a Responder from the provided Config.
func New(cfg *Config) (*Responder, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("chat: ChatModel must not be nil")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("chat: Prompts must not be nil")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("chat: Sessions must not be nil")
	}

	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &Responder{
		model:            cfg.ChatModel,
		retriever:        cfg.Retriever,
		prompts:          cfg.Prompts,
		sessions:         cfg.Sessions,
		maxContextTokens: maxCtx,
	}, nil
}

// Respond handles one chat turn and always returns a usable Result.
// Empty username and sessionID fall back to DefaultUsername and
// DefaultSessionID. The literal message "init" (any case, surrounding
// whitespace ignored) returns the persona greeting without touching
// history. Any internal failure returns the fixed fallback reply and
// leaves the session history exactly as it was.
func (r *Responder) Respond(ctx context.Context, message, username, sessionID string) *Result {
	if username == "" {
		username = DefaultUsername
	}
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	if strings.EqualFold(strings.TrimSpace(message), "init") {
		return &Result{Reply: r.prompts.Greeting()}
	}

	reply, contextUsed, err := r.respond(ctx, message, username, sessionID)
	if err != nil {
		logging.FromContext(ctx).Error("chat: reply generation failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		return &Result{Reply: fallbackReply, Fallback: true}
	}
	return &Result{Reply: reply, ContextUsed: contextUsed}
}

// respond runs the retrieval-prompt-generate-record pipeline for one turn.
// The bool reports whether retrieved knowledge context entered the prompt.
func (r *Responder) respond(ctx context.Context, message, username, sessionID string) (string, bool, error) {
	ragContext, err := r.retrieve(ctx, message)
	if err != nil {
		return "", false, err
	}
	contextUsed := ragContext != ""
	systemPrompt, userPrompt := r.prompts.Build(message, ragContext, username)

	// The session lock spans the history read, the model call, and both
	// appends so concurrent turns in one session serialize cleanly and a
	// failed call leaves no partial append.
	sess := r.sessions.GetOrCreate(sessionID)
	sess.Lock()
	defer sess.Unlock()

	messages := make([]*schema.Message, 0, sess.LenLocked()+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	for _, turn := range sess.TurnsLocked() {
		switch turn.Role {
		case session.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case session.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}
	messages = append(messages, schema.UserMessage(userPrompt))

	if est := budget.EstimateMessages(messages); est > r.maxContextTokens {
		logging.FromContext(ctx).Warn("chat: estimated input exceeds context budget",
			slog.String("session_id", sessionID),
			slog.Int("estimated_tokens", est),
			slog.Int("max_tokens", r.maxContextTokens),
		)
	}

	reply, err := r.model.Generate(ctx, messages,
		model.WithTemperature(Temperature),
		model.WithMaxTokens(MaxResponseTokens),
	)
	if err != nil {
		return "", false, fmt.Errorf("chat: model generate failed: %w", err)
	}
	if reply == nil {
		return "", false, fmt.Errorf("chat: model returned no reply message")
	}

	// The rendered user prompt is persisted, not the raw message, so the
	// knowledge context travels with the history on later turns.
	sess.AppendLocked(session.RoleUser, userPrompt)
	sess.AppendLocked(session.RoleAssistant, reply.Content)

	return reply.Content, contextUsed, nil
}

// retrieve looks up the best knowledge match for the message. A nil
// retriever and a retrieval miss both yield "". Errors (such as a failed
// embedding call) propagate so the caller falls back.
func (r *Responder) retrieve(ctx context.Context, message string) (string, error) {
	if r.retriever == nil {
		return "", nil
	}
	match, err := r.retriever.BestMatch(ctx, message)
	if err != nil {
		return "", fmt.Errorf("chat: retrieval failed: %w", err)
	}
	if match == nil {
		return "", nil
	}
	return match.Content, nil
}
