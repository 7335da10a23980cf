package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/eoeldroal/3-character-chat/internal/persona"
	"github.com/eoeldroal/3-character-chat/internal/prompt"
	"github.com/eoeldroal/3-character-chat/internal/rag"
	"github.com/eoeldroal/3-character-chat/internal/session"
)

// fakeModel records the messages it receives and returns a canned reply.
type fakeModel struct {
	reply    string
	err      error
	lastSeen []*schema.Message
	calls    int
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls++
	f.lastSeen = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

// fakeRetriever returns a fixed match or error.
type fakeRetriever struct {
	match *rag.Match
	err   error
}

func (f *fakeRetriever) BestMatch(_ context.Context, _ string) (*rag.Match, error) {
	return f.match, f.err
}

func testPersona() *persona.Persona {
	return &persona.Persona{
		Name:        "윤아",
		Description: "친근한 말동무",
		SystemPrompt: persona.SystemPrompt{
			Base:  "당신은 윤아입니다.",
			Rules: []string{"반말을 사용하세요."},
		},
	}
}

func newTestResponder(t *testing.T, m Generator, r rag.Retriever) (*Responder, *session.Store) {
	t.Helper()
	builder, err := prompt.NewBuilder(testPersona())
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	sessions := session.NewStore()
	resp, err := New(&Config{
		ChatModel: m,
		Retriever: r,
		Prompts:   builder,
		Sessions:  sessions,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return resp, sessions
}

func Test_Respond_InitReturnsGreetingWithoutHistory(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "unused"}
	resp, sessions := newTestResponder(t, m, nil)

	for _, msg := range []string{"init", " INIT ", "Init"} {
		got := resp.Respond(context.Background(), msg, "Alice", "s1")
		if !strings.Contains(got.Reply, "안녕! 나는 윤아이야.") {
			t.Errorf("Respond(%q) = %q, want greeting", msg, got.Reply)
		}
		if got.Image != nil {
			t.Errorf("Respond(%q) image = %v, want nil", msg, got.Image)
		}
	}

	if m.calls != 0 {
		t.Errorf("model called %d times for init, want 0", m.calls)
	}
	if n := sessions.GetOrCreate("s1").Len(); n != 0 {
		t.Errorf("init mutated history: %d turns, want 0", n)
	}
}

func Test_Respond_AppendsBothSidesOfTheExchange(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "반가워!"}
	resp, sessions := newTestResponder(t, m, nil)

	r1 := resp.Respond(context.Background(), "안녕", "Alice", "s1")
	if r1.Reply != "반가워!" {
		t.Fatalf("reply = %q, want %q", r1.Reply, "반가워!")
	}
	if r1.Fallback {
		t.Fatal("unexpected fallback")
	}

	resp.Respond(context.Background(), "뭐해?", "Alice", "s1")

	turns := sessions.GetOrCreate("s1").Turns()
	if len(turns) != 4 {
		t.Fatalf("got %d history turns after 2 exchanges, want 4", len(turns))
	}
	wantRoles := []session.Role{session.RoleUser, session.RoleAssistant, session.RoleUser, session.RoleAssistant}
	for i, want := range wantRoles {
		if turns[i].Role != want {
			t.Errorf("turn %d role = %q, want %q", i, turns[i].Role, want)
		}
	}
	// The persisted user turn is the rendered prompt, username included.
	if !strings.Contains(turns[0].Content, "Alice: 안녕") {
		t.Errorf("persisted user turn = %q, want rendered prompt", turns[0].Content)
	}
}

// Respond holds the session lock across the whole turn, so it must only
// use the *Locked accessors inside; a plain accessor would block forever
// on its own lock.
func Test_Respond_ReturnsWhileHoldingSessionLock(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "응!"}
	resp, _ := newTestResponder(t, m, nil)

	done := make(chan *Result, 1)
	go func() {
		done <- resp.Respond(context.Background(), "안녕", "Alice", "s1")
	}()

	select {
	case got := <-done:
		if got.Reply != "응!" {
			t.Errorf("reply = %q, want %q", got.Reply, "응!")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Respond did not return; session lock never released")
	}
}

func Test_Respond_HistoryPrecedesCurrentMessage(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "ok"}
	resp, _ := newTestResponder(t, m, nil)

	resp.Respond(context.Background(), "first", "Alice", "s1")
	resp.Respond(context.Background(), "second", "Alice", "s1")

	// Second call: system + 2 history turns + current user message.
	if len(m.lastSeen) != 4 {
		t.Fatalf("model saw %d messages, want 4", len(m.lastSeen))
	}
	if m.lastSeen[0].Role != schema.System {
		t.Errorf("first message role = %q, want system", m.lastSeen[0].Role)
	}
	if !strings.Contains(m.lastSeen[1].Content, "first") {
		t.Errorf("history turn missing: %q", m.lastSeen[1].Content)
	}
	if !strings.Contains(m.lastSeen[3].Content, "second") {
		t.Errorf("current message last: %q", m.lastSeen[3].Content)
	}
}

func Test_Respond_ModelErrorReturnsFallbackAndKeepsHistoryIntact(t *testing.T) {
	t.Parallel()

	m := &fakeModel{err: errors.New("boom")}
	resp, sessions := newTestResponder(t, m, nil)

	got := resp.Respond(context.Background(), "안녕", "Alice", "s1")
	if got.Reply != fallbackReply {
		t.Errorf("reply = %q, want fallback", got.Reply)
	}
	if !got.Fallback {
		t.Error("Fallback flag not set")
	}
	if got.Image != nil {
		t.Errorf("image = %v, want nil", got.Image)
	}
	if n := sessions.GetOrCreate("s1").Len(); n != 0 {
		t.Errorf("failed call left %d history turns, want 0", n)
	}
}

func Test_Respond_EmbedErrorReturnsFallback(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "unused"}
	r := &fakeRetriever{err: errors.New("embedding api down")}
	resp, sessions := newTestResponder(t, m, r)

	got := resp.Respond(context.Background(), "안녕", "Alice", "s1")
	if got.Reply != fallbackReply {
		t.Errorf("reply = %q, want fallback", got.Reply)
	}
	if m.calls != 0 {
		t.Errorf("model called %d times after retrieval error, want 0", m.calls)
	}
	if n := sessions.GetOrCreate("s1").Len(); n != 0 {
		t.Errorf("failed call left %d history turns, want 0", n)
	}
}

// An empty reply from a successful model call is passed through verbatim;
// only invocation failures produce the fallback.
func Test_Respond_EmptyReplyIsNotFallback(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: ""}
	resp, sessions := newTestResponder(t, m, nil)

	got := resp.Respond(context.Background(), "안녕", "Alice", "s1")
	if got.Fallback {
		t.Error("empty reply treated as fallback")
	}
	if got.Reply != "" {
		t.Errorf("reply = %q, want empty", got.Reply)
	}
	if n := sessions.GetOrCreate("s1").Len(); n != 2 {
		t.Errorf("history has %d turns, want 2", n)
	}
}

func Test_Respond_MatchContextFlowsIntoUserPrompt(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "ok"}
	r := &fakeRetriever{match: &rag.Match{Content: "윤아는 커피를 좋아한다.", Similarity: 0.9}}
	resp, sessions := newTestResponder(t, m, r)

	got := resp.Respond(context.Background(), "커피 좋아해?", "Alice", "s1")
	if !got.ContextUsed {
		t.Error("ContextUsed = false, want true when a match was injected")
	}

	last := m.lastSeen[len(m.lastSeen)-1]
	if !strings.Contains(last.Content, "[참고 정보]") {
		t.Errorf("user prompt missing context header: %q", last.Content)
	}
	if !strings.Contains(last.Content, "윤아는 커피를 좋아한다.") {
		t.Errorf("user prompt missing match content: %q", last.Content)
	}
	// The persisted user turn carries the context too.
	turns := sessions.GetOrCreate("s1").Turns()
	if !strings.Contains(turns[0].Content, "윤아는 커피를 좋아한다.") {
		t.Errorf("persisted turn missing context: %q", turns[0].Content)
	}
}

func Test_Respond_NilRetrieverStillReplies(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "잘 지냈어!"}
	resp, _ := newTestResponder(t, m, nil)

	got := resp.Respond(context.Background(), "잘 지냈어?", "Alice", "s1")
	if got.Reply != "잘 지냈어!" {
		t.Errorf("reply = %q, want model reply", got.Reply)
	}
	if got.ContextUsed {
		t.Error("ContextUsed = true, want false without a retriever")
	}
	last := m.lastSeen[len(m.lastSeen)-1]
	if strings.Contains(last.Content, "[참고 정보]") {
		t.Errorf("unexpected context header without retriever: %q", last.Content)
	}
}

func Test_Respond_DefaultsAppliedForEmptyIdentity(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "ok"}
	resp, sessions := newTestResponder(t, m, nil)

	resp.Respond(context.Background(), "안녕", "", "")

	turns := sessions.GetOrCreate(DefaultSessionID).Turns()
	if len(turns) != 2 {
		t.Fatalf("default session has %d turns, want 2", len(turns))
	}
	if !strings.Contains(turns[0].Content, DefaultUsername+": 안녕") {
		t.Errorf("persisted prompt = %q, want default username line", turns[0].Content)
	}
}

func Test_Respond_SessionsAreIsolated(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "ok"}
	resp, sessions := newTestResponder(t, m, nil)

	resp.Respond(context.Background(), "hello a", "Alice", "a")
	resp.Respond(context.Background(), "hello b", "Bob", "b")
	resp.Respond(context.Background(), "again a", "Alice", "a")

	if n := sessions.GetOrCreate("a").Len(); n != 4 {
		t.Errorf("session a has %d turns, want 4", n)
	}
	if n := sessions.GetOrCreate("b").Len(); n != 2 {
		t.Errorf("session b has %d turns, want 2", n)
	}
}
