package prompt

import (
	"strings"
	"testing"

	"github.com/eoeldroal/3-character-chat/internal/persona"
)

// newTestBuilder builds a Builder with a small fixed persona.
func newTestBuilder(t *testing.T, p *persona.Persona) *Builder {
	t.Helper()
	b, err := NewBuilder(p)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	return b
}

func Test_System_WithRules(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, &persona.Persona{
		Name: "윤아",
		SystemPrompt: persona.SystemPrompt{
			Base:  "너는 윤아야.",
			Rules: []string{"반말로 대답해", "짧게 말해"},
		},
	})

	sys := b.System()
	if !strings.HasPrefix(sys, "너는 윤아야.") {
		t.Errorf("system prompt must start with the base prompt, got %q", sys)
	}
	if !strings.Contains(sys, "[대화 규칙]") {
		t.Errorf("system prompt missing rules header: %q", sys)
	}
	if !strings.Contains(sys, "- 반말로 대답해") || !strings.Contains(sys, "- 짧게 말해") {
		t.Errorf("system prompt missing rule bullets: %q", sys)
	}
}

func Test_System_NoRulesOmitsHeader(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, &persona.Persona{
		Name:         "윤아",
		SystemPrompt: persona.SystemPrompt{Base: "너는 윤아야."},
	})

	sys := b.System()
	if sys != "너는 윤아야." {
		t.Errorf("system prompt without rules must be base only, got %q", sys)
	}
}

func Test_User_ContextPrecedesMessage(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, persona.Default())

	user := b.User("Y", "X", "Alice")
	ctxIdx := strings.Index(user, "X")
	msgIdx := strings.Index(user, "Y")
	if ctxIdx == -1 || msgIdx == -1 {
		t.Fatalf("user prompt must contain both context and message: %q", user)
	}
	if ctxIdx > msgIdx {
		t.Errorf("context must precede message: %q", user)
	}
	if !strings.Contains(user, "[참고 정보]") {
		t.Errorf("context block must carry its header: %q", user)
	}
	if !strings.Contains(user, "Alice: Y") {
		t.Errorf("user line must be formatted as {username}: {message}: %q", user)
	}
}

func Test_User_NoContextNoHeader(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, persona.Default())

	user := b.User("안녕하세요", "", "Alice")
	if strings.Contains(user, "[참고 정보]") {
		t.Errorf("empty context must not produce a context header: %q", user)
	}
	if user != "Alice: 안녕하세요" {
		t.Errorf("want bare user line, got %q", user)
	}
}

func Test_Build_Deterministic(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, persona.Default())

	sys1, user1 := b.Build("m", "c", "u")
	sys2, user2 := b.Build("m", "c", "u")
	if sys1 != sys2 || user1 != user2 {
		t.Error("Build must be deterministic for identical inputs")
	}
}

func Test_Greeting_ContainsNameAndDescription(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, &persona.Persona{Name: "윤아", Description: "대학생 캐릭터"})

	g := b.Greeting()
	if !strings.Contains(g, "윤아") {
		t.Errorf("greeting must contain the persona name: %q", g)
	}
	if !strings.Contains(g, "대학생 캐릭터") {
		t.Errorf("greeting must contain the description: %q", g)
	}
}

func Test_Greeting_NoDescription(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t, &persona.Persona{Name: "윤아"})

	g := b.Greeting()
	if g != "안녕! 나는 윤아이야." {
		t.Errorf("greeting without description: got %q", g)
	}
}
