package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestStore_GetOrCreate_LazyAndStable(t *testing.T) {
	t.Parallel()

	st := NewStore()
	if st.Len() != 0 {
		t.Fatalf("new store should be empty, got %d sessions", st.Len())
	}

	a := st.GetOrCreate("alpha")
	if a == nil {
		t.Fatal("GetOrCreate returned nil")
	}
	if st.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", st.Len())
	}

	// Same ID must return the same session.
	if b := st.GetOrCreate("alpha"); b != a {
		t.Error("GetOrCreate returned a different session for the same ID")
	}
}

func TestStore_SessionIsolation(t *testing.T) {
	t.Parallel()

	st := NewStore()
	a := st.GetOrCreate("a")
	b := st.GetOrCreate("b")

	a.Append(RoleUser, "안녕하세요")
	a.Append(RoleAssistant, "안녕!")
	b.Append(RoleUser, "hello")

	if got := a.Len(); got != 2 {
		t.Errorf("session a: got %d turns, want 2", got)
	}
	if got := b.Len(); got != 1 {
		t.Errorf("session b: got %d turns, want 1", got)
	}
}

func TestSession_TurnsOrderAndCopy(t *testing.T) {
	t.Parallel()

	s := &Session{}
	s.Append(RoleUser, "first")
	s.Append(RoleAssistant, "second")
	s.Append(RoleUser, "third")

	turns := s.Turns()
	want := []Turn{
		{RoleUser, "first"},
		{RoleAssistant, "second"},
		{RoleUser, "third"},
	}
	if len(turns) != len(want) {
		t.Fatalf("got %d turns, want %d", len(turns), len(want))
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("turn %d: got %+v, want %+v", i, turns[i], want[i])
		}
	}

	// Mutating the returned slice must not affect the session.
	turns[0].Content = "mutated"
	if s.Turns()[0].Content != "first" {
		t.Error("Turns returned a live reference to internal state")
	}
}

func TestSession_LockedVariants(t *testing.T) {
	t.Parallel()

	s := &Session{}
	s.Lock()
	s.AppendLocked(RoleUser, "질문")
	s.AppendLocked(RoleAssistant, "답변")
	turns := s.TurnsLocked()
	n := s.LenLocked()
	s.Unlock()

	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if n != 2 {
		t.Errorf("LenLocked = %d, want 2", n)
	}
	if turns[1].Role != RoleAssistant {
		t.Errorf("turn 1 role = %q, want %q", turns[1].Role, RoleAssistant)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	st := NewStore()
	const goroutines = 32
	const perGoroutine = 10

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", n%4)
			s := st.GetOrCreate(id)
			for j := 0; j < perGoroutine; j++ {
				s.Append(RoleUser, "msg")
				_ = s.Turns()
			}
		}(i)
	}
	wg.Wait()

	if st.Len() != 4 {
		t.Errorf("expected 4 sessions, got %d", st.Len())
	}
	total := 0
	for i := 0; i < 4; i++ {
		total += st.GetOrCreate(fmt.Sprintf("session-%d", i)).Len()
	}
	if total != goroutines*perGoroutine {
		t.Errorf("expected %d total turns, got %d", goroutines*perGoroutine, total)
	}
}
