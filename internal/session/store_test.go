package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/neel92654/PDF-QA-Bot/internal/domain"
)

func userTurn(content string) domain.ChatTurn {
	return domain.ChatTurn{Role: domain.RoleUser, Content: content}
}

func assistantTurn(content string) domain.ChatTurn {
	return domain.ChatTurn{Role: domain.RoleAssistant, Content: content}
}

func TestStore_LazyCreation(t *testing.T) {
	s := NewStore(0)
	defer s.Close()

	// An unknown id behaves like a fresh empty session, never an error.
	if got := s.History("never-seen"); len(got) != 0 {
		t.Fatalf("History on unknown session = %d turns, want 0", len(got))
	}
	if got := s.Documents("never-seen"); len(got) != 0 {
		t.Fatalf("Documents on unknown session = %v, want empty", got)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after lazy creation", s.Len())
	}
}

func TestStore_ExchangePairing(t *testing.T) {
	s := NewStore(0)
	defer s.Close()

	// Two in-flight asks; the second completes first.
	ref1 := s.BeginExchange("sess", userTurn("q1"))
	ref2 := s.BeginExchange("sess", userTurn("q2"))
	ref2.Complete(assistantTurn("a2"))
	ref1.Complete(assistantTurn("a1"))

	history := s.History("sess")
	want := []string{"q1", "a1", "q2", "a2"}
	if len(history) != len(want) {
		t.Fatalf("history has %d turns, want %d", len(history), len(want))
	}
	for i, content := range want {
		if history[i].Content != content {
			t.Errorf("history[%d].Content = %q, want %q", i, history[i].Content, content)
		}
	}
}

func TestStore_FailedCallLeavesUserTurnOnly(t *testing.T) {
	s := NewStore(0)
	defer s.Close()

	s.BeginExchange("sess", userTurn("q1")) // downstream failed, never completed

	history := s.History("sess")
	if len(history) != 1 {
		t.Fatalf("history has %d turns, want 1", len(history))
	}
	if history[0].Role != domain.RoleUser {
		t.Errorf("history[0].Role = %q, want user", history[0].Role)
	}
}

func TestStore_ConcurrentExchangesSameSession(t *testing.T) {
	s := NewStore(0)
	defer s.Close()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := s.BeginExchange("sess", userTurn(fmt.Sprintf("q%d", i)))
			ref.Complete(assistantTurn(fmt.Sprintf("a%d", i)))
		}(i)
	}
	wg.Wait()

	history := s.History("sess")
	if len(history) != 2*n {
		t.Fatalf("history has %d turns, want %d (no lost updates)", len(history), 2*n)
	}
	// Every user turn must be immediately followed by its own assistant turn.
	for i := 0; i < len(history); i += 2 {
		u, a := history[i], history[i+1]
		if u.Role != domain.RoleUser || a.Role != domain.RoleAssistant {
			t.Fatalf("turns %d/%d roles = %q/%q, want user/assistant", i, i+1, u.Role, a.Role)
		}
		if "a"+u.Content[1:] != a.Content {
			t.Errorf("turn %d: user %q paired with assistant %q", i, u.Content, a.Content)
		}
	}
}

func TestStore_CompleteUsesStoreClock(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(0, WithIdleTTL(time.Hour))
	defer s.Close()
	s.now = func() time.Time { return now }

	ref := s.BeginExchange("sess", userTurn("q"))
	now = now.Add(2 * time.Minute)
	ref.Complete(assistantTurn("a"))

	history := s.History("sess")
	if len(history) != 2 {
		t.Fatalf("history has %d turns, want 2", len(history))
	}
	if !history[1].CreatedAt.Equal(now) {
		t.Errorf("assistant CreatedAt = %v, want %v", history[1].CreatedAt, now)
	}

	// Completing an exchange slides the session's expiry forward.
	now = now.Add(59 * time.Minute)
	if evicted := s.Sweep(); evicted != 0 {
		t.Fatalf("Sweep evicted %d sessions, want 0 after a recent completion", evicted)
	}
}

func TestStore_ClearPreservesDocuments(t *testing.T) {
	s := NewStore(0)
	defer s.Close()

	s.AddDocuments("sess", "doc-1", "doc-2", "doc-1")
	ref := s.BeginExchange("sess", userTurn("q"))
	ref.Complete(assistantTurn("a"))

	s.Clear("sess")

	if got := s.History("sess"); len(got) != 0 {
		t.Fatalf("history after Clear = %d turns, want 0", len(got))
	}
	docs := s.Documents("sess")
	if len(docs) != 2 || docs[0] != "doc-1" || docs[1] != "doc-2" {
		t.Fatalf("Documents after Clear = %v, want [doc-1 doc-2]", docs)
	}
}

func TestStore_SweepEvictsIdleSessions(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(0, WithIdleTTL(time.Hour))
	defer s.Close()
	s.now = func() time.Time { return now }

	s.AddDocuments("idle", "doc-1")
	now = now.Add(30 * time.Minute)
	s.AddDocuments("fresh", "doc-2")

	// Touching a session slides its expiry forward.
	now = now.Add(45 * time.Minute)
	s.History("fresh")

	now = now.Add(20 * time.Minute)
	if evicted := s.Sweep(); evicted != 1 {
		t.Fatalf("Sweep evicted %d sessions, want 1", evicted)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d after sweep, want 1", s.Len())
	}
	if docs := s.Documents("fresh"); len(docs) != 1 {
		t.Fatalf("fresh session lost its documents: %v", docs)
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{NewID(), true},
		{"abc-123_x.y", true},
		{"", false},
		{"has space", false},
		{"semi;colon", false},
		{string(make([]byte, 200)), false},
	}
	for _, tt := range tests {
		if got := ValidID(tt.id); got != tt.want {
			t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
