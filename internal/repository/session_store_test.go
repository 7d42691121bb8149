package repository

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMemorySessionStore_GetOrCreateIsLazy(t *testing.T) {
	store := NewMemorySessionStore()

	sess := store.GetOrCreate("s1")
	if sess.ID != "s1" {
		t.Fatalf("expected session id s1, got %q", sess.ID)
	}
	if sess.Messages == nil || len(sess.Messages) != 0 {
		t.Fatalf("expected empty non-nil messages, got %+v", sess.Messages)
	}
}

func TestMemorySessionStore_AppendAssignsOriginIDAndTimestamp(t *testing.T) {
	store := NewMemorySessionStore()

	user := store.AppendUserMessage("s1", "hola")
	ai := store.AppendAssistantMessage("s1", "buenas")

	if !user.IsUser || ai.IsUser {
		t.Fatalf("unexpected origin flags: user=%v ai=%v", user.IsUser, ai.IsUser)
	}
	if !strings.HasPrefix(user.ID, "user_") || !strings.HasPrefix(ai.ID, "ai_") {
		t.Fatalf("unexpected ids: %q %q", user.ID, ai.ID)
	}
	if user.ID == ai.ID {
		t.Fatalf("expected unique ids")
	}
	if !ai.CreatedAt.After(user.CreatedAt) {
		t.Fatalf("expected assistant timestamp after user timestamp: %s vs %s", ai.CreatedAt, user.CreatedAt)
	}
}

func TestMemorySessionStore_TimestampsStrictlyIncreaseWithFrozenClock(t *testing.T) {
	store := NewMemorySessionStore()
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return frozen }

	a := store.AppendUserMessage("s1", "a")
	b := store.AppendAssistantMessage("s1", "b")
	c := store.AppendUserMessage("s1", "c")
	if !b.CreatedAt.After(a.CreatedAt) || !c.CreatedAt.After(b.CreatedAt) {
		t.Fatalf("expected strictly increasing timestamps: %s %s %s", a.CreatedAt, b.CreatedAt, c.CreatedAt)
	}
}

func TestMemorySessionStore_RecentHistory(t *testing.T) {
	for _, tc := range []struct {
		appends, max, want int
	}{
		{appends: 0, max: 5, want: 0},
		{appends: 3, max: 5, want: 3},
		{appends: 5, max: 5, want: 5},
		{appends: 12, max: 5, want: 5},
		{appends: 4, max: 0, want: 0},
	} {
		t.Run(fmt.Sprintf("%d_de_%d", tc.max, tc.appends), func(t *testing.T) {
			store := NewMemorySessionStore()
			for i := 0; i < tc.appends; i++ {
				store.AppendUserMessage("s1", fmt.Sprintf("msg%d", i))
			}

			got := store.RecentHistory("s1", tc.max)
			if len(got) != tc.want {
				t.Fatalf("expected %d messages, got %d", tc.want, len(got))
			}
			for i, m := range got {
				want := fmt.Sprintf("msg%d", tc.appends-tc.want+i)
				if m.Content != want {
					t.Fatalf("position %d: expected %q, got %q", i, want, m.Content)
				}
			}
		})
	}
}

func TestMemorySessionStore_RecentHistoryReturnsCopy(t *testing.T) {
	store := NewMemorySessionStore()
	store.AppendUserMessage("s1", "original")

	got := store.RecentHistory("s1", 5)
	got[0].Content = "mutado"

	again := store.RecentHistory("s1", 5)
	if again[0].Content != "original" {
		t.Fatalf("expected stored message to be immutable, got %q", again[0].Content)
	}
}

func TestMemorySessionStore_Clear(t *testing.T) {
	t.Run("sesion existente", func(t *testing.T) {
		store := NewMemorySessionStore()
		store.AppendUserMessage("s1", "hola")
		store.AppendAssistantMessage("s1", "hola!")

		if !store.Clear("s1") {
			t.Fatalf("expected clear to succeed")
		}
		sess := store.GetOrCreate("s1")
		if sess.ID != "s1" || len(sess.Messages) != 0 {
			t.Fatalf("expected same empty session, got %+v", sess)
		}
	})

	t.Run("sesion desconocida", func(t *testing.T) {
		store := NewMemorySessionStore()
		if store.Clear("nunca") {
			t.Fatalf("expected not found")
		}
		if store.lookup("nunca") != nil {
			t.Fatalf("expected clear to not create a session")
		}
	})

	t.Run("recent history no crea sesion", func(t *testing.T) {
		store := NewMemorySessionStore()
		_ = store.RecentHistory("fantasma", 5)
		if store.Clear("fantasma") {
			t.Fatalf("expected history lookup to not create a session")
		}
	})
}

func TestMemorySessionStore_ConcurrentAppends(t *testing.T) {
	store := NewMemorySessionStore()
	const workers = 20
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			sessionID := "shared"
			if w%2 == 0 {
				sessionID = fmt.Sprintf("own-%d", w)
			}
			for i := 0; i < perWorker; i++ {
				store.AppendUserMessage(sessionID, "x")
			}
		}(w)
	}
	wg.Wait()

	shared := store.GetOrCreate("shared")
	if len(shared.Messages) != workers/2*perWorker {
		t.Fatalf("expected %d messages, got %d", workers/2*perWorker, len(shared.Messages))
	}
	seen := make(map[string]bool, len(shared.Messages))
	for i, m := range shared.Messages {
		if seen[m.ID] {
			t.Fatalf("duplicated message id %q", m.ID)
		}
		seen[m.ID] = true
		if i > 0 && !m.CreatedAt.After(shared.Messages[i-1].CreatedAt) {
			t.Fatalf("timestamps out of order at %d", i)
		}
	}
	if got := len(store.GetOrCreate("own-0").Messages); got != perWorker {
		t.Fatalf("expected %d messages in own session, got %d", perWorker, got)
	}
}
