package presence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"chat-gateway/internal/domain"
)

func TestMemoryRegistry_StatusDefaultsToOffline(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	st, err := r.GetStatus(ctx, uuid.New())
	if err != nil {
		t.Fatalf("GetStatus returned error: %v", err)
	}
	if st.Status != domain.StatusOffline {
		t.Errorf("expected offline for unknown user, got %s", st.Status)
	}
}

func TestMemoryRegistry_SetAndGetStatus(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	userID := uuid.New()

	tests := []struct {
		name   string
		status domain.PresenceStatus
	}{
		{"online", domain.StatusOnline},
		{"away", domain.StatusAway},
		{"busy", domain.StatusBusy},
		{"offline", domain.StatusOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.SetStatus(ctx, userID, tt.status); err != nil {
				t.Fatalf("SetStatus returned error: %v", err)
			}
			st, err := r.GetStatus(ctx, userID)
			if err != nil {
				t.Fatalf("GetStatus returned error: %v", err)
			}
			if st.Status != tt.status {
				t.Errorf("expected %s, got %s", tt.status, st.Status)
			}
			if st.ChangedAt.IsZero() {
				t.Error("expected ChangedAt to be set")
			}
		})
	}
}

func TestMemoryRegistry_TypingExpires(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	chatID := uuid.New()
	userID := uuid.New()

	base := time.Now()
	r.now = func() time.Time { return base }

	if err := r.SetTyping(ctx, chatID, userID, true); err != nil {
		t.Fatalf("SetTyping returned error: %v", err)
	}

	typing, _ := r.ListTyping(ctx, chatID)
	if len(typing) != 1 || typing[0] != userID {
		t.Fatalf("expected [%s], got %v", userID, typing)
	}

	// Just inside the window the entry survives.
	r.now = func() time.Time { return base.Add(TypingTTL - time.Millisecond) }
	typing, _ = r.ListTyping(ctx, chatID)
	if len(typing) != 1 {
		t.Fatalf("entry expired too early: %v", typing)
	}

	// Past the window it is gone without any explicit stop.
	r.now = func() time.Time { return base.Add(TypingTTL + time.Millisecond) }
	typing, _ = r.ListTyping(ctx, chatID)
	if len(typing) != 0 {
		t.Fatalf("expected expired entry to be pruned, got %v", typing)
	}
}

func TestMemoryRegistry_TypingRefreshResetsWindow(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	chatID := uuid.New()
	userID := uuid.New()

	base := time.Now()
	r.now = func() time.Time { return base }
	r.SetTyping(ctx, chatID, userID, true)

	// Refresh three seconds in pushes expiry out.
	r.now = func() time.Time { return base.Add(3 * time.Second) }
	r.SetTyping(ctx, chatID, userID, true)

	r.now = func() time.Time { return base.Add(7 * time.Second) }
	typing, _ := r.ListTyping(ctx, chatID)
	if len(typing) != 1 {
		t.Fatalf("refreshed entry should still be visible, got %v", typing)
	}
}

func TestMemoryRegistry_ExplicitStopClearsTyping(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	chatID := uuid.New()
	userID := uuid.New()

	r.SetTyping(ctx, chatID, userID, true)
	r.SetTyping(ctx, chatID, userID, false)

	typing, _ := r.ListTyping(ctx, chatID)
	if len(typing) != 0 {
		t.Fatalf("expected no typing users after stop, got %v", typing)
	}
}

func TestMemoryRegistry_RoomMembership(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	chatA := uuid.New()
	chatB := uuid.New()
	userID := uuid.New()

	r.AddToRoom(ctx, chatA, userID)
	r.AddToRoom(ctx, chatB, userID)
	// Adding twice is idempotent.
	r.AddToRoom(ctx, chatA, userID)

	members, _ := r.ListRoomMembers(ctx, chatA)
	if len(members) != 1 || members[0] != userID {
		t.Fatalf("expected [%s] in room A, got %v", userID, members)
	}

	r.RemoveFromRoom(ctx, chatA, userID)
	members, _ = r.ListRoomMembers(ctx, chatA)
	if len(members) != 0 {
		t.Fatalf("expected empty room A, got %v", members)
	}

	members, _ = r.ListRoomMembers(ctx, chatB)
	if len(members) != 1 {
		t.Fatalf("removal from A must not touch B, got %v", members)
	}

	// Removing a user who never joined is a no-op.
	if err := r.RemoveFromRoom(ctx, chatA, uuid.New()); err != nil {
		t.Fatalf("RemoveFromRoom returned error: %v", err)
	}
}
