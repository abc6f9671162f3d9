package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kalambet/kbagent/internal/agent"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

// TestIndexesExist verifies that the conversation indexes are created by the migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_messages_conversation", "idx_conversations_updated"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestAppendAndMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)

	got, err := s.Append(ctx, "c1", agent.Message{Role: agent.RoleUser, Content: "hello", Timestamp: t0})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Append returned %d messages, want 1", len(got))
	}

	got, err = s.Append(ctx, "c1", agent.Message{Role: agent.RoleAssistant, Content: "hi there", Timestamp: t0.Add(time.Second)})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Append returned %d messages, want 2", len(got))
	}

	msgs, err := s.Messages(ctx, "c1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if msgs[0].Role != agent.RoleUser || msgs[0].Content != "hello" || !msgs[0].Timestamp.Equal(t0) {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Role != agent.RoleAssistant || msgs[1].Content != "hi there" {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
}

func TestMessagesNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Messages(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, agent.ErrConversationNotFound) {
		t.Errorf("ErrNotFound should match agent.ErrConversationNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Append(ctx, "c1", agent.Message{Role: agent.RoleUser, Content: "x"})
	if err := s.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Messages(ctx, "c1"); !errors.Is(err, agent.ErrConversationNotFound) {
		t.Errorf("Messages after delete: %v", err)
	}
	if err := s.Delete(ctx, "c1"); !errors.Is(err, agent.ErrConversationNotFound) {
		t.Errorf("second Delete: %v", err)
	}

	var n int
	s.db.QueryRow("SELECT COUNT(*) FROM messages WHERE conversation_id = 'c1'").Scan(&n)
	if n != 0 {
		t.Errorf("%d orphan messages left", n)
	}
}

func TestList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Append(ctx, "old", agent.Message{Role: agent.RoleUser, Content: "1", Timestamp: base})
	s.Append(ctx, "new", agent.Message{Role: agent.RoleUser, Content: "1", Timestamp: base.Add(time.Hour)})
	s.Append(ctx, "old", agent.Message{Role: agent.RoleAssistant, Content: "2", Timestamp: base.Add(2 * time.Hour)})

	list, err := s.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d, want 2", len(list))
	}
	if list[0].ID != "old" || list[0].MessageCount != 2 {
		t.Errorf("list[0] = %+v, want old with 2 messages", list[0])
	}
	if !list[0].CreatedAt.Equal(base) || !list[0].UpdatedAt.Equal(base.Add(2*time.Hour)) {
		t.Errorf("list[0] times = %v / %v", list[0].CreatedAt, list[0].UpdatedAt)
	}

	page, err := s.List(ctx, 1, 1)
	if err != nil {
		t.Fatalf("List page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "new" {
		t.Errorf("page = %+v", page)
	}
}

// TestServiceWithSQLiteStore runs chat turns through the agent service backed by SQLite.
func TestServiceWithSQLiteStore(t *testing.T) {
	s := openTestStore(t)
	svc := agent.New(echoEngine{}, nil, s)
	ctx := context.Background()

	resp, err := svc.ProcessChat(ctx, agent.ChatRequest{Message: "ping"})
	if err != nil {
		t.Fatalf("ProcessChat: %v", err)
	}
	if resp.Metadata.ConversationLength != 2 {
		t.Errorf("ConversationLength = %d, want 2", resp.Metadata.ConversationLength)
	}
	if err := svc.DeleteConversation(ctx, resp.ConversationID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if _, err := svc.Conversation(ctx, resp.ConversationID); !errors.Is(err, agent.ErrConversationNotFound) {
		t.Errorf("Conversation after delete: %v", err)
	}
}
