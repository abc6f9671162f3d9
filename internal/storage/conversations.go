package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/kbagent/internal/agent"
)

// ErrNotFound is returned when a requested record does not exist. It wraps
// agent.ErrConversationNotFound so callers can match either.
var ErrNotFound = fmt.Errorf("not found: %w", agent.ErrConversationNotFound)

const timeLayout = time.RFC3339Nano

var _ agent.Store = (*Store)(nil)

// Append adds msgs to conversation id in one transaction and returns the
// full history.
func (s *Store) Append(ctx context.Context, id string, msgs ...agent.Message) ([]agent.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning append: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if len(msgs) > 0 && !msgs[len(msgs)-1].Timestamp.IsZero() {
		now = msgs[len(msgs)-1].Timestamp.UTC()
	}
	ts := now.Format(timeLayout)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		id, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("upserting conversation: %w", err)
	}

	for _, m := range msgs {
		at := m.Timestamp
		if at.IsZero() {
			at = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			id, string(m.Role), m.Content, at.UTC().Format(timeLayout),
		); err != nil {
			return nil, fmt.Errorf("inserting message: %w", err)
		}
	}

	history, err := queryMessages(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing append: %w", err)
	}
	return history, nil
}

// Messages returns the history of id in insertion order.
func (s *Store) Messages(ctx context.Context, id string) ([]agent.Message, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return queryMessages(ctx, s.db, id)
}

// Delete removes id and its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// List returns conversation summaries, most recently updated first. A
// limit <= 0 returns all rows.
func (s *Store) List(ctx context.Context, limit, offset int) ([]agent.ConversationSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.created_at, c.updated_at, COUNT(m.id)
		FROM conversations c LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC, c.id ASC
		LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []agent.ConversationSummary{}
	for rows.Next() {
		var sum agent.ConversationSummary
		var createdAt, updatedAt string
		if err := rows.Scan(&sum.ID, &createdAt, &updatedAt, &sum.MessageCount); err != nil {
			return nil, err
		}
		if sum.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", sum.ID, err)
		}
		if sum.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at for %s: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryMessages(ctx context.Context, q queryer, id string) ([]agent.Message, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT role, content, created_at FROM messages
		WHERE conversation_id = ? ORDER BY id ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	msgs := []agent.Message{}
	for rows.Next() {
		var m agent.Message
		var role, createdAt string
		if err := rows.Scan(&role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.Role = agent.Role(role)
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		m.Timestamp = t
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
