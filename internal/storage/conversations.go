// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/driveq/internal/model"
	"github.com/jeranaias/driveq/internal/util"
)

// =============================================================================
// CONVERSATION TYPES
// =============================================================================

// Conversation is a saved transcript.
type Conversation struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	SessionID string           `json:"session_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Messages  model.Transcript `json:"messages"`
}

// ConversationMeta is the list view of a conversation.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SessionID    string    `json:"session_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
}

// =============================================================================
// SAVE / LOAD
// =============================================================================

// SaveConversation inserts or replaces conv and returns its id. A missing
// id or title is filled in. Messages still streaming are skipped.
func (s *Store) SaveConversation(ctx context.Context, conv *Conversation) (string, error) {
	if conv == nil {
		return "", errors.New("nil conversation")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return "", err
	}

	now := time.Now()
	if conv.ID == "" {
		conv.ID = generateConversationID()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
	if strings.TrimSpace(conv.Title) == "" {
		conv.Title = conv.Messages.Title()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			session_id = excluded.session_id,
			updated_at = excluded.updated_at`,
		conv.ID, conv.Title, conv.SessionID, conv.CreatedAt.UnixMilli(), conv.UpdatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("save conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", conv.ID); err != nil {
		return "", fmt.Errorf("save conversation: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (conversation_id, position, id, role, content, sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("save conversation: %w", err)
	}
	defer stmt.Close()

	pos := 0
	for _, m := range conv.Messages {
		if m.IsStreaming {
			continue
		}
		sources := m.Sources
		if sources == nil {
			sources = []string{}
		}
		raw, err := json.Marshal(sources)
		if err != nil {
			return "", fmt.Errorf("encode sources: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, conv.ID, pos, m.ID, string(m.Role), m.Content, string(raw), m.Timestamp.UnixMilli()); err != nil {
			return "", fmt.Errorf("save message %d: %w", pos, err)
		}
		pos++
	}

	if s.MaxConversations > 0 {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM conversations WHERE id NOT IN (
				SELECT id FROM conversations ORDER BY updated_at DESC, id LIMIT ?
			)`, s.MaxConversations)
		if err != nil {
			return "", fmt.Errorf("prune conversations: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save: %w", err)
	}
	return conv.ID, nil
}

// LoadConversation reads one conversation by exact id.
func (s *Store) LoadConversation(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	conv := &Conversation{ID: id}
	var created, updated int64
	err = db.QueryRowContext(ctx,
		"SELECT title, session_id, created_at, updated_at FROM conversations WHERE id = ?", id).
		Scan(&conv.Title, &conv.SessionID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	conv.CreatedAt = time.UnixMilli(created)
	conv.UpdatedAt = time.UnixMilli(updated)

	rows, err := db.QueryContext(ctx, `
		SELECT id, role, content, sources, created_at FROM messages
		WHERE conversation_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.Message
		var role, sources string
		var ts int64
		if err := rows.Scan(&m.ID, &role, &m.Content, &sources, &ts); err != nil {
			return nil, fmt.Errorf("load messages: %w", err)
		}
		m.Role = model.Role(role)
		m.Timestamp = time.UnixMilli(ts)
		if err := json.Unmarshal([]byte(sources), &m.Sources); err != nil {
			return nil, fmt.Errorf("decode sources: %w", err)
		}
		if len(m.Sources) == 0 {
			m.Sources = nil
		}
		conv.Messages = append(conv.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return conv, nil
}

// Resolve finds a conversation by list number ("1" is the most recent),
// exact id or unique id prefix.
func (s *Store) Resolve(ctx context.Context, ref string) (*Conversation, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrNotFound)
	}

	if n, err := strconv.Atoi(ref); err == nil {
		metas, err := s.ListConversations(ctx, n)
		if err != nil {
			return nil, err
		}
		if n < 1 || n > len(metas) {
			return nil, fmt.Errorf("%w: no conversation #%d", ErrNotFound, n)
		}
		return s.LoadConversation(ctx, metas[n-1].ID)
	}

	conv, err := s.LoadConversation(ctx, ref)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return conv, err
	}

	ids, err := s.idsWithPrefix(ctx, ref)
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return s.LoadConversation(ctx, ids[0])
	default:
		return nil, fmt.Errorf("ambiguous conversation id %q matches %d conversations", ref, len(ids))
	}
}

func (s *Store) idsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		"SELECT id FROM conversations WHERE substr(id, 1, ?) = ? ORDER BY updated_at DESC",
		len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// LIST / SEARCH / DELETE
// =============================================================================

const metaQuery = `
	SELECT c.id, c.title, c.session_id, c.created_at, c.updated_at,
		(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
		COALESCE((SELECT m.content FROM messages m
			WHERE m.conversation_id = c.id AND m.role = 'user'
			ORDER BY m.position LIMIT 1), '')
	FROM conversations c`

// ListConversations returns the newest conversations first. limit <= 0
// returns all of them.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]ConversationMeta, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryMeta(ctx, metaQuery+" ORDER BY c.updated_at DESC, c.id LIMIT ?", limit)
}

// SearchConversations returns conversations whose title or any message
// contains query, case-insensitively.
func (s *Store) SearchConversations(ctx context.Context, query string) ([]ConversationMeta, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListConversations(ctx, 0)
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	return s.queryMeta(ctx, metaQuery+`
		WHERE lower(c.title) LIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM messages m
				WHERE m.conversation_id = c.id AND lower(m.content) LIKE ? ESCAPE '\')
		ORDER BY c.updated_at DESC, c.id`, pattern, pattern)
}

func (s *Store) queryMeta(ctx context.Context, query string, args ...any) ([]ConversationMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationMeta
	for rows.Next() {
		var m ConversationMeta
		var created, updated int64
		var first string
		if err := rows.Scan(&m.ID, &m.Title, &m.SessionID, &created, &updated, &m.MessageCount, &first); err != nil {
			return nil, fmt.Errorf("list conversations: %w", err)
		}
		m.CreatedAt = time.UnixMilli(created)
		m.UpdatedAt = time.UnixMilli(updated)
		m.Preview = util.TruncateRunes(strings.Join(strings.Fields(first), " "), 100)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// CountConversations returns how many transcripts are saved.
func (s *Store) CountConversations(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&n)
	return n, err
}

// =============================================================================
// HELPERS
// =============================================================================

func generateConversationID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "conv_" + hex.EncodeToString(bytes)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// FormatConversationList renders metas as a numbered plain-text table.
func FormatConversationList(metas []ConversationMeta) string {
	if len(metas) == 0 {
		return "No saved conversations."
	}

	var sb strings.Builder
	sb.WriteString(runewidth.FillRight("#", 4) + " " +
		runewidth.FillRight("ID", 21) + " " +
		runewidth.FillRight("Updated", 16) + " " +
		runewidth.FillRight("Msgs", 5) + " Title\n")
	sb.WriteString(strings.Repeat("-", 78) + "\n")

	for i, m := range metas {
		sb.WriteString(runewidth.FillRight(strconv.Itoa(i+1), 4) + " " +
			runewidth.FillRight(util.TruncateWidth(m.ID, 21), 21) + " " +
			runewidth.FillRight(m.UpdatedAt.Format("2006-01-02 15:04"), 16) + " " +
			runewidth.FillRight(strconv.Itoa(m.MessageCount), 5) + " " +
			util.TruncateWidth(m.Title, 28) + "\n")
	}
	return sb.String()
}
