package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"homehub/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	readBy, err := json.Marshal(m.ReadBy)
	if err != nil {
		return fmt.Errorf("marshal read_by: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, read_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, m.ConversationID, m.SenderID, m.Content, string(readBy)).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	// Keep the owning conversation's activity timestamp current so inbox
	// ordering follows the most recent message.
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET updated_at = NOW() WHERE id = $1
	`, m.ConversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	return scanMessageRow(r.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, content, read_by, created_at
		FROM messages
		WHERE id = $1
	`, id))
}

func (r *MessageRepo) ListForConversation(
	ctx context.Context,
	conversationID int64,
	order domain.SortOrder,
	limit int,
) ([]*domain.Message, error) {
	dir := "ASC"
	if order == domain.OrderDescending {
		dir = "DESC"
	}
	// created_at ties are broken by id in the same direction, so the
	// ordering is total and stable across calls.
	query := fmt.Sprintf(`
		SELECT id, conversation_id, sender_id, content, read_by, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at %s, id %s
	`, dir, dir)
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MessageRepo) LatestForConversation(ctx context.Context, conversationID int64) (*domain.Message, error) {
	return scanMessageRow(r.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, content, read_by, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID))
}

func (r *MessageRepo) UnreadCount(ctx context.Context, conversationID, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND NOT read_by @> to_jsonb($2::bigint)
	`, conversationID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, messageID, readerID int64) (*domain.Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	m := &domain.Message{}
	var readBy []byte
	err = tx.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, content, read_by, created_at
		FROM messages
		WHERE id = $1
		FOR UPDATE
	`, messageID).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &readBy, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if err := json.Unmarshal(readBy, &m.ReadBy); err != nil {
		return nil, fmt.Errorf("unmarshal read_by: %w", err)
	}

	if !m.ReadBy.Add(readerID) {
		// Already acknowledged; nothing to write.
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return m, nil
	}

	updated, err := json.Marshal(m.ReadBy)
	if err != nil {
		return nil, fmt.Errorf("marshal read_by: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE messages SET read_by = $1 WHERE id = $2
	`, string(updated), messageID); err != nil {
		return nil, fmt.Errorf("update read_by: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	m := &domain.Message{}
	var readBy []byte
	if err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.Content,
		&readBy,
		&m.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if err := json.Unmarshal(readBy, &m.ReadBy); err != nil {
		return nil, fmt.Errorf("unmarshal read_by: %w", err)
	}
	return m, nil
}

func scanMessageRow(row *sql.Row) (*domain.Message, error) {
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
