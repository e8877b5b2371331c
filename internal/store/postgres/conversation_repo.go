package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"homehub/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation, members []domain.ProvisionedMember) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (group_id, type, name, member_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, c.GroupID, c.Type, c.Name, c.MemberKey).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}

	for _, m := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO participants (conversation_id, user_id, role)
			VALUES ($1, $2, $3)
		`, c.ID, m.UserID, m.Role); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	return scanConversationRow(r.db.QueryRowContext(ctx, `
		SELECT id, group_id, type, name, member_key, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`, id))
}

func (r *ConversationRepo) FindByMemberKey(ctx context.Context, key string) (*domain.Conversation, error) {
	return scanConversationRow(r.db.QueryRowContext(ctx, `
		SELECT id, group_id, type, name, member_key, created_at, updated_at
		FROM conversations
		WHERE member_key = $1
	`, key))
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.group_id, c.type, c.name, c.member_key, c.created_at, c.updated_at
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC, c.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return scanConversations(rows)
}

func (r *ConversationRepo) ListForGroup(ctx context.Context, groupID int64) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, group_id, type, name, member_key, created_at, updated_at
		FROM conversations
		WHERE group_id = $1
		ORDER BY id ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group conversations: %w", err)
	}
	return scanConversations(rows)
}

func (r *ConversationRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteConversationsTx(ctx, tx, []int64{id}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// deleteConversationsTx removes conversations with their participants and
// messages. The cascade is explicit even though the schema also declares
// ON DELETE CASCADE.
func deleteConversationsTx(ctx context.Context, tx *sql.Tx, ids []int64) error {
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = $1`, id); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE conversation_id = $1`, id); err != nil {
			return fmt.Errorf("delete participants: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
	}
	return nil
}

func scanConversationRow(row *sql.Row) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := row.Scan(
		&c.ID,
		&c.GroupID,
		&c.Type,
		&c.Name,
		&c.MemberKey,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return c, nil
}

func scanConversations(rows *sql.Rows) ([]*domain.Conversation, error) {
	defer rows.Close()
	var res []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		if err := rows.Scan(
			&c.ID,
			&c.GroupID,
			&c.Type,
			&c.Name,
			&c.MemberKey,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
