package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"homehub/internal/domain"
)

type GroupRepo struct {
	db *sql.DB
}

func NewGroupRepo(db *sql.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

var _ domain.GroupRepository = (*GroupRepo)(nil)

func (r *GroupRepo) CreateProvisioned(
	ctx context.Context,
	g *domain.Group,
	convs []domain.ProvisionedConversation,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO groups (name, landlord_id, property_id, created_at)
		VALUES (?, ?, ?, ?)
	`, g.Name, g.LandlordID, g.PropertyID, now)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	groupID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	for _, conv := range convs {
		if err := createProvisionedTx(ctx, tx, groupID, conv, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	g.ID = groupID
	g.CreatedAt = now
	return nil
}

// createProvisionedTx inserts one conversation of a provisioning plan
// with its participants. A dm whose pair already has a channel anywhere
// (ad hoc, or provisioned by another group) is reused rather than
// duplicated; the unique member key makes that check race-free.
func createProvisionedTx(
	ctx context.Context,
	tx *sql.Tx,
	groupID int64,
	conv domain.ProvisionedConversation,
	now time.Time,
) error {
	key := conv.MemberKey
	switch conv.Kind {
	case domain.ChannelHousehold:
		key = domain.GroupChannelAllKey(groupID)
	case domain.ChannelTenants:
		key = domain.GroupChannelTenantsKey(groupID)
	}

	if conv.Kind == domain.ChannelDirect {
		var existing int64
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM conversations WHERE member_key = ?
		`, key).Scan(&existing)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("find direct channel: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (group_id, type, name, member_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, groupID, conv.Type, conv.Name, key, now, now)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	convID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	for _, m := range conv.Members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO participants (conversation_id, user_id, role, joined_at)
			VALUES (?, ?, ?, ?)
		`, convID, m.UserID, m.Role, now); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	return nil
}

func (r *GroupRepo) GetByID(ctx context.Context, id int64) (*domain.Group, error) {
	g := &domain.Group{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, landlord_id, property_id, created_at
		FROM groups
		WHERE id = ?
	`, id).Scan(&g.ID, &g.Name, &g.LandlordID, &g.PropertyID, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (r *GroupRepo) ApplyMembershipDelta(
	ctx context.Context,
	groupID int64,
	delta *domain.MembershipDelta,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if err := deleteConversationsTx(ctx, tx, delta.DeleteConversationIDs); err != nil {
		return err
	}

	for _, p := range delta.RemoveParticipants {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM participants WHERE conversation_id = ? AND user_id = ?
		`, p.ConversationID, p.UserID); err != nil {
			return fmt.Errorf("remove participant: %w", err)
		}
	}

	// Upsert-style insert so a concurrent add of the same member cannot
	// fail the whole reconciliation.
	for _, p := range delta.AddParticipants {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO participants (conversation_id, user_id, role, joined_at)
			VALUES (?, ?, ?, ?)
		`, p.ConversationID, p.UserID, p.Role, now); err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
	}

	for _, conv := range delta.NewConversations {
		if err := createProvisionedTx(ctx, tx, groupID, conv, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *GroupRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM conversations WHERE group_id = ?`, id)
	if err != nil {
		return fmt.Errorf("list group conversations: %w", err)
	}
	var convIDs []int64
	for rows.Next() {
		var convID int64
		if err := rows.Scan(&convID); err != nil {
			rows.Close()
			return fmt.Errorf("scan conversation id: %w", err)
		}
		convIDs = append(convIDs, convID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list group conversations: %w", err)
	}

	if err := deleteConversationsTx(ctx, tx, convIDs); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
