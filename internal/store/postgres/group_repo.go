package postgres

import (
	"context"
	"database/sql"
	"fmt"

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

	err = tx.QueryRowContext(ctx, `
		INSERT INTO groups (name, landlord_id, property_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, g.Name, g.LandlordID, g.PropertyID).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	for _, conv := range convs {
		if err := createProvisionedTx(ctx, tx, g.ID, conv); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// createProvisionedTx inserts one conversation of a provisioning plan
// with its participants. A dm whose pair already has a channel anywhere
// (ad hoc, or provisioned by another group) is reused rather than
// duplicated; ON CONFLICT DO NOTHING on the unique member key makes the
// reuse race-free.
func createProvisionedTx(
	ctx context.Context,
	tx *sql.Tx,
	groupID int64,
	conv domain.ProvisionedConversation,
) error {
	key := conv.MemberKey
	switch conv.Kind {
	case domain.ChannelHousehold:
		key = domain.GroupChannelAllKey(groupID)
	case domain.ChannelTenants:
		key = domain.GroupChannelTenantsKey(groupID)
	}

	var convID int64
	if conv.Kind == domain.ChannelDirect {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO conversations (group_id, type, name, member_key)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (member_key) DO NOTHING
			RETURNING id
		`, groupID, conv.Type, conv.Name, key).Scan(&convID)
		if err == sql.ErrNoRows {
			// Pair already has a channel; reuse it.
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
	} else {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO conversations (group_id, type, name, member_key)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, groupID, conv.Type, conv.Name, key).Scan(&convID)
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
	}

	for _, m := range conv.Members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO participants (conversation_id, user_id, role)
			VALUES ($1, $2, $3)
		`, convID, m.UserID, m.Role); err != nil {
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
		WHERE id = $1
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

	if err := deleteConversationsTx(ctx, tx, delta.DeleteConversationIDs); err != nil {
		return err
	}

	for _, p := range delta.RemoveParticipants {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM participants WHERE conversation_id = $1 AND user_id = $2
		`, p.ConversationID, p.UserID); err != nil {
			return fmt.Errorf("remove participant: %w", err)
		}
	}

	// Upsert-style insert so a concurrent add of the same member cannot
	// fail the whole reconciliation.
	for _, p := range delta.AddParticipants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO participants (conversation_id, user_id, role)
			VALUES ($1, $2, $3)
			ON CONFLICT (conversation_id, user_id) DO NOTHING
		`, p.ConversationID, p.UserID, p.Role); err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
	}

	for _, conv := range delta.NewConversations {
		if err := createProvisionedTx(ctx, tx, groupID, conv); err != nil {
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

	rows, err := tx.QueryContext(ctx, `SELECT id FROM conversations WHERE group_id = $1`, id)
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

	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
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
