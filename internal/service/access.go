package service

import (
	"context"
	"fmt"

	"homehub/internal/domain"
)

// Action is the kind of access being requested on a conversation.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
)

// AccessGuard answers whether a user may act on a conversation. Every
// conversation and message operation consults it before touching storage.
type AccessGuard struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
}

func NewAccessGuard(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
) *AccessGuard {
	return &AccessGuard{
		conversations: conversations,
		participants:  participants,
	}
}

// Authorize checks that the conversation exists and that userID may
// perform the action on it. Read and write require membership; manage
// additionally requires a group-type conversation. On success the
// conversation is returned so callers avoid a second lookup.
func (g *AccessGuard) Authorize(
	ctx context.Context,
	userID, conversationID int64,
	action Action,
) (*domain.Conversation, error) {
	conv, err := g.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}

	isMember, err := g.participants.IsMember(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !isMember {
		return nil, domain.ErrForbidden
	}

	if action == ActionManage && conv.Type != domain.ConversationGroup {
		return nil, domain.ErrForbidden
	}

	return conv, nil
}
