package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"homehub/internal/domain"
)

type ConversationService struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	messages      domain.MessageRepository
	guard         *AccessGuard
}

func NewConversationService(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
	guard *AccessGuard,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		participants:  participants,
		messages:      messages,
		guard:         guard,
	}
}

// ConversationSummary is a conversation with the context an inbox or
// detail view needs: members, the latest message, and the caller's
// unread count.
type ConversationSummary struct {
	Conversation  *domain.Conversation  `json:"conversation"`
	Participants  []*domain.Participant `json:"participants"`
	LatestMessage *MessageResponse      `json:"latest_message,omitempty"`
	UnreadCount   int                   `json:"unread_count"`
}

// CreateDirectMessage creates the dm between the requester and another
// user. If one already exists for that exact pair, in either argument
// order, it is returned together with ErrConflict instead of creating a
// duplicate.
func (s *ConversationService) CreateDirectMessage(
	ctx context.Context,
	requesterID int64,
	requesterRole domain.Role,
	otherUserID int64,
) (*domain.Conversation, error) {
	if otherUserID <= 0 {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	if otherUserID == requesterID {
		return nil, fmt.Errorf("%w: cannot open a direct message with yourself", domain.ErrInvalidInput)
	}

	key := domain.DirectMemberKey(requesterID, otherUserID)
	if existing, err := s.conversations.FindByMemberKey(ctx, key); err != nil {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	} else if existing != nil {
		return existing, domain.ErrConflict
	}

	conv := &domain.Conversation{
		Type:      domain.ConversationDirect,
		MemberKey: key,
	}
	members := []domain.ProvisionedMember{
		{UserID: requesterID, Role: domain.ParticipantRole(requesterRole)},
		{UserID: otherUserID, Role: domain.RoleTenant},
	}
	err := s.conversations.Create(ctx, conv, members)
	if errors.Is(err, domain.ErrConflict) {
		// Lost a race with a concurrent creation for the same pair; the
		// unique member key guarantees the winner is the one to return.
		existing, findErr := s.conversations.FindByMemberKey(ctx, key)
		if findErr != nil {
			return nil, fmt.Errorf("find direct conversation after conflict: %w", findErr)
		}
		return existing, domain.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// CreateNamedGroupChat creates an ad-hoc named group channel. It requires
// a non-blank name and at least two distinct members besides the
// requester, and refuses to create a second channel with the exact same
// member set.
func (s *ConversationService) CreateNamedGroupChat(
	ctx context.Context,
	requesterID int64,
	requesterRole domain.Role,
	name string,
	memberIDs []int64,
) (*domain.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	others := make([]int64, 0, len(memberIDs))
	seen := map[int64]struct{}{requesterID: {}}
	for _, id := range memberIDs {
		if id <= 0 {
			return nil, fmt.Errorf("%w: invalid member id", domain.ErrInvalidInput)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		others = append(others, id)
	}
	if len(others) < 2 {
		return nil, fmt.Errorf("%w: a group chat needs at least two other members", domain.ErrInvalidInput)
	}

	all := append([]int64{requesterID}, others...)
	key := domain.NamedChatKey(all)
	if existing, err := s.conversations.FindByMemberKey(ctx, key); err != nil {
		return nil, fmt.Errorf("find group chat: %w", err)
	} else if existing != nil {
		return existing, domain.ErrConflict
	}

	conv := &domain.Conversation{
		Type:      domain.ConversationGroup,
		Name:      &name,
		MemberKey: key,
	}
	members := make([]domain.ProvisionedMember, 0, len(all))
	members = append(members, domain.ProvisionedMember{UserID: requesterID, Role: domain.ParticipantRole(requesterRole)})
	for _, id := range others {
		members = append(members, domain.ProvisionedMember{UserID: id, Role: domain.RoleTenant})
	}
	err := s.conversations.Create(ctx, conv, members)
	if errors.Is(err, domain.ErrConflict) {
		existing, findErr := s.conversations.FindByMemberKey(ctx, key)
		if findErr != nil {
			return nil, fmt.Errorf("find group chat after conflict: %w", findErr)
		}
		return existing, domain.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// AddParticipant adds a user to a group-type conversation. The requester
// must already be a member. Adding a present user reports ErrConflict.
func (s *ConversationService) AddParticipant(
	ctx context.Context,
	requesterID, conversationID, newUserID int64,
) error {
	if newUserID <= 0 {
		return fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	if _, err := s.guard.Authorize(ctx, requesterID, conversationID, ActionManage); err != nil {
		return err
	}
	return s.participants.Add(ctx, &domain.Participant{
		ConversationID: conversationID,
		UserID:         newUserID,
		Role:           domain.RoleTenant,
	})
}

// RemoveParticipant removes a user from a group-type conversation.
// Removing a non-member reports ErrNotFound.
func (s *ConversationService) RemoveParticipant(
	ctx context.Context,
	requesterID, conversationID, userID int64,
) error {
	if userID <= 0 {
		return fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	if _, err := s.guard.Authorize(ctx, requesterID, conversationID, ActionManage); err != nil {
		return err
	}
	return s.participants.Remove(ctx, conversationID, userID)
}

// ListInbox returns the caller's conversations, most recently active
// first, each with its latest message preview and unread count. The
// queries behind it are single indexed lookups so clients can poll this
// every few seconds.
func (s *ConversationService) ListInbox(ctx context.Context, userID int64) ([]*ConversationSummary, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	summaries := make([]*ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary, err := s.summarize(ctx, conv, userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetConversation returns one conversation with participants and latest
// message. The requester must be a member.
func (s *ConversationService) GetConversation(
	ctx context.Context,
	requesterID, conversationID int64,
) (*ConversationSummary, error) {
	conv, err := s.guard.Authorize(ctx, requesterID, conversationID, ActionRead)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, conv, requesterID)
}

func (s *ConversationService) summarize(
	ctx context.Context,
	conv *domain.Conversation,
	userID int64,
) (*ConversationSummary, error) {
	members, err := s.participants.ListMembers(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	latest, err := s.messages.LatestForConversation(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	unread, err := s.messages.UnreadCount(ctx, conv.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("unread count: %w", err)
	}

	summary := &ConversationSummary{
		Conversation: conv,
		Participants: members,
		UnreadCount:  unread,
	}
	if latest != nil {
		summary.LatestMessage = ToMessageResponse(latest)
	}
	return summary, nil
}
