package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"homehub/internal/domain"
)

const maxMessageLength = 5000

type MessageService struct {
	messages domain.MessageRepository
	guard    *AccessGuard
}

func NewMessageService(messages domain.MessageRepository, guard *AccessGuard) *MessageService {
	return &MessageService{
		messages: messages,
		guard:    guard,
	}
}

// Send appends a message to a conversation. The sender must be a
// participant; content must be non-empty after trimming. The stored
// message starts with an empty read set.
func (s *MessageService) Send(
	ctx context.Context,
	senderID, conversationID int64,
	content string,
) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content cannot be empty", domain.ErrInvalidInput)
	}
	if len([]rune(content)) > maxMessageLength {
		return nil, fmt.Errorf("%w: message content exceeds %d characters", domain.ErrInvalidInput, maxMessageLength)
	}

	if _, err := s.guard.Authorize(ctx, senderID, conversationID, ActionWrite); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		ReadBy:         domain.UserIDSet{},
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

// List returns a conversation's messages ordered by creation time in the
// requested direction, ties broken by id. The requester must be a
// participant. limit <= 0 returns the full history.
func (s *MessageService) List(
	ctx context.Context,
	requesterID, conversationID int64,
	order domain.SortOrder,
	limit int,
) ([]*domain.Message, error) {
	if _, err := s.guard.Authorize(ctx, requesterID, conversationID, ActionRead); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListForConversation(ctx, conversationID, order, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// MarkRead records that readerID has seen the message. The reader must be
// a participant of the message's conversation. Repeated calls are no-ops;
// the read set never shrinks.
func (s *MessageService) MarkRead(
	ctx context.Context,
	readerID, messageID int64,
) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return nil, domain.ErrNotFound
	}
	if _, err := s.guard.Authorize(ctx, readerID, msg.ConversationID, ActionRead); err != nil {
		return nil, err
	}
	updated, err := s.messages.MarkRead(ctx, messageID, readerID)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return updated, nil
}

// MessageResponse is the API shape of a message, including its
// server-computed delivery status.
type MessageResponse struct {
	ID             int64                `json:"id"`
	ConversationID int64                `json:"conversation_id"`
	SenderID       int64                `json:"sender_id"`
	Content        string               `json:"content"`
	ReadBy         domain.UserIDSet     `json:"read_by"`
	Status         domain.MessageStatus `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ToMessageResponse converts a domain message into its response DTO.
func ToMessageResponse(m *domain.Message) *MessageResponse {
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		ReadBy:         m.ReadBy,
		Status:         m.Status(),
		CreatedAt:      m.CreatedAt,
	}
}

// ToMessageResponses converts a slice of domain messages into DTOs.
func ToMessageResponses(msgs []*domain.Message) []*MessageResponse {
	res := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, ToMessageResponse(m))
	}
	return res
}
