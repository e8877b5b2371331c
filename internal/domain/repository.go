package domain

import (
	"context"
)

// ProvisionedMember is a membership entry of a conversation about to be
// created.
type ProvisionedMember struct {
	UserID int64
	Role   Role
}

// ChannelKind tells the store how to derive a provisioned conversation's
// member key. Group-scoped channels depend on the group id, which is only
// assigned once the group row is inserted inside the transaction.
type ChannelKind string

const (
	ChannelHousehold ChannelKind = "household" // full-group channel
	ChannelTenants   ChannelKind = "tenants"   // tenants-only channel
	ChannelDirect    ChannelKind = "direct"    // pairwise dm
)

// ProvisionedConversation is a conversation, with its full member list,
// that a provisioning or reconciliation plan wants created. MemberKey is
// pre-computed for direct channels and derived from the group id for
// household/tenants channels.
type ProvisionedConversation struct {
	Type      ConversationType
	Kind      ChannelKind
	Name      *string
	MemberKey string
	Members   []ProvisionedMember
}

// MembershipDelta is the set of storage changes required to bring a
// group's channel topology in line with an updated tenant list. It is
// applied as a single transaction.
type MembershipDelta struct {
	AddParticipants       []Participant
	RemoveParticipants    []Participant
	DeleteConversationIDs []int64
	NewConversations      []ProvisionedConversation
}

// Empty reports whether the delta would change anything.
func (d *MembershipDelta) Empty() bool {
	return len(d.AddParticipants) == 0 &&
		len(d.RemoveParticipants) == 0 &&
		len(d.DeleteConversationIDs) == 0 &&
		len(d.NewConversations) == 0
}

// GroupRepository defines persistence operations for tenancy groups.
type GroupRepository interface {
	// CreateProvisioned inserts the group, every conversation of its
	// channel topology, and every participant row in one transaction.
	// On any failure nothing is persisted.
	CreateProvisioned(ctx context.Context, g *Group, convs []ProvisionedConversation) error
	GetByID(ctx context.Context, id int64) (*Group, error)
	// ApplyMembershipDelta applies a reconciliation plan atomically.
	ApplyMembershipDelta(ctx context.Context, groupID int64, delta *MembershipDelta) error
	// Delete removes the group and cascades to its conversations,
	// participants, and messages.
	Delete(ctx context.Context, id int64) error
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	// Create inserts the conversation and its participants in one
	// transaction. A member-key collision reports ErrConflict.
	Create(ctx context.Context, c *Conversation, members []ProvisionedMember) error
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	FindByMemberKey(ctx context.Context, key string) (*Conversation, error)
	// ListForUser returns every conversation the user participates in,
	// most recently active first.
	ListForUser(ctx context.Context, userID int64) ([]*Conversation, error)
	ListForGroup(ctx context.Context, groupID int64) ([]*Conversation, error)
	// Delete removes the conversation and cascades to its participants
	// and messages.
	Delete(ctx context.Context, id int64) error
}

// ParticipantRepository defines operations around conversation membership.
type ParticipantRepository interface {
	ListMembers(ctx context.Context, conversationID int64) ([]*Participant, error)
	IsMember(ctx context.Context, conversationID, userID int64) (bool, error)
	// Add inserts a membership row; a duplicate reports ErrConflict.
	Add(ctx context.Context, p *Participant) error
	// Remove deletes a membership row; a missing one reports ErrNotFound.
	Remove(ctx context.Context, conversationID, userID int64) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	// ListForConversation orders by created_at in the given direction,
	// ties broken by id in the same direction. limit <= 0 means no limit.
	ListForConversation(ctx context.Context, conversationID int64, order SortOrder, limit int) ([]*Message, error)
	LatestForConversation(ctx context.Context, conversationID int64) (*Message, error)
	UnreadCount(ctx context.Context, conversationID, userID int64) (int, error)
	// MarkRead appends readerID to the message's read set if absent and
	// returns the updated message. Repeated calls are no-ops.
	MarkRead(ctx context.Context, messageID, readerID int64) (*Message, error)
}
