package domain

import "time"

// Role is a user's role within a household, copied onto participant rows
// at provisioning time. It is not live-synced with the identity provider.
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
	// RoleAdmin appears in credentials only; participant rows always carry
	// tenant or landlord.
	RoleAdmin Role = "admin"
)

// ParticipantRole clamps a credential role to the two roles a participant
// row may carry.
func ParticipantRole(r Role) Role {
	if r == RoleLandlord {
		return RoleLandlord
	}
	return RoleTenant
}

// ConversationType distinguishes two-person direct channels from named
// group channels.
type ConversationType string

const (
	ConversationDirect ConversationType = "dm"
	ConversationGroup  ConversationType = "group"
)

// SortOrder selects message ordering for list queries. Both orderings are
// required by different call sites (history view vs inbox preview) and are
// always passed explicitly.
type SortOrder string

const (
	OrderAscending  SortOrder = "ASC"
	OrderDescending SortOrder = "DESC"
)

// Group is a tenancy unit: one landlord, a set of tenants, optionally
// linked to a property record owned elsewhere.
type Group struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	LandlordID int64     `db:"landlord_id" json:"landlord_id"`
	PropertyID int64     `db:"property_id" json:"property_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Conversation is a chat channel. A dm has exactly two participants; a
// group channel has one or more. GroupID is nil for ad-hoc channels
// created outside of group provisioning.
type Conversation struct {
	ID        int64            `db:"id" json:"id"`
	GroupID   *int64           `db:"group_id" json:"group_id,omitempty"`
	Type      ConversationType `db:"type" json:"type"`
	Name      *string          `db:"name" json:"name,omitempty"`
	MemberKey string           `db:"member_key" json:"-"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// Participant binds a user to a conversation. Unique per
// (conversation_id, user_id); the uniqueness is enforced by storage.
type Participant struct {
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Role           Role      `db:"role" json:"role"`
	JoinedAt       time.Time `db:"joined_at" json:"joined_at"`
}

// Message is an append-only chat message. Content is immutable once
// stored; the only permitted update is appending reader ids to ReadBy.
type Message struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	SenderID       int64     `db:"sender_id" json:"sender_id"`
	Content        string    `db:"content" json:"content"`
	ReadBy         UserIDSet `db:"read_by" json:"read_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MessageStatus is the server-computed delivery state shown to senders.
// A persisted message is at least delivered; it becomes read once any
// user other than the sender acknowledges it.
type MessageStatus string

const (
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Status derives the delivery state from ReadBy.
func (m *Message) Status() MessageStatus {
	for _, id := range m.ReadBy {
		if id != m.SenderID {
			return StatusRead
		}
	}
	return StatusDelivered
}
