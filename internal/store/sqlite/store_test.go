package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homehub/internal/domain"
	"homehub/internal/service"
	"homehub/internal/store/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	// The in-memory database lives per connection.
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func provisionGroup(t *testing.T, db *sql.DB, name string, landlordID int64, tenants []int64) *domain.Group {
	t.Helper()
	groups := sqlite.NewGroupRepo(db)
	group := &domain.Group{Name: name, LandlordID: landlordID, PropertyID: 1}
	topology := service.BuildGroupTopology(name, landlordID, tenants)
	require.NoError(t, groups.CreateProvisioned(context.Background(), group, topology))
	return group
}

func TestGroupProvisioning(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	partRepo := sqlite.NewParticipantRepo(db)

	group := provisionGroup(t, db, "Maple House", 100, []int64{1, 2, 3})
	require.NotZero(t, group.ID)

	convs, err := convRepo.ListForGroup(ctx, group.ID)
	require.NoError(t, err)
	// household + tenants + 3 landlord dms + 3 tenant-pair dms
	require.Len(t, convs, 8)

	full, err := convRepo.FindByMemberKey(ctx, domain.GroupChannelAllKey(group.ID))
	require.NoError(t, err)
	require.NotNil(t, full)
	require.NotNil(t, full.Name)
	assert.Equal(t, "Maple House", *full.Name)

	members, err := partRepo.ListMembers(ctx, full.ID)
	require.NoError(t, err)
	require.Len(t, members, 4)
	assert.Equal(t, int64(1), members[0].UserID)
	assert.Equal(t, domain.RoleTenant, members[0].Role)
	assert.Equal(t, int64(100), members[3].UserID)
	assert.Equal(t, domain.RoleLandlord, members[3].Role)

	tenantsCh, err := convRepo.FindByMemberKey(ctx, domain.GroupChannelTenantsKey(group.ID))
	require.NoError(t, err)
	require.NotNil(t, tenantsCh)
	tenantMembers, err := partRepo.ListMembers(ctx, tenantsCh.ID)
	require.NoError(t, err)
	require.Len(t, tenantMembers, 3)
	for _, m := range tenantMembers {
		assert.NotEqual(t, int64(100), m.UserID)
	}

	for _, pair := range [][2]int64{{100, 1}, {100, 2}, {100, 3}, {1, 2}, {1, 3}, {2, 3}} {
		dm, err := convRepo.FindByMemberKey(ctx, domain.DirectMemberKey(pair[0], pair[1]))
		require.NoError(t, err)
		require.NotNil(t, dm, "missing dm for pair %v", pair)
		assert.Equal(t, domain.ConversationDirect, dm.Type)
	}
}

func TestGroupProvisioningAtomicity(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	groups := sqlite.NewGroupRepo(db)

	name := "Maple House"
	// A plan with two household channels collides on the derived member key
	// partway through; nothing of the group may survive.
	bad := []domain.ProvisionedConversation{
		{Type: domain.ConversationGroup, Kind: domain.ChannelHousehold, Name: &name,
			Members: []domain.ProvisionedMember{{UserID: 100, Role: domain.RoleLandlord}, {UserID: 1, Role: domain.RoleTenant}}},
		{Type: domain.ConversationGroup, Kind: domain.ChannelHousehold, Name: &name,
			Members: []domain.ProvisionedMember{{UserID: 100, Role: domain.RoleLandlord}, {UserID: 1, Role: domain.RoleTenant}}},
	}

	err := groups.CreateProvisioned(ctx, &domain.Group{Name: name, LandlordID: 100, PropertyID: 1}, bad)
	require.ErrorIs(t, err, domain.ErrConflict)

	assert.Zero(t, countRows(t, db, "groups"))
	assert.Zero(t, countRows(t, db, "conversations"))
	assert.Zero(t, countRows(t, db, "participants"))
}

func TestProvisioningReusesExistingDM(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)

	adhoc := &domain.Conversation{Type: domain.ConversationDirect, MemberKey: domain.DirectMemberKey(100, 1)}
	require.NoError(t, convRepo.Create(ctx, adhoc, []domain.ProvisionedMember{
		{UserID: 100, Role: domain.RoleLandlord},
		{UserID: 1, Role: domain.RoleTenant},
	}))

	provisionGroup(t, db, "Maple House", 100, []int64{1, 2})

	// household + tenants + dm:100:2 + dm:1:2 created; dm:1:100 reused.
	assert.Equal(t, 5, countRows(t, db, "conversations"))
	dm, err := convRepo.FindByMemberKey(ctx, domain.DirectMemberKey(1, 100))
	require.NoError(t, err)
	assert.Equal(t, adhoc.ID, dm.ID)
}

func TestDirectConversationUniqueness(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)

	members := []domain.ProvisionedMember{
		{UserID: 7, Role: domain.RoleTenant},
		{UserID: 9, Role: domain.RoleTenant},
	}
	first := &domain.Conversation{Type: domain.ConversationDirect, MemberKey: domain.DirectMemberKey(7, 9)}
	require.NoError(t, convRepo.Create(ctx, first, members))

	// Same pair in the opposite order maps to the same member key.
	second := &domain.Conversation{Type: domain.ConversationDirect, MemberKey: domain.DirectMemberKey(9, 7)}
	err := convRepo.Create(ctx, second, members)
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, countRows(t, db, "conversations"))
}

func TestGroupDeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	groups := sqlite.NewGroupRepo(db)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)

	group := provisionGroup(t, db, "Maple House", 100, []int64{1, 2})
	full, err := convRepo.FindByMemberKey(ctx, domain.GroupChannelAllKey(group.ID))
	require.NoError(t, err)
	require.NoError(t, msgRepo.Create(ctx, &domain.Message{
		ConversationID: full.ID, SenderID: 100, Content: "welcome", ReadBy: domain.UserIDSet{},
	}))

	require.NoError(t, groups.Delete(ctx, group.ID))

	assert.Zero(t, countRows(t, db, "groups"))
	assert.Zero(t, countRows(t, db, "conversations"))
	assert.Zero(t, countRows(t, db, "participants"))
	assert.Zero(t, countRows(t, db, "messages"))

	assert.ErrorIs(t, groups.Delete(ctx, group.ID), domain.ErrNotFound)
}

func TestApplyMembershipDelta(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	groups := sqlite.NewGroupRepo(db)
	convRepo := sqlite.NewConversationRepo(db)
	partRepo := sqlite.NewParticipantRepo(db)

	group := provisionGroup(t, db, "Maple House", 100, []int64{1, 2})
	full, err := convRepo.FindByMemberKey(ctx, domain.GroupChannelAllKey(group.ID))
	require.NoError(t, err)
	tenantsCh, err := convRepo.FindByMemberKey(ctx, domain.GroupChannelTenantsKey(group.ID))
	require.NoError(t, err)
	oldDM, err := convRepo.FindByMemberKey(ctx, domain.DirectMemberKey(100, 2))
	require.NoError(t, err)

	// Tenant 2 out, tenant 3 in.
	delta := &domain.MembershipDelta{
		RemoveParticipants: []domain.Participant{
			{ConversationID: full.ID, UserID: 2},
			{ConversationID: tenantsCh.ID, UserID: 2},
		},
		AddParticipants: []domain.Participant{
			{ConversationID: full.ID, UserID: 3, Role: domain.RoleTenant},
			{ConversationID: tenantsCh.ID, UserID: 3, Role: domain.RoleTenant},
		},
		DeleteConversationIDs: []int64{oldDM.ID},
		NewConversations: []domain.ProvisionedConversation{
			{Type: domain.ConversationDirect, Kind: domain.ChannelDirect,
				MemberKey: domain.DirectMemberKey(100, 3),
				Members: []domain.ProvisionedMember{
					{UserID: 100, Role: domain.RoleLandlord},
					{UserID: 3, Role: domain.RoleTenant},
				}},
		},
	}
	require.NoError(t, groups.ApplyMembershipDelta(ctx, group.ID, delta))

	gone, err := convRepo.GetByID(ctx, oldDM.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	isMember, err := partRepo.IsMember(ctx, full.ID, 2)
	require.NoError(t, err)
	assert.False(t, isMember)
	isMember, err = partRepo.IsMember(ctx, full.ID, 3)
	require.NoError(t, err)
	assert.True(t, isMember)

	newDM, err := convRepo.FindByMemberKey(ctx, domain.DirectMemberKey(100, 3))
	require.NoError(t, err)
	require.NotNil(t, newDM)
	require.NotNil(t, newDM.GroupID)
	assert.Equal(t, group.ID, *newDM.GroupID)
}

func TestParticipantAddAndRemove(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	partRepo := sqlite.NewParticipantRepo(db)

	name := "chat"
	conv := &domain.Conversation{Type: domain.ConversationGroup, Name: &name, MemberKey: domain.NamedChatKey([]int64{1, 2, 3})}
	require.NoError(t, convRepo.Create(ctx, conv, []domain.ProvisionedMember{
		{UserID: 1, Role: domain.RoleTenant},
		{UserID: 2, Role: domain.RoleTenant},
		{UserID: 3, Role: domain.RoleTenant},
	}))

	err := partRepo.Add(ctx, &domain.Participant{ConversationID: conv.ID, UserID: 2, Role: domain.RoleTenant})
	assert.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, partRepo.Remove(ctx, conv.ID, 3))
	assert.ErrorIs(t, partRepo.Remove(ctx, conv.ID, 3), domain.ErrNotFound)
}

func TestMessageOrderingBreaksTiesByID(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)

	conv := &domain.Conversation{Type: domain.ConversationDirect, MemberKey: domain.DirectMemberKey(1, 2)}
	require.NoError(t, convRepo.Create(ctx, conv, []domain.ProvisionedMember{
		{UserID: 1, Role: domain.RoleTenant},
		{UserID: 2, Role: domain.RoleTenant},
	}))

	// Same created_at on every row so only the id tie-break can order them.
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, content := range []string{"first", "second", "third"} {
		_, err := db.Exec(`
			INSERT INTO messages (conversation_id, sender_id, content, read_by, created_at)
			VALUES (?, ?, ?, '[]', ?)
		`, conv.ID, int64(1), content, at)
		require.NoError(t, err)
	}

	asc, err := msgRepo.ListForConversation(ctx, conv.ID, domain.OrderAscending, 0)
	require.NoError(t, err)
	require.Len(t, asc, 3)
	assert.Equal(t, "first", asc[0].Content)
	assert.Equal(t, "third", asc[2].Content)

	desc, err := msgRepo.ListForConversation(ctx, conv.ID, domain.OrderDescending, 0)
	require.NoError(t, err)
	require.Len(t, desc, 3)
	assert.Equal(t, "third", desc[0].Content)
	assert.Equal(t, "first", desc[2].Content)

	limited, err := msgRepo.ListForConversation(ctx, conv.ID, domain.OrderDescending, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "third", limited[0].Content)

	latest, err := msgRepo.LatestForConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "third", latest.Content)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)

	conv := &domain.Conversation{Type: domain.ConversationDirect, MemberKey: domain.DirectMemberKey(1, 2)}
	require.NoError(t, convRepo.Create(ctx, conv, []domain.ProvisionedMember{
		{UserID: 1, Role: domain.RoleTenant},
		{UserID: 2, Role: domain.RoleTenant},
	}))

	msg := &domain.Message{ConversationID: conv.ID, SenderID: 1, Content: "hello", ReadBy: domain.UserIDSet{}}
	require.NoError(t, msgRepo.Create(ctx, msg))

	first, err := msgRepo.MarkRead(ctx, msg.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.UserIDSet{2}, first.ReadBy)

	second, err := msgRepo.MarkRead(ctx, msg.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.UserIDSet{2}, second.ReadBy)

	stored, err := msgRepo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserIDSet{2}, stored.ReadBy)
	assert.Equal(t, domain.StatusRead, stored.Status())

	_, err = msgRepo.MarkRead(ctx, 9999, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUnreadCount(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)

	conv := &domain.Conversation{Type: domain.ConversationDirect, MemberKey: domain.DirectMemberKey(1, 2)}
	require.NoError(t, convRepo.Create(ctx, conv, []domain.ProvisionedMember{
		{UserID: 1, Role: domain.RoleTenant},
		{UserID: 2, Role: domain.RoleTenant},
	}))

	var ids []int64
	for i := 0; i < 3; i++ {
		m := &domain.Message{ConversationID: conv.ID, SenderID: 1, Content: "hi", ReadBy: domain.UserIDSet{}}
		require.NoError(t, msgRepo.Create(ctx, m))
		ids = append(ids, m.ID)
	}

	// Own messages never count as unread.
	n, err := msgRepo.UnreadCount(ctx, conv.ID, 1)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = msgRepo.UnreadCount(ctx, conv.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = msgRepo.MarkRead(ctx, ids[0], 2)
	require.NoError(t, err)
	n, err = msgRepo.UnreadCount(ctx, conv.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestListForUserOrdersByActivity(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)

	older := &domain.Conversation{Type: domain.ConversationDirect, MemberKey: domain.DirectMemberKey(1, 2)}
	require.NoError(t, convRepo.Create(ctx, older, []domain.ProvisionedMember{
		{UserID: 1, Role: domain.RoleTenant},
		{UserID: 2, Role: domain.RoleTenant},
	}))
	newer := &domain.Conversation{Type: domain.ConversationDirect, MemberKey: domain.DirectMemberKey(1, 3)}
	require.NoError(t, convRepo.Create(ctx, newer, []domain.ProvisionedMember{
		{UserID: 1, Role: domain.RoleTenant},
		{UserID: 3, Role: domain.RoleTenant},
	}))

	// Force a clear gap between the two, newest-activity first.
	_, err := db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Hour), older.ID)
	require.NoError(t, err)

	convs, err := convRepo.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, newer.ID, convs[0].ID)
	assert.Equal(t, older.ID, convs[1].ID)

	// A new message bumps its conversation back to the top.
	require.NoError(t, msgRepo.Create(ctx, &domain.Message{
		ConversationID: older.ID, SenderID: 2, Content: "ping", ReadBy: domain.UserIDSet{},
	}))

	convs, err = convRepo.ListForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, older.ID, convs[0].ID)
}
