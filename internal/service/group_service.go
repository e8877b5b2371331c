package service

import (
	"context"
	"fmt"
	"strings"

	"homehub/internal/domain"
)

// GroupService orchestrates the lifecycle of tenancy groups: creation
// with full channel provisioning, membership reconciliation, and
// cascading deletion.
type GroupService struct {
	groups        domain.GroupRepository
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
}

func NewGroupService(
	groups domain.GroupRepository,
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
) *GroupService {
	return &GroupService{
		groups:        groups,
		conversations: conversations,
		participants:  participants,
	}
}

type GroupCreateInput struct {
	Name       string
	PropertyID int64
	TenantIDs  []int64
}

// CreateGroup creates a tenancy group and provisions its entire channel
// topology in a single transaction. Either the group and every one of its
// conversations and participant rows exist afterwards, or none do.
func (s *GroupService) CreateGroup(
	ctx context.Context,
	landlordID int64,
	in GroupCreateInput,
) (*domain.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if in.PropertyID <= 0 {
		return nil, fmt.Errorf("%w: propertyId is required", domain.ErrInvalidInput)
	}

	tenants := make([]int64, 0, len(in.TenantIDs))
	for _, id := range in.TenantIDs {
		if id <= 0 {
			return nil, fmt.Errorf("%w: invalid tenant id", domain.ErrInvalidInput)
		}
		if id == landlordID {
			continue
		}
		tenants = append(tenants, id)
	}
	tenants = dedupeSorted(tenants)
	if len(tenants) < 1 {
		return nil, fmt.Errorf("%w: at least one tenant is required", domain.ErrInvalidInput)
	}

	group := &domain.Group{
		Name:       name,
		LandlordID: landlordID,
		PropertyID: in.PropertyID,
	}
	topology := BuildGroupTopology(name, landlordID, tenants)
	if err := s.groups.CreateProvisioned(ctx, group, topology); err != nil {
		return nil, fmt.Errorf("provision group: %w", err)
	}
	return group, nil
}

// UpdateMembership reconciles the group's channel topology with a new
// tenant list. Departed tenants leave both group channels and their
// provisioned dm channels are deleted; new tenants join both group
// channels and any missing landlord or tenant-pair dm channels are
// created. All changes apply in one transaction.
func (s *GroupService) UpdateMembership(
	ctx context.Context,
	requesterID, groupID int64,
	newTenantIDs []int64,
) error {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return domain.ErrNotFound
	}
	if group.LandlordID != requesterID {
		return domain.ErrForbidden
	}

	tenants := make([]int64, 0, len(newTenantIDs))
	for _, id := range newTenantIDs {
		if id <= 0 {
			return fmt.Errorf("%w: invalid tenant id", domain.ErrInvalidInput)
		}
		if id == group.LandlordID {
			continue
		}
		tenants = append(tenants, id)
	}
	tenants = dedupeSorted(tenants)
	if len(tenants) < 1 {
		return fmt.Errorf("%w: at least one tenant is required", domain.ErrInvalidInput)
	}

	fullChannel, err := s.conversations.FindByMemberKey(ctx, domain.GroupChannelAllKey(groupID))
	if err != nil {
		return fmt.Errorf("find household channel: %w", err)
	}
	tenantsChannel, err := s.conversations.FindByMemberKey(ctx, domain.GroupChannelTenantsKey(groupID))
	if err != nil {
		return fmt.Errorf("find tenants channel: %w", err)
	}
	if fullChannel == nil || tenantsChannel == nil {
		return fmt.Errorf("group %d has incomplete channel topology: %w", groupID, domain.ErrInternal)
	}

	members, err := s.participants.ListMembers(ctx, fullChannel.ID)
	if err != nil {
		return fmt.Errorf("list household members: %w", err)
	}
	current := make(map[int64]struct{})
	for _, m := range members {
		if m.Role == domain.RoleTenant {
			current[m.UserID] = struct{}{}
		}
	}

	next := make(map[int64]struct{}, len(tenants))
	for _, id := range tenants {
		next[id] = struct{}{}
	}

	var added, removed []int64
	for _, id := range tenants {
		if _, ok := current[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range current {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	removed = dedupeSorted(removed)

	delta := &domain.MembershipDelta{}
	for _, id := range removed {
		delta.RemoveParticipants = append(delta.RemoveParticipants,
			domain.Participant{ConversationID: fullChannel.ID, UserID: id},
			domain.Participant{ConversationID: tenantsChannel.ID, UserID: id},
		)
	}
	for _, id := range added {
		delta.AddParticipants = append(delta.AddParticipants,
			domain.Participant{ConversationID: fullChannel.ID, UserID: id, Role: domain.RoleTenant},
			domain.Participant{ConversationID: tenantsChannel.ID, UserID: id, Role: domain.RoleTenant},
		)
	}

	groupConvs, err := s.conversations.ListForGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list group conversations: %w", err)
	}
	existingDMs := make(map[string]*domain.Conversation)
	for _, conv := range groupConvs {
		if conv.Type == domain.ConversationDirect {
			existingDMs[conv.MemberKey] = conv
		}
	}

	removedSet := make(map[int64]struct{}, len(removed))
	for _, id := range removed {
		removedSet[id] = struct{}{}
	}
	for key, conv := range existingDMs {
		a, b, ok := domain.ParseDirectMemberKey(key)
		if !ok {
			continue
		}
		_, aGone := removedSet[a]
		_, bGone := removedSet[b]
		if aGone || bGone {
			delta.DeleteConversationIDs = append(delta.DeleteConversationIDs, conv.ID)
			delete(existingDMs, key)
		}
	}

	landlord := domain.ProvisionedMember{UserID: group.LandlordID, Role: domain.RoleLandlord}
	for _, t := range tenants {
		key := domain.DirectMemberKey(group.LandlordID, t)
		if _, ok := existingDMs[key]; !ok {
			delta.NewConversations = append(delta.NewConversations, directChannel(
				landlord,
				domain.ProvisionedMember{UserID: t, Role: domain.RoleTenant},
			))
		}
	}
	for i := 0; i < len(tenants); i++ {
		for j := i + 1; j < len(tenants); j++ {
			key := domain.DirectMemberKey(tenants[i], tenants[j])
			if _, ok := existingDMs[key]; !ok {
				delta.NewConversations = append(delta.NewConversations, directChannel(
					domain.ProvisionedMember{UserID: tenants[i], Role: domain.RoleTenant},
					domain.ProvisionedMember{UserID: tenants[j], Role: domain.RoleTenant},
				))
			}
		}
	}

	if delta.Empty() {
		return nil
	}
	if err := s.groups.ApplyMembershipDelta(ctx, groupID, delta); err != nil {
		return fmt.Errorf("apply membership delta: %w", err)
	}
	return nil
}

// DeleteGroup removes the group and every conversation, participant, and
// message it owns. Only the group's landlord may delete it.
func (s *GroupService) DeleteGroup(ctx context.Context, requesterID, groupID int64) error {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return domain.ErrNotFound
	}
	if group.LandlordID != requesterID {
		return domain.ErrForbidden
	}
	if err := s.groups.Delete(ctx, groupID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}
