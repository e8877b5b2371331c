package service

import (
	"sort"

	"homehub/internal/domain"
)

const tenantsChannelName = "Tenants"

// BuildGroupTopology expands a group's membership into its full channel
// set:
//
//  1. one household channel with the landlord and every tenant,
//  2. one tenants-only channel,
//  3. one dm per (landlord, tenant) pair,
//  4. one dm per unordered pair of distinct tenants.
//
// Tenant ids are sorted ascending and pairs enumerated in that order, so
// equivalent input always yields the same conversation list.
func BuildGroupTopology(groupName string, landlordID int64, tenantIDs []int64) []domain.ProvisionedConversation {
	tenants := dedupeSorted(tenantIDs)

	householdName := groupName
	tenantsName := tenantsChannelName

	household := domain.ProvisionedConversation{
		Type: domain.ConversationGroup,
		Kind: domain.ChannelHousehold,
		Name: &householdName,
		Members: append(
			[]domain.ProvisionedMember{{UserID: landlordID, Role: domain.RoleLandlord}},
			tenantMembers(tenants)...,
		),
	}

	tenantsOnly := domain.ProvisionedConversation{
		Type:    domain.ConversationGroup,
		Kind:    domain.ChannelTenants,
		Name:    &tenantsName,
		Members: tenantMembers(tenants),
	}

	convs := make([]domain.ProvisionedConversation, 0, 2+len(tenants)+len(tenants)*(len(tenants)-1)/2)
	convs = append(convs, household, tenantsOnly)

	for _, t := range tenants {
		convs = append(convs, directChannel(
			domain.ProvisionedMember{UserID: landlordID, Role: domain.RoleLandlord},
			domain.ProvisionedMember{UserID: t, Role: domain.RoleTenant},
		))
	}

	for i := 0; i < len(tenants); i++ {
		for j := i + 1; j < len(tenants); j++ {
			convs = append(convs, directChannel(
				domain.ProvisionedMember{UserID: tenants[i], Role: domain.RoleTenant},
				domain.ProvisionedMember{UserID: tenants[j], Role: domain.RoleTenant},
			))
		}
	}

	return convs
}

func directChannel(a, b domain.ProvisionedMember) domain.ProvisionedConversation {
	return domain.ProvisionedConversation{
		Type:      domain.ConversationDirect,
		Kind:      domain.ChannelDirect,
		MemberKey: domain.DirectMemberKey(a.UserID, b.UserID),
		Members:   []domain.ProvisionedMember{a, b},
	}
}

func tenantMembers(tenants []int64) []domain.ProvisionedMember {
	members := make([]domain.ProvisionedMember, len(tenants))
	for i, t := range tenants {
		members[i] = domain.ProvisionedMember{UserID: t, Role: domain.RoleTenant}
	}
	return members
}

// dedupeSorted returns a sorted copy of ids with duplicates removed.
func dedupeSorted(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}
