package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Member keys canonicalize a conversation's membership (or, for
// provisioned household channels, its group and kind) into a single
// string. Storage enforces a unique index on the key, which closes the
// check-then-insert race between concurrent creations: the loser of the
// race gets a constraint violation and reports ErrConflict.

// DirectMemberKey returns the canonical key for the dm between a and b.
// Argument order does not matter.
func DirectMemberKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%d:%d", a, b)
}

// ParseDirectMemberKey recovers the user pair from a dm member key. ok is
// false for keys of any other shape.
func ParseDirectMemberKey(key string) (a, b int64, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "dm" {
		return 0, 0, false
	}
	a, errA := strconv.ParseInt(parts[1], 10, 64)
	b, errB := strconv.ParseInt(parts[2], 10, 64)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return a, b, true
}

// GroupChannelAllKey keys the full-household channel of a group.
func GroupChannelAllKey(groupID int64) string {
	return fmt.Sprintf("grp:%d:all", groupID)
}

// GroupChannelTenantsKey keys the tenants-only channel of a group.
func GroupChannelTenantsKey(groupID int64) string {
	return fmt.Sprintf("grp:%d:tenants", groupID)
}

// NamedChatKey keys an ad-hoc named group chat by its exact member set.
func NamedChatKey(memberIDs []int64) string {
	ids := make([]int64, len(memberIDs))
	copy(ids, memberIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "chat:" + strings.Join(parts, ":")
}
