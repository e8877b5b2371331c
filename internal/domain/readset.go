package domain

import (
	"encoding/json"
	"sort"
)

// UserIDSet is a duplicate-free, ascending-sorted set of user ids. It backs
// the read-acknowledgement list of a message: insertion is idempotent and
// the set only ever grows.
type UserIDSet []int64

// Contains reports whether id is in the set.
func (s UserIDSet) Contains(id int64) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
	return i < len(s) && s[i] == id
}

// Add inserts id, keeping the set sorted. It reports whether the set
// changed; adding a present id is a no-op.
func (s *UserIDSet) Add(id int64) bool {
	i := sort.Search(len(*s), func(i int) bool { return (*s)[i] >= id })
	if i < len(*s) && (*s)[i] == id {
		return false
	}
	*s = append(*s, 0)
	copy((*s)[i+1:], (*s)[i:])
	(*s)[i] = id
	return true
}

// MarshalJSON always emits a JSON array, never null.
func (s UserIDSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int64(s))
}

// UnmarshalJSON accepts any JSON array of ids and normalizes it to a
// sorted, duplicate-free set.
func (s *UserIDSet) UnmarshalJSON(b []byte) error {
	var ids []int64
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		out = append(out, id)
	}
	*s = UserIDSet(out)
	return nil
}
