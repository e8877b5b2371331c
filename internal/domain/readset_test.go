package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homehub/internal/domain"
)

func TestUserIDSetAdd(t *testing.T) {
	t.Run("KeepsSorted", func(t *testing.T) {
		s := domain.UserIDSet{}
		assert.True(t, s.Add(30))
		assert.True(t, s.Add(10))
		assert.True(t, s.Add(20))
		assert.Equal(t, domain.UserIDSet{10, 20, 30}, s)
	})

	t.Run("Idempotent", func(t *testing.T) {
		s := domain.UserIDSet{}
		assert.True(t, s.Add(7))
		for i := 0; i < 5; i++ {
			assert.False(t, s.Add(7))
		}
		assert.Equal(t, domain.UserIDSet{7}, s)
	})
}

func TestUserIDSetContains(t *testing.T) {
	s := domain.UserIDSet{1, 3, 5}
	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(5))
	assert.False(t, s.Contains(2))
	assert.False(t, domain.UserIDSet{}.Contains(1))
}

func TestUserIDSetJSON(t *testing.T) {
	t.Run("NilMarshalsToEmptyArray", func(t *testing.T) {
		var s domain.UserIDSet
		b, err := json.Marshal(s)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(b))
	})

	t.Run("RoundTrip", func(t *testing.T) {
		s := domain.UserIDSet{2, 4}
		b, err := json.Marshal(s)
		require.NoError(t, err)

		var got domain.UserIDSet
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, s, got)
	})

	t.Run("NormalizesUnsortedDuplicates", func(t *testing.T) {
		var got domain.UserIDSet
		require.NoError(t, json.Unmarshal([]byte(`[5,1,5,3,1]`), &got))
		assert.Equal(t, domain.UserIDSet{1, 3, 5}, got)
	})
}

func TestMessageStatus(t *testing.T) {
	m := &domain.Message{SenderID: 1, ReadBy: domain.UserIDSet{}}
	assert.Equal(t, domain.StatusDelivered, m.Status())

	// The sender's own acknowledgement does not count as read.
	m.ReadBy.Add(1)
	assert.Equal(t, domain.StatusDelivered, m.Status())

	m.ReadBy.Add(2)
	assert.Equal(t, domain.StatusRead, m.Status())
}

func TestDirectMemberKey(t *testing.T) {
	assert.Equal(t, domain.DirectMemberKey(2, 9), domain.DirectMemberKey(9, 2))
	assert.Equal(t, "dm:2:9", domain.DirectMemberKey(9, 2))

	a, b, ok := domain.ParseDirectMemberKey("dm:2:9")
	require.True(t, ok)
	assert.Equal(t, int64(2), a)
	assert.Equal(t, int64(9), b)

	_, _, ok = domain.ParseDirectMemberKey("grp:4:all")
	assert.False(t, ok)
}

func TestNamedChatKey(t *testing.T) {
	assert.Equal(t, "chat:1:2:3", domain.NamedChatKey([]int64{3, 1, 2}))
	assert.Equal(t, domain.NamedChatKey([]int64{1, 2, 3}), domain.NamedChatKey([]int64{3, 2, 1}))
}
