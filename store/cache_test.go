package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryUserCache(t *testing.T) {
	cache := NewMemoryUserCache(time.Millisecond * 50)
	user := User{UserID: 1, UID: "aabbccdd", EmailVerified: true}

	var fetched User
	require.False(t, cache.Get(&fetched, user.UID))

	cache.Set(user)
	require.True(t, cache.Get(&fetched, user.UID))
	require.Equal(t, user, fetched)

	cache.Invalidate(user.UID)
	require.False(t, cache.Get(&fetched, user.UID))

	// Entries expire after the TTL
	cache.Set(user)
	time.Sleep(time.Millisecond * 60)
	require.False(t, cache.Get(&fetched, user.UID))
}

func TestNullUserCache(t *testing.T) {
	cache := NullUserCache{}
	cache.Set(User{UID: "aabbccdd"})
	var fetched User
	require.False(t, cache.Get(&fetched, "aabbccdd"))
}
