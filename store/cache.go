package store

import (
	"sync"
	"time"
)

// UserCache sits in front of the backing store for the per-announce user
// lookup. Entries MUST be time bounded and invalidated on user mutation; a
// stale entry risks admitting a banned or unverified user.
type UserCache interface {
	Set(user User)
	// Get fills user and returns true on a live cache hit
	Get(user *User, uid string) bool
	Invalidate(uid string)
}

type cachedUser struct {
	user      User
	expiresAt time.Time
}

// MemoryUserCache is a TTL bounded in-process UserCache
type MemoryUserCache struct {
	*sync.RWMutex
	users map[string]cachedUser
	ttl   time.Duration
}

// NewMemoryUserCache configures and returns a new MemoryUserCache
func NewMemoryUserCache(ttl time.Duration) *MemoryUserCache {
	return &MemoryUserCache{
		RWMutex: &sync.RWMutex{},
		users:   make(map[string]cachedUser),
		ttl:     ttl,
	}
}

// Set inserts a user into the cache
func (cache *MemoryUserCache) Set(user User) {
	cache.Lock()
	cache.users[user.UID] = cachedUser{user: user, expiresAt: time.Now().Add(cache.ttl)}
	cache.Unlock()
}

// Get fills user and returns true when a non-expired entry exists
func (cache *MemoryUserCache) Get(user *User, uid string) bool {
	cache.RLock()
	entry, found := cache.users[uid]
	cache.RUnlock()
	if !found {
		return false
	}
	if time.Now().After(entry.expiresAt) {
		cache.Invalidate(uid)
		return false
	}
	*user = entry.user
	return true
}

// Invalidate drops a user from the cache
func (cache *MemoryUserCache) Invalidate(uid string) {
	cache.Lock()
	delete(cache.users, uid)
	cache.Unlock()
}

// NullUserCache disables caching entirely, every lookup hits the store
type NullUserCache struct{}

// Set is a no-op
func (NullUserCache) Set(_ User) {}

// Get always misses
func (NullUserCache) Get(_ *User, _ string) bool { return false }

// Invalidate is a no-op
func (NullUserCache) Invalidate(_ string) {}
