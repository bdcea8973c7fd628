// Package redis provides a redis backed store.UserCache so multiple gateway
// processes can share one user lookup cache. TTLs are enforced by redis key
// expiry; invalidation is an explicit delete.
package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
	log "github.com/sirupsen/logrus"
	"github.com/tdjsnelling/sqtracker-sub000/store"
)

func userKey(uid string) string {
	return fmt.Sprintf("sq:u:%s", uid)
}

// UserCache is the redis backed store.UserCache implementation
type UserCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUserCache configures and returns a new redis UserCache
func NewUserCache(host string, port int, password string, db int, ttl time.Duration) *UserCache {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})
	return &UserCache{client: client, ttl: ttl}
}

// Set inserts a user into the cache with the configured expiry
func (cache *UserCache) Set(user store.User) {
	body, err := json.Marshal(user)
	if err != nil {
		log.Errorf("Failed to marshal user for cache: %s", err)
		return
	}
	if err := cache.client.Set(userKey(user.UID), body, cache.ttl).Err(); err != nil {
		log.Errorf("Failed to set cached user: %s", err)
	}
}

// Get fills user and returns true on a live cache hit. Any redis error is
// treated as a miss so the backing store stays authoritative.
func (cache *UserCache) Get(user *store.User, uid string) bool {
	body, err := cache.client.Get(userKey(uid)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Errorf("Failed to fetch cached user: %s", err)
		}
		return false
	}
	if err := json.Unmarshal(body, user); err != nil {
		log.Errorf("Failed to unmarshal cached user: %s", err)
		return false
	}
	return true
}

// Invalidate drops a user from the cache
func (cache *UserCache) Invalidate(uid string) {
	if err := cache.client.Del(userKey(uid)).Err(); err != nil {
		log.Errorf("Failed to invalidate cached user: %s", err)
	}
}
