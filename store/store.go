// Package store provides the underlying interfaces and glue for the backend storage drivers.
//
// The gateway owns three durable data sets: registered users, the torrent
// catalog and the per (user, torrent) progress ledger. A single Store
// implementation serves all three so drivers can guarantee the ledger upsert
// is one atomic operation on the backing store.
package store

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdjsnelling/sqtracker-sub000/config"
	"github.com/tdjsnelling/sqtracker-sub000/consts"
)

var (
	driversMu = sync.RWMutex{}
	drivers   = make(map[string]Driver)
)

// Driver provides a interface to enable registration of new storage backends
type Driver interface {
	// New instantiates a new Store
	New(cfg config.StoreConfig) (Store, error)
}

// AddDriver will register a new driver able to instantiate stores
func AddDriver(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = driver
	log.Debugf("Registered storage driver: %s", name)
}

// Store defines the backing store for all gateway owned state.
//
// The methods that mutate counters (UserAddBonus, TorrentAddSnatch,
// ProgressUpsert) MUST be implemented as atomic operations on the backing
// store, never as an application level read-then-write, since announces for
// the same user run concurrently.
type Store interface {
	// UserGetByUID returns the user owning the uid embedded in the announce URL
	UserGetByUID(user *User, uid string) error
	// UserAdd registers a new user
	UserAdd(user User) error
	// UserDelete removes a user from the backing store
	UserDelete(user User) error
	// UserAddBonus atomically increments the users bonus point counter
	UserAddBonus(userID uint32, points uint64) error
	// TorrentGet returns the torrent matching the info hash
	TorrentGet(torrent *Torrent, ih InfoHash, deletedOk bool) error
	// TorrentAdd registers a new torrent
	TorrentAdd(t Torrent) error
	// TorrentUpdate persists mutable torrent flags, currently the freeleech bit
	TorrentUpdate(t Torrent) error
	// TorrentDelete will mark a torrent as deleted in the backing store.
	// If dropRow is true, it will permanently remove the torrent from the store
	TorrentDelete(ih InfoHash, dropRow bool) error
	// TorrentAddSnatch atomically increments the torrents completed download counter
	TorrentAddSnatch(ih InfoHash) error
	// ProgressGet fills p with the ledger record for (userID, ih). A pair
	// that has never announced yields a zeroed record, not an error.
	ProgressGet(p *Progress, userID uint32, ih InfoHash) error
	// ProgressGetUser returns every ledger record belonging to the user
	ProgressGetUser(userID uint32) (Progresses, error)
	// ProgressUpsert applies the update as a single atomic conditional
	// upsert keyed on (user_id, info_hash). Session counters below the
	// stored value credit nothing to the lifetime totals.
	ProgressUpsert(upd ProgressUpdate) error
	// Name returns the driver name
	Name() string
	// Close should cleanup the underlying storage driver
	Close() error
}

// NewStore instantiates the store driver named by the config
func NewStore(cfg config.StoreConfig) (Store, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	driver, found := drivers[cfg.Type]
	if !found {
		return nil, consts.ErrInvalidDriver
	}
	return driver.New(cfg)
}
