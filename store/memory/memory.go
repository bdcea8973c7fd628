// Package memory implements the store interfaces in process memory. It is
// the default for development and the conformance test suite; state does not
// survive a restart.
package memory

import (
	"sync"

	"github.com/tdjsnelling/sqtracker-sub000/config"
	"github.com/tdjsnelling/sqtracker-sub000/consts"
	"github.com/tdjsnelling/sqtracker-sub000/store"
)

const (
	driverName = "memory"
)

type progressKey struct {
	userID uint32
	ih     store.InfoHash
}

// Driver is the memory backed store.Store implementation
type Driver struct {
	users      map[string]store.User
	torrents   map[store.InfoHash]store.Torrent
	progress   map[progressKey]store.Progress
	usersMu    *sync.RWMutex
	torrentsMu *sync.RWMutex
	progressMu *sync.RWMutex
}

// NewDriver instantiates a new in-memory store
func NewDriver() *Driver {
	return &Driver{
		users:      make(map[string]store.User),
		torrents:   make(map[store.InfoHash]store.Torrent),
		progress:   make(map[progressKey]store.Progress),
		usersMu:    &sync.RWMutex{},
		torrentsMu: &sync.RWMutex{},
		progressMu: &sync.RWMutex{},
	}
}

// Name returns the driver name
func (d *Driver) Name() string {
	return driverName
}

// UserGetByUID returns the user owning the announce uid
func (d *Driver) UserGetByUID(user *store.User, uid string) error {
	d.usersMu.RLock()
	usr, found := d.users[uid]
	d.usersMu.RUnlock()
	if !found {
		return consts.ErrInvalidUser
	}
	*user = usr
	return nil
}

// UserAdd will add a new user to the backing store
func (d *Driver) UserAdd(user store.User) error {
	d.usersMu.Lock()
	defer d.usersMu.Unlock()
	for _, existing := range d.users {
		if existing.UserID == user.UserID {
			return consts.ErrDuplicate
		}
	}
	d.users[user.UID] = user
	return nil
}

// UserDelete removes a user from the backing store
func (d *Driver) UserDelete(user store.User) error {
	d.usersMu.Lock()
	delete(d.users, user.UID)
	d.usersMu.Unlock()
	return nil
}

// UserAddBonus increments the users bonus point counter under the user lock
func (d *Driver) UserAddBonus(userID uint32, points uint64) error {
	d.usersMu.Lock()
	defer d.usersMu.Unlock()
	for uid, usr := range d.users {
		if usr.UserID == userID {
			usr.BonusPoints += points
			d.users[uid] = usr
			return nil
		}
	}
	return consts.ErrInvalidUser
}

// TorrentGet returns the torrent matching the infohash
func (d *Driver) TorrentGet(torrent *store.Torrent, hash store.InfoHash, deletedOk bool) error {
	d.torrentsMu.RLock()
	t, found := d.torrents[hash]
	d.torrentsMu.RUnlock()
	if !found {
		return consts.ErrInvalidInfoHash
	}
	if t.IsDeleted && !deletedOk {
		return consts.ErrInvalidInfoHash
	}
	*torrent = t
	return nil
}

// TorrentAdd adds a new torrent to the memory store
func (d *Driver) TorrentAdd(t store.Torrent) error {
	d.torrentsMu.Lock()
	defer d.torrentsMu.Unlock()
	_, found := d.torrents[t.InfoHash]
	if found {
		return consts.ErrDuplicate
	}
	d.torrents[t.InfoHash] = t
	return nil
}

// TorrentUpdate replaces the stored flags for an existing torrent
func (d *Driver) TorrentUpdate(t store.Torrent) error {
	d.torrentsMu.Lock()
	defer d.torrentsMu.Unlock()
	existing, found := d.torrents[t.InfoHash]
	if !found {
		return consts.ErrInvalidInfoHash
	}
	existing.IsFreeleech = t.IsFreeleech
	d.torrents[t.InfoHash] = existing
	return nil
}

// TorrentDelete will mark a torrent as deleted in the backing store.
// If dropRow is true the torrent is removed entirely.
func (d *Driver) TorrentDelete(ih store.InfoHash, dropRow bool) error {
	d.torrentsMu.Lock()
	defer d.torrentsMu.Unlock()
	if dropRow {
		delete(d.torrents, ih)
		return nil
	}
	t, found := d.torrents[ih]
	if !found {
		return consts.ErrInvalidInfoHash
	}
	t.IsDeleted = true
	d.torrents[ih] = t
	return nil
}

// TorrentAddSnatch increments the completed download counter
func (d *Driver) TorrentAddSnatch(ih store.InfoHash) error {
	d.torrentsMu.Lock()
	defer d.torrentsMu.Unlock()
	t, found := d.torrents[ih]
	if !found {
		return consts.ErrInvalidInfoHash
	}
	t.Snatches++
	d.torrents[ih] = t
	return nil
}

// ProgressGet fills p with the ledger record for the pair. Pairs that have
// never announced yield a zeroed record.
func (d *Driver) ProgressGet(p *store.Progress, userID uint32, ih store.InfoHash) error {
	d.progressMu.RLock()
	rec, found := d.progress[progressKey{userID: userID, ih: ih}]
	d.progressMu.RUnlock()
	if !found {
		*p = store.Progress{UserID: userID, InfoHash: ih}
		return nil
	}
	*p = rec
	return nil
}

// ProgressGetUser returns every ledger record belonging to the user
func (d *Driver) ProgressGetUser(userID uint32) (store.Progresses, error) {
	d.progressMu.RLock()
	defer d.progressMu.RUnlock()
	var records store.Progresses
	for key, rec := range d.progress {
		if key.userID == userID {
			records = append(records, rec)
		}
	}
	return records, nil
}

// ProgressUpsert applies both counter sides and the remaining bytes under a
// single lock acquisition, the memory analogue of a one statement upsert
func (d *Driver) ProgressUpsert(upd store.ProgressUpdate) error {
	key := progressKey{userID: upd.UserID, ih: upd.InfoHash}
	d.progressMu.Lock()
	defer d.progressMu.Unlock()
	rec, found := d.progress[key]
	if !found {
		rec = store.Progress{UserID: upd.UserID, InfoHash: upd.InfoHash}
	}
	rec.Apply(store.Uploaded, upd.UpSession, false)
	rec.Apply(store.Downloaded, upd.DnSession, upd.FreezeDown)
	rec.Left = upd.Left
	d.progress[key] = rec
	return nil
}

// Close will delete/free the underlying memory store
func (d *Driver) Close() error {
	d.usersMu.Lock()
	d.users = make(map[string]store.User)
	d.usersMu.Unlock()
	d.torrentsMu.Lock()
	d.torrents = make(map[store.InfoHash]store.Torrent)
	d.torrentsMu.Unlock()
	d.progressMu.Lock()
	d.progress = make(map[progressKey]store.Progress)
	d.progressMu.Unlock()
	return nil
}

type initializer struct{}

// New creates a new memory backed store.
func (d initializer) New(_ config.StoreConfig) (store.Store, error) {
	return NewDriver(), nil
}

func init() {
	store.AddDriver(driverName, initializer{})
}
