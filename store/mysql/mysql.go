// Package mysql provides mysql/mariadb backed persistent storage
package mysql

import (
	"database/sql"
	"sync"
	"time"

	// imported for side-effects
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/tdjsnelling/sqtracker-sub000/config"
	"github.com/tdjsnelling/sqtracker-sub000/consts"
	"github.com/tdjsnelling/sqtracker-sub000/store"
)

const (
	driverName = "mysql"
)

// Store is the MariaDB backed store.Store implementation
type Store struct {
	db *sqlx.DB
}

// Name returns the driver name
func (s *Store) Name() string {
	return driverName
}

// UserGetByUID will lookup and return the user via the uid embedded in their
// announce URL. The errors returned for this method are deliberately generic,
// an unknown uid must not leak whether it ever existed.
func (s *Store) UserGetByUID(user *store.User, uid string) error {
	const q = `
		SELECT u.user_id,
		       u.uid,
		       u.email_verified,
		       u.is_banned,
		       u.bonus_points
		FROM users u
		WHERE u.uid = ?`
	if err := s.db.Get(user, q, uid); err != nil {
		if err == sql.ErrNoRows {
			return consts.ErrInvalidUser
		}
		return errors.Wrap(err, "Could not query user by uid")
	}
	return nil
}

// UserAdd will add a new user to the backing store
func (s *Store) UserAdd(user store.User) error {
	const q = `
		INSERT INTO users (user_id, uid, email_verified, is_banned, bonus_points)
		VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.Exec(q, user.UserID, user.UID, user.EmailVerified, user.IsBanned, user.BonusPoints)
	if err != nil {
		return errors.Wrap(err, "Failed to add user to store")
	}
	return nil
}

// UserDelete removes a user from the backing store
func (s *Store) UserDelete(user store.User) error {
	if user.UserID == 0 {
		return errors.New("User doesnt have a user_id")
	}
	const q = `DELETE FROM users WHERE user_id = ?`
	if _, err := s.db.Exec(q, user.UserID); err != nil {
		return errors.Wrap(err, "Failed to delete user")
	}
	return nil
}

// UserAddBonus increments the users bonus point counter. The increment is a
// single UPDATE so concurrent announces across torrents cannot lose awards.
func (s *Store) UserAddBonus(userID uint32, points uint64) error {
	const q = `UPDATE users SET bonus_points = bonus_points + ? WHERE user_id = ?`
	res, err := s.db.Exec(q, points, userID)
	if err != nil {
		return errors.Wrap(err, "Failed to add bonus points")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return consts.ErrInvalidUser
	}
	return nil
}

// TorrentGet returns a torrent for the hash provided
func (s *Store) TorrentGet(t *store.Torrent, hash store.InfoHash, deletedOk bool) error {
	const q = `
		SELECT info_hash, is_freeleech, is_deleted, snatches
		FROM torrent
		WHERE info_hash = ?`
	if err := s.db.Get(t, q, hash.Bytes()); err != nil {
		if err == sql.ErrNoRows {
			return consts.ErrInvalidInfoHash
		}
		return err
	}
	if t.IsDeleted && !deletedOk {
		return consts.ErrInvalidInfoHash
	}
	return nil
}

// TorrentAdd inserts a new torrent into the backing store
func (s *Store) TorrentAdd(t store.Torrent) error {
	const q = `INSERT INTO torrent (info_hash, is_freeleech) VALUES (?, ?)`
	if _, err := s.db.Exec(q, t.InfoHash.Bytes(), t.IsFreeleech); err != nil {
		return errors.Wrap(err, "Failed to add torrent")
	}
	return nil
}

// TorrentUpdate persists the mutable torrent flags
func (s *Store) TorrentUpdate(t store.Torrent) error {
	const q = `UPDATE torrent SET is_freeleech = ? WHERE info_hash = ?`
	res, err := s.db.Exec(q, t.IsFreeleech, t.InfoHash.Bytes())
	if err != nil {
		return errors.Wrap(err, "Failed to update torrent")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return consts.ErrInvalidInfoHash
	}
	return nil
}

// TorrentDelete will mark a torrent as deleted in the backing store.
// If dropRow is true, it will permanently remove the torrent from the store
func (s *Store) TorrentDelete(ih store.InfoHash, dropRow bool) error {
	var err error
	if dropRow {
		const dropQ = `DELETE FROM torrent WHERE info_hash = ?`
		_, err = s.db.Exec(dropQ, ih.Bytes())
	} else {
		const updateQ = `UPDATE torrent SET is_deleted = true WHERE info_hash = ?`
		_, err = s.db.Exec(updateQ, ih.Bytes())
	}
	if err != nil {
		return errors.Wrap(err, "Failed to delete torrent")
	}
	return nil
}

// TorrentAddSnatch increments the completed download counter by one
func (s *Store) TorrentAddSnatch(ih store.InfoHash) error {
	const q = `UPDATE torrent SET snatches = snatches + 1 WHERE info_hash = ?`
	if _, err := s.db.Exec(q, ih.Bytes()); err != nil {
		return errors.Wrap(err, "Failed to increment snatches")
	}
	return nil
}

// ProgressGet fills p with the stored ledger record, or a zeroed record for a
// pair that has never announced
func (s *Store) ProgressGet(p *store.Progress, userID uint32, ih store.InfoHash) error {
	const q = `
		SELECT user_id, info_hash, up_session, up_total, dn_session, dn_total, remaining
		FROM progress
		WHERE user_id = ? AND info_hash = ?`
	if err := s.db.Get(p, q, userID, ih.Bytes()); err != nil {
		if err == sql.ErrNoRows {
			*p = store.Progress{UserID: userID, InfoHash: ih}
			return nil
		}
		return errors.Wrap(err, "Could not query progress record")
	}
	return nil
}

// ProgressGetUser returns every ledger record belonging to the user
func (s *Store) ProgressGetUser(userID uint32) (store.Progresses, error) {
	const q = `
		SELECT user_id, info_hash, up_session, up_total, dn_session, dn_total, remaining
		FROM progress
		WHERE user_id = ?`
	var records store.Progresses
	if err := s.db.Select(&records, q, userID); err != nil {
		return nil, errors.Wrap(err, "Could not query user progress records")
	}
	return records, nil
}

// Progress upsert queries. The lifetime totals advance by the session delta
// clamped at zero, computed against the stored session counter inside the
// statement itself so concurrent announces for the same pair cannot double
// credit. Assignment order matters: totals reference the pre-update session
// columns, so they are assigned first.
const (
	qProgressUpsert = `
		INSERT INTO progress
		    (user_id, info_hash, up_session, up_total, dn_session, dn_total, remaining)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		    up_total   = up_total + GREATEST(0, CAST(VALUES(up_session) AS SIGNED) - CAST(up_session AS SIGNED)),
		    up_session = VALUES(up_session),
		    dn_total   = dn_total + GREATEST(0, CAST(VALUES(dn_session) AS SIGNED) - CAST(dn_session AS SIGNED)),
		    dn_session = VALUES(dn_session),
		    remaining  = VALUES(remaining)`
	qProgressUpsertFrozen = `
		INSERT INTO progress
		    (user_id, info_hash, up_session, up_total, dn_session, dn_total, remaining)
		VALUES (?, ?, ?, ?, 0, 0, ?)
		ON DUPLICATE KEY UPDATE
		    up_total   = up_total + GREATEST(0, CAST(VALUES(up_session) AS SIGNED) - CAST(up_session AS SIGNED)),
		    up_session = VALUES(up_session),
		    remaining  = VALUES(remaining)`
)

// ProgressUpsert applies one announce worth of counters as a single atomic
// statement keyed on (user_id, info_hash). The frozen variant leaves the
// download side entirely untouched for freeleech announces.
func (s *Store) ProgressUpsert(upd store.ProgressUpdate) error {
	var err error
	if upd.FreezeDown {
		_, err = s.db.Exec(qProgressUpsertFrozen,
			upd.UserID, upd.InfoHash.Bytes(),
			upd.UpSession, upd.UpSession,
			upd.Left)
	} else {
		_, err = s.db.Exec(qProgressUpsert,
			upd.UserID, upd.InfoHash.Bytes(),
			upd.UpSession, upd.UpSession,
			upd.DnSession, upd.DnSession,
			upd.Left)
	}
	if err != nil {
		return errors.Wrap(err, "Failed to upsert progress record")
	}
	return nil
}

// Close will close the underlying database connection
func (s *Store) Close() error {
	return s.db.Close()
}

var (
	connections   map[string]*sqlx.DB
	connectionsMu *sync.RWMutex
)

func getOrCreateConn(cfg config.StoreConfig) (*sqlx.DB, error) {
	connectionsMu.Lock()
	defer connectionsMu.Unlock()
	existing, found := connections[cfg.Host]
	if found {
		return existing, nil
	}
	db, err := sqlx.Connect(driverName, cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "Could not connect to mysql database")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(50)
	db.SetConnMaxLifetime(time.Second * 10)
	connections[cfg.Host] = db
	return db, nil
}

type driver struct{}

// New creates a new mysql backed store.
func (d driver) New(cfg config.StoreConfig) (store.Store, error) {
	db, err := getOrCreateConn(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func init() {
	connections = make(map[string]*sqlx.DB)
	connectionsMu = &sync.RWMutex{}
	store.AddDriver(driverName, driver{})
}
