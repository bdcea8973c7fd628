// Package postgres provides the backing store for postgresql
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"github.com/tdjsnelling/sqtracker-sub000/config"
	"github.com/tdjsnelling/sqtracker-sub000/consts"
	"github.com/tdjsnelling/sqtracker-sub000/store"
)

const (
	driverName = "postgres"

	queryTimeout = time.Second * 5
)

// Store is the postgres backed store.Store implementation
type Store struct {
	db  *pgxpool.Pool
	ctx context.Context
}

// Name returns the driver name
func (s *Store) Name() string {
	return driverName
}

func (s *Store) deadline() (context.Context, context.CancelFunc) {
	return context.WithDeadline(s.ctx, time.Now().Add(queryTimeout))
}

// UserGetByUID will lookup and return the user via the uid embedded in their
// announce URL
func (s *Store) UserGetByUID(user *store.User, uid string) error {
	const q = `
		SELECT user_id, uid, email_verified, is_banned, bonus_points
		FROM users
		WHERE uid = $1`
	c, cancel := s.deadline()
	defer cancel()
	err := s.db.QueryRow(c, q, uid).Scan(
		&user.UserID, &user.UID, &user.EmailVerified, &user.IsBanned, &user.BonusPoints)
	if err != nil {
		if err == pgx.ErrNoRows {
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
		VALUES ($1, $2, $3, $4, $5)`
	c, cancel := s.deadline()
	defer cancel()
	if _, err := s.db.Exec(c, q, user.UserID, user.UID, user.EmailVerified,
		user.IsBanned, user.BonusPoints); err != nil {
		return errors.Wrap(err, "Failed to add user to store")
	}
	return nil
}

// UserDelete removes a user from the backing store
func (s *Store) UserDelete(user store.User) error {
	const q = `DELETE FROM users WHERE user_id = $1`
	c, cancel := s.deadline()
	defer cancel()
	if _, err := s.db.Exec(c, q, user.UserID); err != nil {
		return errors.Wrap(err, "Failed to delete user")
	}
	return nil
}

// UserAddBonus atomically increments the users bonus point counter
func (s *Store) UserAddBonus(userID uint32, points uint64) error {
	const q = `UPDATE users SET bonus_points = bonus_points + $1 WHERE user_id = $2`
	c, cancel := s.deadline()
	defer cancel()
	ct, err := s.db.Exec(c, q, points, userID)
	if err != nil {
		return errors.Wrap(err, "Failed to add bonus points")
	}
	if ct.RowsAffected() == 0 {
		return consts.ErrInvalidUser
	}
	return nil
}

// TorrentGet returns a torrent for the hash provided
func (s *Store) TorrentGet(t *store.Torrent, hash store.InfoHash, deletedOk bool) error {
	const q = `
		SELECT info_hash, is_freeleech, is_deleted, snatches
		FROM torrent
		WHERE info_hash = $1`
	c, cancel := s.deadline()
	defer cancel()
	var ihBytes []byte
	err := s.db.QueryRow(c, q, hash.Bytes()).Scan(
		&ihBytes, &t.IsFreeleech, &t.IsDeleted, &t.Snatches)
	if err != nil {
		if err == pgx.ErrNoRows {
			return consts.ErrInvalidInfoHash
		}
		return errors.Wrap(err, "Could not query torrent")
	}
	copy(t.InfoHash[:], ihBytes)
	if t.IsDeleted && !deletedOk {
		return consts.ErrInvalidInfoHash
	}
	return nil
}

// TorrentAdd inserts a new torrent into the backing store
func (s *Store) TorrentAdd(t store.Torrent) error {
	const q = `INSERT INTO torrent (info_hash, is_freeleech) VALUES ($1, $2)`
	c, cancel := s.deadline()
	defer cancel()
	if _, err := s.db.Exec(c, q, t.InfoHash.Bytes(), t.IsFreeleech); err != nil {
		return errors.Wrap(err, "Failed to add torrent")
	}
	return nil
}

// TorrentUpdate persists the mutable torrent flags
func (s *Store) TorrentUpdate(t store.Torrent) error {
	const q = `UPDATE torrent SET is_freeleech = $1 WHERE info_hash = $2`
	c, cancel := s.deadline()
	defer cancel()
	ct, err := s.db.Exec(c, q, t.IsFreeleech, t.InfoHash.Bytes())
	if err != nil {
		return errors.Wrap(err, "Failed to update torrent")
	}
	if ct.RowsAffected() == 0 {
		return consts.ErrInvalidInfoHash
	}
	return nil
}

// TorrentDelete will mark a torrent as deleted in the backing store.
// If dropRow is true, it will permanently remove the torrent from the store
func (s *Store) TorrentDelete(ih store.InfoHash, dropRow bool) error {
	c, cancel := s.deadline()
	defer cancel()
	var err error
	if dropRow {
		_, err = s.db.Exec(c, `DELETE FROM torrent WHERE info_hash = $1`, ih.Bytes())
	} else {
		_, err = s.db.Exec(c, `UPDATE torrent SET is_deleted = true WHERE info_hash = $1`, ih.Bytes())
	}
	if err != nil {
		return errors.Wrap(err, "Failed to delete torrent")
	}
	return nil
}

// TorrentAddSnatch increments the completed download counter by one
func (s *Store) TorrentAddSnatch(ih store.InfoHash) error {
	const q = `UPDATE torrent SET snatches = snatches + 1 WHERE info_hash = $1`
	c, cancel := s.deadline()
	defer cancel()
	if _, err := s.db.Exec(c, q, ih.Bytes()); err != nil {
		return errors.Wrap(err, "Failed to increment snatches")
	}
	return nil
}

// ProgressGet fills p with the stored ledger record, or a zeroed record for a
// pair that has never announced
func (s *Store) ProgressGet(p *store.Progress, userID uint32, ih store.InfoHash) error {
	const q = `
		SELECT up_session, up_total, dn_session, dn_total, remaining
		FROM progress
		WHERE user_id = $1 AND info_hash = $2`
	c, cancel := s.deadline()
	defer cancel()
	p.UserID = userID
	p.InfoHash = ih
	err := s.db.QueryRow(c, q, userID, ih.Bytes()).Scan(
		&p.UpSession, &p.UpTotal, &p.DnSession, &p.DnTotal, &p.Left)
	if err != nil {
		if err == pgx.ErrNoRows {
			p.UpSession, p.UpTotal, p.DnSession, p.DnTotal, p.Left = 0, 0, 0, 0, 0
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
		WHERE user_id = $1`
	c, cancel := s.deadline()
	defer cancel()
	rows, err := s.db.Query(c, q, userID)
	if err != nil {
		return nil, errors.Wrap(err, "Could not query user progress records")
	}
	defer rows.Close()
	var records store.Progresses
	for rows.Next() {
		var p store.Progress
		var ihBytes []byte
		if err := rows.Scan(&p.UserID, &ihBytes, &p.UpSession, &p.UpTotal,
			&p.DnSession, &p.DnTotal, &p.Left); err != nil {
			return nil, errors.Wrap(err, "Could not scan progress record")
		}
		copy(p.InfoHash[:], ihBytes)
		records = append(records, p)
	}
	return records, rows.Err()
}

// Progress upsert queries, same delta-in-statement semantics as the mysql
// driver. Postgres evaluates every assignment against the pre-update row so
// assignment order does not matter here.
const (
	qProgressUpsert = `
		INSERT INTO progress
		    (user_id, info_hash, up_session, up_total, dn_session, dn_total, remaining)
		VALUES ($1, $2, $3, $3, $4, $4, $5)
		ON CONFLICT (user_id, info_hash) DO UPDATE SET
		    up_total   = progress.up_total + GREATEST(0, EXCLUDED.up_session - progress.up_session),
		    up_session = EXCLUDED.up_session,
		    dn_total   = progress.dn_total + GREATEST(0, EXCLUDED.dn_session - progress.dn_session),
		    dn_session = EXCLUDED.dn_session,
		    remaining  = EXCLUDED.remaining`
	qProgressUpsertFrozen = `
		INSERT INTO progress
		    (user_id, info_hash, up_session, up_total, dn_session, dn_total, remaining)
		VALUES ($1, $2, $3, $3, 0, 0, $4)
		ON CONFLICT (user_id, info_hash) DO UPDATE SET
		    up_total   = progress.up_total + GREATEST(0, EXCLUDED.up_session - progress.up_session),
		    up_session = EXCLUDED.up_session,
		    remaining  = EXCLUDED.remaining`
)

// ProgressUpsert applies one announce worth of counters as a single atomic
// statement keyed on (user_id, info_hash)
func (s *Store) ProgressUpsert(upd store.ProgressUpdate) error {
	c, cancel := s.deadline()
	defer cancel()
	var err error
	if upd.FreezeDown {
		_, err = s.db.Exec(c, qProgressUpsertFrozen,
			upd.UserID, upd.InfoHash.Bytes(), upd.UpSession, upd.Left)
	} else {
		_, err = s.db.Exec(c, qProgressUpsert,
			upd.UserID, upd.InfoHash.Bytes(), upd.UpSession, upd.DnSession, upd.Left)
	}
	if err != nil {
		return errors.Wrap(err, "Failed to upsert progress record")
	}
	return nil
}

// Close will close the underlying connection pool
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func makeDSN(cfg config.StoreConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

type driver struct{}

// New creates a new postgres backed store.
func (d driver) New(cfg config.StoreConfig) (store.Store, error) {
	ctx := context.Background()
	pool, err := pgxpool.Connect(ctx, makeDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "Could not connect to postgres database")
	}
	return &Store{db: pool, ctx: ctx}, nil
}

func init() {
	store.AddDriver(driverName, driver{})
}
