package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdjsnelling/sqtracker-sub000/consts"
)

// Conformance suite run against every store driver. Drivers import this from
// their own test file so all backends prove the same ledger semantics,
// notably that concurrent announces never double credit.

func hashOf(b byte) InfoHash {
	var ih InfoHash
	for i := range ih {
		ih[i] = b
	}
	return ih
}

func testUserStore(t *testing.T, s Store) {
	user := User{UserID: 1, UID: "aabbccdd", EmailVerified: true}
	require.NoError(t, s.UserAdd(user))

	var fetched User
	require.NoError(t, s.UserGetByUID(&fetched, user.UID))
	require.Equal(t, user, fetched)

	require.Error(t, s.UserGetByUID(&fetched, "nope"))

	require.NoError(t, s.UserAddBonus(user.UserID, 5))
	require.NoError(t, s.UserGetByUID(&fetched, user.UID))
	require.Equal(t, uint64(5), fetched.BonusPoints)
	require.Equal(t, consts.ErrInvalidUser, s.UserAddBonus(99999, 5))

	require.NoError(t, s.UserDelete(user))
	require.Error(t, s.UserGetByUID(&fetched, user.UID))
}

func testTorrentStore(t *testing.T, s Store) {
	tor := NewTorrent(hashOf(0x11))
	require.NoError(t, s.TorrentAdd(tor))

	var fetched Torrent
	require.NoError(t, s.TorrentGet(&fetched, tor.InfoHash, false))
	require.Equal(t, tor.InfoHash, fetched.InfoHash)
	require.False(t, fetched.IsFreeleech)

	fetched.IsFreeleech = true
	require.NoError(t, s.TorrentUpdate(fetched))
	require.NoError(t, s.TorrentGet(&fetched, tor.InfoHash, false))
	require.True(t, fetched.IsFreeleech)

	require.NoError(t, s.TorrentAddSnatch(tor.InfoHash))
	require.NoError(t, s.TorrentAddSnatch(tor.InfoHash))
	require.NoError(t, s.TorrentGet(&fetched, tor.InfoHash, false))
	require.Equal(t, uint32(2), fetched.Snatches)

	// Soft delete hides the torrent unless deleted rows are requested
	require.NoError(t, s.TorrentDelete(tor.InfoHash, false))
	require.Error(t, s.TorrentGet(&fetched, tor.InfoHash, false))
	require.NoError(t, s.TorrentGet(&fetched, tor.InfoHash, true))

	require.NoError(t, s.TorrentDelete(tor.InfoHash, true))
	require.Error(t, s.TorrentGet(&fetched, tor.InfoHash, true))
}

func testProgressStore(t *testing.T, s Store) {
	const userID uint32 = 10
	ih := hashOf(0x22)

	// A pair that never announced yields a zeroed record, not an error
	var rec Progress
	require.NoError(t, s.ProgressGet(&rec, userID, ih))
	require.Equal(t, userID, rec.UserID)
	require.Equal(t, ih, rec.InfoHash)
	require.Equal(t, uint64(0), rec.UpTotal)

	// First announce seeds the ledger with the reported counters
	require.NoError(t, s.ProgressUpsert(ProgressUpdate{
		UserID: userID, InfoHash: ih,
		UpSession: 100, DnSession: 1000, Left: 500,
	}))
	require.NoError(t, s.ProgressGet(&rec, userID, ih))
	require.Equal(t, uint64(100), rec.UpSession)
	require.Equal(t, uint64(100), rec.UpTotal)
	require.Equal(t, uint64(1000), rec.DnSession)
	require.Equal(t, uint64(1000), rec.DnTotal)
	require.Equal(t, uint64(500), rec.Left)

	// Growth credits the delta
	require.NoError(t, s.ProgressUpsert(ProgressUpdate{
		UserID: userID, InfoHash: ih,
		UpSession: 250, DnSession: 1500, Left: 0,
	}))
	require.NoError(t, s.ProgressGet(&rec, userID, ih))
	require.Equal(t, uint64(250), rec.UpTotal)
	require.Equal(t, uint64(1500), rec.DnTotal)
	require.Equal(t, uint64(0), rec.Left)

	// Session regression credits nothing but resets the baseline
	require.NoError(t, s.ProgressUpsert(ProgressUpdate{
		UserID: userID, InfoHash: ih,
		UpSession: 50, DnSession: 0, Left: 0,
	}))
	require.NoError(t, s.ProgressGet(&rec, userID, ih))
	require.Equal(t, uint64(50), rec.UpSession)
	require.Equal(t, uint64(250), rec.UpTotal)
	require.Equal(t, uint64(0), rec.DnSession)
	require.Equal(t, uint64(1500), rec.DnTotal)

	// Frozen updates credit upload but leave the download side untouched
	ihFree := hashOf(0x33)
	require.NoError(t, s.ProgressUpsert(ProgressUpdate{
		UserID: userID, InfoHash: ihFree,
		UpSession: 10, DnSession: 9999, Left: 100, FreezeDown: true,
	}))
	require.NoError(t, s.ProgressGet(&rec, userID, ihFree))
	require.Equal(t, uint64(10), rec.UpTotal)
	require.Equal(t, uint64(0), rec.DnSession)
	require.Equal(t, uint64(0), rec.DnTotal)

	records, err := s.ProgressGetUser(userID)
	require.NoError(t, err)
	require.Equal(t, 2, len(records))
	require.Equal(t, uint64(260), records.TotalUploaded())
	require.Equal(t, uint64(1500), records.TotalDownloaded())
}

func testProgressConcurrency(t *testing.T, s Store) {
	const userID uint32 = 20
	ih := hashOf(0x44)

	// Re-delivering the same cumulative counter concurrently must credit it
	// exactly once
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.ProgressUpsert(ProgressUpdate{
				UserID: userID, InfoHash: ih,
				UpSession: 1000, DnSession: 0, Left: 100,
			})
		}()
	}
	wg.Wait()

	var rec Progress
	require.NoError(t, s.ProgressGet(&rec, userID, ih))
	require.Equal(t, uint64(1000), rec.UpTotal)
}

func testBonusConcurrency(t *testing.T, s Store) {
	user := User{UserID: 30, UID: "bonus-user", EmailVerified: true}
	require.NoError(t, s.UserAdd(user))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.UserAddBonus(user.UserID, 2)
		}()
	}
	wg.Wait()

	var fetched User
	require.NoError(t, s.UserGetByUID(&fetched, user.UID))
	require.Equal(t, uint64(100), fetched.BonusPoints)
}

// TestStore runs the full conformance suite against the store provided
func TestStore(t *testing.T, s Store) {
	t.Run("users", func(t *testing.T) { testUserStore(t, s) })
	t.Run("torrents", func(t *testing.T) { testTorrentStore(t, s) })
	t.Run("progress", func(t *testing.T) { testProgressStore(t, s) })
	t.Run("progress_concurrency", func(t *testing.T) { testProgressConcurrency(t, s) })
	t.Run("bonus_concurrency", func(t *testing.T) { testBonusConcurrency(t, s) })
}
