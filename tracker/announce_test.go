package tracker

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/chihaya/bencode"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/tdjsnelling/sqtracker-sub000/store"
	"github.com/tdjsnelling/sqtracker-sub000/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// upstreamStub is a fake tracker engine that records the last request it
// received and replies with a fixed announce response
type upstreamStub struct {
	lastURL *url.URL
	status  int
}

func (u *upstreamStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u.lastURL = r.URL
		if u.status != 0 {
			w.WriteHeader(u.status)
			return
		}
		var buf bytes.Buffer
		_ = bencode.NewEncoder(&buf).Encode(bencode.Dict{
			"complete":     10,
			"incomplete":   3,
			"interval":     1800,
			"min interval": 900,
			"peers":        "",
		})
		_, _ = w.Write(buf.Bytes())
	}
}

type testEnv struct {
	tracker  *Tracker
	store    store.Store
	router   *gin.Engine
	upstream *upstreamStub
	server   *httptest.Server
}

func newTestEnv(t *testing.T, mutate func(*Opts)) *testEnv {
	stub := &upstreamStub{}
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	opts := NewDefaultOpts()
	opts.Store = memory.NewDriver()
	opts.UpstreamURL = server.URL
	if mutate != nil {
		mutate(opts)
	}
	tkr, err := New(context.Background(), opts)
	require.NoError(t, err)
	return &testEnv{
		tracker:  tkr,
		store:    opts.Store,
		router:   NewBitTorrentHandler(tkr),
		upstream: stub,
		server:   server,
	}
}

func (e *testEnv) announce(uid string, ih store.InfoHash, up, dn, left uint64, event string) *httptest.ResponseRecorder {
	u := fmt.Sprintf("/sq/%s/announce?info_hash=%s&peer_id=-QB4500-123456789012&port=51234&uploaded=%d&downloaded=%d&left=%d",
		uid, url.QueryEscape(ih.URLEncode()), up, dn, left)
	if event != "" {
		u += "&event=" + event
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, u, nil)
	req.RemoteAddr = "10.1.2.3:51234"
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) bencode.Dict {
	decoded, err := bencode.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode()
	require.NoError(t, err)
	dict, ok := decoded.(bencode.Dict)
	require.True(t, ok)
	return dict
}

func seedUser(t *testing.T, s store.Store, user store.User) {
	require.NoError(t, s.UserAdd(user))
}

func seedTorrent(t *testing.T, s store.Store, tor store.Torrent) {
	require.NoError(t, s.TorrentAdd(tor))
}

func testHash(b byte) store.InfoHash {
	var ih store.InfoHash
	for i := range ih {
		ih[i] = b
	}
	return ih
}

func TestAnnounceUnknownUser(t *testing.T) {
	env := newTestEnv(t, nil)
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))

	w := env.announce("nobody", testHash(0x01), 0, 0, 100, "started")
	require.Equal(t, http.StatusOK, w.Code)
	dict := decodeBody(t, w)
	require.Equal(t, "not registered", dict["failure reason"])

	// Denied announces must never touch the ledger
	records, err := env.store.ProgressGetUser(1)
	require.NoError(t, err)
	require.Equal(t, 0, len(records))
}

func TestAnnounceBannedUser(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true, IsBanned: true})
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))

	w := env.announce("aabbccdd", testHash(0x01), 0, 0, 100, "started")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "account is banned", decodeBody(t, w)["failure reason"])
}

func TestAnnounceUnverifiedEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: false})
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))

	w := env.announce("aabbccdd", testHash(0x01), 0, 0, 100, "started")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "email must be verified", decodeBody(t, w)["failure reason"])
}

func TestAnnounceUnknownTorrent(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true})

	w := env.announce("aabbccdd", testHash(0x01), 0, 0, 100, "started")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "cannot announce a torrent that has not been uploaded",
		decodeBody(t, w)["failure reason"])
}

func TestAnnounceMalformed(t *testing.T) {
	env := newTestEnv(t, nil)

	// Missing info_hash
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/sq/aabbccdd/announce?uploaded=0&downloaded=0&left=0", nil)
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "malformed announce request", decodeBody(t, w)["failure reason"])
}

func TestAnnounceIntervalRewrite(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true})
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))

	w := env.announce("aabbccdd", testHash(0x01), 100, 1000, 500, "started")
	require.Equal(t, http.StatusOK, w.Code)

	// The upstream replied 1800/900; both keys must be forced down
	dict := decodeBody(t, w)
	require.Equal(t, int64(30), dict["interval"])
	require.Equal(t, int64(30), dict["min interval"])
	// Untouched keys pass through
	require.Equal(t, int64(10), dict["complete"])

	// The uid must not leak upstream and the peer address is set server side
	require.Equal(t, "/announce", env.upstream.lastURL.Path)
	require.Equal(t, "10.1.2.3", env.upstream.lastURL.Query().Get("ip"))
}

func TestAnnounceLedgerAccounting(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true})
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))

	env.announce("aabbccdd", testHash(0x01), 100, 1000, 500, "started")
	env.announce("aabbccdd", testHash(0x01), 250, 1500, 0, "")

	var rec store.Progress
	require.NoError(t, env.store.ProgressGet(&rec, 1, testHash(0x01)))
	require.Equal(t, uint64(250), rec.UpTotal)
	require.Equal(t, uint64(1500), rec.DnTotal)
	require.Equal(t, uint64(0), rec.Left)
}

func TestAnnounceStartedResetsDownloadBaseline(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true})
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))

	env.announce("aabbccdd", testHash(0x01), 0, 1000, 500, "")

	// A restarting client may replay its old cumulative downloaded value on
	// the started announce; it must not be credited a second time
	env.announce("aabbccdd", testHash(0x01), 0, 1000, 500, "started")

	var rec store.Progress
	require.NoError(t, env.store.ProgressGet(&rec, 1, testHash(0x01)))
	require.Equal(t, uint64(1000), rec.DnTotal)
	require.Equal(t, uint64(0), rec.DnSession)
}

func TestAnnounceRatioDenied(t *testing.T) {
	env := newTestEnv(t, func(o *Opts) { o.MinRatio = 0.75 })
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true})
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))

	// History puts the user at ratio 0.10
	require.NoError(t, env.store.ProgressUpsert(store.ProgressUpdate{
		UserID: 1, InfoHash: testHash(0x02), UpSession: 100, DnSession: 1000, Left: 0,
	}))

	w := env.announce("aabbccdd", testHash(0x01), 0, 0, 500, "started")
	require.Equal(t, http.StatusOK, w.Code)
	dict := decodeBody(t, w)
	require.Contains(t, dict["failure reason"], "0.75")
	require.Len(t, dict["peers"], 0)
	require.Len(t, dict["peers6"], 0)

	// The denied announce credits nothing
	var rec store.Progress
	require.NoError(t, env.store.ProgressGet(&rec, 1, testHash(0x01)))
	require.Equal(t, uint64(0), rec.DnTotal)

	// Seeding is still welcome at any ratio
	w = env.announce("aabbccdd", testHash(0x01), 0, 0, 0, "")
	require.Equal(t, int64(30), decodeBody(t, w)["interval"])
}

func TestAnnounceHitNRunDenied(t *testing.T) {
	env := newTestEnv(t, func(o *Opts) { o.MaxHitNRuns = 1 })
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true})
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))

	// One completed, never seeded torrent on record
	require.NoError(t, env.store.ProgressUpsert(store.ProgressUpdate{
		UserID: 1, InfoHash: testHash(0x02), UpSession: 10, DnSession: 1000, Left: 0,
	}))

	w := env.announce("aabbccdd", testHash(0x01), 0, 0, 500, "started")
	dict := decodeBody(t, w)
	require.Contains(t, dict["failure reason"], "hit and run")

	// Seeding passes
	w = env.announce("aabbccdd", testHash(0x01), 0, 0, 0, "")
	require.Equal(t, int64(30), decodeBody(t, w)["interval"])
}

func TestAnnounceFreeleech(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true})
	tor := store.NewTorrent(testHash(0x01))
	tor.IsFreeleech = true
	seedTorrent(t, env.store, tor)

	env.announce("aabbccdd", testHash(0x01), 100, 5000, 500, "started")

	var rec store.Progress
	require.NoError(t, env.store.ProgressGet(&rec, 1, testHash(0x01)))
	require.Equal(t, uint64(100), rec.UpTotal)
	require.Equal(t, uint64(0), rec.DnSession)
	require.Equal(t, uint64(0), rec.DnTotal)
}

func TestAnnounceSiteWideFreeleech(t *testing.T) {
	env := newTestEnv(t, func(o *Opts) { o.SiteWideFreeleech = true })
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true})
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))

	env.announce("aabbccdd", testHash(0x01), 100, 5000, 500, "started")

	var rec store.Progress
	require.NoError(t, env.store.ProgressGet(&rec, 1, testHash(0x01)))
	require.Equal(t, uint64(0), rec.DnTotal)
}

func TestAnnounceBonusPoints(t *testing.T) {
	env := newTestEnv(t, func(o *Opts) { o.BonusPerGB = 2 })
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true})
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))

	// 900MB of upload crosses nothing
	env.announce("aabbccdd", testHash(0x01), 900_000_000, 0, 0, "")
	var user store.User
	require.NoError(t, env.store.UserGetByUID(&user, "aabbccdd"))
	require.Equal(t, uint64(0), user.BonusPoints)

	// 1.1GB lifetime crosses the first boundary
	env.announce("aabbccdd", testHash(0x01), 1_100_000_000, 0, 0, "")
	require.NoError(t, env.store.UserGetByUID(&user, "aabbccdd"))
	require.Equal(t, uint64(2), user.BonusPoints)

	// Two boundaries in one announce award double
	env.announce("aabbccdd", testHash(0x01), 3_100_000_000, 0, 0, "")
	require.NoError(t, env.store.UserGetByUID(&user, "aabbccdd"))
	require.Equal(t, uint64(6), user.BonusPoints)
}

func TestAnnounceCompletedSnatch(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true})
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))

	env.announce("aabbccdd", testHash(0x01), 0, 1000, 0, "completed")

	var tor store.Torrent
	require.NoError(t, env.store.TorrentGet(&tor, testHash(0x01), false))
	require.Equal(t, uint32(1), tor.Snatches)
}

func TestAnnounceUpstreamDown(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true})
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))
	env.server.Close()

	w := env.announce("aabbccdd", testHash(0x01), 100, 1000, 500, "started")
	require.Equal(t, http.StatusBadGateway, w.Code)

	// Accounting happened before the proxy attempt
	var rec store.Progress
	require.NoError(t, env.store.ProgressGet(&rec, 1, testHash(0x01)))
	require.Equal(t, uint64(100), rec.UpTotal)
}

func TestAnnounceUpstreamErrorStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.upstream.status = http.StatusInternalServerError
	seedUser(t, env.store, store.User{UserID: 1, UID: "aabbccdd", EmailVerified: true})
	seedTorrent(t, env.store, store.NewTorrent(testHash(0x01)))

	w := env.announce("aabbccdd", testHash(0x01), 0, 0, 100, "started")
	require.Equal(t, http.StatusBadGateway, w.Code)
}
