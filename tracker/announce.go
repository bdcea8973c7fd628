package tracker

import (
	"fmt"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tdjsnelling/sqtracker-sub000/store"
	"github.com/tdjsnelling/sqtracker-sub000/util"
)

// Announce event types
const (
	eventNone = iota
	eventStarted
	eventStopped
	eventCompleted
)

// announceRequest represents an announce received from the bittorrent client
type announceRequest struct {
	UID        string
	InfoHash   store.InfoHash
	Uploaded   uint64
	Downloaded uint64
	Left       uint64
	Event      int
	// raw holds the parsed query so the proxy can rebuild the upstream
	// request without re-parsing
	raw *query
}

// newAnnounce parses the query string into an announceRequest struct
func newAnnounce(c *gin.Context) (*announceRequest, error) {
	q, err := queryStringParser(c.Request.URL.RawQuery)
	if err != nil {
		return nil, err
	}

	ihStr, exists := q.Params["info_hash"]
	if !exists {
		return nil, fmt.Errorf("info_hash not supplied")
	}
	var infoHash store.InfoHash
	if err := store.InfoHashFromString(&infoHash, ihStr); err != nil {
		return nil, err
	}

	event := eventNone
	switch q.Params["event"] {
	case "started":
		event = eventStarted
	case "stopped":
		event = eventStopped
	case "completed":
		event = eventCompleted
	}

	uploaded, err := q.Uint64("uploaded")
	if err != nil {
		uploaded = 0
	}
	downloaded, err := q.Uint64("downloaded")
	if err != nil {
		downloaded = 0
	}
	left, err := q.Uint64("left")
	if err != nil {
		return nil, fmt.Errorf("no left value")
	}

	return &announceRequest{
		UID:        c.Param("uid"),
		InfoHash:   infoHash,
		Uploaded:   uploaded,
		Downloaded: downloaded,
		Left:       left,
		Event:      event,
		raw:        q,
	}, nil
}

// announce is the handler for the /sq/:uid/announce endpoint. It runs the
// full accounting pass and either short-circuits with a bencoded failure or
// forwards the request to the upstream tracker engine.
func (h *BitTorrentHandler) announce(c *gin.Context) {
	ann, err := newAnnounce(c)
	if err != nil {
		log.Debugf("Failed to parse announce from %s: %s", c.Request.RemoteAddr, err)
		oops(c, msgMalformed)
		return
	}

	log.WithFields(log.Fields{
		"uid":   ann.UID,
		"ih":    ann.InfoHash.String()[0:6],
		"up":    util.Bytes(ann.Uploaded),
		"dn":    util.Bytes(ann.Downloaded),
		"left":  util.Bytes(ann.Left),
		"event": ann.Event,
	}).Debug("Announce event")

	var user store.User
	if err := h.tracker.UserGetByUID(&user, ann.UID); err != nil {
		oops(c, msgNotRegistered)
		return
	}
	if user.IsBanned {
		oops(c, msgBannedUser)
		return
	}
	if !user.EmailVerified {
		oops(c, msgUnverifiedEmail)
		return
	}

	var torrent store.Torrent
	if err := h.tracker.store.TorrentGet(&torrent, ann.InfoHash, false); err != nil {
		oops(c, msgUnknownTorrent)
		return
	}

	records, err := h.tracker.store.ProgressGetUser(user.UserID)
	if err != nil {
		log.Errorf("Failed to fetch progress records for user %d: %s", user.UserID, err)
		fiveHundred(c, msgInternalError)
		return
	}

	if reason, ok := h.tracker.checkPolicy(records, ann.Left); !ok {
		denied(c, reason)
		return
	}

	// A fresh session: the client restarts its cumulative counters, so the
	// reported download value must not be diffed against the old session
	dnReported := ann.Downloaded
	if ann.Event == eventStarted {
		dnReported = 0
	}
	freeze := torrent.IsFreeleech || h.tracker.siteWideFreeleech

	h.tracker.awardBonus(user.UserID, records, ann)

	if err := h.tracker.store.ProgressUpsert(store.ProgressUpdate{
		UserID:     user.UserID,
		InfoHash:   ann.InfoHash,
		UpSession:  ann.Uploaded,
		DnSession:  dnReported,
		Left:       ann.Left,
		FreezeDown: freeze,
	}); err != nil {
		log.Errorf("Failed to upsert progress record for user %d: %s", user.UserID, err)
		fiveHundred(c, msgInternalError)
		return
	}

	if ann.Event == eventCompleted {
		if err := h.tracker.store.TorrentAddSnatch(ann.InfoHash); err != nil {
			log.Errorf("Failed to increment snatch count for %s: %s", ann.InfoHash, err)
		}
	}

	h.tracker.forwardAnnounce(c, ann)
}

// checkPolicy evaluates the ratio and hit-and-run gates against a users
// ledger records. Both gates only apply to leech requests (left > 0), pure
// seeding is always welcome. Returns the denial reason and false when the
// request must be turned away.
func (t *Tracker) checkPolicy(records store.Progresses, left uint64) (string, bool) {
	if left == 0 {
		return "", true
	}
	ratio := records.Ratio()
	if t.minRatio >= 0 && ratio != store.RatioUndefined && ratio < t.minRatio {
		return fmt.Sprintf("ratio is below the minimum %.2f, you must seed more before downloading", t.minRatio), false
	}
	if t.maxHitNRuns >= 0 {
		if hnr := records.HitNRuns(); hnr >= t.maxHitNRuns {
			return fmt.Sprintf("you have reached the maximum of %d hit and runs, you must seed your existing downloads", t.maxHitNRuns), false
		}
	}
	return "", true
}

// awardBonus credits bonus points for each whole gigabyte boundary of
// lifetime upload this announce crosses. The aggregate read may be slightly
// stale under concurrent announces; the increment itself is atomic in the
// store, so the worst case is a boundary credited against a stale baseline,
// never a lost increment.
func (t *Tracker) awardBonus(userID uint32, records store.Progresses, ann *announceRequest) {
	if t.bonusPerGB == 0 {
		return
	}
	prev := store.Progress{UserID: userID, InfoHash: ann.InfoHash}
	for _, rec := range records {
		if rec.InfoHash == ann.InfoHash {
			prev = rec
			break
		}
	}
	before := records.TotalUploaded()
	delta := prev.Apply(store.Uploaded, ann.Uploaded, false)
	crossings := store.GigaCrossings(before, before+delta)
	if crossings == 0 {
		return
	}
	points := crossings * t.bonusPerGB
	if err := t.store.UserAddBonus(userID, points); err != nil {
		log.Errorf("Failed to award %d bonus points to user %d: %s", points, userID, err)
		return
	}
	t.cache.Invalidate(ann.UID)
	log.WithFields(log.Fields{
		"user_id": userID,
		"points":  points,
	}).Debug("Awarded bonus points")
}
