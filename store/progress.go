package store

import (
	"github.com/tdjsnelling/sqtracker-sub000/util"
)

const (
	// GigaByte is the boundary size for bonus point awards. Decimal
	// gigabytes, matching the public site copy.
	GigaByte uint64 = 1_000_000_000
	// RatioUndefined is the sentinel ratio for users with no download
	// history. An undefined ratio always passes the ratio gate.
	RatioUndefined float64 = -1
)

// Direction selects which side of a progress record a counter update applies to
type Direction int

const (
	// Uploaded selects the upload counters
	Uploaded Direction = iota
	// Downloaded selects the download counters
	Downloaded
)

// Progress is the durable ledger record for one (user, torrent) pair.
//
// Session counters mirror the cumulative values self-reported by the peer
// client since it last restarted this torrent. Totals are lifetime bytes and
// never decrease. Records are never deleted, historical ratio must survive
// torrent deletion and reseeds.
type Progress struct {
	UserID    uint32   `db:"user_id" json:"user_id"`
	InfoHash  InfoHash `db:"info_hash" json:"info_hash"`
	UpSession uint64   `db:"up_session" json:"up_session"`
	UpTotal   uint64   `db:"up_total" json:"up_total"`
	DnSession uint64   `db:"dn_session" json:"dn_session"`
	DnTotal   uint64   `db:"dn_total" json:"dn_total"`
	// Left is the bytes remaining as last reported, 0 once complete
	Left uint64 `db:"remaining" json:"left"`
}

// Apply advances one side of the record from a client reported session
// counter and returns the bytes credited to the lifetime total. A reported
// value below the stored session counter means the client restarted the
// session (or sent a stale value) and credits nothing. When freeze is set
// the side is retained entirely unchanged.
func (p *Progress) Apply(dir Direction, session uint64, freeze bool) uint64 {
	if freeze {
		return 0
	}
	var delta uint64
	switch dir {
	case Uploaded:
		if session > p.UpSession {
			delta = session - p.UpSession
		}
		p.UpSession = session
		p.UpTotal += delta
	case Downloaded:
		if session > p.DnSession {
			delta = session - p.DnSession
		}
		p.DnSession = session
		p.DnTotal += delta
	}
	return delta
}

// IsHitNRun is true when the download completed but was never seeded back
// to parity
func (p Progress) IsHitNRun() bool {
	return p.Left == 0 && p.UpTotal < p.DnTotal
}

// ProgressUpdate carries one announce worth of counter updates for the
// ledger upsert. Both sides travel together so drivers can apply them in a
// single store operation.
type ProgressUpdate struct {
	UserID    uint32
	InfoHash  InfoHash
	UpSession uint64
	DnSession uint64
	Left      uint64
	// FreezeDown retains the stored download counters unchanged, used for
	// freeleech torrents and site wide freeleech
	FreezeDown bool
}

// Progresses is every ledger record belonging to one user
type Progresses []Progress

// TotalUploaded sums lifetime uploaded bytes across all records
func (ps Progresses) TotalUploaded() uint64 {
	var total uint64
	for _, p := range ps {
		total += p.UpTotal
	}
	return total
}

// TotalDownloaded sums lifetime downloaded bytes across all records
func (ps Progresses) TotalDownloaded() uint64 {
	var total uint64
	for _, p := range ps {
		total += p.DnTotal
	}
	return total
}

// Ratio returns the users share ratio rounded to 2 decimal places, or
// RatioUndefined when there is no download history to rate against
func (ps Progresses) Ratio() float64 {
	dn := ps.TotalDownloaded()
	if dn == 0 {
		return RatioUndefined
	}
	return util.RoundPlus(float64(ps.TotalUploaded())/float64(dn), 2)
}

// HitNRuns tallies records that completed without seeding back to parity
func (ps Progresses) HitNRuns() int {
	count := 0
	for _, p := range ps {
		if p.IsHitNRun() {
			count++
		}
	}
	return count
}

// GigaCrossings returns how many whole gigabyte boundaries lie between two
// lifetime byte totals. Fractional progress toward the next boundary
// crosses nothing.
func GigaCrossings(before, after uint64) uint64 {
	if after < before {
		return 0
	}
	return after/GigaByte - before/GigaByte
}
