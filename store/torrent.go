package store

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/tdjsnelling/sqtracker-sub000/consts"
)

// InfoHash is a unique 20byte identifier for a torrent
type InfoHash [20]byte

// InfoHashFromString returns a binary infohash from the raw announce value
func InfoHashFromString(infoHash *InfoHash, s string) error {
	if len(s) != 20 {
		return consts.ErrInvalidInfoHash
	}
	copy(infoHash[:], s)
	return nil
}

// InfoHashFromHex returns a binary infohash from its 40 character hex form
func InfoHashFromHex(infoHash *InfoHash, h string) error {
	if len(h) != 40 {
		return consts.ErrInvalidInfoHash
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return err
	}
	copy(infoHash[:], b)
	return nil
}

// Value implements the database.Valuer interface
func (ih InfoHash) Value() (driver.Value, error) {
	return ih.Bytes(), nil
}

// Scan implements the sql.Scanner interface for conversion to our custom type
func (ih *InfoHash) Scan(v interface{}) error {
	vt, ok := v.([]byte)
	if !ok {
		return errors.New("failed to convert value to infohash")
	}
	cnt := copy(ih[:], vt)
	if cnt != 20 {
		return fmt.Errorf("invalid data length received: %d, expected 20", cnt)
	}
	return nil
}

// Bytes returns the raw bytes of the info_hash. This is primarily useful for
// inserting to SQL stores since they have trouble with the sized variant
func (ih InfoHash) Bytes() []byte {
	return ih[:]
}

// URLEncode returns the info hash in the raw form sent by announce requests
func (ih InfoHash) URLEncode() string {
	return string(ih.Bytes())
}

// String implements fmt.Stringer, returning the base16 encoded InfoHash,
// the canonical catalog key
func (ih InfoHash) String() string {
	return fmt.Sprintf("%x", ih[:])
}

// Torrent is a catalog entry for an uploaded torrent. Swarm state lives in
// the upstream tracker engine, the gateway only tracks policy relevant flags.
type Torrent struct {
	InfoHash InfoHash `db:"info_hash" json:"info_hash"`
	// IsFreeleech freezes download accounting for this torrent while set
	IsFreeleech bool `db:"is_freeleech" json:"is_freeleech"`
	IsDeleted   bool `db:"is_deleted" json:"is_deleted"`
	// Snatches counts completed downloads (event=completed announces)
	Snatches uint32 `db:"snatches" json:"snatches"`
}

// NewTorrent allocates and returns a new Torrent instance with the minimum
// values required to operate in place
func NewTorrent(ih InfoHash) Torrent {
	return Torrent{
		InfoHash:    ih,
		IsFreeleech: false,
		IsDeleted:   false,
	}
}

// Torrents is a basic map of infohash to torrents
type Torrents map[InfoHash]Torrent
