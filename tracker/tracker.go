// Package tracker implements the announce accounting gateway. Every announce
// a peer client makes is authenticated against a registered user, charged
// against the progress ledger and checked against site policy before being
// proxied to the upstream tracker engine.
package tracker

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/tdjsnelling/sqtracker-sub000/store"
)

// Opts is the configuration and policy for the gateway, built once at boot
// and treated as immutable afterwards
type Opts struct {
	// Store is the backing store shared by users, torrents and the ledger
	Store store.Store
	// Cache fronts the per-announce user lookup
	Cache store.UserCache
	// MinRatio is the share ratio floor, -1 disables the gate
	MinRatio float64
	// MaxHitNRuns is the hit-and-run ceiling, -1 disables the gate
	MaxHitNRuns int
	// BonusPerGB is the bonus points awarded per whole GB of upload
	BonusPerGB uint64
	// SiteWideFreeleech freezes download accounting for every torrent
	SiteWideFreeleech bool
	// UpstreamURL is the base URL of the upstream tracker engine
	UpstreamURL string
	// AnnInterval is the interval in seconds forced onto announce responses
	AnnInterval int
}

// NewDefaultOpts returns a default set of gateway options with every policy
// gate disabled
func NewDefaultOpts() *Opts {
	return &Opts{
		MinRatio:          -1,
		MaxHitNRuns:       -1,
		BonusPerGB:        1,
		SiteWideFreeleech: false,
		AnnInterval:       30,
	}
}

// Tracker is the announce accounting gateway instance
type Tracker struct {
	ctx      context.Context
	store    store.Store
	cache    store.UserCache
	upstream *url.URL
	client   *http.Client

	minRatio          float64
	maxHitNRuns       int
	bonusPerGB        uint64
	siteWideFreeleech bool
	annInterval       int
}

// New configures and returns a gateway instance from the options provided
func New(ctx context.Context, opts *Opts) (*Tracker, error) {
	if opts.Store == nil {
		return nil, errors.New("Store cannot be nil")
	}
	if opts.UpstreamURL == "" {
		return nil, errors.New("Upstream tracker URL must be set")
	}
	upstream, err := url.Parse(opts.UpstreamURL)
	if err != nil {
		return nil, errors.Wrap(err, "Invalid upstream tracker URL")
	}
	cache := opts.Cache
	if cache == nil {
		cache = store.NullUserCache{}
	}
	annInterval := opts.AnnInterval
	if annInterval <= 0 {
		annInterval = 30
	}
	return &Tracker{
		ctx:               ctx,
		store:             opts.Store,
		cache:             cache,
		upstream:          upstream,
		client:            newClient(),
		minRatio:          opts.MinRatio,
		maxHitNRuns:       opts.MaxHitNRuns,
		bonusPerGB:        opts.BonusPerGB,
		siteWideFreeleech: opts.SiteWideFreeleech,
		annInterval:       annInterval,
	}, nil
}

// UserGetByUID resolves a user via the announce uid, consulting the time
// bounded cache before the backing store
func (t *Tracker) UserGetByUID(user *store.User, uid string) error {
	if t.cache.Get(user, uid) {
		return nil
	}
	if err := t.store.UserGetByUID(user, uid); err != nil {
		return err
	}
	t.cache.Set(*user)
	return nil
}
