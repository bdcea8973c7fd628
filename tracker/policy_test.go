package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdjsnelling/sqtracker-sub000/store"
)

func TestCheckPolicyRatioGate(t *testing.T) {
	tkr := &Tracker{minRatio: 0.75, maxHitNRuns: -1}

	// Under the floor, leeching denied
	records := store.Progresses{{UpTotal: 100, DnTotal: 1000}}
	reason, ok := tkr.checkPolicy(records, 500)
	require.False(t, ok)
	require.Contains(t, reason, "0.75")

	// Same user may still seed
	_, ok = tkr.checkPolicy(records, 0)
	require.True(t, ok)

	// Exactly at the floor passes, the comparison is strict
	records = store.Progresses{{UpTotal: 750, DnTotal: 1000}}
	_, ok = tkr.checkPolicy(records, 500)
	require.True(t, ok)

	// Undefined ratio always passes
	_, ok = tkr.checkPolicy(store.Progresses{}, 500)
	require.True(t, ok)
	_, ok = tkr.checkPolicy(store.Progresses{{UpTotal: 5}}, 500)
	require.True(t, ok)

	// Disabled gate never denies
	tkr = &Tracker{minRatio: -1, maxHitNRuns: -1}
	_, ok = tkr.checkPolicy(store.Progresses{{UpTotal: 0, DnTotal: 1000}}, 500)
	require.True(t, ok)
}

func TestCheckPolicyHitNRunGate(t *testing.T) {
	tkr := &Tracker{minRatio: -1, maxHitNRuns: 2}

	hnr := store.Progress{Left: 0, UpTotal: 10, DnTotal: 100}

	// Below the ceiling passes
	_, ok := tkr.checkPolicy(store.Progresses{hnr}, 500)
	require.True(t, ok)

	// At the ceiling leeching is denied
	records := store.Progresses{hnr, hnr}
	reason, ok := tkr.checkPolicy(records, 500)
	require.False(t, ok)
	require.Contains(t, reason, "2")

	// Seeding is still allowed
	_, ok = tkr.checkPolicy(records, 0)
	require.True(t, ok)

	// Disabled gate never denies
	tkr = &Tracker{minRatio: -1, maxHitNRuns: -1}
	_, ok = tkr.checkPolicy(store.Progresses{hnr, hnr, hnr}, 500)
	require.True(t, ok)
}
