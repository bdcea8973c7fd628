package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProgressApply(t *testing.T) {
	var p Progress

	// First report credits everything
	require.Equal(t, uint64(100), p.Apply(Uploaded, 100, false))
	require.Equal(t, uint64(100), p.UpSession)
	require.Equal(t, uint64(100), p.UpTotal)

	// Monotonic growth credits the difference
	require.Equal(t, uint64(150), p.Apply(Uploaded, 250, false))
	require.Equal(t, uint64(250), p.UpTotal)

	// Equal report credits nothing
	require.Equal(t, uint64(0), p.Apply(Uploaded, 250, false))
	require.Equal(t, uint64(250), p.UpTotal)

	// Session regression clamps to zero and resets the session counter
	require.Equal(t, uint64(0), p.Apply(Uploaded, 40, false))
	require.Equal(t, uint64(40), p.UpSession)
	require.Equal(t, uint64(250), p.UpTotal)

	// Growth after a reset diffs against the new baseline
	require.Equal(t, uint64(60), p.Apply(Uploaded, 100, false))
	require.Equal(t, uint64(310), p.UpTotal)
}

func TestProgressApplyChunking(t *testing.T) {
	// One big report and many small reports of the same cumulative counter
	// must credit identical totals
	var a, b Progress
	a.Apply(Downloaded, 1000, false)
	for _, v := range []uint64{100, 250, 400, 750, 1000} {
		b.Apply(Downloaded, v, false)
	}
	require.Equal(t, a.DnTotal, b.DnTotal)
}

func TestProgressApplyFreeze(t *testing.T) {
	p := Progress{DnSession: 100, DnTotal: 500}
	require.Equal(t, uint64(0), p.Apply(Downloaded, 900, true))
	require.Equal(t, uint64(100), p.DnSession)
	require.Equal(t, uint64(500), p.DnTotal)
}

func TestProgressesRatio(t *testing.T) {
	// No download history yields the undefined sentinel
	require.Equal(t, RatioUndefined, Progresses{}.Ratio())
	require.Equal(t, RatioUndefined, Progresses{{UpTotal: 5000}}.Ratio())

	require.Equal(t, 0.5, Progresses{{UpTotal: 500, DnTotal: 1000}}.Ratio())
	require.Equal(t, 2.0, Progresses{
		{UpTotal: 1500, DnTotal: 1000},
		{UpTotal: 500, DnTotal: 0},
	}.Ratio())

	// Rounded to two decimal places
	require.Equal(t, 0.33, Progresses{{UpTotal: 1, DnTotal: 3}}.Ratio())
	require.Equal(t, 0.67, Progresses{{UpTotal: 2, DnTotal: 3}}.Ratio())
}

func TestProgressIsHitNRun(t *testing.T) {
	// Complete and under parity
	require.True(t, Progress{Left: 0, UpTotal: 10, DnTotal: 100}.IsHitNRun())
	// Still downloading is never a hit and run
	require.False(t, Progress{Left: 50, UpTotal: 0, DnTotal: 100}.IsHitNRun())
	// Seeded back to parity
	require.False(t, Progress{Left: 0, UpTotal: 100, DnTotal: 100}.IsHitNRun())
	require.False(t, Progress{Left: 0, UpTotal: 150, DnTotal: 100}.IsHitNRun())
	// Cross seeding with no recorded download
	require.False(t, Progress{Left: 0, UpTotal: 0, DnTotal: 0}.IsHitNRun())
}

func TestProgressesHitNRuns(t *testing.T) {
	records := Progresses{
		{Left: 0, UpTotal: 10, DnTotal: 100},
		{Left: 0, UpTotal: 200, DnTotal: 100},
		{Left: 50, UpTotal: 0, DnTotal: 100},
		{Left: 0, UpTotal: 0, DnTotal: 50},
	}
	require.Equal(t, 2, records.HitNRuns())
}

func TestGigaCrossings(t *testing.T) {
	require.Equal(t, uint64(0), GigaCrossings(100, 900_000_000))
	require.Equal(t, uint64(1), GigaCrossings(900_000_000, 1_100_000_000))
	require.Equal(t, uint64(0), GigaCrossings(1_100_000_000, 1_900_000_000))
	require.Equal(t, uint64(3), GigaCrossings(500_000_000, 3_500_000_000))
	// Exactly on the boundary counts once
	require.Equal(t, uint64(1), GigaCrossings(999_999_999, GigaByte))
	// Never negative
	require.Equal(t, uint64(0), GigaCrossings(GigaByte*2, GigaByte))
}
