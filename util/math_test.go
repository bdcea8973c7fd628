package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUMax64(t *testing.T) {
	require.Equal(t, uint64(10), UMax64(10, 5))
	require.Equal(t, uint64(10), UMax64(5, 10))
}

func TestUMin64(t *testing.T) {
	require.Equal(t, uint64(5), UMin64(10, 5))
	require.Equal(t, uint64(5), UMin64(5, 10))
}

func TestRoundPlus(t *testing.T) {
	require.Equal(t, 0.33, RoundPlus(1.0/3.0, 2))
	require.Equal(t, 0.67, RoundPlus(2.0/3.0, 2))
	require.Equal(t, 1.0, RoundPlus(0.999, 2))
	require.Equal(t, 0.0, RoundPlus(0.001, 2))
}

func TestBytes(t *testing.T) {
	require.Equal(t, "1.0KB", Bytes(1000))
	require.Equal(t, "1.0GB", Bytes(1_000_000_000))
	require.Equal(t, "512B", Bytes(512))
}
