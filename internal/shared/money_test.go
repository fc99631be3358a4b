package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundHalfUp(t *testing.T) {
	require.InDelta(t, 10.13, Round(10.125, 2), 0.0001)
	require.InDelta(t, 10.12, Round(10.124, 2), 0.0001)
	require.InDelta(t, -10.13, Round(-10.125, 2), 0.0001)
	require.InDelta(t, 100, Round(99.999, 2), 0.0001)
	require.InDelta(t, 0, Round(0.004, 2), 0.0001)
}

func TestRoundAvoidsFloatDrift(t *testing.T) {
	// 0.1+0.2 is not representable exactly; decimal rounding must still
	// land on 0.3.
	require.InDelta(t, 0.3, Round(0.1+0.2, 2), 0.0000001)
	require.InDelta(t, 2.68, Round(1.005+1.675, 2), 0.0001)
}

func TestBalancedTolerance(t *testing.T) {
	require.True(t, Balanced(100, 100))
	require.True(t, Balanced(100.004, 100))
	require.True(t, Balanced(100, 100.005))
	require.False(t, Balanced(100.01, 100))
	require.False(t, Balanced(100, 100.006))
	require.True(t, Balanced(0, 0))
}
