package replacement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookaheadPrefersSteeperCurve(t *testing.T) {
	// Synthetic miss curves from spec §8: M_0 = 100 - 10a (steep),
	// M_1 = 100 - a (shallow), 10 buckets total, 11 samples each
	// (a=0..10).
	curve0 := make(MissCurve, 11)
	curve1 := make(MissCurve, 11)
	for a := 0; a <= 10; a++ {
		curve0[a] = 100 - 10*float64(a)
		curve1[a] = 100 - float64(a)
	}

	lp := NewLookaheadPartitioner(0.02)
	allocs := lp.Allocate([]MissCurve{curve0, curve1}, 10)

	require.Equal(t, 10, allocs[0]+allocs[1])
	require.Greater(t, allocs[0], allocs[1], "partition 0 must win most buckets given its steeper curve")

	uniform := []int{5, 5}
	require.GreaterOrEqual(t, TotalUtility([]MissCurve{curve0, curve1}, allocs),
		TotalUtility([]MissCurve{curve0, curve1}, uniform))
}

func TestLookaheadHysteresis(t *testing.T) {
	curve0 := MissCurve{100, 90, 85, 84, 83.9}
	curve1 := MissCurve{100, 95, 92, 90, 89}
	lp := NewLookaheadPartitioner(0.02)

	prev := lp.Allocate([]MissCurve{curve0, curve1}, 2)
	same := lp.AllocateIfImproved([]MissCurve{curve0, curve1}, 2, prev)
	require.Equal(t, prev, same, "re-running with an unchanged curve set must not churn the allocation")
}
