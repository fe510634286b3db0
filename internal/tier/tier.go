// Package tier routes a run to a quality tier and applies the tier's
// per-satellite observation budget.
package tier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/signalsfoundry/uct-pipeline/model"
)

// Tier names a dataset quality level, T1 best to T4 worst.
type Tier string

const (
	T1 Tier = "T1"
	T2 Tier = "T2"
	T3 Tier = "T3"
	T4 Tier = "T4"
)

// Profile is the processing path selected by a tier.
type Profile struct {
	Tier        Tier
	Name        string
	Description string
	// CoverageMin and CoverageMax bound the targeted fraction of an orbit.
	CoverageMin, CoverageMax float64
	// GapTargetPeriods is the targeted gap between tracks in orbital periods.
	GapTargetPeriods float64
	MaxObsPerSat     int
	Downsample       bool
	Simulate         bool
}

var profiles = map[Tier]Profile{
	T1: {Tier: T1, Name: "High Fidelity", Description: "Real data only, minimal reduction",
		CoverageMin: 0.20, CoverageMax: 0.40, GapTargetPeriods: 1.5, MaxObsPerSat: 200},
	T2: {Tier: T2, Name: "Standard", Description: "Real plus filtered, moderate reduction",
		CoverageMin: 0.05, CoverageMax: 0.15, GapTargetPeriods: 2.0, MaxObsPerSat: 50, Downsample: true},
	T3: {Tier: T3, Name: "Degraded", Description: "Real, sparse and simulated, aggressive reduction",
		CoverageMin: 0.02, CoverageMax: 0.10, GapTargetPeriods: 3.0, MaxObsPerSat: 30, Downsample: true, Simulate: true},
	T4: {Tier: T4, Name: "Lowest Quality", Description: "Mostly simulated, extreme reduction",
		CoverageMin: 0.01, CoverageMax: 0.05, GapTargetPeriods: 4.0, MaxObsPerSat: 20, Downsample: true, Simulate: true},
}

// Lookup returns the profile for a tier name such as "t3" or "T3".
func Lookup(name string) (Profile, error) {
	p, ok := profiles[Tier(strings.ToUpper(strings.TrimSpace(name)))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown quality tier %q (want T1, T2, T3 or T4)", name)
	}
	return p, nil
}

// Apply returns the tier-limited view of obs, or nil when the tier does not
// downsample. obs is not modified.
func (p Profile) Apply(obs []model.Observation) []model.Observation {
	if !p.Downsample {
		return nil
	}
	return Downsample(obs, p.MaxObsPerSat)
}

// Downsample keeps at most max observations per satellite, chosen at evenly
// spaced positions of the satellite's time-ordered series so the first and
// last observations are always kept. Satellites within budget are kept whole.
// The result is ordered by satellite then time.
func Downsample(obs []model.Observation, max int) []model.Observation {
	bySat := make(map[int][]model.Observation)
	for _, o := range obs {
		bySat[o.SatNo] = append(bySat[o.SatNo], o)
	}
	sats := make([]int, 0, len(bySat))
	for s := range bySat {
		sats = append(sats, s)
	}
	sort.Ints(sats)

	var out []model.Observation
	for _, s := range sats {
		series := bySat[s]
		sort.SliceStable(series, func(a, b int) bool { return series[a].Time.Before(series[b].Time) })
		if max <= 0 || len(series) <= max {
			out = append(out, series...)
			continue
		}
		for _, idx := range Linspace(len(series), max) {
			out = append(out, series[idx])
		}
	}
	return out
}

// Linspace returns k indices evenly spaced over [0, n-1], truncated to
// integers. For n > k the indices are strictly increasing.
func Linspace(n, k int) []int {
	if k <= 0 || n <= 0 {
		return nil
	}
	if k == 1 {
		return []int{0}
	}
	step := float64(n-1) / float64(k-1)
	idx := make([]int, k)
	for i := 0; i < k-1; i++ {
		idx[i] = int(float64(i) * step)
	}
	idx[k-1] = n - 1
	return idx
}
