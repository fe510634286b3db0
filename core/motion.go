package core

import (
	"sort"
	"time"

	"github.com/signalsfoundry/uct-pipeline/model"
)

// AngularRates are apparent angular velocities in degrees per second.
type AngularRates struct {
	RA        float64 `yaml:"ra"`
	Dec       float64 `yaml:"dec"`
	Elevation float64 `yaml:"elevation"`
}

// NominalLEORates are typical low-orbit apparent rates, used when a satellite
// has no usable pair of closely spaced observations.
var NominalLEORates = AngularRates{RA: 0.055, Dec: -0.020, Elevation: -0.008}

// ExtractRates takes the median of per-pair angular rates over consecutive
// observations (sorted by time) spaced by (0, maxGap]. It returns false when
// no pair qualifies.
func ExtractRates(obs []model.Observation, maxGap time.Duration) (AngularRates, bool) {
	sorted := append([]model.Observation(nil), obs...)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Time.Before(sorted[b].Time) })

	var ra, dec, el []float64
	for i := 1; i < len(sorted); i++ {
		dt := sorted[i].Time.Sub(sorted[i-1].Time)
		if dt <= 0 || dt > maxGap {
			continue
		}
		s := dt.Seconds()
		ra = append(ra, (sorted[i].RA-sorted[i-1].RA)/s)
		dec = append(dec, (sorted[i].Declination-sorted[i-1].Declination)/s)
		el = append(el, (sorted[i].Elevation-sorted[i-1].Elevation)/s)
	}
	if len(ra) == 0 {
		return AngularRates{}, false
	}
	return AngularRates{RA: Median(ra), Dec: Median(dec), Elevation: Median(el)}, true
}

// LinearMotion extrapolates look angles from an anchor state at constant rates.
type LinearMotion struct {
	RA, Dec, Azimuth, Elevation float64
	Rates                       AngularRates
	// AzimuthFactor scales the RA rate to approximate the azimuth rate.
	AzimuthFactor float64
}

// LookAngles is an extrapolated sky position in degrees.
type LookAngles struct {
	RA, Dec, Azimuth, Elevation float64
}

// At returns the look angles dt after the anchor. RA and azimuth are wrapped
// into [0, 360).
func (m LinearMotion) At(dt time.Duration) LookAngles {
	s := dt.Seconds()
	return LookAngles{
		RA:        wrap360(m.RA + m.Rates.RA*s),
		Dec:       m.Dec + m.Rates.Dec*s,
		Azimuth:   wrap360(m.Azimuth + m.Rates.RA*s*m.AzimuthFactor),
		Elevation: m.Elevation + m.Rates.Elevation*s,
	}
}

// Median returns the median of values, or 0 for an empty slice. The input
// is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
