package core

import (
	"math"
	"time"
)

// EarthRadiusKm is the mean Earth radius used for all simple
// geometry calculations (kilometres).
const EarthRadiusKm = 6371.0

// DefaultAltitudeKm is the assumed circular-orbit altitude for slant-range
// estimation in the low-orbit regime.
const DefaultAltitudeKm = 500.0

// Bounds are the physical plausibility limits applied to observations and
// derived kinematics.
type Bounds struct {
	MinElevationDeg float64
	MaxElevationDeg float64
	MinRangeKm      float64
	MaxRangeKm      float64
	MaxRangeRate    float64       // km/s, absolute
	MaxGap          time.Duration // longest pair spacing used for finite differences
}

// DefaultBounds returns the limits used for optical low-orbit data.
func DefaultBounds() Bounds {
	return Bounds{
		MinElevationDeg: 5,
		MaxElevationDeg: 85,
		MinRangeKm:      400,
		MaxRangeKm:      2500,
		MaxRangeRate:    8.0,
		MaxGap:          120 * time.Second,
	}
}

// ElevationOK reports whether el lies inside the horizon/zenith window.
func (b Bounds) ElevationOK(el float64) bool {
	return el >= b.MinElevationDeg && el <= b.MaxElevationDeg
}

// RangeOK reports whether r lies inside the plausible slant-range interval.
func (b Bounds) RangeOK(r float64) bool {
	return r >= b.MinRangeKm && r <= b.MaxRangeKm
}

// EstimateRange returns the slant range in km from an observer to a
// satellite seen at elevationDeg, assuming a circular orbit at altitudeKm:
//
//	range = -R·sin(el) + sqrt((R·sin(el))² + h² + 2Rh)
//
// It is defined for elevations in [-90°, 90°]; rejecting elevations below
// the horizon is up to the caller.
func EstimateRange(elevationDeg, altitudeKm float64) float64 {
	rs := EarthRadiusKm * math.Sin(elevationDeg*math.Pi/180.0)
	return -rs + math.Sqrt(rs*rs+altitudeKm*altitudeKm+2*EarthRadiusKm*altitudeKm)
}

// wrap360 maps an angle in degrees into [0, 360).
func wrap360(deg float64) float64 {
	v := math.Mod(deg, 360)
	if v < 0 {
		v += 360
	}
	return v
}
