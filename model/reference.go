package model

import "time"

// Conjunction is one close-approach record from an external feed. Either
// satellite number may be missing (nil); a missing miss distance is nil too.
type Conjunction struct {
	SatNo1         *int
	SatNo2         *int
	TCA            time.Time
	MissDistanceKm *float64
}

// ReferenceTLE is a two-line element set for one satellite.
type ReferenceTLE struct {
	SatNo int
	Line1 string
	Line2 string
}

// Regime is an orbital regime classification.
type Regime string

const (
	RegimeLEO     Regime = "LEO"
	RegimeMEO     Regime = "MEO"
	RegimeGEO     Regime = "GEO"
	RegimeHEO     Regime = "HEO"
	RegimeUnknown Regime = "UNKNOWN"
	RegimeNoTLE   Regime = "NO_TLE"
)

// OrbitSummary holds the orbital context derived for one satellite.
type OrbitSummary struct {
	SatNo          int
	Regime         Regime
	SemiMajorAxis  float64 // km
	Eccentricity   float64
	Period         time.Duration
	MeanMotion     float64 // revolutions per day
	PeriodsCovered float64 // observation span / period, 0 when unknown
}
