package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/uct-pipeline/model"
)

// EarthMuKm3S2 is Earth's gravitational parameter (km³/s²).
const EarthMuKm3S2 = 398600.4418

// Regime boundaries.
const (
	leoMaxSMAKm     = 8378.0
	geoMinSMAKm     = 42164.0
	heoMinEccentric = 0.7
)

// OrbitFromTLE derives the orbital context for a TLE: semi-major axis from
// the mean motion (Kepler's third law), eccentricity, period and regime. The
// TLE is also propagated to its own epoch with SGP4; a propagation that does
// not yield a finite state marks the regime UNKNOWN.
func OrbitFromTLE(tle model.ReferenceTLE) (model.OrbitSummary, error) {
	out := model.OrbitSummary{SatNo: tle.SatNo, Regime: model.RegimeUnknown}

	el, err := parseElements(tle.Line1, tle.Line2)
	if err != nil {
		return out, err
	}
	if el.meanMotion <= 0 {
		return out, fmt.Errorf("tle for %d: non-positive mean motion %v", tle.SatNo, el.meanMotion)
	}

	n := el.meanMotion * 2 * math.Pi / 86400 // rad/s
	sma := math.Cbrt(EarthMuKm3S2 / (n * n))

	out.SemiMajorAxis = sma
	out.Eccentricity = el.eccentricity
	out.MeanMotion = el.meanMotion
	out.Period = time.Duration(float64(24*time.Hour) / el.meanMotion)

	radius, err := propagateRadius(tle, el.epoch)
	if err != nil {
		return out, err
	}
	if radius < EarthRadiusKm {
		return out, fmt.Errorf("tle for %d: propagated radius %.1f km is below the surface", tle.SatNo, radius)
	}

	out.Regime = ClassifyRegime(sma, el.eccentricity)
	return out, nil
}

// ClassifyRegime applies the regime rules: HEO for e >= 0.7, then LEO below
// 8378 km semi-major axis, GEO at or above 42164 km, MEO otherwise.
func ClassifyRegime(smaKm, eccentricity float64) model.Regime {
	switch {
	case eccentricity >= heoMinEccentric:
		return model.RegimeHEO
	case smaKm < leoMaxSMAKm:
		return model.RegimeLEO
	case smaKm >= geoMinSMAKm:
		return model.RegimeGEO
	default:
		return model.RegimeMEO
	}
}

type elements struct {
	epoch        time.Time
	eccentricity float64
	meanMotion   float64
}

// parseElements reads the fixed-column fields needed here and rejects
// malformed lines before they reach the SGP4 parser.
func parseElements(line1, line2 string) (elements, error) {
	line1 = strings.TrimRight(line1, " \r\n")
	line2 = strings.TrimRight(line2, " \r\n")
	if len(line1) < 64 || !strings.HasPrefix(line1, "1 ") {
		return elements{}, fmt.Errorf("malformed TLE line 1: %q", line1)
	}
	if len(line2) < 63 || !strings.HasPrefix(line2, "2 ") {
		return elements{}, fmt.Errorf("malformed TLE line 2: %q", line2)
	}

	yy, err := strconv.Atoi(strings.TrimSpace(line1[18:20]))
	if err != nil {
		return elements{}, fmt.Errorf("parse epoch year: %w", err)
	}
	doy, err := strconv.ParseFloat(strings.TrimSpace(line1[20:32]), 64)
	if err != nil {
		return elements{}, fmt.Errorf("parse epoch day: %w", err)
	}
	year := 1900 + yy
	if yy < 57 {
		year = 2000 + yy
	}
	epoch := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).
		Add(time.Duration((doy - 1) * float64(24*time.Hour)))

	ecc, err := strconv.ParseFloat("0."+strings.TrimSpace(line2[26:33]), 64)
	if err != nil {
		return elements{}, fmt.Errorf("parse eccentricity: %w", err)
	}
	mm, err := strconv.ParseFloat(strings.TrimSpace(line2[52:63]), 64)
	if err != nil {
		return elements{}, fmt.Errorf("parse mean motion: %w", err)
	}
	return elements{epoch: epoch, eccentricity: ecc, meanMotion: mm}, nil
}

// propagateRadius runs SGP4 at t and returns the geocentric distance in km.
// go-satellite works in kilometres.
func propagateRadius(tle model.ReferenceTLE, t time.Time) (radius float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tle for %d: sgp4: %v", tle.SatNo, r)
		}
	}()

	sat := satellite.TLEToSat(tle.Line1, tle.Line2, satellite.GravityWGS72)
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	pos, _ := satellite.Propagate(sat, year, int(month), day, hour, min, sec)

	radius = math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if math.IsNaN(radius) || math.IsInf(radius, 0) {
		return 0, fmt.Errorf("tle for %d: sgp4 produced a non-finite state", tle.SatNo)
	}
	return radius, nil
}

// PeriodsCovered returns how many orbital periods the span of obs covers.
func PeriodsCovered(obs []model.Observation, period time.Duration) float64 {
	if len(obs) == 0 || period <= 0 {
		return 0
	}
	first, last := obs[0].Time, obs[0].Time
	for _, o := range obs[1:] {
		if o.Time.Before(first) {
			first = o.Time
		}
		if o.Time.After(last) {
			last = o.Time
		}
	}
	return last.Sub(first).Seconds() / period.Seconds()
}
