// Package quality profiles an observation table for physical validity and
// missing derived fields.
package quality

import (
	"time"

	"github.com/signalsfoundry/uct-pipeline/core"
	"github.com/signalsfoundry/uct-pipeline/model"
)

// Check is one validity test and how many rows passed it.
type Check struct {
	Name   string
	Passed int
	Total  int
}

// OK reports whether every row passed.
func (c Check) OK() bool { return c.Passed == c.Total }

// Mechanism labels why a field is missing.
type Mechanism string

const (
	// MNAR fields cannot be measured by the sensor and must be derived.
	MNAR Mechanism = "MNAR"
	// MAR fields are missing because a processing step has not run.
	MAR Mechanism = "MAR"
)

// Missing profiles one nullable field.
type Missing struct {
	Field     string
	Count     int
	Mechanism Mechanism
	Method    string
}

// Report summarises an observation table.
type Report struct {
	Total      int
	Satellites int
	Sensors    int
	First      time.Time
	Last       time.Time
	Checks     []Check
	Missing    []Missing
}

// AllPass reports whether every validity check passed for every row.
func (r Report) AllPass() bool {
	for _, c := range r.Checks {
		if !c.OK() {
			return false
		}
	}
	return true
}

// Evaluate builds a Report for obs against the given bounds. A missing range
// fails the range check.
func Evaluate(obs []model.Observation, b core.Bounds) Report {
	r := Report{Total: len(obs)}
	sats := make(map[int]struct{})
	sensors := make(map[string]struct{})

	var ra, dec, el, rng, noRange, noRate, noTrack int
	for i, o := range obs {
		sats[o.SatNo] = struct{}{}
		sensors[o.SensorID] = struct{}{}
		if i == 0 || o.Time.Before(r.First) {
			r.First = o.Time
		}
		if i == 0 || o.Time.After(r.Last) {
			r.Last = o.Time
		}

		if o.RA >= 0 && o.RA <= 360 {
			ra++
		}
		if o.Declination >= -90 && o.Declination <= 90 {
			dec++
		}
		if b.ElevationOK(o.Elevation) {
			el++
		}
		if o.RangeKm == nil {
			noRange++
		} else if b.RangeOK(*o.RangeKm) {
			rng++
		}
		if o.RangeRateKmS == nil {
			noRate++
		}
		if o.TrackID == "" {
			noTrack++
		}
	}
	r.Satellites = len(sats)
	r.Sensors = len(sensors)

	n := len(obs)
	r.Checks = []Check{
		{Name: "ra", Passed: ra, Total: n},
		{Name: "declination", Passed: dec, Total: n},
		{Name: "elevation", Passed: el, Total: n},
		{Name: "range_km", Passed: rng, Total: n},
	}
	r.Missing = []Missing{
		{Field: "range_km", Count: noRange, Mechanism: MNAR, Method: "calculated from elevation"},
		{Field: "range_rate_km_s", Count: noRate, Mechanism: MNAR, Method: "calculated from consecutive observations"},
		{Field: "track_id", Count: noTrack, Mechanism: MAR, Method: "assigned by segmentation"},
	}
	return r
}
