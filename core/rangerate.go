package core

import (
	"math"
	"sort"
	"time"

	"github.com/signalsfoundry/uct-pipeline/model"
)

// RangeSample is one slant-range measurement in a time-ordered series.
type RangeSample struct {
	Time    time.Time
	RangeKm *float64
}

// RangeRate differences consecutive samples of a single grouping. The
// result has one entry per sample; an entry is nil when the rate is
// undefined: the first sample, a pair with a missing range, a time delta
// outside (0, maxGap], or a rate whose magnitude exceeds maxRate.
func RangeRate(samples []RangeSample, maxRate float64, maxGap time.Duration) []*float64 {
	rates := make([]*float64, len(samples))
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		if prev.RangeKm == nil || cur.RangeKm == nil {
			continue
		}
		dt := cur.Time.Sub(prev.Time)
		if dt <= 0 || dt > maxGap {
			continue
		}
		rate := (*cur.RangeKm - *prev.RangeKm) / dt.Seconds()
		if math.Abs(rate) > maxRate {
			continue
		}
		rates[i] = model.Float(rate)
	}
	return rates
}

// RateGrouping selects the partition key for range-rate differencing.
type RateGrouping string

const (
	GroupBySatelliteSensor RateGrouping = "satellite_sensor"
	GroupBySatellite       RateGrouping = "satellite"
)

// Estimator fills in slant range and range-rate on observation tables.
type Estimator struct {
	AltitudeKm float64
	Bounds     Bounds
	Grouping   RateGrouping
}

// NewEstimator returns an Estimator with the low-orbit defaults.
func NewEstimator() *Estimator {
	return &Estimator{
		AltitudeKm: DefaultAltitudeKm,
		Bounds:     DefaultBounds(),
		Grouping:   GroupBySatelliteSensor,
	}
}

// Annotate mutates obs in place, adding range and range-rate. A supplied
// range inside the plausible interval is kept; otherwise range is estimated
// from elevation when the elevation lies inside the accepted window.
// Out-of-bounds values are discarded and reported as warnings.
func (e *Estimator) Annotate(obs []model.Observation) []model.Warning {
	var warnings []model.Warning

	for i := range obs {
		o := &obs[i]
		if o.RangeKm != nil {
			if e.Bounds.RangeOK(*o.RangeKm) {
				continue
			}
			warnings = append(warnings, model.Warning{
				Kind:   model.WarnImplausibleValue,
				SatNo:  o.SatNo,
				Field:  "range_km",
				Value:  *o.RangeKm,
				Reason: "supplied range outside plausible interval",
			})
			o.RangeKm = nil
		}
		if !e.Bounds.ElevationOK(o.Elevation) {
			warnings = append(warnings, model.Warning{
				Kind:   model.WarnImplausibleValue,
				SatNo:  o.SatNo,
				Field:  "elevation",
				Value:  o.Elevation,
				Reason: "elevation outside horizon/zenith window; range not estimated",
			})
			continue
		}
		r := EstimateRange(o.Elevation, e.AltitudeKm)
		if !e.Bounds.RangeOK(r) {
			warnings = append(warnings, model.Warning{
				Kind:   model.WarnImplausibleValue,
				SatNo:  o.SatNo,
				Field:  "range_km",
				Value:  r,
				Reason: "estimated range outside plausible interval",
			})
			continue
		}
		o.RangeKm = model.Float(r)
	}

	for _, idx := range e.groups(obs) {
		samples := make([]RangeSample, len(idx))
		for j, k := range idx {
			samples[j] = RangeSample{Time: obs[k].Time, RangeKm: obs[k].RangeKm}
		}
		rates := RangeRate(samples, e.Bounds.MaxRangeRate, e.Bounds.MaxGap)
		for j, k := range idx {
			obs[k].RangeRateKmS = rates[j]
		}
	}
	return warnings
}

// groups partitions obs indices by the configured grouping, each sorted by
// time ascending. Group order is deterministic.
func (e *Estimator) groups(obs []model.Observation) [][]int {
	bySensor := e.Grouping != GroupBySatellite
	keyOf := func(o model.Observation) model.GroupKey {
		if bySensor {
			return o.Key()
		}
		return model.GroupKey{SatNo: o.SatNo}
	}
	return partition(obs, keyOf)
}

// partition groups observation indices by key, sorting each group by time
// (stable on input order) and the groups by key.
func partition(obs []model.Observation, keyOf func(model.Observation) model.GroupKey) [][]int {
	byKey := make(map[model.GroupKey][]int)
	var keys []model.GroupKey
	for i, o := range obs {
		k := keyOf(o)
		if _, ok := byKey[k]; !ok {
			keys = append(keys, k)
		}
		byKey[k] = append(byKey[k], i)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].SatNo != keys[b].SatNo {
			return keys[a].SatNo < keys[b].SatNo
		}
		return keys[a].SensorID < keys[b].SensorID
	})

	out := make([][]int, 0, len(keys))
	for _, k := range keys {
		idx := byKey[k]
		sort.SliceStable(idx, func(a, b int) bool {
			return obs[idx[a]].Time.Before(obs[idx[b]].Time)
		})
		out = append(out, idx)
	}
	return out
}
