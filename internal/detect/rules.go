package detect

import (
	"math"
	"sort"
	"time"

	"github.com/signalsfoundry/uct-pipeline/core"
	"github.com/signalsfoundry/uct-pipeline/model"
)

// Config holds the detector thresholds. Zero values are replaced by
// DefaultConfig values in New.
type Config struct {
	SparseThreshold   int           `yaml:"sparse_threshold"`
	ManeuverThreshold float64       `yaml:"maneuver_threshold"` // km/s
	ManeuverMinGap    time.Duration `yaml:"maneuver_min_gap"`
	ManeuverMaxGap    time.Duration `yaml:"maneuver_max_gap"`
	ManeuverWindow    int           `yaml:"maneuver_window"`
	GapThreshold      time.Duration `yaml:"gap_threshold"`
	// Satellites is the set of interest for conjunctions. Empty means every
	// satellite present in the observation table.
	Satellites []int `yaml:"satellites"`
}

// DefaultConfig returns the empirically tuned thresholds.
func DefaultConfig() Config {
	return Config{
		SparseThreshold:   100,
		ManeuverThreshold: 0.5,
		ManeuverMinGap:    60 * time.Second,
		ManeuverMaxGap:    7200 * time.Second,
		ManeuverWindow:    3,
		GapThreshold:      12 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SparseThreshold <= 0 {
		c.SparseThreshold = d.SparseThreshold
	}
	if c.ManeuverThreshold <= 0 {
		c.ManeuverThreshold = d.ManeuverThreshold
	}
	if c.ManeuverMinGap <= 0 {
		c.ManeuverMinGap = d.ManeuverMinGap
	}
	if c.ManeuverMaxGap <= 0 {
		c.ManeuverMaxGap = d.ManeuverMaxGap
	}
	if c.ManeuverWindow <= 0 {
		c.ManeuverWindow = d.ManeuverWindow
	}
	if c.GapThreshold <= 0 {
		c.GapThreshold = d.GapThreshold
	}
	return c
}

// Input is everything a rule may read. Rules never modify it.
type Input struct {
	Observations []model.Observation
	Tracks       []model.Track
	Conjunctions []model.Conjunction
}

// Outcome is a rule's result: events without ID or CreatedAt, plus the number
// of satellites or track pairs it skipped for insufficient data.
type Outcome struct {
	Events []model.Event
	Skips  int
}

// Rule evaluates one detection over the input.
type Rule func(in Input, cfg Config) Outcome

// Rules maps each event type to the rule that emits it.
var Rules = map[model.EventType]Rule{
	model.EventSparseObject:   SparseObjects,
	model.EventSingleObsTrack: SingleObsTracks,
	model.EventManeuver:       Maneuvers,
	model.EventConjunction:    Conjunctions,
	model.EventTrackGap:       TrackGaps,
}

// SparseObjects fires once per satellite with fewer real observations than
// the sparse threshold, at its first real observation.
func SparseObjects(in Input, cfg Config) Outcome {
	counts := model.CountReal(in.Observations)
	first := make(map[int]time.Time, len(counts))
	for _, o := range in.Observations {
		if o.Provenance.IsSimulated() {
			continue
		}
		if t, ok := first[o.SatNo]; !ok || o.Time.Before(t) {
			first[o.SatNo] = o.Time
		}
	}

	var out Outcome
	for _, sat := range sortedKeys(counts) {
		n := counts[sat]
		if n >= cfg.SparseThreshold {
			continue
		}
		out.Events = append(out.Events, model.Event{
			SatNo:      sat,
			Type:       model.EventSparseObject,
			Time:       first[sat],
			Confidence: 1.0,
			Source:     model.SourceComputed,
			Details:    map[string]any{"n_obs": n, "threshold": cfg.SparseThreshold},
		})
	}
	return out
}

// SingleObsTracks fires once per track with exactly one member.
func SingleObsTracks(in Input, _ Config) Outcome {
	var out Outcome
	for _, t := range in.Tracks {
		if t.NumObs != 1 {
			continue
		}
		out.Events = append(out.Events, model.Event{
			SatNo:      t.SatNo,
			Type:       model.EventSingleObsTrack,
			Time:       t.Start,
			TrackID:    t.ID,
			Confidence: 0.7,
			Source:     model.SourceComputed,
			Details:    map[string]any{"reason": "only 1 observation", "sensor": t.SensorID},
		})
	}
	return out
}

// Maneuvers compares consecutive tracks of each satellite. A pair separated
// by a gap inside [ManeuverMinGap, ManeuverMaxGap] whose boundary range-rate
// medians differ by more than ManeuverThreshold fires at the later track.
func Maneuvers(in Input, cfg Config) Outcome {
	members := core.Members(in.Observations)
	bySat := make(map[int][]model.Track)
	for _, t := range in.Tracks {
		bySat[t.SatNo] = append(bySat[t.SatNo], t)
	}

	var out Outcome
	for _, sat := range sortedKeys(bySat) {
		tracks := bySat[sat]
		if len(tracks) < 2 {
			out.Skips++
			continue
		}
		sort.SliceStable(tracks, func(a, b int) bool {
			if !tracks[a].Start.Equal(tracks[b].Start) {
				return tracks[a].Start.Before(tracks[b].Start)
			}
			return tracks[a].ID < tracks[b].ID
		})
		for i := 1; i < len(tracks); i++ {
			t1, t2 := tracks[i-1], tracks[i]
			gap := t2.Start.Sub(t1.End)
			if gap < cfg.ManeuverMinGap || gap > cfg.ManeuverMaxGap {
				continue
			}
			endRate, ok1 := boundaryRate(tail(members[t1.ID], cfg.ManeuverWindow))
			startRate, ok2 := boundaryRate(head(members[t2.ID], cfg.ManeuverWindow))
			if !ok1 || !ok2 {
				out.Skips++
				continue
			}
			delta := math.Abs(startRate - endRate)
			if delta <= cfg.ManeuverThreshold {
				continue
			}
			out.Events = append(out.Events, model.Event{
				SatNo:      sat,
				Type:       model.EventManeuver,
				Time:       t2.Start,
				TrackID:    t2.ID,
				Confidence: math.Min(0.5+0.1*delta, 0.95),
				Source:     model.SourceComputed,
				Details: map[string]any{
					"delta_range_rate": round(delta, 4),
					"gap_seconds":      round(gap.Seconds(), 1),
				},
			})
		}
	}
	return out
}

// Conjunctions attributes each external conjunction record to the first of
// its two satellites found in the set of interest.
func Conjunctions(in Input, cfg Config) Outcome {
	interest := make(map[int]bool)
	if len(cfg.Satellites) > 0 {
		for _, s := range cfg.Satellites {
			interest[s] = true
		}
	} else {
		for _, o := range in.Observations {
			interest[o.SatNo] = true
		}
	}

	var out Outcome
	for _, c := range in.Conjunctions {
		var matched int
		switch {
		case c.SatNo1 != nil && interest[*c.SatNo1]:
			matched = *c.SatNo1
		case c.SatNo2 != nil && interest[*c.SatNo2]:
			matched = *c.SatNo2
		default:
			continue
		}
		dist := 999.0
		if c.MissDistanceKm != nil && !math.IsNaN(*c.MissDistanceKm) {
			dist = *c.MissDistanceKm
		}
		out.Events = append(out.Events, model.Event{
			SatNo:      matched,
			Type:       model.EventConjunction,
			Time:       c.TCA,
			Confidence: ConjunctionConfidence(dist),
			Source:     model.SourceExternal,
			Details: map[string]any{
				"sat1":             intOrNil(c.SatNo1),
				"sat2":             intOrNil(c.SatNo2),
				"miss_distance_km": round(dist, 3),
			},
		})
	}
	return out
}

// ConjunctionConfidence is the step function of miss distance in km.
func ConjunctionConfidence(missKm float64) float64 {
	switch {
	case missKm < 1:
		return 0.99
	case missKm < 10:
		return 0.85
	case missKm < 100:
		return 0.60
	default:
		return 0.30
	}
}

// TrackGaps scans each satellite's real observations across all sensors and
// track boundaries, firing once per gap of at least GapThreshold. Satellites
// whose total span is shorter than the threshold are not scanned.
func TrackGaps(in Input, cfg Config) Outcome {
	bySat := make(map[int][]time.Time)
	for _, o := range in.Observations {
		if o.Provenance.IsSimulated() {
			continue
		}
		bySat[o.SatNo] = append(bySat[o.SatNo], o.Time)
	}

	var out Outcome
	for _, sat := range sortedKeys(bySat) {
		times := bySat[sat]
		if len(times) < 2 {
			out.Skips++
			continue
		}
		sort.Slice(times, func(a, b int) bool { return times[a].Before(times[b]) })
		if times[len(times)-1].Sub(times[0]) < cfg.GapThreshold {
			continue
		}
		for i := 1; i < len(times); i++ {
			gap := times[i].Sub(times[i-1])
			if gap < cfg.GapThreshold {
				continue
			}
			out.Events = append(out.Events, model.Event{
				SatNo:      sat,
				Type:       model.EventTrackGap,
				Time:       times[i-1],
				Confidence: 0.6,
				Source:     model.SourceComputed,
				Details: map[string]any{
					"gap_hours": round(gap.Hours(), 2),
					"threshold": cfg.GapThreshold.Hours(),
				},
			})
		}
	}
	return out
}

// boundaryRate is the median of the non-missing range-rates in obs.
func boundaryRate(obs []model.Observation) (float64, bool) {
	var rates []float64
	for _, o := range obs {
		if o.RangeRateKmS != nil && !math.IsNaN(*o.RangeRateKmS) {
			rates = append(rates, *o.RangeRateKmS)
		}
	}
	if len(rates) == 0 {
		return 0, false
	}
	return core.Median(rates), true
}

func head(obs []model.Observation, n int) []model.Observation {
	if len(obs) > n {
		return obs[:n]
	}
	return obs
}

func tail(obs []model.Observation, n int) []model.Observation {
	if len(obs) > n {
		return obs[len(obs)-n:]
	}
	return obs
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
