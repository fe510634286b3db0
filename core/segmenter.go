package core

import (
	"sort"
	"time"

	"github.com/signalsfoundry/uct-pipeline/model"
)

// Segmentation gap thresholds for the two data characters.
const (
	// ShortGap separates passes in dense angle-only tracking data.
	ShortGap = 120 * time.Second
	// LongGap separates arcs in sparse ephemeris-style data.
	LongGap = 6 * time.Hour
)

// span is a closed run of member indices into the observation slice.
type span struct {
	key     model.GroupKey
	members []int
}

// Segment partitions obs into tracks per satellite+sensor using the maximum
// gap rule and writes the assigned TrackID back into obs. Every observation
// belongs to exactly one track; single-observation tracks are kept.
//
// Identifiers are assigned by a numbering pass over the closed tracks ordered
// by (start, satellite, sensor), so they are unique and nondecreasing in
// start time regardless of input order.
func Segment(obs []model.Observation, maxGap time.Duration) []model.Track {
	var spans []span
	for _, idx := range partition(obs, model.Observation.Key) {
		spans = append(spans, fold(obs, idx, maxGap)...)
	}

	sort.SliceStable(spans, func(a, b int) bool {
		sa, sb := obs[spans[a].members[0]].Time, obs[spans[b].members[0]].Time
		if !sa.Equal(sb) {
			return sa.Before(sb)
		}
		if spans[a].key.SatNo != spans[b].key.SatNo {
			return spans[a].key.SatNo < spans[b].key.SatNo
		}
		return spans[a].key.SensorID < spans[b].key.SensorID
	})

	tracks := make([]model.Track, 0, len(spans))
	for n, s := range spans {
		id := model.TrackID(n + 1)
		for _, k := range s.members {
			obs[k].TrackID = id
		}
		first, last := obs[s.members[0]], obs[s.members[len(s.members)-1]]
		tracks = append(tracks, model.Track{
			ID:       id,
			SatNo:    s.key.SatNo,
			SensorID: s.key.SensorID,
			NumObs:   len(s.members),
			Start:    first.Time,
			End:      last.Time,
		})
	}
	return tracks
}

// fold scans one time-sorted group and returns its closed spans. The state is
// either no active track or an active track; a gap above maxGap closes the
// active track and opens a new one at the current observation.
func fold(obs []model.Observation, idx []int, maxGap time.Duration) []span {
	var (
		out    []span
		active []int
	)
	for _, k := range idx {
		if active == nil {
			active = []int{k}
			continue
		}
		prev := obs[active[len(active)-1]]
		if obs[k].Time.Sub(prev.Time) <= maxGap {
			active = append(active, k)
			continue
		}
		out = append(out, span{key: obs[active[0]].Key(), members: active})
		active = []int{k}
	}
	if active != nil {
		out = append(out, span{key: obs[active[0]].Key(), members: active})
	}
	return out
}

// Members returns the observations of each track in time order, keyed by
// track ID.
func Members(obs []model.Observation) map[string][]model.Observation {
	out := make(map[string][]model.Observation)
	for _, o := range obs {
		if o.TrackID == "" {
			continue
		}
		out[o.TrackID] = append(out[o.TrackID], o)
	}
	for id := range out {
		m := out[id]
		sort.SliceStable(m, func(a, b int) bool { return m[a].Time.Before(m[b].Time) })
	}
	return out
}
