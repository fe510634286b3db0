package model

import "time"

// EventType is the closed set of findings the detector can emit.
type EventType string

const (
	EventSparseObject   EventType = "SPARSE_OBJECT"
	EventSingleObsTrack EventType = "SINGLE_OBS_TRACK"
	EventManeuver       EventType = "MANEUVER"
	EventConjunction    EventType = "CONJUNCTION"
	EventTrackGap       EventType = "TRACK_GAP"
)

// EventTypes lists every event type in a stable order.
var EventTypes = []EventType{
	EventSparseObject,
	EventSingleObsTrack,
	EventManeuver,
	EventConjunction,
	EventTrackGap,
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// EventSource records where the evidence behind an event came from.
type EventSource string

const (
	// SourceComputed marks events derived from the observation and track tables.
	SourceComputed EventSource = "COMPUTED"
	// SourceExternal marks events taken from an external feed (conjunctions).
	SourceExternal EventSource = "EXTERNAL"
)

// Event is an immutable, typed finding about a satellite or track.
type Event struct {
	ID         string
	SatNo      int
	Type       EventType
	Time       time.Time // zero when the source did not provide one
	TrackID    string    // empty when the event is not tied to a track
	Confidence float64
	Source     EventSource
	Details    map[string]any
	CreatedAt  time.Time
}
