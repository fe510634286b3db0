package model

import (
	"fmt"
	"time"
)

// Track is a maximal run of observations from one satellite+sensor pair with
// no internal gap exceeding the segmentation threshold.
type Track struct {
	ID       string
	SatNo    int
	SensorID string
	NumObs   int
	Start    time.Time
	End      time.Time
}

// Duration is the time between the first and last member observation.
func (t Track) Duration() time.Duration { return t.End.Sub(t.Start) }

// TrackID formats the n-th authoritative track identifier.
func TrackID(n int) string { return fmt.Sprintf("TRK%06d", n) }

// SimulatedTrackID formats the identifier for the index-th synthetic track of a
// satellite. It never collides with TrackID values.
func SimulatedTrackID(satNo, index int) string {
	return fmt.Sprintf("TRK_SIM_%d_%03d", satNo, index)
}
