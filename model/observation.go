package model

import "time"

// Provenance distinguishes sensor-derived observations from generated ones.
type Provenance int

const (
	ProvenanceReal      Provenance = iota
	ProvenanceSimulated            // produced by the sparse-satellite synthesizer
)

// String returns the label used in tables and logs.
func (p Provenance) String() string {
	switch p {
	case ProvenanceSimulated:
		return "SIMULATED"
	default:
		return "REAL"
	}
}

// IsSimulated reports whether the observation was generated rather than measured.
func (p Provenance) IsSimulated() bool { return p == ProvenanceSimulated }

// Data-mode labels carried on each observation.
const (
	DataModeReal      = "REAL"
	DataModeSimulated = "SIMULATED"
)

// Observation is one sensor detection of one satellite at one instant.
// Angles are in degrees, range in km and range-rate in km/s.
type Observation struct {
	ID       string
	SatNo    int
	SensorID string
	Time     time.Time

	RA          float64
	Declination float64
	Azimuth     float64
	Elevation   float64

	// RangeKm and RangeRateKmS are nil while missing.
	RangeKm      *float64
	RangeRateKmS *float64

	// TrackID is empty until the segmenter assigns one.
	TrackID string

	Provenance Provenance
	DataMode   string

	// CreatedAt is only set for generated observations.
	CreatedAt time.Time
}

// GroupKey identifies a satellite+sensor partition.
type GroupKey struct {
	SatNo    int
	SensorID string
}

// Key returns the satellite+sensor partition key for the observation.
func (o Observation) Key() GroupKey {
	return GroupKey{SatNo: o.SatNo, SensorID: o.SensorID}
}

// Float returns a pointer to v, for populating optional fields.
func Float(v float64) *float64 { return &v }

// CountReal returns the number of non-simulated observations per satellite.
func CountReal(obs []Observation) map[int]int {
	counts := make(map[int]int)
	for _, o := range obs {
		if o.Provenance.IsSimulated() {
			continue
		}
		counts[o.SatNo]++
	}
	return counts
}
