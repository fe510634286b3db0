package quality

import (
	"testing"
	"time"

	"github.com/signalsfoundry/uct-pipeline/core"
	"github.com/signalsfoundry/uct-pipeline/model"
)

func TestEvaluate(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := []model.Observation{
		{SatNo: 1, SensorID: "A", Time: base.Add(time.Minute), RA: 10, Declination: 5, Elevation: 40,
			RangeKm: model.Float(800), RangeRateKmS: model.Float(1), TrackID: "TRK000001"},
		{SatNo: 1, SensorID: "B", Time: base, RA: 370, Declination: 5, Elevation: 3},
		{SatNo: 2, SensorID: "A", Time: base.Add(time.Hour), RA: 0, Declination: -95, Elevation: 85,
			RangeKm: model.Float(3000), TrackID: "TRK000002"},
	}
	r := Evaluate(obs, core.DefaultBounds())

	if r.Total != 3 || r.Satellites != 2 || r.Sensors != 2 {
		t.Fatalf("unexpected totals %+v", r)
	}
	if !r.First.Equal(base) || !r.Last.Equal(base.Add(time.Hour)) {
		t.Fatalf("time range %v..%v", r.First, r.Last)
	}
	want := map[string]int{"ra": 2, "declination": 2, "elevation": 2, "range_km": 1}
	for _, c := range r.Checks {
		if c.Passed != want[c.Name] || c.Total != 3 {
			t.Fatalf("check %s = %d/%d, want %d/3", c.Name, c.Passed, c.Total, want[c.Name])
		}
	}
	if r.AllPass() {
		t.Fatalf("AllPass should be false")
	}
	missing := map[string]int{"range_km": 1, "range_rate_km_s": 2, "track_id": 1}
	for _, m := range r.Missing {
		if m.Count != missing[m.Field] {
			t.Fatalf("missing %s = %d, want %d", m.Field, m.Count, missing[m.Field])
		}
	}
}

func TestEvaluateAllPass(t *testing.T) {
	obs := []model.Observation{{SatNo: 1, RA: 359, Declination: 0, Elevation: 45, RangeKm: model.Float(700)}}
	if r := Evaluate(obs, core.DefaultBounds()); !r.AllPass() {
		t.Fatalf("expected all checks to pass: %+v", r.Checks)
	}
	if r := Evaluate(nil, core.DefaultBounds()); !r.AllPass() || r.Total != 0 {
		t.Fatalf("empty table should trivially pass: %+v", r)
	}
}
