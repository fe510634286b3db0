package core

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/uct-pipeline/model"
)

var epoch = time.Date(2026, time.January, 24, 0, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return epoch.Add(time.Duration(sec * float64(time.Second)))
}

func samples(pairs ...float64) []RangeSample {
	out := make([]RangeSample, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, RangeSample{Time: at(pairs[i]), RangeKm: model.Float(pairs[i+1])})
	}
	return out
}

func TestRangeRate_FirstSampleUndefined(t *testing.T) {
	rates := RangeRate(samples(0, 1000, 10, 1010), 8, 120*time.Second)
	if rates[0] != nil {
		t.Fatalf("first rate = %v, want nil", *rates[0])
	}
	if rates[1] == nil || math.Abs(*rates[1]-1.0) > 1e-12 {
		t.Fatalf("second rate = %v, want 1.0", rates[1])
	}
}

func TestRangeRate_RejectsGapsOutsideWindow(t *testing.T) {
	// 0s delta, then 121s delta, then exactly 120s.
	rates := RangeRate(samples(0, 1000, 0, 1001, 121, 1002, 241, 1003), 8, 120*time.Second)
	if rates[1] != nil {
		t.Errorf("zero delta produced rate %v", *rates[1])
	}
	if rates[2] != nil {
		t.Errorf("121s delta produced rate %v", *rates[2])
	}
	if rates[3] == nil {
		t.Errorf("120s delta should produce a rate")
	}
}

func TestRangeRate_RejectsNonPhysicalJumps(t *testing.T) {
	rates := RangeRate(samples(0, 1000, 10, 1100, 20, 1150), 8, 120*time.Second)
	if rates[1] != nil {
		t.Fatalf("10 km/s jump should be discarded, got %v", *rates[1])
	}
	if rates[2] == nil || math.Abs(*rates[2]-5) > 1e-12 {
		t.Fatalf("5 km/s step should be kept, got %v", rates[2])
	}
	for i, r := range rates {
		if r != nil && math.Abs(*r) > 8 {
			t.Fatalf("rate[%d] = %v exceeds bound", i, *r)
		}
	}
}

func TestRangeRate_MissingRange(t *testing.T) {
	s := samples(0, 1000, 10, 1010, 20, 1020)
	s[1].RangeKm = nil
	rates := RangeRate(s, 8, 120*time.Second)
	if rates[1] != nil || rates[2] != nil {
		t.Fatalf("pairs touching a missing range must be undefined, got %v %v", rates[1], rates[2])
	}
}

func TestEstimatorAnnotate_EstimatesAndGroups(t *testing.T) {
	obs := []model.Observation{
		{SatNo: 1, SensorID: "A", Time: at(0), Elevation: 40},
		{SatNo: 1, SensorID: "B", Time: at(5), Elevation: 41},
		{SatNo: 1, SensorID: "A", Time: at(10), Elevation: 41},
		{SatNo: 1, SensorID: "A", Time: at(20), Elevation: 2},
	}
	warnings := NewEstimator().Annotate(obs)

	if obs[0].RangeKm == nil || math.Abs(*obs[0].RangeKm-EstimateRange(40, DefaultAltitudeKm)) > 1e-9 {
		t.Fatalf("range not estimated for obs 0: %v", obs[0].RangeKm)
	}
	if obs[3].RangeKm != nil {
		t.Fatalf("below-window elevation must leave range missing")
	}
	if len(warnings) != 1 || warnings[0].Field != "elevation" {
		t.Fatalf("warnings = %+v, want one elevation warning", warnings)
	}
	// Sensor B's only sample starts its own group.
	if obs[1].RangeRateKmS != nil {
		t.Fatalf("first sample of sensor B must have no rate")
	}
	if obs[2].RangeRateKmS == nil {
		t.Fatalf("sensor A pair 0s->10s should have a rate")
	}
	want := (EstimateRange(41, DefaultAltitudeKm) - EstimateRange(40, DefaultAltitudeKm)) / 10
	if math.Abs(*obs[2].RangeRateKmS-want) > 1e-9 {
		t.Fatalf("rate = %v, want %v", *obs[2].RangeRateKmS, want)
	}
}

func TestEstimatorAnnotate_SatelliteGrouping(t *testing.T) {
	obs := []model.Observation{
		{SatNo: 1, SensorID: "A", Time: at(0), Elevation: 40},
		{SatNo: 1, SensorID: "B", Time: at(5), Elevation: 41},
	}
	e := NewEstimator()
	e.Grouping = GroupBySatellite
	e.Annotate(obs)
	if obs[1].RangeRateKmS == nil {
		t.Fatalf("satellite-only grouping should difference across sensors")
	}
}

func TestEstimatorAnnotate_DiscardsImplausibleSuppliedRange(t *testing.T) {
	obs := []model.Observation{
		{SatNo: 7, SensorID: "A", Time: at(0), Elevation: 30, RangeKm: model.Float(9000)},
		{SatNo: 7, SensorID: "A", Time: at(10), Elevation: 30, RangeKm: model.Float(1200)},
	}
	warnings := NewEstimator().Annotate(obs)

	if obs[1].RangeKm == nil || *obs[1].RangeKm != 1200 {
		t.Fatalf("plausible supplied range must be kept, got %v", obs[1].RangeKm)
	}
	if obs[0].RangeKm == nil || *obs[0].RangeKm == 9000 {
		t.Fatalf("implausible supplied range should be replaced by the estimate")
	}
	if len(warnings) != 1 || warnings[0].Value != 9000 {
		t.Fatalf("warnings = %+v, want the discarded 9000 km range", warnings)
	}
}
