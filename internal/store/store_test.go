package store

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/uct-pipeline/internal/quality"
	"github.com/signalsfoundry/uct-pipeline/model"
)

var epoch = time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", Tables{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func exec(t *testing.T, s *Store, query string, args ...any) {
	t.Helper()
	if _, err := s.DB().Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func TestLoadObservationsWithOptionalColumns(t *testing.T) {
	s := openTestStore(t)
	exec(t, s, `CREATE TABLE observations (
		sat_no INTEGER, ob_time TIMESTAMP, sensor_name VARCHAR,
		ra DOUBLE, declination DOUBLE, azimuth DOUBLE, elevation DOUBLE, range_km DOUBLE)`)
	exec(t, s, `INSERT INTO observations VALUES
		(200, ?, 'B', 1, 2, 3, 40, NULL),
		(100, ?, 'A', 10, 20, 30, 45, 900)`, epoch.Add(time.Minute), epoch)

	obs, err := s.LoadObservations(context.Background())
	if err != nil {
		t.Fatalf("LoadObservations: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("got %d rows, want 2", len(obs))
	}
	first := obs[0]
	if first.SatNo != 100 || first.SensorID != "A" || !first.Time.Equal(epoch) || first.Elevation != 45 {
		t.Fatalf("unexpected first row %+v", first)
	}
	if first.RangeKm == nil || *first.RangeKm != 900 {
		t.Fatalf("range not loaded: %+v", first)
	}
	if obs[1].RangeKm != nil || obs[1].Provenance.IsSimulated() || obs[1].DataMode != model.DataModeReal {
		t.Fatalf("unexpected second row %+v", obs[1])
	}
}

func TestLoadObservationsIsolatesNullValues(t *testing.T) {
	s := openTestStore(t)
	exec(t, s, `CREATE TABLE observations (
		sat_no INTEGER, ob_time TIMESTAMP, sensor_name VARCHAR,
		ra DOUBLE, declination DOUBLE, azimuth DOUBLE, elevation DOUBLE)`)
	exec(t, s, `INSERT INTO observations VALUES
		(100, ?, 'A', 10, 20, 30, 45),
		(200, ?, 'B', 1, 2, 3, NULL),
		(300, NULL, NULL, 1, 2, 3, 40),
		(NULL, ?, 'C', 1, 2, 3, 40)`, epoch, epoch, epoch)

	obs, err := s.LoadObservations(context.Background())
	if err != nil {
		t.Fatalf("LoadObservations: %v", err)
	}
	if len(obs) != 3 {
		t.Fatalf("got %d rows, want 3 (row without sat_no skipped): %+v", len(obs), obs)
	}
	if obs[0].SatNo != 100 || obs[0].Elevation != 45 || obs[0].SensorID != "A" {
		t.Fatalf("good satellite not loaded intact: %+v", obs[0])
	}
	if obs[1].SatNo != 200 || !math.IsNaN(obs[1].Elevation) || obs[1].Azimuth != 3 {
		t.Fatalf("NULL elevation should load as NaN: %+v", obs[1])
	}
	if obs[2].SatNo != 300 || !obs[2].Time.IsZero() || obs[2].SensorID != "" {
		t.Fatalf("NULL time and sensor should load as zero values: %+v", obs[2])
	}
}

func TestLoadObservationsMissingColumns(t *testing.T) {
	s := openTestStore(t)
	exec(t, s, `CREATE TABLE observations (sat_no INTEGER, ob_time TIMESTAMP, ra DOUBLE)`)

	_, err := s.LoadObservations(context.Background())
	if !errors.Is(err, model.ErrMissingData) {
		t.Fatalf("error = %v, want ErrMissingData", err)
	}
	var mde *model.MissingDataError
	if !errors.As(err, &mde) || len(mde.Columns) != 4 || mde.Table != "observations" {
		t.Fatalf("unexpected missing-data error %+v", mde)
	}
}

func TestMissingTableIsNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.LoadConjunctions(context.Background()); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("error = %v, want ErrTableNotFound", err)
	}
	if _, err := s.LoadReferences(context.Background()); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("error = %v, want ErrTableNotFound", err)
	}
}

func TestLoadConjunctionsAndReferences(t *testing.T) {
	s := openTestStore(t)
	exec(t, s, `CREATE TABLE conjunction (sat_no1 INTEGER, sat_no2 INTEGER, tca TIMESTAMP, miss_distance_km DOUBLE)`)
	exec(t, s, `INSERT INTO conjunction VALUES (1, NULL, ?, 0.5), (NULL, 2, NULL, NULL)`, epoch)
	exec(t, s, `CREATE TABLE reference_tle (sat_no INTEGER, line1 VARCHAR, line2 VARCHAR)`)
	exec(t, s, `INSERT INTO reference_tle VALUES (25544, 'l1', 'l2')`)

	conj, err := s.LoadConjunctions(context.Background())
	if err != nil {
		t.Fatalf("LoadConjunctions: %v", err)
	}
	if len(conj) != 2 {
		t.Fatalf("got %d conjunctions, want 2", len(conj))
	}
	c := conj[0]
	if c.SatNo1 == nil || *c.SatNo1 != 1 || c.SatNo2 != nil || !c.TCA.Equal(epoch) || *c.MissDistanceKm != 0.5 {
		t.Fatalf("unexpected first conjunction %+v", c)
	}
	if c := conj[1]; c.SatNo1 != nil || *c.SatNo2 != 2 || !c.TCA.IsZero() || c.MissDistanceKm != nil {
		t.Fatalf("unexpected second conjunction %+v", c)
	}

	refs, err := s.LoadReferences(context.Background())
	if err != nil {
		t.Fatalf("LoadReferences: %v", err)
	}
	if len(refs) != 1 || refs[0].SatNo != 25544 || refs[0].Line2 != "l2" {
		t.Fatalf("unexpected references %+v", refs)
	}
}

func TestWriteObservationsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	in := []model.Observation{
		{ID: "a", SatNo: 5, SensorID: "S", Time: epoch, RA: 1, Declination: 2, Azimuth: 3, Elevation: 30,
			RangeKm: model.Float(1000), TrackID: "TRK000001", DataMode: model.DataModeReal},
		{ID: "b", SatNo: 5, SensorID: "S", Time: epoch.Add(time.Second), Elevation: 31,
			Provenance: model.ProvenanceSimulated, DataMode: model.DataModeSimulated, CreatedAt: epoch},
	}
	if err := s.WriteObservations(ctx, s.Tables().Final, in); err != nil {
		t.Fatalf("WriteObservations: %v", err)
	}
	// rewriting replaces rather than appends
	if err := s.WriteObservations(ctx, s.Tables().Final, in); err != nil {
		t.Fatalf("second WriteObservations: %v", err)
	}

	var n, simulated, missingRate int
	row := s.DB().QueryRow(`SELECT count(*), count(*) FILTER (WHERE is_simulated),
		count(*) FILTER (WHERE range_rate_km_s IS NULL) FROM observations_final`)
	if err := row.Scan(&n, &simulated, &missingRate); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n != 2 || simulated != 1 || missingRate != 2 {
		t.Fatalf("n=%d simulated=%d missingRate=%d", n, simulated, missingRate)
	}

	s.tables.Observations = s.Tables().Final
	back, err := s.LoadObservations(ctx)
	if err != nil {
		t.Fatalf("LoadObservations: %v", err)
	}
	if len(back) != 2 || back[0].ID != "a" || !back[1].Provenance.IsSimulated() || back[1].DataMode != model.DataModeSimulated {
		t.Fatalf("unexpected round trip %+v", back)
	}
}

func TestWriteTracksAndEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tracks := []model.Track{{ID: "TRK000001", SatNo: 1, SensorID: "A", NumObs: 2, Start: epoch, End: epoch.Add(30 * time.Second)}}
	if err := s.WriteTracks(ctx, tracks); err != nil {
		t.Fatalf("WriteTracks: %v", err)
	}
	var duration float64
	if err := s.DB().QueryRow(`SELECT duration_sec FROM tracks WHERE track_id = 'TRK000001'`).Scan(&duration); err != nil {
		t.Fatalf("scan track: %v", err)
	}
	if duration != 30 {
		t.Fatalf("duration = %v, want 30", duration)
	}

	events := []model.Event{
		{ID: "e1", SatNo: 1, Type: model.EventSingleObsTrack, Time: epoch, TrackID: "TRK000001", Confidence: 0.7,
			Source: model.SourceComputed, Details: map[string]any{"sensor": "A"}, CreatedAt: epoch},
		{ID: "e2", SatNo: 2, Type: model.EventConjunction, Confidence: 0.3, Source: model.SourceExternal,
			Details: map[string]any{"miss_distance_km": 999.0}, CreatedAt: epoch},
	}
	if err := s.WriteEvents(ctx, events); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}
	var nullTimes, nullTracks int
	if err := s.DB().QueryRow(`SELECT count(*) FILTER (WHERE event_time IS NULL),
		count(*) FILTER (WHERE track_id IS NULL) FROM events`).Scan(&nullTimes, &nullTracks); err != nil {
		t.Fatalf("scan events: %v", err)
	}
	if nullTimes != 1 || nullTracks != 1 {
		t.Fatalf("nullTimes=%d nullTracks=%d, want 1 and 1", nullTimes, nullTracks)
	}
	var raw string
	if err := s.DB().QueryRow(`SELECT details FROM events WHERE id = 'e1'`).Scan(&raw); err != nil {
		t.Fatalf("scan details: %v", err)
	}
	var details map[string]any
	if err := json.Unmarshal([]byte(raw), &details); err != nil || details["sensor"] != "A" {
		t.Fatalf("details = %q (%v)", raw, err)
	}
}

func TestWriteRegimes(t *testing.T) {
	s := openTestStore(t)
	summaries := []model.OrbitSummary{
		{SatNo: 1, Regime: model.RegimeLEO, SemiMajorAxis: 6790, Period: 92 * time.Minute},
		{SatNo: 2, Regime: model.RegimeNoTLE},
	}
	if err := s.WriteRegimes(context.Background(), summaries); err != nil {
		t.Fatalf("WriteRegimes: %v", err)
	}
	var period float64
	if err := s.DB().QueryRow(`SELECT period_minutes FROM satellite_regimes WHERE regime = 'LEO'`).Scan(&period); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if period != 92 {
		t.Fatalf("period = %v, want 92", period)
	}
}

func TestWriteQuality(t *testing.T) {
	s := openTestStore(t)
	report := quality.Report{
		Total:   4,
		Checks:  []quality.Check{{Name: "elevation", Passed: 3, Total: 4}},
		Missing: []quality.Missing{{Field: "range_km", Count: 1, Mechanism: quality.MNAR, Method: "calculated from elevation"}},
	}
	if err := s.WriteQuality(context.Background(), []QualityReport{{Dataset: "REAL", Report: report}}); err != nil {
		t.Fatalf("WriteQuality: %v", err)
	}
	var (
		passed   bool
		n, total int
	)
	if err := s.DB().QueryRow(`SELECT passed, n_obs, total FROM observations_quality WHERE kind = 'check'`).Scan(&passed, &n, &total); err != nil {
		t.Fatalf("scan check: %v", err)
	}
	if passed || n != 3 || total != 4 {
		t.Fatalf("check row = %v %d/%d, want failed 3/4", passed, n, total)
	}
	var mechanism string
	if err := s.DB().QueryRow(`SELECT mechanism, n_obs FROM observations_quality WHERE kind = 'missing'`).Scan(&mechanism, &n); err != nil {
		t.Fatalf("scan missing: %v", err)
	}
	if mechanism != "MNAR" || n != 1 {
		t.Fatalf("missing row = %s %d, want MNAR 1", mechanism, n)
	}
}
