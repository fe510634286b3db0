package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/uct-pipeline/internal/logging"
	"github.com/signalsfoundry/uct-pipeline/internal/quality"
	"github.com/signalsfoundry/uct-pipeline/model"
)

// Required input columns.
var (
	ObservationColumns = []string{"sat_no", "ob_time", "sensor_name", "ra", "declination", "azimuth", "elevation"}
	ConjunctionColumns = []string{"sat_no1", "sat_no2"}
	ReferenceColumns   = []string{"sat_no", "line1", "line2"}
)

const observationDDL = `
	id VARCHAR,
	sat_no INTEGER,
	sensor_name VARCHAR,
	ob_time TIMESTAMP,
	ra DOUBLE,
	declination DOUBLE,
	azimuth DOUBLE,
	elevation DOUBLE,
	range_km DOUBLE,
	range_rate_km_s DOUBLE,
	track_id VARCHAR,
	is_simulated BOOLEAN,
	data_mode VARCHAR,
	created_at TIMESTAMP`

// LoadObservations reads the observation table ordered by satellite and
// time. range_km, is_simulated, data_mode and id are optional. A row with a
// NULL sat_no cannot be attributed and is skipped. NULL angles load as NaN,
// and NULL ob_time or sensor_name load as zero values, so the pipeline can
// drop the row for its satellite alone.
func (s *Store) LoadObservations(ctx context.Context) ([]model.Observation, error) {
	table := s.tables.Observations
	cols, err := s.Require(ctx, table, ObservationColumns)
	if err != nil {
		return nil, err
	}
	want := append(append([]string(nil), ObservationColumns...), "id", "range_km", "is_simulated", "data_mode")
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY sat_no, ob_time", project(cols, want), quote(table))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var (
		out     []model.Observation
		unowned int
	)
	for rows.Next() {
		var (
			o                model.Observation
			satNo            sql.NullInt64
			obTime           sql.NullTime
			sensor, id, mode sql.NullString
			ra, dec, az, el  sql.NullFloat64
			rangeKm          sql.NullFloat64
			simulated        sql.NullBool
		)
		if err := rows.Scan(&satNo, &obTime, &sensor, &ra, &dec, &az, &el,
			&id, &rangeKm, &simulated, &mode); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		if !satNo.Valid {
			unowned++
			continue
		}
		o.SatNo = int(satNo.Int64)
		if obTime.Valid {
			o.Time = obTime.Time.UTC()
		}
		o.SensorID = sensor.String
		o.RA, o.Declination = floatOrNaN(ra), floatOrNaN(dec)
		o.Azimuth, o.Elevation = floatOrNaN(az), floatOrNaN(el)
		o.ID = id.String
		if rangeKm.Valid {
			o.RangeKm = model.Float(rangeKm.Float64)
		}
		if simulated.Valid && simulated.Bool {
			o.Provenance = model.ProvenanceSimulated
		}
		o.DataMode = mode.String
		if o.DataMode == "" {
			o.DataMode = o.Provenance.String()
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if unowned > 0 {
		s.log.Warn(ctx, "observations without sat_no skipped",
			logging.String("table", table), logging.Int("rows", unowned))
	}
	return out, nil
}

// LoadConjunctions reads the conjunction feed. tca and miss_distance_km are
// optional.
func (s *Store) LoadConjunctions(ctx context.Context) ([]model.Conjunction, error) {
	table := s.tables.Conjunctions
	cols, err := s.Require(ctx, table, ConjunctionColumns)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s",
		project(cols, []string{"sat_no1", "sat_no2", "tca", "miss_distance_km"}), quote(table))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []model.Conjunction
	for rows.Next() {
		var (
			sat1, sat2 sql.NullInt64
			tca        sql.NullTime
			miss       sql.NullFloat64
		)
		if err := rows.Scan(&sat1, &sat2, &tca, &miss); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		c := model.Conjunction{SatNo1: intPtr(sat1), SatNo2: intPtr(sat2)}
		if tca.Valid {
			c.TCA = tca.Time.UTC()
		}
		if miss.Valid {
			c.MissDistanceKm = model.Float(miss.Float64)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadReferences reads the reference TLE table.
func (s *Store) LoadReferences(ctx context.Context) ([]model.ReferenceTLE, error) {
	table := s.tables.References
	if _, err := s.Require(ctx, table, ReferenceColumns); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT sat_no, line1, line2 FROM %s ORDER BY sat_no", quote(table)))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []model.ReferenceTLE
	for rows.Next() {
		var (
			tle   model.ReferenceTLE
			satNo int64
		)
		if err := rows.Scan(&satNo, &tle.Line1, &tle.Line2); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		tle.SatNo = int(satNo)
		out = append(out, tle)
	}
	return out, rows.Err()
}

// WriteObservations replaces table with obs.
func (s *Store) WriteObservations(ctx context.Context, table string, obs []model.Observation) error {
	return s.replace(ctx, table, observationDDL,
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", len(obs),
		func(i int) []any {
			o := obs[i]
			return []any{
				nullString(o.ID), o.SatNo, o.SensorID, o.Time.UTC(),
				o.RA, o.Declination, o.Azimuth, o.Elevation,
				nullFloat(o.RangeKm), nullFloat(o.RangeRateKmS),
				nullString(o.TrackID), o.Provenance.IsSimulated(), o.DataMode, nullTime(o.CreatedAt),
			}
		})
}

// WriteTracks replaces the track table.
func (s *Store) WriteTracks(ctx context.Context, tracks []model.Track) error {
	return s.replace(ctx, s.tables.Tracks, `
		track_id VARCHAR,
		sat_no INTEGER,
		sensor_name VARCHAR,
		n_obs INTEGER,
		start_time TIMESTAMP,
		end_time TIMESTAMP,
		duration_sec DOUBLE`,
		"VALUES (?, ?, ?, ?, ?, ?, ?)", len(tracks),
		func(i int) []any {
			t := tracks[i]
			return []any{t.ID, t.SatNo, t.SensorID, t.NumObs, t.Start.UTC(), t.End.UTC(), t.Duration().Seconds()}
		})
}

// WriteEvents replaces the event table. Details are stored as JSON text.
func (s *Store) WriteEvents(ctx context.Context, events []model.Event) error {
	details := make([]string, len(events))
	for i, ev := range events {
		b, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("encode details of event %s: %w", ev.ID, err)
		}
		details[i] = string(b)
	}
	return s.replace(ctx, s.tables.Events, `
		id VARCHAR,
		sat_no INTEGER,
		event_type VARCHAR,
		event_time TIMESTAMP,
		track_id VARCHAR,
		confidence DOUBLE,
		source VARCHAR,
		details VARCHAR,
		created_at TIMESTAMP`,
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", len(events),
		func(i int) []any {
			ev := events[i]
			return []any{
				ev.ID, ev.SatNo, string(ev.Type), nullTime(ev.Time), nullString(ev.TrackID),
				ev.Confidence, string(ev.Source), details[i], nullTime(ev.CreatedAt),
			}
		})
}

// WriteRegimes replaces the per-satellite orbital context table.
func (s *Store) WriteRegimes(ctx context.Context, summaries []model.OrbitSummary) error {
	return s.replace(ctx, s.tables.Regimes, `
		sat_no INTEGER,
		regime VARCHAR,
		semi_major_axis_km DOUBLE,
		eccentricity DOUBLE,
		period_minutes DOUBLE,
		mean_motion DOUBLE,
		periods_covered DOUBLE`,
		"VALUES (?, ?, ?, ?, ?, ?, ?)", len(summaries),
		func(i int) []any {
			o := summaries[i]
			return []any{o.SatNo, string(o.Regime), o.SemiMajorAxis, o.Eccentricity,
				o.Period.Minutes(), o.MeanMotion, o.PeriodsCovered}
		})
}

// QualityReport labels a quality report with the dataset it profiles.
type QualityReport struct {
	Dataset string
	Report  quality.Report
}

// WriteQuality replaces the quality table. Each validity check becomes a
// "check" row counting passing observations, and each profiled field a
// "missing" row counting absent values.
func (s *Store) WriteQuality(ctx context.Context, reports []QualityReport) error {
	type row struct {
		dataset, kind, name string
		count, total        int
		passed              any
		mechanism, method   any
	}
	var rows []row
	for _, qr := range reports {
		for _, c := range qr.Report.Checks {
			rows = append(rows, row{qr.Dataset, "check", c.Name, c.Passed, c.Total, c.OK(), nil, nil})
		}
		for _, m := range qr.Report.Missing {
			rows = append(rows, row{qr.Dataset, "missing", m.Field, m.Count, qr.Report.Total, nil,
				string(m.Mechanism), m.Method})
		}
	}
	return s.replace(ctx, s.tables.Quality, `
		dataset VARCHAR,
		kind VARCHAR,
		name VARCHAR,
		n_obs INTEGER,
		total INTEGER,
		passed BOOLEAN,
		mechanism VARCHAR,
		method VARCHAR`,
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?)", len(rows),
		func(i int) []any {
			r := rows[i]
			return []any{r.dataset, r.kind, r.name, r.count, r.total, r.passed, r.mechanism, r.method}
		})
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
