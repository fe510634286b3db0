// Package synth generates flagged synthetic tracks for satellites with too
// little real coverage.
package synth

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/signalsfoundry/uct-pipeline/core"
	"github.com/signalsfoundry/uct-pipeline/internal/logging"
	"github.com/signalsfoundry/uct-pipeline/model"
	"github.com/signalsfoundry/uct-pipeline/timectrl"
)

// Config controls synthetic track generation.
type Config struct {
	Enabled         bool              `yaml:"enabled"`
	SparseThreshold int               `yaml:"-"` // shared with the detector
	NTracks         int               `yaml:"n_tracks"`
	ObsPerTrack     int               `yaml:"obs_per_track"`
	Step            time.Duration     `yaml:"step"`
	OrbitalPeriod   time.Duration     `yaml:"orbital_period"`
	RateGap         time.Duration     `yaml:"rate_gap"`
	FallbackRates   core.AngularRates `yaml:"fallback_rates"`
	AzimuthFactor   float64           `yaml:"azimuth_rate_factor"`
	AltitudeKm      float64           `yaml:"-"`
	Bounds          core.Bounds       `yaml:"-"`
}

// DefaultConfig returns five 30-sample tracks at 10 s spacing, one orbit apart.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		SparseThreshold: 100,
		NTracks:         5,
		ObsPerTrack:     30,
		Step:            10 * time.Second,
		OrbitalPeriod:   90 * time.Minute,
		RateGap:         core.ShortGap,
		FallbackRates:   core.NominalLEORates,
		AzimuthFactor:   0.8,
		AltitudeKm:      core.DefaultAltitudeKm,
		Bounds:          core.DefaultBounds(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SparseThreshold <= 0 {
		c.SparseThreshold = d.SparseThreshold
	}
	if c.NTracks <= 0 {
		c.NTracks = d.NTracks
	}
	if c.ObsPerTrack <= 0 {
		c.ObsPerTrack = d.ObsPerTrack
	}
	if c.Step <= 0 {
		c.Step = d.Step
	}
	if c.OrbitalPeriod <= 0 {
		c.OrbitalPeriod = d.OrbitalPeriod
	}
	if c.RateGap <= 0 {
		c.RateGap = d.RateGap
	}
	if c.FallbackRates == (core.AngularRates{}) {
		c.FallbackRates = d.FallbackRates
	}
	if c.AzimuthFactor == 0 {
		c.AzimuthFactor = d.AzimuthFactor
	}
	if c.AltitudeKm <= 0 {
		c.AltitudeKm = d.AltitudeKm
	}
	if c.Bounds == (core.Bounds{}) {
		c.Bounds = d.Bounds
	}
	return c
}

// Config returns the effective configuration.
func (s *Synthesizer) Config() Config { return s.cfg }

// Synthesizer extrapolates the recent motion of sparse satellites.
type Synthesizer struct {
	cfg   Config
	clock timectrl.Clock
	log   logging.Logger
	newID func() string
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithClock sets the clock used for CreatedAt.
func WithClock(c timectrl.Clock) Option { return func(s *Synthesizer) { s.clock = c } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(s *Synthesizer) { s.log = l } }

// WithIDFunc overrides observation ID generation.
func WithIDFunc(f func() string) Option { return func(s *Synthesizer) { s.newID = f } }

// New builds a Synthesizer.
func New(cfg Config, opts ...Option) *Synthesizer {
	s := &Synthesizer{cfg: cfg.withDefaults(), newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = timectrl.OrDefault(s.clock)
	s.log = logging.OrNoop(s.log)
	return s
}

// Sparse returns the satellites whose real observation count is below the
// threshold, in ascending order.
func Sparse(obs []model.Observation, threshold int) []int {
	var out []int
	for sat, n := range model.CountReal(obs) {
		if n < threshold {
			out = append(out, sat)
		}
	}
	sort.Ints(out)
	return out
}

// Run synthesizes tracks for every sparse satellite. The input is not
// modified; the result is a separate, simulated observation set.
func (s *Synthesizer) Run(ctx context.Context, obs []model.Observation) ([]model.Observation, error) {
	bySat := make(map[int][]model.Observation)
	for _, o := range obs {
		if o.Provenance.IsSimulated() {
			continue
		}
		bySat[o.SatNo] = append(bySat[o.SatNo], o)
	}

	var out []model.Observation
	for _, sat := range Sparse(obs, s.cfg.SparseThreshold) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		generated := s.Satellite(sat, bySat[sat])
		s.log.Debug(ctx, "synthesized tracks",
			logging.SatNo(sat),
			logging.Int("real_obs", len(bySat[sat])),
			logging.Int("simulated_obs", len(generated)),
		)
		out = append(out, generated...)
	}
	return out, nil
}

// Rates returns the representative angular rates for one satellite's real
// observations and whether they were derived rather than the fallback.
func (s *Synthesizer) Rates(real []model.Observation) (core.AngularRates, bool) {
	if len(real) < 2 {
		return s.cfg.FallbackRates, false
	}
	if r, ok := core.ExtractRates(real, s.cfg.RateGap); ok {
		return r, true
	}
	return s.cfg.FallbackRates, false
}

// Satellite generates up to NTracks synthetic tracks for one satellite from
// its real observations. Each track restarts the extrapolation from the base
// state and stops at the first step whose elevation leaves the bounds.
func (s *Synthesizer) Satellite(sat int, real []model.Observation) []model.Observation {
	if len(real) == 0 {
		return nil
	}
	sorted := append([]model.Observation(nil), real...)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Time.Before(sorted[b].Time) })
	last := sorted[len(sorted)-1]

	rates, _ := s.Rates(sorted)
	baseEl := last.Elevation
	if len(sorted) >= 2 {
		var sum float64
		for _, o := range sorted {
			sum += o.Elevation
		}
		baseEl = sum / float64(len(sorted))
	}
	motion := core.LinearMotion{
		RA:            last.RA,
		Dec:           last.Declination,
		Azimuth:       last.Azimuth,
		Elevation:     baseEl,
		Rates:         rates,
		AzimuthFactor: s.cfg.AzimuthFactor,
	}

	created := s.clock.Now()
	var out []model.Observation
	for i := 0; i < s.cfg.NTracks; i++ {
		anchor := last.Time.Add(time.Duration(i+1) * s.cfg.OrbitalPeriod)
		trackID := model.SimulatedTrackID(sat, i)
		for j := 0; j < s.cfg.ObsPerTrack; j++ {
			dt := time.Duration(j) * s.cfg.Step
			look := motion.At(dt)
			if !s.cfg.Bounds.ElevationOK(look.Elevation) {
				break
			}
			out = append(out, model.Observation{
				ID:           s.newID(),
				SatNo:        sat,
				SensorID:     last.SensorID,
				Time:         anchor.Add(dt),
				RA:           look.RA,
				Declination:  look.Dec,
				Azimuth:      look.Azimuth,
				Elevation:    look.Elevation,
				RangeKm:      model.Float(core.EstimateRange(look.Elevation, s.cfg.AltitudeKm)),
				RangeRateKmS: nil,
				TrackID:      trackID,
				Provenance:   model.ProvenanceSimulated,
				DataMode:     model.DataModeSimulated,
				CreatedAt:    created,
			})
		}
	}
	return out
}
