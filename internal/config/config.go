// Package config loads pipeline configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/uct-pipeline/core"
	"github.com/signalsfoundry/uct-pipeline/internal/detect"
	"github.com/signalsfoundry/uct-pipeline/internal/logging"
	"github.com/signalsfoundry/uct-pipeline/internal/observability"
	"github.com/signalsfoundry/uct-pipeline/internal/store"
	"github.com/signalsfoundry/uct-pipeline/internal/synth"
	"github.com/signalsfoundry/uct-pipeline/internal/tier"
	"gopkg.in/yaml.v3"
)

// Segmentation data modes.
const (
	DataModeOptical = "optical"
	DataModeSparse  = "sparse"
)

// Config is the complete pipeline configuration.
type Config struct {
	Store        StoreConfig                 `yaml:"store"`
	Segmentation SegmentationConfig          `yaml:"segmentation"`
	Physics      PhysicsConfig               `yaml:"physics"`
	Events       detect.Config               `yaml:"events"`
	Synthesis    synth.Config                `yaml:"synthesis"`
	Tier         string                      `yaml:"tier"` // empty disables tier routing
	Ingest       IngestConfig                `yaml:"ingest"`
	Logging      logging.Config              `yaml:"logging"`
	Tracing      observability.TracingConfig `yaml:"tracing"`
	MetricsAddr  string                      `yaml:"metrics_addr"`
}

// StoreConfig locates the database and its tables.
type StoreConfig struct {
	DBPath string       `yaml:"db_path"`
	Tables store.Tables `yaml:"tables"`
}

// SegmentationConfig selects the track gap threshold.
type SegmentationConfig struct {
	DataMode string        `yaml:"data_mode"` // optical | sparse
	ShortGap time.Duration `yaml:"short_gap"`
	LongGap  time.Duration `yaml:"long_gap"`
}

// PhysicsConfig holds the estimator's assumptions and plausibility bounds.
type PhysicsConfig struct {
	AltitudeKm        float64       `yaml:"altitude_km"`
	MaxRangeRate      float64       `yaml:"max_range_rate"`
	MaxGap            time.Duration `yaml:"max_gap"`
	RangeMinKm        float64       `yaml:"range_min_km"`
	RangeMaxKm        float64       `yaml:"range_max_km"`
	ElevationMinDeg   float64       `yaml:"elevation_min_deg"`
	ElevationMaxDeg   float64       `yaml:"elevation_max_deg"`
	RangeRateGrouping string        `yaml:"range_rate_grouping"`
}

// IngestConfig controls input cleaning.
type IngestConfig struct {
	Deduplicate bool `yaml:"deduplicate"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	b := core.DefaultBounds()
	return Config{
		Store: StoreConfig{DBPath: "uct_benchmark.duckdb", Tables: store.DefaultTables()},
		Segmentation: SegmentationConfig{
			DataMode: DataModeOptical,
			ShortGap: core.ShortGap,
			LongGap:  core.LongGap,
		},
		Physics: PhysicsConfig{
			AltitudeKm:        core.DefaultAltitudeKm,
			MaxRangeRate:      b.MaxRangeRate,
			MaxGap:            b.MaxGap,
			RangeMinKm:        b.MinRangeKm,
			RangeMaxKm:        b.MaxRangeKm,
			ElevationMinDeg:   b.MinElevationDeg,
			ElevationMaxDeg:   b.MaxElevationDeg,
			RangeRateGrouping: string(core.GroupBySatelliteSensor),
		},
		Events:    detect.DefaultConfig(),
		Synthesis: synth.DefaultConfig(),
		Logging:   logging.Config{Level: "info", Format: "text"},
		Tracing:   observability.DefaultTracingConfig(),
	}
}

// Load reads path (when non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays UCT_* variables and the logging and tracing variables.
func (c *Config) ApplyEnv() {
	c.Store.DBPath = getenv("UCT_DB_PATH", c.Store.DBPath)
	c.Tier = getenv("UCT_TIER", c.Tier)
	c.Segmentation.DataMode = getenv("UCT_DATA_MODE", c.Segmentation.DataMode)
	c.Events.SparseThreshold = getenvInt("UCT_SPARSE_THRESHOLD", c.Events.SparseThreshold)
	c.MetricsAddr = getenv("UCT_METRICS_ADDR", c.MetricsAddr)
	c.Logging.Level = getenv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getenv("LOG_FORMAT", c.Logging.Format)
	c.Tracing = observability.ApplyTracingEnv(c.Tracing)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Segmentation.DataMode) {
	case DataModeOptical, DataModeSparse:
	default:
		errs = append(errs, fmt.Errorf("segmentation.data_mode must be %q or %q, got %q",
			DataModeOptical, DataModeSparse, c.Segmentation.DataMode))
	}
	if c.Segmentation.ShortGap <= 0 || c.Segmentation.LongGap <= 0 {
		errs = append(errs, errors.New("segmentation gaps must be positive"))
	}
	if c.Physics.AltitudeKm <= 0 {
		errs = append(errs, errors.New("physics.altitude_km must be positive"))
	}
	if c.Physics.MaxRangeRate <= 0 || c.Physics.MaxGap <= 0 {
		errs = append(errs, errors.New("physics.max_range_rate and physics.max_gap must be positive"))
	}
	if c.Physics.RangeMinKm >= c.Physics.RangeMaxKm {
		errs = append(errs, errors.New("physics.range_min_km must be below range_max_km"))
	}
	if c.Physics.ElevationMinDeg >= c.Physics.ElevationMaxDeg {
		errs = append(errs, errors.New("physics.elevation_min_deg must be below elevation_max_deg"))
	}
	switch core.RateGrouping(c.Physics.RangeRateGrouping) {
	case core.GroupBySatelliteSensor, core.GroupBySatellite:
	default:
		errs = append(errs, fmt.Errorf("physics.range_rate_grouping %q is not supported", c.Physics.RangeRateGrouping))
	}
	if c.Events.SparseThreshold < 1 {
		errs = append(errs, errors.New("events.sparse_threshold must be at least 1"))
	}
	if c.Events.ManeuverMinGap > c.Events.ManeuverMaxGap {
		errs = append(errs, errors.New("events.maneuver_min_gap must not exceed maneuver_max_gap"))
	}
	if c.Synthesis.NTracks < 0 || c.Synthesis.ObsPerTrack < 0 || c.Synthesis.Step < 0 {
		errs = append(errs, errors.New("synthesis counts and step must not be negative"))
	}
	if c.Tier != "" {
		if _, err := tier.Lookup(c.Tier); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Bounds returns the physical plausibility limits.
func (c Config) Bounds() core.Bounds {
	return core.Bounds{
		MinElevationDeg: c.Physics.ElevationMinDeg,
		MaxElevationDeg: c.Physics.ElevationMaxDeg,
		MinRangeKm:      c.Physics.RangeMinKm,
		MaxRangeKm:      c.Physics.RangeMaxKm,
		MaxRangeRate:    c.Physics.MaxRangeRate,
		MaxGap:          c.Physics.MaxGap,
	}
}

// GapThreshold returns the segmentation gap for the configured data mode.
func (c Config) GapThreshold() time.Duration {
	if strings.EqualFold(c.Segmentation.DataMode, DataModeSparse) {
		return c.Segmentation.LongGap
	}
	return c.Segmentation.ShortGap
}

// Estimator returns the physics estimator for this configuration.
func (c Config) Estimator() *core.Estimator {
	return &core.Estimator{
		AltitudeKm: c.Physics.AltitudeKm,
		Bounds:     c.Bounds(),
		Grouping:   core.RateGrouping(c.Physics.RangeRateGrouping),
	}
}

// SynthConfig returns the synthesizer configuration with the shared sparse
// threshold, altitude and bounds filled in.
func (c Config) SynthConfig() synth.Config {
	s := c.Synthesis
	s.SparseThreshold = c.Events.SparseThreshold
	s.AltitudeKm = c.Physics.AltitudeKm
	s.Bounds = c.Bounds()
	return s
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
