// Package pipeline wires the estimator, segmenter, detector, synthesizer and
// tier routing into one batch run.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/signalsfoundry/uct-pipeline/core"
	"github.com/signalsfoundry/uct-pipeline/internal/config"
	"github.com/signalsfoundry/uct-pipeline/internal/detect"
	"github.com/signalsfoundry/uct-pipeline/internal/logging"
	"github.com/signalsfoundry/uct-pipeline/internal/observability"
	"github.com/signalsfoundry/uct-pipeline/internal/quality"
	"github.com/signalsfoundry/uct-pipeline/internal/synth"
	"github.com/signalsfoundry/uct-pipeline/internal/tier"
	"github.com/signalsfoundry/uct-pipeline/kb"
	"github.com/signalsfoundry/uct-pipeline/model"
	"github.com/signalsfoundry/uct-pipeline/timectrl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Input is the in-memory form of the input tables. Conjunctions and
// References may be nil.
type Input struct {
	Observations []model.Observation
	Conjunctions []model.Conjunction
	References   []model.ReferenceTLE
}

// Result holds every output table of a run.
type Result struct {
	// Observations is the annotated authoritative table.
	Observations []model.Observation
	Tracks       []model.Track
	Events       []model.Event
	// Simulated is the separate synthetic observation set.
	Simulated []model.Observation
	// Downsampled is the tier-limited view, nil without a downsampling tier.
	Downsampled []model.Observation
	Regimes     []model.OrbitSummary
	Quality     quality.Report
	// SimulatedQuality profiles Simulated.
	SimulatedQuality quality.Report
	Warnings         []model.Warning
	Duplicates       int
	Tier             *tier.Profile
}

// Pipeline runs the stages with an explicit configuration.
type Pipeline struct {
	cfg       config.Config
	tier      *tier.Profile
	log       logging.Logger
	collector *observability.PipelineCollector
	clock     timectrl.Clock
	tracer    trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(p *Pipeline) { p.log = l } }

// WithCollector sets the metrics collector.
func WithCollector(c *observability.PipelineCollector) Option {
	return func(p *Pipeline) { p.collector = c }
}

// WithClock sets the clock used for created_at stamps.
func WithClock(c timectrl.Clock) Option { return func(p *Pipeline) { p.clock = c } }

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option { return func(p *Pipeline) { p.tracer = t } }

// New validates cfg and builds a Pipeline.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg}
	if cfg.Tier != "" {
		prof, err := tier.Lookup(cfg.Tier)
		if err != nil {
			return nil, err
		}
		p.tier = &prof
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.OrNoop(p.log)
	p.clock = timectrl.OrDefault(p.clock)
	if p.tracer == nil {
		p.tracer = observability.Tracer()
	}
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() config.Config { return p.cfg }

// Run executes every stage over in. The input slices are not modified.
// Context cancellation is checked between stages.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	ctx, log := logging.WithRunLogger(ctx, p.log)
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.Int("observations", len(in.Observations))))
	defer span.End()

	res := &Result{Tier: p.tier}
	obs := append([]model.Observation(nil), in.Observations...)

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"screen", func(ctx context.Context) error {
			var dropped []model.Warning
			obs, dropped = screen(obs)
			for _, w := range dropped {
				p.collector.IncRowSkip(w.Field)
				log.Warn(ctx, "unusable observation dropped",
					logging.SatNo(w.SatNo),
					logging.String("field", w.Field),
					logging.String("reason", w.Reason),
				)
			}
			res.Warnings = append(res.Warnings, dropped...)
			return nil
		}},
		{"dedup", func(ctx context.Context) error {
			if !p.cfg.Ingest.Deduplicate {
				return nil
			}
			obs, res.Duplicates = Deduplicate(obs)
			return nil
		}},
		{"estimate", func(ctx context.Context) error {
			implausible := p.cfg.Estimator().Annotate(obs)
			res.Warnings = append(res.Warnings, implausible...)
			for _, w := range implausible {
				p.collector.IncWarning(w.Field)
				log.Debug(ctx, "implausible value discarded",
					logging.SatNo(w.SatNo),
					logging.String("field", w.Field),
					logging.Float64("value", w.Value),
					logging.String("reason", w.Reason),
				)
			}
			return nil
		}},
		{"segment", func(ctx context.Context) error {
			res.Tracks = core.Segment(obs, p.cfg.GapThreshold())
			p.collector.SetTracks(len(res.Tracks))
			return nil
		}},
		{"regimes", func(ctx context.Context) error {
			res.Regimes = regimes(ctx, log, obs, in.References)
			return nil
		}},
		{"detect", func(ctx context.Context) error {
			d := detect.New(p.cfg.Events,
				detect.WithClock(p.clock),
				detect.WithLogger(log),
				detect.WithRecorder(p.collector),
			)
			events, err := d.Run(ctx, detect.Input{
				Observations: obs,
				Tracks:       res.Tracks,
				Conjunctions: in.Conjunctions,
			})
			res.Events = events
			return err
		}},
		{"synthesize", func(ctx context.Context) error {
			if !p.simulate() {
				log.Info(ctx, "synthesis skipped")
				return nil
			}
			sparse := synth.Sparse(obs, p.cfg.Events.SparseThreshold)
			p.collector.SetSparseSatellites(len(sparse))
			s := synth.New(p.cfg.SynthConfig(), synth.WithClock(p.clock), synth.WithLogger(log))
			sim, err := s.Run(ctx, obs)
			res.Simulated = sim
			return err
		}},
		{"downsample", func(ctx context.Context) error {
			if p.tier != nil {
				res.Downsampled = p.tier.Apply(obs)
			}
			return nil
		}},
		{"quality", func(ctx context.Context) error {
			res.Quality = quality.Evaluate(obs, p.cfg.Bounds())
			res.SimulatedQuality = quality.Evaluate(res.Simulated, p.cfg.Bounds())
			return nil
		}},
	}

	for _, st := range stages {
		if err := p.stage(ctx, st.name, st.run); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	res.Observations = obs

	p.collector.AddObservations(model.ProvenanceReal.String(), len(obs))
	p.collector.AddObservations(model.ProvenanceSimulated.String(), len(res.Simulated))
	log.Info(ctx, "pipeline complete",
		logging.Int("observations", len(obs)),
		logging.Int("tracks", len(res.Tracks)),
		logging.Int("events", len(res.Events)),
		logging.Int("simulated", len(res.Simulated)),
		logging.Int("warnings", len(res.Warnings)),
		logging.Any("quality_pass", res.Quality.AllPass()),
	)
	return res, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, run func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := run(ctx)
	p.collector.ObserveStage(name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// simulate reports whether the synthesizer runs: it must be enabled and a
// configured tier must call for simulation.
func (p *Pipeline) simulate() bool {
	if !p.cfg.Synthesis.Enabled {
		return false
	}
	return p.tier == nil || p.tier.Simulate
}

// regimes classifies every observed satellite from the reference TLEs and
// records how many orbital periods its observations cover.
func regimes(ctx context.Context, log logging.Logger, obs []model.Observation, refs []model.ReferenceTLE) []model.OrbitSummary {
	if len(refs) == 0 {
		return nil
	}
	refKB := kb.NewKnowledgeBase()
	_, failures := refKB.Load(refs)
	for sat, err := range failures {
		log.Warn(ctx, "reference TLE rejected", logging.SatNo(sat), logging.Err(err))
	}

	bySat := make(map[int][]model.Observation)
	for _, o := range obs {
		bySat[o.SatNo] = append(bySat[o.SatNo], o)
	}
	sats := make([]int, 0, len(bySat))
	for s := range bySat {
		sats = append(sats, s)
	}
	sort.Ints(sats)

	summaries := refKB.Summaries(sats)
	for i := range summaries {
		summaries[i].PeriodsCovered = core.PeriodsCovered(bySat[summaries[i].SatNo], summaries[i].Period)
	}
	return summaries
}

// screen drops rows that lack a value segmentation or estimation needs and
// returns one warning per dropped row, naming the first missing field. Other
// rows of the same satellite are kept.
func screen(obs []model.Observation) ([]model.Observation, []model.Warning) {
	var warnings []model.Warning
	out := obs[:0:0]
	for _, o := range obs {
		field := unusableField(o)
		if field == "" {
			out = append(out, o)
			continue
		}
		warnings = append(warnings, model.Warning{
			Kind:   model.WarnUnusableRow,
			SatNo:  o.SatNo,
			Field:  field,
			Reason: "null or empty value",
		})
	}
	return out, warnings
}

func unusableField(o model.Observation) string {
	switch {
	case o.Time.IsZero():
		return "ob_time"
	case o.SensorID == "":
		return "sensor_name"
	case math.IsNaN(o.RA):
		return "ra"
	case math.IsNaN(o.Declination):
		return "declination"
	case math.IsNaN(o.Azimuth):
		return "azimuth"
	case math.IsNaN(o.Elevation):
		return "elevation"
	}
	return ""
}

// Deduplicate drops repeated (satellite, sensor, time) rows, keeping the
// first occurrence, and returns the number removed.
func Deduplicate(obs []model.Observation) ([]model.Observation, int) {
	type key struct {
		sat    int
		sensor string
		t      int64
	}
	seen := make(map[key]bool, len(obs))
	out := obs[:0:0]
	for _, o := range obs {
		k := key{o.SatNo, o.SensorID, o.Time.UnixNano()}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, o)
	}
	return out, len(obs) - len(out)
}
