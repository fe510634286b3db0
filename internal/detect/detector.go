// Package detect evaluates independent event rules over segmented
// observations and an external conjunction feed.
package detect

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/signalsfoundry/uct-pipeline/internal/logging"
	"github.com/signalsfoundry/uct-pipeline/model"
	"github.com/signalsfoundry/uct-pipeline/timectrl"
)

// Recorder receives per-rule counts. *observability.PipelineCollector
// satisfies it.
type Recorder interface {
	IncEvent(eventType string)
	IncSkip(rule string)
}

// Detector runs every rule and returns the union of their events.
type Detector struct {
	cfg   Config
	clock timectrl.Clock
	log   logging.Logger
	rec   Recorder
	newID func() string
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock sets the clock used for CreatedAt.
func WithClock(c timectrl.Clock) Option { return func(d *Detector) { d.clock = c } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(d *Detector) { d.log = l } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option { return func(d *Detector) { d.rec = r } }

// WithIDFunc overrides event ID generation.
func WithIDFunc(f func() string) Option { return func(d *Detector) { d.newID = f } }

// New builds a Detector. Zero-valued thresholds take their defaults.
func New(cfg Config, opts ...Option) *Detector {
	d := &Detector{
		cfg:   cfg.withDefaults(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.clock = timectrl.OrDefault(d.clock)
	d.log = logging.OrNoop(d.log)
	return d
}

// Config returns the effective thresholds.
func (d *Detector) Config() Config { return d.cfg }

// Run evaluates all rules concurrently. Output is grouped by event type in
// model.EventTypes order, each group in the order its rule produced it.
func (d *Detector) Run(ctx context.Context, in Input) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(model.EventTypes))
	var wg sync.WaitGroup
	for i, typ := range model.EventTypes {
		rule, ok := Rules[typ]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, rule Rule) {
			defer wg.Done()
			outcomes[i] = rule(in, d.cfg)
		}(i, rule)
	}
	wg.Wait()

	now := d.clock.Now()
	var events []model.Event
	for i, typ := range model.EventTypes {
		o := outcomes[i]
		for j := range o.Events {
			ev := o.Events[j]
			ev.ID = d.newID()
			ev.CreatedAt = now
			events = append(events, ev)
			if d.rec != nil {
				d.rec.IncEvent(string(typ))
			}
		}
		if d.rec != nil {
			for k := 0; k < o.Skips; k++ {
				d.rec.IncSkip(string(typ))
			}
		}
		d.log.Debug(ctx, "rule evaluated",
			logging.String("rule", string(typ)),
			logging.Int("events", len(o.Events)),
			logging.Int("skipped", o.Skips),
		)
	}
	if in.Conjunctions == nil {
		d.log.Info(ctx, "no conjunction feed; CONJUNCTION rule produced nothing")
	}
	return events, nil
}
