package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/uct-pipeline/internal/logging"
	"github.com/signalsfoundry/uct-pipeline/internal/store"
	"github.com/signalsfoundry/uct-pipeline/model"
)

// RunStore loads the input tables from s, runs the pipeline and replaces
// every output table. A missing or malformed conjunction or reference table
// is treated as unavailable external data.
func (p *Pipeline) RunStore(ctx context.Context, s *store.Store) (*Result, error) {
	ctx, log := logging.WithRunLogger(ctx, p.log)
	obs, err := s.LoadObservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	conj, err := s.LoadConjunctions(ctx)
	if err != nil {
		if !optional(err) {
			return nil, fmt.Errorf("load conjunctions: %w", err)
		}
		log.Warn(ctx, "conjunction feed unavailable", logging.Err(err))
	}
	refs, err := s.LoadReferences(ctx)
	if err != nil {
		if !optional(err) {
			return nil, fmt.Errorf("load references: %w", err)
		}
		log.Warn(ctx, "reference TLEs unavailable", logging.Err(err))
	}

	res, err := p.Run(ctx, Input{Observations: obs, Conjunctions: conj, References: refs})
	if err != nil {
		return nil, err
	}
	if err := p.write(ctx, s, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) write(ctx context.Context, s *store.Store, res *Result) error {
	t := s.Tables()
	writes := []tableWrite{
		{t.Final, func() error { return s.WriteObservations(ctx, t.Final, res.Observations) }},
		{t.Tracks, func() error { return s.WriteTracks(ctx, res.Tracks) }},
		{t.Events, func() error { return s.WriteEvents(ctx, res.Events) }},
		{t.Simulated, func() error { return s.WriteObservations(ctx, t.Simulated, res.Simulated) }},
		{t.Regimes, func() error { return s.WriteRegimes(ctx, res.Regimes) }},
		{t.Quality, func() error {
			return s.WriteQuality(ctx, []store.QualityReport{
				{Dataset: model.ProvenanceReal.String(), Report: res.Quality},
				{Dataset: model.ProvenanceSimulated.String(), Report: res.SimulatedQuality},
			})
		}},
	}
	if res.Tier != nil && res.Tier.Downsample {
		writes = append(writes, tableWrite{t.Downsampled, func() error {
			return s.WriteObservations(ctx, t.Downsampled, res.Downsampled)
		}})
	}
	for _, w := range writes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.fn(); err != nil {
			return fmt.Errorf("write %s: %w", w.table, err)
		}
	}
	return nil
}

type tableWrite struct {
	table string
	fn    func() error
}

func optional(err error) bool {
	return errors.Is(err, store.ErrTableNotFound) || errors.Is(err, model.ErrMissingData)
}
