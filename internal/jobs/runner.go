package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortuna/courtside/internal/league"
	"github.com/fortuna/courtside/internal/models"
	"github.com/fortuna/courtside/internal/service"
)

// BaselineGenerator produces a new league baseline.
type BaselineGenerator interface {
	Generate(ctx context.Context) (*models.LeagueBaseline, error)
}

// AggregateRecalculator rebuilds player aggregates.
type AggregateRecalculator interface {
	Recalculate(ctx context.Context, playerID string) (*models.PlayerAggregate, error)
	RecalculateAll(ctx context.Context, progress func(done, total int)) (service.RecalcSummary, error)
}

// EloRegenerator replays Elo over the stored history.
type EloRegenerator interface {
	Regenerate(ctx context.Context) (models.EloMap, error)
}

// Deduper removes duplicate uploads from the game history.
type Deduper interface {
	RemoveDuplicates(ctx context.Context) (service.DedupeResult, error)
}

// Runner executes job specs against the rating services.
type Runner struct {
	league     BaselineGenerator
	aggregates AggregateRecalculator
	elo        EloRegenerator
	games      Deduper
}

// NewRunner constructs a runner from its collaborators.
func NewRunner(lg BaselineGenerator, aggregates AggregateRecalculator, elo EloRegenerator, games Deduper) *Runner {
	return &Runner{league: lg, aggregates: aggregates, elo: elo, games: games}
}

// NewServiceRunner wires a runner to the pipeline services.
func NewServiceRunner(svc *service.Services) *Runner {
	return NewRunner(svc.League, svc.Aggregates, svc.Elo, svc.Games)
}

// Run executes the job spec, reporting progress via the Reporter if provided.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) error {
	if reporter == nil {
		reporter = nopReporter{}
	}
	reporter.OnJobStart(spec)

	if spec.DryRun {
		reporter.OnProgress("Dry-run mode: no data will be written", 0, 0)
		reporter.OnJobComplete()
		return nil
	}

	var err error
	switch spec.Type {
	case JobTypeLeagueBaseline:
		_, err = r.baseline(ctx, reporter)
	case JobTypePlayerAverages:
		err = r.averages(ctx, spec.PlayerIDs, reporter)
	case JobTypeEloRegenerate:
		err = r.regenerateElo(ctx, reporter)
	case JobTypeDedupeGames:
		err = r.dedupe(ctx, reporter)
	case JobTypeNightly:
		err = r.nightly(ctx, reporter)
	default:
		err = fmt.Errorf("unsupported job type %s", spec.Type)
	}
	if err != nil {
		reporter.OnJobError(err)
		return err
	}

	reporter.OnJobComplete()
	return nil
}

// nightly generates the baseline before recomputing players so every
// aggregate is normalized against the same league. When the baseline had no
// aPER to normalize against, which happens until players carry aPER, it is
// regenerated from the fresh aggregates and players are recomputed again.
func (r *Runner) nightly(ctx context.Context, reporter Reporter) error {
	const steps = 2

	reporter.OnStepStart(JobTypeLeagueBaseline, 0, steps)
	lg, err := r.baseline(ctx, reporter)
	if err != nil && !errors.Is(err, league.ErrNoQualifyingPlayers) {
		return err
	}

	reporter.OnStepStart(JobTypePlayerAverages, 1, steps)
	if err := r.averages(ctx, nil, reporter); err != nil {
		return err
	}

	if lg != nil && lg.APER > 0 {
		return nil
	}

	reporter.OnProgress("Baseline had no aPER; running a second pass", steps, steps)
	if _, err := r.baseline(ctx, reporter); err != nil {
		if errors.Is(err, league.ErrNoQualifyingPlayers) {
			return nil
		}
		return err
	}
	return r.averages(ctx, nil, reporter)
}

func (r *Runner) baseline(ctx context.Context, reporter Reporter) (*models.LeagueBaseline, error) {
	lg, err := r.league.Generate(ctx)
	if errors.Is(err, league.ErrNoQualifyingPlayers) {
		reporter.OnProgress("No players qualify for a league baseline yet", 0, 0)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("generate league baseline: %w", err)
	}
	reporter.OnProgress(fmt.Sprintf("League baseline %s from %d players", lg.ID, lg.Players), 1, 1)
	return lg, nil
}

func (r *Runner) averages(ctx context.Context, playerIDs []string, reporter Reporter) error {
	if len(playerIDs) == 0 {
		summary, err := r.aggregates.RecalculateAll(ctx, func(done, total int) {
			reporter.OnProgress(fmt.Sprintf("Recomputed %d/%d players", done, total), done, total)
		})
		if err != nil {
			return fmt.Errorf("recompute players: %w", err)
		}
		reporter.OnProgress(fmt.Sprintf("Players: %d updated, %d skipped, %d failed",
			summary.Updated, summary.Skipped, summary.Failed), summary.Players, summary.Players)
		return nil
	}

	total := len(playerIDs)
	var errs []error
	for i, id := range playerIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.aggregates.Recalculate(ctx, id); err != nil && !errors.Is(err, service.ErrTooFewGames) {
			errs = append(errs, fmt.Errorf("player %s: %w", id, err))
		}
		reporter.OnProgress(fmt.Sprintf("Recomputed player %s (%d/%d)", id, i+1, total), i+1, total)
	}
	return errors.Join(errs...)
}

func (r *Runner) regenerateElo(ctx context.Context, reporter Reporter) error {
	ratings, err := r.elo.Regenerate(ctx)
	if err != nil {
		return fmt.Errorf("regenerate elo: %w", err)
	}
	reporter.OnProgress(fmt.Sprintf("Elo replayed for %d players", len(ratings)), len(ratings), len(ratings))
	return nil
}

func (r *Runner) dedupe(ctx context.Context, reporter Reporter) error {
	res, err := r.games.RemoveDuplicates(ctx)
	if err != nil {
		return fmt.Errorf("remove duplicate games: %w", err)
	}
	reporter.OnProgress(fmt.Sprintf("Removed %d duplicate games in %d groups", res.Deleted, res.Groups), res.Scanned, res.Scanned)
	return nil
}

type nopReporter struct{}

func (nopReporter) OnJobStart(JobSpec) {}
func (nopReporter) OnStepStart(JobType, int, int) {}
func (nopReporter) OnProgress(string, int, int) {}
func (nopReporter) OnJobComplete() {}
func (nopReporter) OnJobError(error) {}
