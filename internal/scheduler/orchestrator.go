// Package scheduler enqueues the periodic recompute jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/courtside/internal/jobs"
)

// Enqueuer accepts recompute jobs; *jobs.Service implements it.
type Enqueuer interface {
	EnqueueOnce(ctx context.Context, req jobs.Request) (*jobs.Job, error)
}

// Orchestrator owns the cron schedule for nightly recomputes and the weekly
// duplicate sweep.
type Orchestrator struct {
	jobs   Enqueuer
	config *Config
	cron   *cron.Cron
	log    *logrus.Entry

	entries map[jobs.JobType]cron.EntryID
	cancel  context.CancelFunc
}

// Config holds scheduler configuration
type Config struct {
	NightlySpec   string         // Default: "0 4 * * *"
	DedupeSpec    string         // Default: "30 3 * * 0"
	Location      *time.Location // Default: UTC
	EnableNightly bool           // Default: true
	EnableDedupe  bool           // Default: true
	MaxRetries    int            // Default: 3
	RetryDelay    time.Duration  // Default: 5s
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		NightlySpec:   "0 4 * * *",
		DedupeSpec:    "30 3 * * 0",
		Location:      time.UTC,
		EnableNightly: true,
		EnableDedupe:  true,
		MaxRetries:    3,
		RetryDelay:    5 * time.Second,
	}
}

// NewOrchestrator validates the schedule and registers its jobs. Nothing runs
// until Start.
func NewOrchestrator(enqueuer Enqueuer, config *Config, logger *logrus.Logger) (*Orchestrator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	o := &Orchestrator{
		jobs:    enqueuer,
		config:  config,
		cron:    cron.New(cron.WithLocation(config.Location)),
		log:     logger.WithField("component", "scheduler"),
		entries: make(map[jobs.JobType]cron.EntryID),
	}

	if config.EnableNightly {
		if err := o.register(config.NightlySpec, jobs.JobTypeNightly); err != nil {
			return nil, err
		}
	}
	if config.EnableDedupe {
		if err := o.register(config.DedupeSpec, jobs.JobTypeDedupeGames); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Orchestrator) register(spec string, jobType jobs.JobType) error {
	id, err := o.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		o.enqueueWithRetry(ctx, jobType)
	})
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", jobType, spec, err)
	}
	o.entries[jobType] = id
	return nil
}

// Start runs the schedule until ctx is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.cron.Start()
	o.log.WithFields(logrus.Fields{
		"nightly": o.describe(jobs.JobTypeNightly, o.config.NightlySpec),
		"dedupe":  o.describe(jobs.JobTypeDedupeGames, o.config.DedupeSpec),
	}).Info("scheduler started")

	<-ctx.Done()

	stopped := o.cron.Stop()
	<-stopped.Done()
	o.log.Info("scheduler stopped")
}

// Stop gracefully stops the scheduler
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
}

// TriggerNightly queues the nightly recompute immediately.
func (o *Orchestrator) TriggerNightly(ctx context.Context) error {
	_, err := o.jobs.EnqueueOnce(ctx, jobs.Request{Type: jobs.JobTypeNightly})
	return err
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() map[string]any {
	status := map[string]any{
		"nightly_enabled": o.config.EnableNightly,
		"nightly_spec":    o.config.NightlySpec,
		"dedupe_enabled":  o.config.EnableDedupe,
		"dedupe_spec":     o.config.DedupeSpec,
		"location":        o.config.Location.String(),
	}
	for jobType, id := range o.entries {
		if next := o.cron.Entry(id).Next; !next.IsZero() {
			status[string(jobType)+"_next_run"] = next
		}
	}
	return status
}

// enqueueWithRetry queues a job, retrying transient failures.
func (o *Orchestrator) enqueueWithRetry(ctx context.Context, jobType jobs.JobType) {
	log := o.log.WithField("job_type", jobType)

	var err error
	for attempt := 1; attempt <= o.config.MaxRetries; attempt++ {
		var job *jobs.Job
		job, err = o.jobs.EnqueueOnce(ctx, jobs.Request{Type: jobType})
		if err == nil {
			if job != nil {
				log.WithField("job_id", job.JobID).Info("scheduled job queued")
			}
			return
		}

		log.WithError(err).WithField("attempt", attempt).Warn("enqueue attempt failed")
		if attempt < o.config.MaxRetries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.config.RetryDelay):
			}
		}
	}
	log.WithError(err).Error("all enqueue attempts failed")
}

func (o *Orchestrator) describe(jobType jobs.JobType, spec string) string {
	if _, ok := o.entries[jobType]; !ok {
		return "disabled"
	}
	return spec
}
