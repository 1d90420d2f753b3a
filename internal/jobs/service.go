package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/courtside/internal/store"
)

const (
	defaultHistoryLimit = 10
	defaultPollInterval = 3 * time.Second
)

// queue is the persistence the worker needs; *Repository implements it.
type queue interface {
	CreateJob(ctx context.Context, job *Job) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error
	UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error
	AppendEvent(ctx context.Context, jobID string, eventType, message string, current, total *int) error
	ResetStuckJobs(ctx context.Context) (int64, error)
	MarkNextJobRunning(ctx context.Context) (*Job, error)
	GetActiveJob(ctx context.Context) (*Job, error)
	HasPendingJob(ctx context.Context, jobType JobType) (bool, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*Job, error)
}

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	repo   queue
	runner *Runner

	historyLimit int
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *logrus.Entry
}

// NewService constructs a Service backed by Postgres. Call Start to launch
// the worker.
func NewService(db *store.Database, runner *Runner, logger *logrus.Logger) *Service {
	return newService(NewRepository(db), runner, logger)
}

func newService(repo queue, runner *Runner, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		repo:         repo,
		runner:       runner,
		historyLimit: defaultHistoryLimit,
		pollInterval: defaultPollInterval,
		ctx:          ctx,
		cancel:       cancel,
		log:          logger.WithField("component", "jobs"),
	}
}

// Start requeues jobs interrupted by a restart and launches the worker loop.
func (s *Service) Start() {
	n, err := s.repo.ResetStuckJobs(s.ctx)
	if err != nil {
		s.log.WithError(err).Error("failed to reset jobs")
	} else if n > 0 {
		s.log.WithField("jobs", n).Warn("requeued jobs interrupted by restart")
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops the worker and waits for the running job to return.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue validates req and stores it as a queued job.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job := &Job{
		JobType:       req.Type,
		PlayerIDs:     req.PlayerIDs,
		Status:        JobStatusQueued,
		StatusMessage: sql.NullString{String: "Queued", Valid: true},
		ProgressTotal: len(req.PlayerIDs),
	}

	stored, err := s.repo.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AppendEvent(ctx, stored.JobID, "queued", "Job queued", nil, nil); err != nil {
		s.log.WithError(err).WithField("job_id", stored.JobID).Warn("failed to record queue event")
	}
	s.log.WithFields(logrus.Fields{"job_id": stored.JobID, "job_type": stored.JobType}).Info("job queued")
	return stored, nil
}

// EnqueueOnce queues a job unless one of the same type is already queued or
// running. It returns nil when nothing was queued.
func (s *Service) EnqueueOnce(ctx context.Context, req Request) (*Job, error) {
	pending, err := s.repo.HasPendingJob(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	if pending {
		s.log.WithField("job_type", req.Type).Info("job already pending; not queued")
		return nil, nil
	}
	return s.Enqueue(ctx, req)
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.repo.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		ActiveJob: active,
		History:   history,
	}, nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if s.ctx.Err() != nil {
			return
		}

		job, err := s.repo.MarkNextJobRunning(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Error("claim job error")
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				continue
			}
		}

		s.executeJob(job)
	}
}

// executeJob runs a claimed job to a terminal state. Status writes use a
// background context so a shutdown mid-job still records the outcome.
func (s *Service) executeJob(job *Job) {
	log := s.log.WithFields(logrus.Fields{"job_id": job.JobID, "job_type": job.JobType})

	spec, err := buildSpec(job)
	if err != nil {
		log.WithError(err).Error("invalid job spec")
		s.finish(job.JobID, JobStatusFailed, "Invalid job specification", err)
		return
	}

	reporter := &jobReporter{ctx: s.ctx, repo: s.repo, jobID: job.JobID, total: job.ProgressTotal, log: log}

	start := time.Now()
	if err := s.runner.Run(s.ctx, spec, reporter); err != nil {
		if s.ctx.Err() != nil {
			log.WithError(err).Warn("job cancelled by shutdown")
			s.finish(job.JobID, JobStatusCancelled, "Cancelled by shutdown", err)
			return
		}
		log.WithError(err).Error("job failed")
		s.finish(job.JobID, JobStatusFailed, "Job failed", err)
		return
	}

	log.WithField("duration", time.Since(start).String()).Info("job completed")
	s.finish(job.JobID, JobStatusCompleted, "Job completed", nil)
}

func (s *Service) finish(jobID string, status JobStatus, message string, jobErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.UpdateStatus(ctx, jobID, status, message, jobErr); err != nil {
		s.log.WithError(err).WithField("job_id", jobID).Error("failed to record job status")
	}
}

func buildSpec(job *Job) (JobSpec, error) {
	if !job.JobType.Valid() {
		return JobSpec{}, fmt.Errorf("unknown job type %s", job.JobType)
	}
	return JobSpec{Type: job.JobType, PlayerIDs: job.PlayerIDs}, nil
}

type jobReporter struct {
	ctx   context.Context
	repo  queue
	jobID string
	total int
	log   *logrus.Entry
}

func (r *jobReporter) OnJobStart(spec JobSpec) {
	r.progress(0, r.total, fmt.Sprintf("Running %s", spec.Type))
}

func (r *jobReporter) OnStepStart(step JobType, index int, total int) {
	msg := fmt.Sprintf("Step %d/%d: %s", index+1, total, step)
	cur, tot := index, total
	if err := r.repo.AppendEvent(r.ctx, r.jobID, "step", msg, &cur, &tot); err != nil {
		r.log.WithError(err).Warn("failed to record step event")
	}
}

func (r *jobReporter) OnProgress(message string, current int, total int) {
	if total > 0 {
		r.total = total
	}
	r.progress(current, r.total, message)
}

func (r *jobReporter) OnJobComplete() {
	r.progress(r.total, r.total, "Job complete")
}

func (r *jobReporter) OnJobError(err error) {
	if err := r.repo.AppendEvent(r.ctx, r.jobID, "error", err.Error(), nil, nil); err != nil {
		r.log.WithError(err).Warn("failed to record error event")
	}
}

func (r *jobReporter) progress(current, total int, message string) {
	if err := r.repo.UpdateProgress(r.ctx, r.jobID, current, total, message); err != nil {
		r.log.WithError(err).Debug("failed to update job progress")
	}
}
