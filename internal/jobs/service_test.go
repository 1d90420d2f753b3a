package jobs

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/courtside/internal/models"
	"github.com/fortuna/courtside/internal/service"
)

type memQueue struct {
	mu     sync.Mutex
	jobs   []*Job
	events []string
	errs   map[string]error
}

func (q *memQueue) find(id string) *Job {
	for _, j := range q.jobs {
		if j.JobID == id {
			return j
		}
	}
	return nil
}

func (q *memQueue) CreateJob(_ context.Context, job *Job) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	stored := job.Copy()
	stored.JobID = string(rune('a' + len(q.jobs)))
	stored.CreatedAt = time.Now()
	q.jobs = append(q.jobs, stored)
	return stored.Copy(), nil
}

func (q *memQueue) UpdateStatus(_ context.Context, id string, status JobStatus, msg string, lastErr error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j := q.find(id)
	j.Status = status
	j.StatusMessage.String, j.StatusMessage.Valid = msg, true
	if lastErr != nil {
		if q.errs == nil {
			q.errs = make(map[string]error)
		}
		q.errs[id] = lastErr
	}
	return nil
}

func (q *memQueue) UpdateProgress(_ context.Context, id string, current, total int, msg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j := q.find(id)
	j.ProgressCurrent, j.ProgressTotal = current, total
	j.StatusMessage.String, j.StatusMessage.Valid = msg, true
	return nil
}

func (q *memQueue) AppendEvent(_ context.Context, id, eventType, msg string, _, _ *int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, eventType)
	return nil
}

func (q *memQueue) ResetStuckJobs(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, j := range q.jobs {
		if j.Status == JobStatusRunning {
			j.Status = JobStatusQueued
			n++
		}
	}
	return n, nil
}

func (q *memQueue) MarkNextJobRunning(context.Context) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		if j.Status == JobStatusQueued {
			j.Status = JobStatusRunning
			return j.Copy(), nil
		}
	}
	return nil, nil
}

func (q *memQueue) GetActiveJob(context.Context) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		if j.Status == JobStatusRunning {
			return j.Copy(), nil
		}
	}
	return nil, nil
}

func (q *memQueue) HasPendingJob(_ context.Context, t JobType) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		if j.JobType == t && (j.Status == JobStatusQueued || j.Status == JobStatusRunning) {
			return true, nil
		}
	}
	return false, nil
}

func (q *memQueue) ListRecentJobs(_ context.Context, limit int) ([]*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Job
	for i := len(q.jobs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, q.jobs[i].Copy())
	}
	return out, nil
}

func (q *memQueue) status(id string) JobStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.find(id).Status
}

type stubPipeline struct {
	mu     sync.Mutex
	ran    []string
	eloErr error
}

func (s *stubPipeline) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ran = append(s.ran, name)
}

func (s *stubPipeline) Generate(context.Context) (*models.LeagueBaseline, error) {
	s.record("baseline")
	return &models.LeagueBaseline{ID: "b1", APER: 14, Players: 3}, nil
}

func (s *stubPipeline) Recalculate(context.Context, string) (*models.PlayerAggregate, error) {
	s.record("player")
	return &models.PlayerAggregate{}, nil
}

func (s *stubPipeline) RecalculateAll(context.Context, func(int, int)) (service.RecalcSummary, error) {
	s.record("averages")
	return service.RecalcSummary{}, nil
}

func (s *stubPipeline) Regenerate(context.Context) (models.EloMap, error) {
	s.record("elo")
	return models.EloMap{}, s.eloErr
}

func (s *stubPipeline) RemoveDuplicates(context.Context) (service.DedupeResult, error) {
	s.record("dedupe")
	return service.DedupeResult{}, nil
}

func newTestService(p *stubPipeline) (*Service, *memQueue) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	q := &memQueue{}
	svc := newService(q, NewRunner(p, p, p, p), log)
	svc.pollInterval = 10 * time.Millisecond
	return svc, q
}

func TestEnqueue(t *testing.T) {
	svc, q := newTestService(&stubPipeline{})
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, Request{Type: "bogus"}); err == nil {
		t.Fatal("Enqueue(bogus) succeeded")
	}

	job, err := svc.Enqueue(ctx, Request{Type: JobTypePlayerAverages, PlayerIDs: []string{"p1", "p2"}})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if job.Status != JobStatusQueued || job.ProgressTotal != 2 {
		t.Errorf("job = %+v, want queued with total 2", job)
	}
	if len(q.events) != 1 || q.events[0] != "queued" {
		t.Errorf("events = %v, want [queued]", q.events)
	}
}

func TestEnqueueOnceSkipsPendingJobs(t *testing.T) {
	svc, q := newTestService(&stubPipeline{})
	ctx := context.Background()

	first, err := svc.EnqueueOnce(ctx, Request{Type: JobTypeNightly})
	if err != nil || first == nil {
		t.Fatalf("EnqueueOnce() = %v, %v", first, err)
	}
	second, err := svc.EnqueueOnce(ctx, Request{Type: JobTypeNightly})
	if err != nil {
		t.Fatalf("EnqueueOnce() error = %v", err)
	}
	if second != nil {
		t.Error("second nightly job queued while first pending")
	}
	if len(q.jobs) != 1 {
		t.Errorf("%d jobs stored, want 1", len(q.jobs))
	}
}

func TestExecuteJobRecordsOutcome(t *testing.T) {
	p := &stubPipeline{}
	svc, q := newTestService(p)
	ctx := context.Background()

	ok, _ := svc.Enqueue(ctx, Request{Type: JobTypeDedupeGames})
	claimed, _ := q.MarkNextJobRunning(ctx)
	svc.executeJob(claimed)
	if got := q.status(ok.JobID); got != JobStatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}

	p.eloErr = errors.New("replay failed")
	bad, _ := svc.Enqueue(ctx, Request{Type: JobTypeEloRegenerate})
	claimed, _ = q.MarkNextJobRunning(ctx)
	svc.executeJob(claimed)
	if got := q.status(bad.JobID); got != JobStatusFailed {
		t.Errorf("status = %s, want failed", got)
	}
	if !errors.Is(q.errs[bad.JobID], p.eloErr) {
		t.Errorf("last error = %v, want replay failure", q.errs[bad.JobID])
	}
}

func TestWorkerDrainsQueue(t *testing.T) {
	p := &stubPipeline{}
	svc, q := newTestService(p)
	ctx := context.Background()

	job, err := svc.Enqueue(ctx, Request{Type: JobTypeNightly})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	svc.Start()
	deadline := time.Now().Add(2 * time.Second)
	for q.status(job.JobID) != JobStatusCompleted {
		if time.Now().After(deadline) {
			t.Fatalf("job still %s after deadline", q.status(job.JobID))
		}
		time.Sleep(5 * time.Millisecond)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.ran) != 2 || p.ran[0] != "baseline" || p.ran[1] != "averages" {
		t.Errorf("ran %v, want [baseline averages]", p.ran)
	}

	status, err := svc.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status.ActiveJob != nil || len(status.History) != 1 {
		t.Errorf("status = %+v, want no active job and one in history", status)
	}
}
