package jobs

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// JobType enumerates the supported recompute jobs.
type JobType string

const (
	JobTypeLeagueBaseline JobType = "league_baseline"
	JobTypePlayerAverages JobType = "player_averages"
	JobTypeEloRegenerate  JobType = "elo_regenerate"
	JobTypeDedupeGames    JobType = "dedupe_games"
	// JobTypeNightly generates a baseline and then recomputes every player.
	JobTypeNightly JobType = "nightly"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeLeagueBaseline, JobTypePlayerAverages, JobTypeEloRegenerate, JobTypeDedupeGames, JobTypeNightly:
		return true
	}
	return false
}

// JobStatus represents the lifecycle state for a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job models the database representation of a recompute job.
type Job struct {
	JobID           string
	JobType         JobType
	PlayerIDs       pq.StringArray
	Status          JobStatus
	StatusMessage   sql.NullString
	ProgressCurrent int
	ProgressTotal   int
	LastError       sql.NullString
	RetryCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       sql.NullTime
	CompletedAt     sql.NullTime
}

// Copy returns a shallow copy to prevent external mutation.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	cpy := *j
	cpy.PlayerIDs = append(pq.StringArray(nil), j.PlayerIDs...)
	return &cpy
}

// Request is an enqueue request from the API, the scheduler or the CLI.
type Request struct {
	Type      JobType  `json:"type"`
	PlayerIDs []string `json:"player_ids,omitempty"`
}

// Validate checks the request names a known job and only carries player IDs
// where they mean something.
func (r Request) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("unknown job type %q", r.Type)
	}
	if len(r.PlayerIDs) > 0 && r.Type != JobTypePlayerAverages {
		return fmt.Errorf("player_ids only apply to %s jobs", JobTypePlayerAverages)
	}
	return nil
}

// JobSpec describes the work to be performed by the runner.
type JobSpec struct {
	Type      JobType
	PlayerIDs []string
	DryRun    bool
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(spec JobSpec)
	OnStepStart(step JobType, index int, total int)
	OnProgress(message string, current int, total int)
	OnJobComplete()
	OnJobError(err error)
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job   `json:"active_job,omitempty"`
	History   []*Job `json:"recent_jobs,omitempty"`
}
