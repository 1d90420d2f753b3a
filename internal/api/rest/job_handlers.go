package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fortuna/courtside/internal/jobs"
)

// JobQueue accepts recompute jobs and reports on them.
type JobQueue interface {
	Enqueue(ctx context.Context, req jobs.Request) (*jobs.Job, error)
	GetStatus(ctx context.Context) (*jobs.StatusSummary, error)
}

// JobHandler proxies API calls to the recompute job queue.
type JobHandler struct {
	queue JobQueue
}

// NewJobHandler wires the REST layer to the job queue.
func NewJobHandler(queue JobQueue) *JobHandler {
	return &JobHandler{queue: queue}
}

// HandleJobRequest handles POST /api/v1/jobs
func (h *JobHandler) HandleJobRequest(w http.ResponseWriter, r *http.Request) {
	var req jobs.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job request", err)
		return
	}

	job, err := h.queue.Enqueue(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job": jobPayload(job),
	})
}

// HandleJobStatus handles GET /api/v1/jobs/status
func (h *JobHandler) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.queue.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

func buildStatusPayload(summary *jobs.StatusSummary) map[string]any {
	response := map[string]any{
		"status":  "idle",
		"message": "No active jobs",
	}

	if summary.ActiveJob != nil {
		response["status"] = summary.ActiveJob.Status
		if summary.ActiveJob.StatusMessage.Valid {
			response["message"] = summary.ActiveJob.StatusMessage.String
		}
		response["active_job"] = jobPayload(summary.ActiveJob)
	}

	history := make([]map[string]any, 0, len(summary.History))
	for _, job := range summary.History {
		history = append(history, jobPayload(job))
	}
	response["history"] = history

	return response
}

func jobPayload(job *jobs.Job) map[string]any {
	if job == nil {
		return nil
	}

	payload := map[string]any{
		"job_id":           job.JobID,
		"job_type":         job.JobType,
		"status":           job.Status,
		"progress_current": job.ProgressCurrent,
		"progress_total":   job.ProgressTotal,
		"retry_count":      job.RetryCount,
		"created_at":       job.CreatedAt,
		"updated_at":       job.UpdatedAt,
	}

	if job.StatusMessage.Valid {
		payload["status_message"] = job.StatusMessage.String
	}
	if len(job.PlayerIDs) > 0 {
		payload["player_ids"] = []string(job.PlayerIDs)
	}
	if job.StartedAt.Valid {
		payload["started_at"] = job.StartedAt.Time
	}
	if job.CompletedAt.Valid {
		payload["completed_at"] = job.CompletedAt.Time
	}
	if job.LastError.Valid {
		payload["last_error"] = job.LastError.String
	}

	return payload
}
