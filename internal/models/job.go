package models

import "time"

// JobStatus is the lifecycle state of a batch job.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobDone      JobStatus = "DONE"
	JobCancelled JobStatus = "CANCELLED"
)

// Finished reports whether the job will make no further progress.
func (s JobStatus) Finished() bool {
	return s == JobDone || s == JobCancelled
}

// JobSnapshot is a serializable view of a job at one moment.
// @Description Status and progress of a batch validation job
type JobSnapshot struct {
	ID         string      `json:"id" example:"7f9c24e5-2e2b-4f86-9d4e-6a1a5ed9b7c1"`
	Status     JobStatus   `json:"status" example:"RUNNING"`
	Total      int         `json:"total" example:"120"`
	Completed  int         `json:"completed" example:"37"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Results    []VatResult `json:"results,omitempty"`
}

// Progress is one update delivered to a batch progress callback.
type Progress struct {
	JobID     string `json:"job_id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}
