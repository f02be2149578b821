package models

import (
	"fmt"
	"time"
)

// JobStatus enumerates report job lifecycle states persisted in Postgres.
type JobStatus string

const (
	JobRunning   JobStatus = "Running"
	JobCompleted JobStatus = "Completed"
	JobFailed    JobStatus = "Failed"
)

// ParseJobStatus maps a persisted status string to a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobRunning, JobCompleted, JobFailed:
		return JobStatus(s), nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job represents one report generation run.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	LastError *string   `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job event names recorded in the audit trail.
const (
	EventCreated      = "created"
	EventEnqueued     = "enqueued"
	EventStarted      = "started"
	EventStoreSkipped = "store_skipped"
	EventCompleted    = "completed"
	EventFailed       = "failed"
)

// JobEvent is a simple audit event row.
type JobEvent struct {
	JobID    string    `json:"job_id"`
	Event    string    `json:"event"`
	Detail   string    `json:"detail"`
	Recorded time.Time `json:"recorded_at"`
}
