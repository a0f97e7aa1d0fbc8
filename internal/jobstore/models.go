package jobstore

import "time"

// Status tracks a generation job through its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSubmitting Status = "submitting"
	StatusPolling    Status = "polling"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether the status is one the store recognizes.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSubmitting, StatusPolling, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// ActiveStatuses lists the statuses of jobs still in flight.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusSubmitting, StatusPolling}
}

// Job records one art generation request from submission to completion.
type Job struct {
	ID          int64
	RequestID   string
	TokenID     string
	Artifact    string
	JobHandle   string
	Status      Status
	Attempts    int
	ResultURL   string
	ErrorReason string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active reports whether the job is still in flight.
func (j *Job) Active() bool {
	return j != nil && !j.Status.Terminal()
}
