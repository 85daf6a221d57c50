package domain

import (
	"time"
)

// JobStatus is the lifecycle state of a super-resolution job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Done reports whether the job reached a terminal state.
func (s JobStatus) Done() bool {
	return s == JobSucceeded || s == JobFailed
}

// ErrorKind classifies why a job failed.
type ErrorKind string

const (
	ErrorKindNone                  ErrorKind = ""
	ErrorKindCapabilityUnavailable ErrorKind = "capability_unavailable"
	ErrorKindExecutionFailed       ErrorKind = "execution_failed"
	ErrorKindIOFailed              ErrorKind = "io_failed"
)

// Stage is a step of the processing pipeline, reported to clients as progress.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageInitializing Stage = "initializing"
	StageFetching     Stage = "fetching"
	StageInferring    Stage = "inferring"
	StageCollecting   Stage = "collecting"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
)

// Progress returns the percentage shown for a stage.
func (s Stage) Progress() int {
	switch s {
	case StageInitializing:
		return 10
	case StageFetching:
		return 30
	case StageInferring:
		return 50
	case StageCollecting:
		return 90
	case StageComplete:
		return 100
	default:
		return 0
	}
}

// Job is one request to super-resolve imagery at a location and date.
type Job struct {
	ID         string     `json:"id"`
	Location   GeoPoint   `json:"location"`
	Date       string     `json:"date"` // YYYY-MM-DD
	Status     JobStatus  `json:"status"`
	Stage      Stage      `json:"stage"`
	Progress   int        `json:"progress"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  ErrorKind  `json:"error_kind,omitempty"`
	Artifacts  []Artifact `json:"artifacts,omitempty"`
	TotalBytes int64      `json:"total_bytes"`
	Distance   *float64   `json:"distance,omitempty"` // computed field
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ProgressEvent is published while a job moves through its stages.
type ProgressEvent struct {
	JobID    string    `json:"job_id"`
	Stage    Stage     `json:"stage"`
	Progress int       `json:"progress"`
	Status   JobStatus `json:"status"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// InferenceRequest is what the external super-resolution capability needs.
type InferenceRequest struct {
	Location GeoPoint
	Date     string
	WorkDir  string
}
