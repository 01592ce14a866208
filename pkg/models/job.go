package models

import "time"

// Job represents an unlearning experiment submitted to the service
type Job struct {
	ID          string                 `json:"id"`
	Dataset     string                 `json:"dataset"`
	Overrides   map[string]interface{} `json:"overrides,omitempty"`
	Status      JobStatus              `json:"status"`
	Progress    JobProgress            `json:"progress"`
	Result      *JobResult             `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
	StartedAt   *time.Time             `json:"startedAt,omitempty"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job can no longer change state
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

type JobProgress struct {
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

// JobResult summarizes a finished experiment
type JobResult struct {
	ReportID         string  `json:"reportId"`
	Task             Task    `json:"task"`
	Method           string  `json:"method"`
	NumRuns          int     `json:"numRuns"`
	F1OriginalMean   float64 `json:"f1OriginalMean"`
	F1OriginalStd    float64 `json:"f1OriginalStd"`
	F1UnlearnedMean  float64 `json:"f1UnlearnedMean"`
	F1UnlearnedStd   float64 `json:"f1UnlearnedStd"`
	TrainTimeMean    float64 `json:"trainTimeMean"`
	UnlearnTimeMean  float64 `json:"unlearnTimeMean"`
	ProcessingTimeMS int64   `json:"processingTimeMS"`
}

// API Response types
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
