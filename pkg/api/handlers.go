// Package api exposes the job service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-unlearning-service/pkg/datastore"
	"github.com/gilchrisn/graph-unlearning-service/pkg/gif"
	"github.com/gilchrisn/graph-unlearning-service/pkg/model"
	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
	"github.com/gilchrisn/graph-unlearning-service/pkg/service"
	"github.com/gilchrisn/graph-unlearning-service/pkg/utils"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// maxBodyBytes bounds job submission payloads
const maxBodyBytes = 1 << 20

// JobRequest is the body of a job submission
type JobRequest struct {
	Dataset    string                 `json:"dataset"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Handlers contains HTTP request handlers
type Handlers struct {
	jobService *service.JobService
}

// NewHandlers creates new API handlers
func NewHandlers(jobService *service.JobService) *Handlers {
	return &Handlers{jobService: jobService}
}

// SubmitJob queues an unlearning experiment
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if !utils.ValidateContentType(r, "application/json") {
		utils.WriteErrorResponse(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	var req JobRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	job, err := h.jobService.Submit(req.Dataset, req.Parameters)
	if err != nil {
		writeSubmitError(w, err)
		return
	}

	log.Info().
		Str("job_id", job.ID).
		Str("dataset", job.Dataset).
		Msg("Unlearning job accepted")

	utils.WriteResponse(w, http.StatusAccepted, "Job submitted successfully", job)
}

func writeSubmitError(w http.ResponseWriter, err error) {
	var fieldErrs models.ValidationErrors
	var fieldErr models.ValidationError

	switch {
	case errors.As(err, &fieldErrs):
		utils.WriteValidationErrorResponse(w, "Invalid job parameters", fieldErrs)
	case errors.As(err, &fieldErr):
		utils.WriteValidationErrorResponse(w, "Invalid job parameters", models.ValidationErrors{fieldErr})
	case errors.Is(err, service.ErrInvalidDataset):
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid dataset", err)
	case errors.Is(err, datastore.ErrDatasetNotFound):
		utils.WriteErrorResponse(w, http.StatusNotFound, "Dataset not found", err)
	default:
		log.Error().Err(err).Msg("Job submission failed")
		utils.WriteErrorResponse(w, http.StatusInternalServerError, "Job submission failed", err)
	}
}

// GetJob returns a job's status
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["jobId"]

	job, err := h.jobService.Get(jobID)
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusNotFound, "Job not found", err)
		return
	}

	utils.WriteSuccessResponse(w, "Job retrieved successfully", job)
}

// GetJobResult returns the full report of a completed job
func (h *Handlers) GetJobResult(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["jobId"]

	job, err := h.jobService.Get(jobID)
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusNotFound, "Job not found", err)
		return
	}
	if job.Status != models.JobStatusCompleted {
		utils.WriteErrorResponse(w, http.StatusConflict, "Job has not completed", nil)
		return
	}

	report, err := h.jobService.GetResult(jobID)
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusNotFound, "Result not found", err)
		return
	}

	utils.WriteSuccessResponse(w, "Result retrieved successfully", report)
}

// ListJobs lists jobs, optionally filtered by ?dataset=
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	page, limit := utils.ExtractPaginationParams(r)
	jobs := h.jobService.List(r.URL.Query().Get("dataset"))

	utils.WriteSuccessResponse(w, "Jobs retrieved successfully", map[string]interface{}{
		"jobs":  utils.Paginate(jobs, page, limit),
		"total": len(jobs),
		"page":  page,
		"limit": limit,
	})
}

// CancelJob cancels a job
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["jobId"]

	err := h.jobService.Cancel(jobID)
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		utils.WriteErrorResponse(w, http.StatusNotFound, "Job not found", err)
		return
	case errors.Is(err, service.ErrJobFinished):
		utils.WriteErrorResponse(w, http.StatusConflict, "Job already finished", err)
		return
	case err != nil:
		utils.WriteErrorResponse(w, http.StatusInternalServerError, "Failed to cancel job", err)
		return
	}

	utils.WriteSuccessResponse(w, "Job cancelled successfully", nil)
}

// HealthCheck returns server health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   Version,
	}
	utils.WriteSuccessResponse(w, "Service is healthy", health)
}

// ListCapabilities lists the available models, methods and solvers
func (h *Handlers) ListCapabilities(w http.ResponseWriter, r *http.Request) {
	capabilities := map[string]interface{}{
		"models":  model.NewRegistry().List(),
		"methods": []gif.Method{gif.MethodGIF, gif.MethodIF},
		"solvers": gif.NewSolverRegistry(gif.DefaultResidualTol).List(),
		"tasks":   []models.Task{models.TaskNode, models.TaskEdge, models.TaskFeature},
	}
	utils.WriteSuccessResponse(w, "Capabilities retrieved successfully", capabilities)
}
