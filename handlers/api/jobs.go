package api

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/middleware"
	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/services/job"
	"github.com/nijaru/yt-digest/validation"
)

// JobService is what the job endpoints need from services/job.
type JobService interface {
	Submit(ctx context.Context, req job.Request) (*models.Job, error)
	Poll(ctx context.Context, id string) (*models.JobView, error)
	Cancel(ctx context.Context, id string) (*models.JobView, error)
}

type JobHandler struct {
	service   JobService
	validator *validation.Validator
	logger    *logrus.Logger
}

type createJobRequest struct {
	URL               string `json:"url"`
	Query             string `json:"query"`
	Title             string `json:"title"`
	Language          string `json:"language"`
	ProcessAudio      *bool  `json:"process_audio"`
	SearchMode        string `json:"search_mode"`
	Template          string `json:"template"`
	ExtraInstructions string `json:"extra_instructions"`
}

type createJobResponse struct {
	JobID  string        `json:"job_id"`
	Status models.Status `json:"status"`
}

func NewJobHandler(service JobService, validator *validation.Validator, logger *logrus.Logger) *JobHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &JobHandler{
		service:   service,
		validator: validator,
		logger:    logger,
	}
}

// HandleCreate handles POST /api/jobs
func (h *JobHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := h.validator.ValidateRequest(r, validation.RequestValidationOpts{
		MaxContentLength: maxBodySize,
		RequireJSON:      true,
	}); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req createJobRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	processAudio := true
	if req.ProcessAudio != nil {
		processAudio = *req.ProcessAudio
	}
	sub := validation.Submission{
		URL:   req.URL,
		Query: req.Query,
		Title: req.Title,
		Options: models.Options{
			Language:          req.Language,
			ProcessAudio:      processAudio,
			SearchMode:        models.SearchMode(req.SearchMode),
			Template:          req.Template,
			ExtraInstructions: req.ExtraInstructions,
		},
	}
	if err := h.validator.ValidateSubmission(&sub); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	created, err := h.service.Submit(r.Context(), job.Request{
		URL:     sub.URL,
		Query:   sub.Query,
		Title:   sub.Title,
		Options: sub.Options,
		Owner:   ownerOf(r),
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job_id":     created.ID,
		"request_id": middleware.GetRequestID(r.Context()),
	}).Info("Job created")

	respondJSON(w, r, http.StatusAccepted, createJobResponse{JobID: created.ID, Status: created.Status})
}

// HandleGet handles GET /api/jobs/{id}
func (h *JobHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "JobHandler.HandleGet"

	id := r.PathValue("id")
	if id == "" {
		respondError(w, r, h.logger, errors.InvalidInput(op, nil, "ID is required"))
		return
	}

	view, err := h.service.Poll(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, http.StatusOK, view)
}

// HandleCancel handles POST /api/jobs/{id}/cancel
func (h *JobHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	const op = "JobHandler.HandleCancel"

	id := r.PathValue("id")
	if id == "" {
		respondError(w, r, h.logger, errors.InvalidInput(op, nil, "ID is required"))
		return
	}

	view, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, http.StatusOK, view)
}

// ownerOf identifies the submitter: the X-User-ID header for signed in
// users, the client IP otherwise.
func ownerOf(r *http.Request) models.Owner {
	return models.Owner{
		UserID:    r.Header.Get("X-User-ID"),
		IPAddress: middleware.ClientIP(r),
	}
}
