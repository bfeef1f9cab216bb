package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/middleware"
)

const maxBodySize = 1 << 20

// Response represents a standardized API response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	response := Response{
		Success:   code >= 200 && code < 300,
		Data:      payload,
		RequestID: middleware.GetRequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	}

	if !response.Success && payload != nil {
		if err, ok := payload.(string); ok {
			response.Error = err
			response.Data = nil
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logrus.WithError(err).Error("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err error) {
	code := http.StatusInternalServerError
	msg := "Internal server error"

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		code = errors.StatusCode(err)
		msg = appErr.Message
	}

	entry := logger.WithFields(logrus.Fields{
		"error":      err,
		"status":     code,
		"request_id": middleware.GetRequestID(r.Context()),
		"path":       r.URL.Path,
		"method":     r.Method,
	})
	if code >= 500 {
		entry.Error("Request error")
	} else {
		entry.Warn("Request rejected")
	}

	respondJSON(w, r, code, msg)
}

func readJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return errors.InvalidInput("readJSON", err, "Invalid JSON format")
	}
	return nil
}
