package server

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"customer-statement-validator/pkg/errors"
	"customer-statement-validator/pkg/logger"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Status     int            `json:"status"`
	Category   string         `json:"category"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Suggestion string         `json:"suggestion,omitempty"`
	Context    errors.Context `json:"context,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Status)
	return nil
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	response := errorToResponse(err)
	response.RequestID = middleware.GetReqID(r.Context())

	log := s.logger.WithError(err).WithFields(logger.Fields{
		"status":     response.Status,
		"code":       response.Code,
		"request_id": response.RequestID,
	})
	if response.Status >= http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Debug("Request rejected")
	}

	if renderErr := render.Render(w, r, response); renderErr != nil {
		s.logger.WithError(renderErr).Error("Failed to render error response")
	}
}

func errorToResponse(err error) *ErrorResponse {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return &ErrorResponse{
			Status:   http.StatusGatewayTimeout,
			Category: string(errors.CategoryInternal),
			Code:     string(errors.CodeUnexpectedError),
			Message:  "The request took too long to process and was cancelled",
		}
	}

	vErr, ok := errors.AsValidatorError(err)
	if !ok {
		return &ErrorResponse{
			Status:   http.StatusInternalServerError,
			Category: string(errors.CategoryInternal),
			Code:     string(errors.CodeUnexpectedError),
			Message:  "Internal Server Error",
		}
	}

	return &ErrorResponse{
		Status:     statusForError(vErr, err),
		Category:   string(vErr.Category),
		Code:       string(vErr.Code),
		Message:    vErr.Message,
		Suggestion: vErr.Suggestion,
		Context:    vErr.Context,
	}
}

func statusForError(vErr *errors.ValidatorError, err error) int {
	var maxBytesErr *http.MaxBytesError
	if stderrors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}

	switch vErr.Category {
	case errors.CategoryFormat:
		return http.StatusUnsupportedMediaType
	case errors.CategoryParse, errors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case errors.CategoryFile:
		return http.StatusBadRequest
	case errors.CategoryConfiguration:
		// Request-level options such as ?format are the only configuration a client controls.
		return http.StatusBadRequest
	case errors.CategoryReport:
		if vErr.Code == errors.CodeEmptyReport {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
