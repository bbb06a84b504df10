package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/hyperjump/shiryo/internal/answer"
	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/extract"
	"github.com/hyperjump/shiryo/internal/layout"
	"github.com/hyperjump/shiryo/internal/lifecycle"
	"github.com/hyperjump/shiryo/internal/manifest"
	"github.com/hyperjump/shiryo/internal/retrieval"
	"github.com/hyperjump/shiryo/internal/vectorstore"
)

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	var (
		validation *retrieval.ValidationError
		embedErr   *embedding.ProviderError
		answerErr  *answer.ProviderError
	)
	switch {
	case errors.Is(err, layout.ErrInvalidName),
		errors.As(err, &validation),
		errors.Is(err, extract.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, manifest.ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInconsistentState),
		errors.Is(err, retrieval.ErrModelMismatch):
		return http.StatusConflict
	case errors.Is(err, vectorstore.ErrEmptyInput):
		return http.StatusUnprocessableEntity
	case errors.As(err, &embedErr), errors.As(err, &answerErr):
		return http.StatusBadGateway
	case errors.Is(err, lifecycle.ErrLockTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
