package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/assistant"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/auth"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/authpw"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/blob"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/export"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/session"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/versioning"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

var (
	errForbidden = domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	errNotFound  = domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
)

// fieldErrors flattens validator output into {field: failed tag}. Field
// names are the JSON names.
func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var pwErr *authpw.ValidationError
	switch {
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, versioning.ErrBoardNotFound), errors.Is(err, export.ErrReportNotOnBoard):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.As(err, &pwErr):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", pwErr.Message, nil
	case errors.Is(err, versioning.ErrDifferentLineage):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Boards belong to different lineages", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unsupported export format", nil
	case errors.Is(err, blob.ErrInvalidKey):
		return http.StatusBadRequest, "INVALID_KEY", "Invalid storage key", nil
	case errors.Is(err, assistant.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", "Too many assistant requests, try again shortly", nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, authpw.ErrEmailTaken):
		return http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil
	case errors.Is(err, authpw.ErrNameTaken):
		return http.StatusConflict, "NAME_EXISTS", "Display name already taken", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken), errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
