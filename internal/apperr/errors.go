package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation")   // 400
	ErrUnauthorized = errors.New("unauthorized") // 401
	ErrForbidden    = errors.New("forbidden")    // 403
	ErrNotFound     = errors.New("not found")    // 404
	ErrConflict     = errors.New("conflict")     // 409
	ErrUpstream     = errors.New("upstream")     // 502
)

// HTTPStatus maps an error to the status code of the first sentinel it wraps.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HasKind reports whether err wraps one of the sentinels above.
func HasKind(err error) bool {
	return err != nil && HTTPStatus(err) != http.StatusInternalServerError
}
