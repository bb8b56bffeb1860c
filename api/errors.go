package api

import (
	"errors"
	"net/http"

	"github.com/xraph/herald"
	"github.com/xraph/herald/rule"
)

// statusFor maps herald sentinel errors to HTTP status codes.
func statusFor(err error) int {
	var verr *rule.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, herald.ErrRuleNotFound),
		errors.Is(err, herald.ErrAccountNotFound),
		errors.Is(err, herald.ErrFailureNotFound),
		errors.Is(err, herald.ErrFollowerNotFound):
		return http.StatusNotFound
	case errors.Is(err, herald.ErrAccountTaken),
		errors.Is(err, herald.ErrDuplicateTrigger):
		return http.StatusConflict
	case errors.Is(err, herald.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, herald.ErrMalformedPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeErr writes err with the status mapped from its sentinel.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
