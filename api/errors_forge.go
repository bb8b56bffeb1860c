package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/herald"
	"github.com/xraph/herald/rule"
)

// mapError converts herald sentinel errors to Forge HTTP errors.
func mapError(err error) error {
	var verr *rule.ValidationError
	switch {
	case errors.As(err, &verr):
		return forge.BadRequest(err.Error())
	case errors.Is(err, herald.ErrRuleNotFound),
		errors.Is(err, herald.ErrAccountNotFound),
		errors.Is(err, herald.ErrFailureNotFound),
		errors.Is(err, herald.ErrFollowerNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, herald.ErrAccountTaken),
		errors.Is(err, herald.ErrDuplicateTrigger):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return forge.InternalError(err)
	}
}
