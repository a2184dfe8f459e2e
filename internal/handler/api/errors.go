package api

import (
	"context"
	"errors"
	"net/http"

	"MHIRebal/internal/domain/models"
	xhttp "MHIRebal/pkg/http"
)

// toAppError maps domain sentinels onto the API error envelope.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var out *xhttp.AppError
	switch {
	case errors.Is(err, models.ErrInsufficientHistory):
		out = xhttp.ConflictError("ERR_INSUFFICIENT_HISTORY", "not enough signal history to confirm a bucket")
	case errors.Is(err, models.ErrInvalidWeights):
		out = xhttp.NewAppError("ERR_INVALID_WEIGHTS", "holdings", err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrMissingData):
		out = xhttp.UnprocessableError("ERR_MISSING_DATA", err.Error())
	case errors.Is(err, models.ErrDegenerateNormalization), errors.Is(err, models.ErrInvalidConfig):
		out = xhttp.UnprocessableError("ERR_POLICY_CONFIG", err.Error())
	case errors.Is(err, models.ErrFeedUnavailable):
		out = xhttp.UnavailableError("ERR_FEED_UNAVAILABLE", "price data is unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		out = xhttp.UnavailableError("ERR_TIMEOUT", "request timed out")
	default:
		out = xhttp.InternalError("internal error")
	}
	return out.WithError(err)
}
