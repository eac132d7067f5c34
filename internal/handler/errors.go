package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"fz-pos-api/internal/backend"
	"fz-pos-api/internal/middleware"
	"fz-pos-api/internal/pos"
	"fz-pos-api/internal/service"
	"fz-pos-api/pkg/apierror"
	"fz-pos-api/pkg/response"
)

const maxBodyBytes = 1 << 20

// writeError maps domain errors to API errors.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	response.Error(w, toAPIError(r, err))
}

func toAPIError(r *http.Request, err error) *apierror.Error {
	var (
		apiErr     *apierror.Error
		cartErr    *pos.CartError
		backendErr *backend.Error
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, pos.ErrSessionClosed):
		return apierror.NotFound(err.Error())
	case errors.As(err, &cartErr):
		if cartErr.Code == pos.CodeNotInCart {
			return apierror.NotFound(cartErr.Error())
		}
		return apierror.UnprocessableEntity(cartErr.Code.String(), cartErr.Error())
	case errors.Is(err, pos.ErrProductNotListed):
		return apierror.UnprocessableEntity("PRODUCT_NOT_LISTED", err.Error())
	case errors.Is(err, pos.ErrBatchInFlight),
		errors.Is(err, pos.ErrCheckInFlight),
		errors.Is(err, pos.ErrNoPendingPayment):
		return apierror.Conflict(err.Error())
	case errors.Is(err, pos.ErrEmptyCart):
		return apierror.BadRequest(err.Error())
	case errors.As(err, &backendErr):
		return apierror.BadGateway(backendErr.Message)
	case errors.Is(err, backend.ErrUnavailable):
		return apierror.BadGateway("backend unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return apierror.ServiceUnavailable("upstream timed out")
	}

	middleware.Logger(r.Context()).WithError(err).Error("[Handler] Unhandled error")
	return apierror.InternalError("")
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apierror.BadRequest("invalid JSON")
	}
	return nil
}
