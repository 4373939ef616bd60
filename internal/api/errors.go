package api

import (
	"errors"
	"net/http"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindAuthenticity:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInsufficientStock, apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorBody classifies err for the client. Internal errors are logged with
// their cause and answered with a generic message.
func errorBody(logger logrus.FieldLogger, r *http.Request, err error) (int, errorResponse) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		logger.WithError(err).WithField("path", r.URL.Path).Error("internal error")
		return http.StatusInternalServerError, errorResponse{Error: "internal error", Code: string(kind)}
	}
	msg := err.Error()
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		msg = "request body too large"
	}
	return statusFor(kind), errorResponse{Error: msg, Code: string(kind)}
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorBody(h.logger, r, err)
	respondJSON(w, status, body)
}
