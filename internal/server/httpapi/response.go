package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeError maps err onto a status code and a {message} body. Bad requests
// echo the validation error; everything else gets a fixed text so storage
// details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err.Error())
	}
	writeMessage(w, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, common.MsgInvalidCredentials
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, common.MsgUserNotFound
	case errors.Is(err, common.ErrNoBucket):
		return http.StatusConflict, common.MsgNoRiskBucket
	case errors.Is(err, common.ErrUpstream):
		return http.StatusBadGateway, common.MsgAdvisorUnavailable
	default:
		return http.StatusInternalServerError, common.MsgInternalError
	}
}
