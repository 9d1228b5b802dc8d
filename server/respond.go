package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/voidreach/cadence/errors"
)

// ErrorResponse is the JSON body returned for every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeWrappedError logs the underlying error and responds with the given
// status and context message.
func writeWrappedError(w http.ResponseWriter, log *zap.SugaredLogger, err error, msg string, status int) {
	log.Warnw(msg, "error", err)
	writeError(w, status, msg+": "+err.Error())
}

// handleError maps engine error taxonomy to HTTP status codes:
// unknown id is 404, rejected input is 400, failed setup is 502 (the remote
// collaborator misbehaved), anything else is 500.
func handleError(w http.ResponseWriter, log *zap.SugaredLogger, err error, msg string) {
	switch {
	case errors.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.IsSetupFailed(err):
		writeWrappedError(w, log, err, msg, http.StatusBadGateway)
	default:
		writeWrappedError(w, log, err, msg, http.StatusInternalServerError)
	}
}
