package api

import (
	"encoding/json"
	"net/http"

	"github.com/selimozt/fabpack/pkg/errors"
)

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps structured error codes onto HTTP statuses. Malformed
// input is the client's fault; exhaustion of the device is the
// instance's fault; everything else is ours.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidArch, errors.ErrCodeInvalidNetlist,
		errors.ErrCodeInvalidPlacement, errors.ErrCodeInvalidConfig:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound, errors.ErrCodeResultNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeDeviceExhausted, errors.ErrCodeUnplaceableCluster,
		errors.ErrCodeSeedUnclusterable:
		status = http.StatusUnprocessableEntity
	}

	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: errors.UserMessage(err)})
}
