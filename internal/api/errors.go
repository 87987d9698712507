package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/hc2-sync/internal/controller"
	"github.com/nerrad567/hc2-sync/internal/directory"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorCodes names the machine-readable code for each status we emit.
var errorCodes = map[int]string{
	http.StatusBadRequest:          "bad_request",
	http.StatusUnauthorized:        "unauthorised",
	http.StatusNotFound:            "not_found",
	http.StatusUnprocessableEntity: "unprocessable",
	http.StatusInternalServerError: "internal_error",
	http.StatusBadGateway:          "controller_error",
	http.StatusServiceUnavailable:  "service_unavailable",
}

// writeJSON writes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // client may already be gone
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes an Error body. Unlisted statuses get "error".
func writeError(w http.ResponseWriter, status int, message string) {
	code, ok := errorCodes[status]
	if !ok {
		code = "error"
	}
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

// statusFor maps errors from the client packages onto HTTP statuses:
// controller failures are upstream (502), unknown rooms and devices are
// 404, an unadvertised action is 422. Anything else is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrQueryFailed):
		return http.StatusBadGateway
	case errors.Is(err, directory.ErrDeviceNotFound), errors.Is(err, directory.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, directory.ErrActionNotSupported):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure writes err with the status from statusFor. The controller
// check runs first because a failed refresh during lookup wraps both a
// query failure and ErrDeviceNotFound.
func writeFailure(w http.ResponseWriter, err error, message string) {
	writeError(w, statusFor(err), message)
}
