package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/hc2-sync/internal/directory"
)

// maxQueryParamLen bounds free-form path and query values.
const maxQueryParamLen = 256

// handleListDevices returns all devices ordered by controller id.
//
// Query parameters:
//   - room: filter by room identifier (e.g. "kitchen")
//   - refresh: "true" re-reads rooms and devices from the controller first
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if wantRefresh(r) {
		if _, err := s.client.Devices(r.Context()); err != nil {
			s.logger.Warn("device refresh failed", "error", err)
			writeError(w, http.StatusBadGateway, "failed to refresh devices from controller")
			return
		}
	}

	dir := s.client.Directory()
	var devices []directory.Device
	if room := r.URL.Query().Get("room"); room != "" {
		if len(room) > maxQueryParamLen {
			writeError(w, http.StatusBadRequest, "invalid room identifier")
			return
		}
		devices = dir.DevicesInRoom(room)
	} else {
		devices = dir.Devices()
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by controller id.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	dev, err := s.client.Directory().Device(id)
	if err != nil {
		writeFailure(w, err, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleListIdentifiers returns every generated identifier, sorted.
func (s *Server) handleListIdentifiers(w http.ResponseWriter, _ *http.Request) {
	ids := s.client.Directory().Identifiers()
	writeJSON(w, http.StatusOK, map[string]any{"identifiers": ids, "count": len(ids)})
}

// handleLookup resolves a slash-separated identifier to its device,
// refreshing the directory once on a miss.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	ident := strings.Trim(chi.URLParam(r, "*"), "/")
	if ident == "" || len(ident) > maxQueryParamLen {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	dev, err := s.client.DeviceByIdentifier(r.Context(), ident)
	if err == nil {
		writeJSON(w, http.StatusOK, dev)
		return
	}

	status := statusFor(err)
	message := "device not found"
	if status == http.StatusBadGateway {
		s.logger.Warn("lookup refresh failed", "identifier", ident, "error", err)
		message = "failed to refresh devices from controller"
	}
	writeError(w, status, message)
}

// handleCallAction invokes an action on a device.
//
// The optional request body is a JSON array of positional arguments,
// e.g. [55] for setValue.
func (s *Server) handleCallAction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeviceID(w, r)
	if !ok {
		return
	}
	action := chi.URLParam(r, "action")
	if action == "" || len(action) > maxQueryParamLen {
		writeError(w, http.StatusBadRequest, "invalid action")
		return
	}

	args, err := decodeArgs(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dev, err := s.client.Directory().Device(id)
	if err != nil {
		writeFailure(w, err, "device not found")
		return
	}
	if !dev.HasAction(action) {
		writeFailure(w, directory.ErrActionNotSupported, "device does not support action "+action)
		return
	}

	body, err := s.client.CallAction(r.Context(), id, action, args...)
	if err != nil {
		s.logger.Warn("action call failed", "device_id", id, "action", action, "error", err)
		writeError(w, http.StatusBadGateway, "controller rejected the action")
		return
	}

	s.logger.Info("action called", "device_id", id, "action", action, "args", len(args))
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"action":    action,
		"result":    rawResult(body),
	})
}

// parseDeviceID reads the {id} URL parameter, writing a 400 on failure.
func parseDeviceID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid device ID")
		return 0, false
	}
	return id, true
}

// decodeArgs reads an optional JSON array of arguments.
func decodeArgs(body io.Reader) ([]any, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.New("failed to read request body")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var args []any
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, errors.New("body must be a JSON array of arguments")
	}
	return args, nil
}

// rawResult embeds a JSON acknowledgement as-is and wraps anything else
// as a string.
func rawResult(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
