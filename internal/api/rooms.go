package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleListRooms returns the controller rooms from the directory cache.
//
// Query parameters:
//   - refresh: "true" re-reads rooms from the controller first
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	if wantRefresh(r) {
		rooms, err := s.client.Rooms(r.Context())
		if err != nil {
			s.logger.Warn("room refresh failed", "error", err)
			writeError(w, http.StatusBadGateway, "failed to refresh rooms from controller")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms, "count": len(rooms)})
		return
	}

	rooms := s.client.Directory().Rooms()
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms, "count": len(rooms)})
}

// handleGetRoom returns a single room by controller id.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, "invalid room ID")
		return
	}

	room, err := s.client.Directory().Room(id)
	if err != nil {
		writeFailure(w, err, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// wantRefresh reports whether the caller asked for a controller round trip.
func wantRefresh(r *http.Request) bool {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")) //nolint:errcheck // invalid values mean false
	return refresh
}
