// http.go
// The HTTP side is a thin façade. Reads of relay state go through the
// manager loop; the search proxy does not touch it at all.

package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

func newRouter(m *ClientManager, geocoder *Geocoder, log *slog.Logger) *mux.Router {
	h := &apiHandler{manager: m, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/ws", m.serveWs).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", h.status).Methods(http.MethodGet)
	api.HandleFunc("/bubbles", h.bubbles).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/history", h.roomHistory).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{a}/{b}", h.conversation).Methods(http.MethodGet)
	api.HandleFunc("/search", geocoder.handleSearch).Methods(http.MethodGet)
	return r
}

type apiHandler struct {
	manager *ClientManager
	log     *slog.Logger
}

func (h *apiHandler) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.manager.Status(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *apiHandler) bubbles(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.manager.ActiveBubbles(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *apiHandler) roomHistory(w http.ResponseWriter, r *http.Request) {
	history, found, err := h.manager.RoomHistory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	if !found {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *apiHandler) conversation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	log, err := h.manager.Conversation(r.Context(), vars["a"], vars["b"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *apiHandler) fail(w http.ResponseWriter, err error) {
	if isStopped(err) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.log.Warn("query failed", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
