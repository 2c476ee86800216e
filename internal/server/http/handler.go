package internalhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Yath-MCA/ayaz-home-security/internal/auth"
	"github.com/Yath-MCA/ayaz-home-security/internal/rooms"
)

type handler struct {
	logger   Logger
	app      Application
	upgrader websocket.Upgrader
}

func NewHandler(logger Logger, app Application) http.Handler {
	h := &handler{
		logger: logger,
		app:    app,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			// Browser peers connect from whatever origin the frontend is
			// deployed on; the deployment restricts origins upstream.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/wake", h.Wake).Methods(http.MethodPost)
	r.HandleFunc("/admin/active", h.AdminActive).Methods(http.MethodPost)
	r.HandleFunc("/pi/stream", h.StreamURL).Methods(http.MethodGet)
	r.HandleFunc("/pi/stream", h.SetStreamURL).Methods(http.MethodPost)
	r.HandleFunc("/rooms", h.Rooms).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.WS).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	r.NotFoundHandler = http.HandlerFunc(methodNotFoundHandler)

	return r
}

func (h *handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"active": h.app.Active(),
		"ts":     isoNow(),
	})
}

func (h *handler) Status(w http.ResponseWriter, _ *http.Request) {
	st := h.app.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"active":      st.Active,
		"changedAt":   st.ChangedAt.UTC().Format(time.RFC3339),
		"connections": h.app.ConnCount(),
		"ts":          isoNow(),
	})
}

// Wake is unauthenticated: on a suspendable deployment the request that
// reaches a sleeping instance is itself what wakes it.
func (h *handler) Wake(w http.ResponseWriter, _ *http.Request) {
	st := h.app.Wake()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"active": st.Active,
		"ts":     isoNow(),
	})
}

func (h *handler) AdminActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Active == nil {
		writeError(w, http.StatusBadRequest, "Body must be { active: boolean }")
		return
	}

	token := auth.FromHeader(r.Header.Get("Authorization"))
	st, err := h.app.SetActive(token, *body.Active)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"active": st.Active,
		"ts":     isoNow(),
	})
}

func (h *handler) StreamURL(w http.ResponseWriter, _ *http.Request) {
	var url any
	if u, ok := h.app.StreamURL(); ok {
		url = u
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url": url,
		"ts":  isoNow(),
	})
}

func (h *handler) SetStreamURL(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL *string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == nil || *body.URL == "" {
		writeError(w, http.StatusBadRequest, "Body must be { url: string }")
		return
	}

	token := auth.FromHeader(r.Header.Get("Authorization"))
	url, err := h.app.SetStreamURL(token, *body.URL)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":  true,
		"url": url,
		"ts":  isoNow(),
	})
}

func (h *handler) Rooms(w http.ResponseWriter, _ *http.Request) {
	list := h.app.Rooms()
	if list == nil {
		list = []rooms.RoomInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": list})
}

func (h *handler) WS(w http.ResponseWriter, r *http.Request) {
	if !h.app.Active() {
		writeError(w, http.StatusServiceUnavailable, "Server is in Sleep Mode")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(fmt.Sprintf("WS - upgrade error: %s", err))
		return
	}

	h.app.WS(context.Background(), conn)
}

func (h *handler) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	default:
		h.logger.Error(fmt.Sprintf("auth - unexpected error: %s", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func isoNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func methodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "405 Method Not Allowed", http.StatusMethodNotAllowed)
}

func methodNotFoundHandler(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "404 Not Found", http.StatusNotFound)
}
