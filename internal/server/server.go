// Package server exposes the session manager over HTTP: JSON control
// endpoints, clip listing/streaming, and a websocket pushing state
// snapshots to remote observers.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prodylabs/voicenote/internal/session"
	"github.com/prodylabs/voicenote/internal/store"
)

// Server is the web control surface for a session manager.
type Server struct {
	manager  *session.Manager
	store    *store.Store
	listen   string
	upgrader websocket.Upgrader
}

// StatusResponse is the JSON shape of the status endpoint.
type StatusResponse struct {
	Status string           `json:"status"`
	State  session.Snapshot `json:"state"`
}

// ClipsResponse lists the recorded clips.
type ClipsResponse struct {
	Clips      []store.ClipInfo `json:"clips"`
	TotalCount int              `json:"total_count"`
	Directory  string           `json:"directory"`
}

// GenericResponse is the JSON shape of mutation endpoints.
type GenericResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	Path       string `json:"path,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// New creates a server around an existing manager and clip store.
func New(manager *session.Manager, st *store.Store, listen string) *Server {
	return &Server{
		manager: manager,
		store:   st,
		listen:  listen,
		upgrader: websocket.Upgrader{
			// The control surface is LAN-local, same trust model as the
			// JSON endpoints.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start runs the server. Blocks until the listener fails.
func (s *Server) Start() error {
	slog.Info("voicenote control server starting", "listen", s.listen)
	return http.ListenAndServe(s.listen, s.routes())
}

// routes builds the handler mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/record/start", s.handleRecordStart)
	mux.HandleFunc("/record/stop", s.handleRecordStop)
	mux.HandleFunc("/record/cancel", s.handleRecordCancel)
	mux.HandleFunc("/playback/start", s.handlePlaybackStart)
	mux.HandleFunc("/playback/stop", s.handlePlaybackStop)
	mux.HandleFunc("/playback/pause", s.handlePlaybackPause)
	mux.HandleFunc("/playback/seek", s.handlePlaybackSeek)
	mux.HandleFunc("/error/clear", s.handleErrorClear)
	mux.HandleFunc("/api/clips", s.handleClips)
	mux.HandleFunc("/api/clips/stream/", s.handleClipStream)
	mux.HandleFunc("/api/clips/duration/", s.handleClipDuration)
	mux.HandleFunc("/api/clips/delete", s.handleClipDelete)
	mux.HandleFunc("/ws", s.handleStateSocket)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	state := s.manager.State()
	status := "idle"
	switch {
	case state.Recording:
		status = "recording"
	case state.Playing && state.Paused:
		status = "paused"
	case state.Playing:
		status = "playing"
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: status, State: state})
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	path, err := s.manager.StartRecording()
	if err != nil {
		s.sendError(w, statusFor(err), err, "operation", "record_start")
		return
	}
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "recording started", Path: path})
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	path, duration, err := s.manager.StopRecording()
	if err != nil {
		s.sendError(w, statusFor(err), err, "operation", "record_stop")
		return
	}
	writeJSON(w, http.StatusOK, GenericResponse{
		Success:    true,
		Message:    "recording stopped",
		Path:       path,
		DurationMs: duration.Milliseconds(),
	})
}

func (s *Server) handleRecordCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	s.manager.CancelRecording()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "recording cancelled"})
}

func (s *Server) handlePlaybackStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendError(w, http.StatusBadRequest, fmt.Errorf("failed to parse form: %w", err))
		return
	}

	name := r.FormValue("clip")
	if name == "" {
		s.sendError(w, http.StatusBadRequest, errors.New("clip name is required"))
		return
	}
	path, err := s.store.Resolve(name)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.manager.StartPlayback(path); err != nil {
		s.sendError(w, statusFor(err), err, "clip", name, "operation", "playback_start")
		return
	}
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "playback started", Path: path})
}

func (s *Server) handlePlaybackStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	s.manager.StopPlayback()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "playback stopped"})
}

func (s *Server) handlePlaybackPause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	s.manager.TogglePause()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "pause toggled"})
}

func (s *Server) handlePlaybackSeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendError(w, http.StatusBadRequest, fmt.Errorf("failed to parse form: %w", err))
		return
	}

	fraction, err := strconv.ParseFloat(r.FormValue("fraction"), 64)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, fmt.Errorf("invalid seek fraction: %w", err))
		return
	}

	s.manager.SeekTo(fraction)
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "seek applied"})
}

func (s *Server) handleErrorClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	s.manager.ClearError()
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "error cleared"})
}

func (s *Server) handleClips(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	clips, err := s.store.List()
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err, "operation", "list_clips")
		return
	}
	writeJSON(w, http.StatusOK, ClipsResponse{
		Clips:      clips,
		TotalCount: len(clips),
		Directory:  s.store.Dir(),
	})
}

func (s *Server) handleClipStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/clips/stream/")
	path, err := s.store.Resolve(name)
	if err != nil {
		http.Error(w, "Invalid clip name", http.StatusBadRequest)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "audio/mp4"
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, r, path)
}

func (s *Server) handleClipDuration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/clips/duration/")
	path, err := s.store.Resolve(name)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err)
		return
	}

	duration := s.manager.AudioDuration(path)
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, DurationMs: duration.Milliseconds()})
}

func (s *Server) handleClipDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendError(w, http.StatusBadRequest, fmt.Errorf("failed to parse form: %w", err))
		return
	}

	name := r.FormValue("clip")
	if name == "" {
		s.sendError(w, http.StatusBadRequest, errors.New("clip name is required"))
		return
	}

	deleted := s.manager.DeleteRecording(name)
	msg := "clip deleted"
	if !deleted {
		msg = "clip not found"
	}
	writeJSON(w, http.StatusOK, GenericResponse{Success: deleted, Message: msg})
}

// handleStateSocket streams state snapshots over a websocket until the
// client disconnects. Each message is one JSON-encoded snapshot.
func (s *Server) handleStateSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	snapshots, cancel := s.manager.Subscribe(16)
	defer cancel()

	// Current state first so the client does not wait for a transition.
	if err := conn.WriteJSON(s.manager.State()); err != nil {
		return
	}

	// Drain reads so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for snap := range snapshots {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(snap); err != nil {
			slog.Debug("websocket observer disconnected", "error", err)
			return
		}
	}
}

func (s *Server) methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, GenericResponse{Success: false, Error: "Method not allowed"})
}

// sendError writes a JSON error response and logs it with context.
func (s *Server) sendError(w http.ResponseWriter, code int, err error, logArgs ...any) {
	args := append([]any{"error", err, "status", code}, logArgs...)
	slog.Error("request failed", args...)
	writeJSON(w, code, GenericResponse{Success: false, Error: err.Error()})
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrAlreadyRecording), errors.Is(err, session.ErrNoActiveRecording):
		return http.StatusConflict
	case errors.Is(err, session.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, session.ErrPlayback), errors.Is(err, session.ErrEmptyRecording):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}
