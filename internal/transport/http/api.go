package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"live-session-service/internal/app"
	"live-session-service/internal/domain"
)

// API exposes the session/quiz core over JSON HTTP. The response body is the
// authoritative success signal for every operation; the broadcast that
// follows a successful mutation is a side effect.
type API struct {
	service *app.SessionService
}

func NewAPI(service *app.SessionService) *API {
	return &API{service: service}
}

// Register mounts all REST routes on the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/session/create", a.handleCreateSession)
	mux.HandleFunc("/api/session/join", a.handleJoinSession)
	mux.HandleFunc("/api/session/leave", a.handleLeaveSession)
	mux.HandleFunc("/api/session/end", a.handleEndSession)
	mux.HandleFunc("/api/session/", a.handleGetSession)
	mux.HandleFunc("/api/transcription", a.handleTranscription)
	mux.HandleFunc("/api/quiz", a.handleStartQuiz)
	mux.HandleFunc("/api/quiz/generate", a.handleGenerateQuiz)
	mux.HandleFunc("/api/quiz/answer", a.handleSubmitAnswer)
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Name string             `json:"name"`
		Host domain.UserDetails `json:"host"`
	}
	if !decode(w, r, &req) {
		return
	}

	session, err := a.service.CreateSession(r.Context(), req.Name, req.Host)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": session.ID,
		"session":   session,
	})
}

func (a *API) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		SessionID   string             `json:"sessionId"`
		Participant domain.UserDetails `json:"participant"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	session, err := a.service.JoinSession(r.Context(), req.SessionID, req.Participant)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": session})
}

func (a *API) handleLeaveSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		SessionID string `json:"sessionId"`
		UserID    string `json:"userId"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	if err := a.service.LeaveSession(r.Context(), req.SessionID, req.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	if err := a.service.EndSession(r.Context(), req.SessionID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/session/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	session, err := a.service.GetSession(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleTranscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		SessionID string `json:"sessionId"`
		Text      string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId or text")
		return
	}

	if err := a.service.AppendTranscript(r.Context(), req.SessionID, req.Text); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		SessionID string      `json:"sessionId"`
		Quiz      domain.Quiz `json:"quiz"`
		TimeLimit int         `json:"timeLimit"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId or quiz")
		return
	}

	quiz, err := a.service.StartQuiz(r.Context(), req.SessionID, req.Quiz, req.TimeLimit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "quiz": quiz})
}

func (a *API) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		SessionID string `json:"sessionId"`
		TimeLimit int    `json:"timeLimit"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	quiz, err := a.service.GenerateQuiz(r.Context(), req.SessionID, req.TimeLimit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "quiz": quiz})
}

func (a *API) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		SessionID  string `json:"sessionId"`
		UserID     string `json:"userId"`
		Answer     string `json:"answer"`
		QuestionID string `json:"questionId"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	if err := a.service.SubmitAnswer(r.Context(), req.SessionID, req.QuestionID, req.UserID, req.Answer); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "missing required fields")
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuizNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSessionEnded), errors.Is(err, domain.ErrQuizClosed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrQuizActive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
