// Package server exposes the companion over HTTP: conversational chat,
// initial-question generation, history listing, and a health probe.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kubewise-ai/kubewise/agent"
	"github.com/kubewise-ai/kubewise/initialquestions"
	"github.com/kubewise-ai/kubewise/k8s"
	"github.com/kubewise-ai/kubewise/state"
)

type Config struct {
	Addr       string
	Supervisor *agent.Supervisor
	History    state.ConversationHistory
	Questions  *initialquestions.Handler
	Cluster    k8s.Client
}

type Server struct {
	cfg  Config
	mux  *http.ServeMux
	http *http.Server
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("conversation history is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = ":8000"
	}
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	s.http = &http.Server{Addr: cfg.Addr, Handler: s.mux}
	return s, nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/chat", s.handleChat)
	s.mux.HandleFunc("/initial-questions", s.handleInitialQuestions)
	s.mux.HandleFunc("/conversations/", s.handleConversationMessages)
	s.mux.HandleFunc("/healthz", s.handleHealthz)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.http.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown error: %v", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type chatRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID string `json:"conversationId"`
	Answer         string `json:"answer"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("conversationId is required"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("message is required"))
		return
	}

	answer, err := s.cfg.Supervisor.Chat(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		writeError(w, statusForError(err), fmt.Errorf("chat failed: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: req.ConversationID,
		Answer:         answer,
	})
}

type initialQuestionsRequest struct {
	ConversationID string `json:"conversationId"`
	Namespace      string `json:"namespace,omitempty"`
	Kind           string `json:"kind,omitempty"`
	Name           string `json:"name,omitempty"`
	APIVersion     string `json:"apiVersion,omitempty"`
}

type initialQuestionsResponse struct {
	ConversationID string   `json:"conversationId"`
	Questions      []string `json:"questions"`
}

func (s *Server) handleInitialQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.cfg.Questions == nil || s.cfg.Cluster == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("initial questions are not configured"))
		return
	}
	var req initialQuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("conversationId is required"))
		return
	}

	selector := k8s.Selector{
		Namespace:  req.Namespace,
		Kind:       req.Kind,
		Name:       req.Name,
		APIVersion: req.APIVersion,
	}
	if _, err := selector.Classify(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	clusterContext, err := s.cfg.Questions.ClusterContext(r.Context(), s.cfg.Cluster, selector)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("failed to collect cluster context: %w", err))
		return
	}
	questions, err := s.cfg.Questions.Generate(r.Context(), req.ConversationID, clusterContext)
	if err != nil {
		writeError(w, statusForError(err), fmt.Errorf("initial questions failed: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, initialQuestionsResponse{
		ConversationID: req.ConversationID,
		Questions:      questions,
	})
}

type messagesResponse struct {
	ConversationID string                      `json:"conversationId"`
	Messages       []state.ConversationMessage `json:"messages"`
}

// GET /conversations/{id}/messages
func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/conversations/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "messages" {
		writeError(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	conversationID := parts[0]

	messages, err := s.cfg.History.ListMessages(r.Context(), conversationID)
	if err != nil {
		writeError(w, statusForError(err), fmt.Errorf("failed to list messages: %w", err))
		return
	}
	if messages == nil {
		messages = []state.ConversationMessage{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{
		ConversationID: conversationID,
		Messages:       messages,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, state.ErrInvalidArgument), errors.Is(err, state.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrCorruptRecord), errors.Is(err, state.ErrCorruptChain):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]any{"error": msg})
}
