// Package httpapi exposes the chat memory repository over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory"
	"github.com/go-go-golems/chatmemory/pkg/chatmemory/repository"
	"github.com/go-go-golems/chatmemory/pkg/observability"
)

const maxBodyBytes = 8 << 20

type Server struct {
	repo     *repository.Repository
	trimmer  *repository.Trimmer
	gatherer prometheus.Gatherer
	metrics  bool
	logger   zerolog.Logger
}

type Option func(*Server)

// WithMetrics serves g on /metrics. A nil g serves the default gatherer.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = true
		s.gatherer = g
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func New(repo *repository.Repository, opts ...Option) *Server {
	s := &Server{
		repo:    repo,
		trimmer: repo.Trimmer(),
		logger:  log.Logger.With().Str("component", "httpapi").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type conversationIDsResponse struct {
	ConversationIDs []string `json:"conversation_ids"`
}

type conversationResponse struct {
	ConversationID string               `json:"conversation_id"`
	Messages       []chatmemory.Message `json:"messages"`
}

type saveRequest struct {
	Messages []*chatmemory.Message `json:"messages"`
}

type trimRequest struct {
	MaxLimit    *int `json:"max_limit"`
	DeleteCount int  `json:"delete_count"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	if s.metrics {
		r.Handle("/metrics", observability.Handler(s.gatherer))
	}

	r.Get("/v1/conversations", s.handleListConversations)
	r.Get("/v1/conversations/{id}", s.handleGetConversation)
	r.Put("/v1/conversations/{id}", s.handleSaveConversation)
	r.Delete("/v1/conversations/{id}", s.handleDeleteConversation)
	r.Post("/v1/conversations/{id}/trim", s.handleTrimConversation)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.repo.FindConversationIDs(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conversationIDsResponse{ConversationIDs: ids})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	msgs, err := s.repo.FindByConversationID(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conversationResponse{ConversationID: id, Messages: msgs})
}

func (s *Server) handleSaveConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	var req saveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	for i, m := range req.Messages {
		if m == nil {
			continue
		}
		role, ok := chatmemory.ParseRole(string(m.Role))
		if !ok {
			s.logger.Warn().Str("conv_id", id).Int("index", i).Str("role", string(m.Role)).
				Msg("unknown role, defaulting to USER")
		}
		m.Role = role
	}
	if err := s.repo.SaveAll(r.Context(), id, req.Messages); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	if err := s.repo.DeleteByConversationID(r.Context(), id); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrimConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	var req trimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.MaxLimit == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "max_limit is required")
		return
	}
	res, err := s.trimmer.EnforceLimit(r.Context(), id, *req.MaxLimit, req.DeleteCount)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// conversationID returns the {id} path parameter decoded exactly once. chi
// matches on RawPath when the request carries one (an escaped "/" in the id)
// and on the already decoded Path otherwise.
func conversationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if r.URL.RawPath == "" {
		return id, true
	}
	id, err := url.PathUnescape(id)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_conversation_id", err.Error())
		return "", false
	}
	return id, true
}

// StatusFor maps chat memory error kinds to HTTP status codes.
func StatusFor(err error) (int, string) {
	switch {
	case stderrors.Is(err, chatmemory.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case stderrors.Is(err, chatmemory.ErrEncode):
		return http.StatusBadRequest, "encode_error"
	case stderrors.Is(err, chatmemory.ErrDecode):
		return http.StatusUnprocessableEntity, "decode_error"
	case stderrors.Is(err, chatmemory.ErrStore):
		return http.StatusServiceUnavailable, "store_error"
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Int("status", status).Msg("request failed")
	}
	respondError(w, status, code, err.Error())
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	if r.Body == nil {
		return stderrors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if stderrors.Is(err, io.EOF) {
			return stderrors.New("empty body")
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
