package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/camberg23/el-goose/config"
	"github.com/camberg23/el-goose/internal/agent"
)

// Stale conversations are evicted on this cadence; a chat session that
// goes idle for the max age loses its transcript.
const (
	conversationMaxAge  = 24 * time.Hour
	conversationCleanup = time.Hour
)

type Server struct {
	agent  agent.ChatAgent
	port   int
	logger zerolog.Logger
	store  *agent.ConversationStore
	config *config.Config
}

func NewServer(ag agent.ChatAgent, port int, logger zerolog.Logger, cfg *config.Config) *Server {
	return &Server{
		agent:  ag,
		port:   port,
		logger: logger,
		store:  agent.NewConversationStore(),
		config: cfg,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.apiKeyMiddleware)
			r.Post("/chat", s.handleChat)
			r.Get("/conversations", s.handleListConversations)
			r.Delete("/conversations/{id}", s.handleDeleteConversation)
		})
	})

	return r
}

func (s *Server) Start() error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.routes(),
	}

	stop := make(chan struct{})
	go s.cleanupLoop(stop)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		s.logger.Info().Msg("shutting down server")
		close(stop)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	s.logger.Info().Int("port", s.port).Msg("starting API server")
	return srv.ListenAndServe()
}

func (s *Server) cleanupLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(conversationCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.store.Cleanup(conversationMaxAge)
		case <-stop:
			return
		}
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.ValidateAPIKey(r.Header.Get("X-API-Key")) {
			s.writeError(w, "invalid API key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
