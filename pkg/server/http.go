package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dasmlab/aarogya/pkg/catalog"
	"github.com/dasmlab/aarogya/pkg/service"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	// RequestIDHeader is echoed on every response.
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 1 << 20
)

// LoadedLister reports translation directions whose handles are ready.
// *translate.Registry satisfies it.
type LoadedLister interface {
	Loaded() []catalog.Direction
}

// HTTPServer exposes the chat pipeline, health and metrics over HTTP.
type HTTPServer struct {
	orchestrator *service.Orchestrator
	translators  LoadedLister
	logger       *logrus.Logger
	port         int
	srv          *http.Server
}

// NewHTTPServer creates a new HTTP server. translators may be nil.
func NewHTTPServer(orchestrator *service.Orchestrator, translators LoadedLister, logger *logrus.Logger, port int) *HTTPServer {
	if logger == nil {
		logger = logrus.New()
	}
	s := &HTTPServer{
		orchestrator: orchestrator,
		translators:  translators,
		logger:       logger,
		port:         port,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with CORS and request IDs applied.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/languages", s.handleLanguages)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	return s.withRequestID(withCORS(mux))
}

// Start listens on the configured port and blocks until the server stops.
// It returns nil after Shutdown.
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"port": s.port,
	}).Info("Starting HTTP server")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type chatRequestBody struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// handleChat runs one question through the pipeline.
//
//	200 success or soft failure
//	400 rejected request
//	500 hard failure
func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"error": "Method not allowed"})
		return
	}

	var body chatRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Invalid JSON body"})
		return
	}

	logger := s.logger.WithFields(logrus.Fields{
		"request_id": w.Header().Get(RequestIDHeader),
		"lang":       body.Lang,
		"text_len":   len(body.Text),
	})

	result, err := s.orchestrator.Chat(r.Context(), service.ChatRequest{Text: body.Text, Lang: body.Lang})
	if err != nil {
		logger.WithError(err).Debug("Chat request rejected")
		writeJSON(w, http.StatusBadRequest, service.ValidationBody(err))
		return
	}

	status := http.StatusOK
	if result.Outcome == service.HardFailure {
		status = http.StatusInternalServerError
	}
	logger.WithFields(logrus.Fields{
		"outcome": result.Outcome.String(),
		"status":  status,
	}).Info("Chat request handled")

	writeJSON(w, status, service.ResponseBody(result))
}

// handleHealth reports liveness, the supported languages and loaded translators.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	translators := []string{}
	if s.translators != nil {
		for _, d := range s.translators.Loaded() {
			translators = append(translators, d.String())
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"langs":       s.orchestrator.Catalog().Languages(),
		"translators": translators,
	})
}

// handleLanguages lists the catalog.
func (s *HTTPServer) handleLanguages(w http.ResponseWriter, r *http.Request) {
	cat := s.orchestrator.Catalog()
	directions := []string{}
	for _, d := range cat.Directions() {
		directions = append(directions, d.String())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"languages":  cat.Languages(),
		"directions": directions,
	})
}

func (s *HTTPServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
