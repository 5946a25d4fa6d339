package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/stockbot/internal/models"
	"github.com/kjannette/stockbot/internal/repository"
)

const (
	maxQueryLimit       = 1000
	defaultHistoryLimit = 30
)

var dateRegexp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Reader is the read side of the store the API serves from.
type Reader interface {
	Ping(ctx context.Context) error
	ListStocks(ctx context.Context) ([]models.Stock, error)
	GetStock(ctx context.Context, stockID string) (*models.Stock, error)
	ActivityByDay(ctx context.Context, stockID, date string) ([]models.Activity, error)
	HistoryBySymbol(ctx context.Context, stockID string, limit int) ([]models.History, error)
}

type Options struct {
	Port       int
	APIKey     string
	CORSOrigin string
	// Location decides which calendar date "today" is.
	Location *time.Location
}

type Server struct {
	store      Reader
	httpServer *http.Server
	apiKey     string
	loc        *time.Location
	now        func() time.Time
	log        logrus.FieldLogger
}

func NewServer(store Reader, log logrus.FieldLogger, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	s := &Server{
		store:  store,
		apiKey: opts.APIKey,
		loc:    opts.Location,
		now:    time.Now,
		log:    log.WithField("component", "api"),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.routes(opts.CORSOrigin),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) routes(corsOrigin string) http.Handler {
	mux := http.NewServeMux()

	// Stock routes
	mux.HandleFunc("GET /v1/stocks", s.handleStocks)
	mux.HandleFunc("GET /v1/stocks/{id}", s.handleStock)
	mux.HandleFunc("GET /v1/stocks/{id}/activity/today", s.handleActivityToday)
	mux.HandleFunc("GET /v1/stocks/{id}/activity/day/{date}", s.handleActivityByDay)
	mux.HandleFunc("GET /v1/stocks/{id}/history", s.handleHistory)

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	// CORS wraps auth: preflights and 401s carry the allow-origin header.
	return corsMiddleware(s.authMiddleware(mux), corsOrigin)
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.Infof("REST API server started on http://localhost%s", s.httpServer.Addr)
	s.log.Infof("health check: http://localhost%s/health", s.httpServer.Addr)
	if s.apiKey != "" {
		s.log.Info("authentication: enabled (Bearer token)")
	} else {
		s.log.Info("authentication: disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func validateDate(date string) bool {
	if !dateRegexp.MatchString(date) {
		return false
	}
	_, err := repository.ParseDay(date)
	return err == nil
}

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
