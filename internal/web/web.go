package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cohortdash/internal/cache"
	appLog "cohortdash/internal/log"
	"cohortdash/internal/model"
	"cohortdash/internal/refresh"
)

// maxCronDuration bounds one cron request end to end; AI processing
// dominates and has been observed over a minute.
const maxCronDuration = 300 * time.Second

// CacheRunner runs the midnight refresh pipeline.
type CacheRunner interface {
	Run(ctx context.Context) (refresh.CacheResult, error)
}

// NewsletterRunner runs the morning newsletter pipeline.
type NewsletterRunner interface {
	Run(ctx context.Context) (refresh.NewsletterResult, error)
}

// Server provides the cron trigger endpoints and the cache-backed read
// APIs.
type Server struct {
	cronSecret string
	store      cache.Store

	cacheJob      CacheRunner
	newsletterJob NewsletterRunner

	mux *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cronSecret string, store cache.Store, cacheJob CacheRunner, newsletterJob NewsletterRunner) *Server {
	s := &Server{
		cronSecret:    cronSecret,
		store:         store,
		cacheJob:      cacheJob,
		newsletterJob: newsletterJob,
		mux:           http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/cron/refresh-cache", s.requireCronAuth(s.handleRefreshCache))
	s.mux.HandleFunc("GET /api/cron/refresh-newsletter", s.requireCronAuth(s.handleRefreshNewsletter))
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve runs the HTTP server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:    listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// requireCronAuth rejects requests whose bearer token does not match the
// configured secret, before any pipeline work begins.
func (s *Server) requireCronAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cronSecret == "" || !secureCompare(r.Header.Get("Authorization"), "Bearer "+s.cronSecret) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next(w, r)
	}
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRefreshCache(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), maxCronDuration)
	defer cancel()

	res, err := s.cacheJob.Run(ctx)
	if err != nil {
		s.writeRunError(w, "Cache refresh failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Cache refreshed at midnight",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"durationMs": res.DurationMs,
		"cached": map[string]bool{
			"cohortEvents": true,
			"myWeekData":   true,
		},
	})
}

func (s *Server) handleRefreshNewsletter(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), maxCronDuration)
	defer cancel()

	res, err := s.newsletterJob.Run(ctx)
	if err != nil {
		s.writeRunError(w, "Newsletter refresh failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"message":           "Newsletter and cache refreshed",
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"newsletterUrl":     res.NewsletterURL,
		"durationMs":        res.DurationMs,
		"sectionsProcessed": res.SectionsProcessed,
		"cached": map[string]bool{
			"newsletter":    true,
			"cohortEvents":  true,
			"myWeekData":    true,
			"dashboardData": true,
		},
	})
}

func (s *Server) writeRunError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, cache.ErrLockHeld) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   msg,
			"details": "another refresh run is in progress",
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   msg,
		"details": err.Error(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var events model.CohortEvents
	if err := s.store.Get(r.Context(), cache.KeyCohortEvents, &events); err != nil {
		s.writeCacheError(w, err)
		return
	}

	switch model.Cohort(r.URL.Query().Get("cohort")) {
	case model.CohortBlue:
		writeJSON(w, http.StatusOK, events.Blue)
	case model.CohortGold:
		writeJSON(w, http.StatusOK, events.Gold)
	default:
		writeJSON(w, http.StatusOK, events)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var dashboard model.DashboardData
	if err := s.store.Get(r.Context(), cache.KeyDashboardData, &dashboard); err != nil {
		s.writeCacheError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (s *Server) writeCacheError(w http.ResponseWriter, err error) {
	if errors.Is(err, cache.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cached data yet"})
		return
	}
	appLog.Error("cache read failed", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache read failed"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		appLog.Error("write JSON response failed", err)
	}
}
