// ABOUTME: Reference sync server for the nutrition endpoint.
// ABOUTME: Stores one snapshot per user, reports updates since lastSync and merges conflicting pushes.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/harperreed/nutrition/internal/merge"
	"github.com/harperreed/nutrition/internal/metrics"
	"github.com/harperreed/nutrition/internal/models"
	"github.com/harperreed/nutrition/internal/remote"
	"github.com/harperreed/nutrition/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ErrUnauthorized is reported when a request carries no known bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// maxBody caps a pushed snapshot.
const maxBody = 8 << 20

type contextKey string

const userKey contextKey = "user"

// Server serves the sync endpoint for a set of users.
type Server struct {
	docs   storage.DocumentRepository
	tokens map[string]string // token -> user id
	log    zerolog.Logger
	now    func() time.Time
	router chi.Router

	// pushes serializes the read-resolve-write of a push per user.
	locksMu sync.Mutex
	pushes  map[string]*sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithClock sets the time source for updatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server backed by docs. tokens maps bearer tokens to user ids.
func New(docs storage.DocumentRepository, tokens map[string]string, opts ...Option) *Server {
	s := &Server{
		docs:   docs,
		tokens: tokens,
		pushes: make(map[string]*sync.Mutex),
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get(remote.Path, s.handlePull)
		r.Post(remote.Path, s.handlePush)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("sync server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info().Msg("sync server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		user := ""
		if ok && token != "" {
			user = s.lookup(token)
		}
		if user == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody(ErrUnauthorized.Error()))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func (s *Server) lookup(token string) string {
	found := ""
	for known, user := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			found = user
		}
	}
	return found
}

func userFrom(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	since := models.Never()
	if raw := r.URL.Query().Get("lastSync"); raw != "" {
		var err error
		if since, err = models.ParseStamp(raw); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid lastSync"))
			return
		}
	}

	doc, err := s.docs.GetDocument(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.log.Error().Err(err).Msg("load document failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("storage error"))
		return
	}
	if doc == nil {
		writeJSON(w, http.StatusOK, remote.PullResponse{Success: true, LastSync: since})
		return
	}

	updatedAt := models.At(doc.UpdatedAt)
	resp := remote.PullResponse{Success: true, LastSync: updatedAt}
	if !since.IsSet() || updatedAt.After(since) {
		snap := doc.Snapshot
		snap.UpdatedAt = updatedAt
		resp.HasUpdates = true
		resp.Data = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req remote.PushRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid snapshot"))
		return
	}
	if req.DailyLogs == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("dailyLogs is required"))
		return
	}

	ctx := r.Context()
	user := userFrom(ctx)
	lock := s.pushLock(user)
	lock.Lock()
	defer lock.Unlock()

	stored, err := s.docs.GetDocument(ctx, user)
	if err != nil {
		s.log.Error().Err(err).Msg("load document failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("storage error"))
		return
	}

	now := s.now().UTC()
	next, conflict := resolvePush(stored, req, now)
	if conflict {
		s.log.Warn().Str("user", user).Msg("push based on a stale copy, merged with stored document")
	}

	doc := &storage.Document{UserID: user, Snapshot: next, UpdatedAt: now}
	if err := s.docs.PutDocument(ctx, doc); err != nil {
		s.log.Error().Err(err).Msg("save document failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("storage error"))
		return
	}

	writeJSON(w, http.StatusOK, remote.PushResponse{Success: true, LastSync: models.At(now), Conflict: conflict})
}

func (s *Server) pushLock(user string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.pushes[user]
	if !ok {
		m = &sync.Mutex{}
		s.pushes[user] = m
	}
	return m
}

// resolvePush computes the document to store. A push whose base is older than
// the stored copy is merged into it; otherwise the pushed days replace the
// stored ones. Days and goals the push leaves out are never dropped.
func resolvePush(stored *storage.Document, req remote.PushRequest, now time.Time) (models.Snapshot, bool) {
	if stored == nil {
		snap := req.Snapshot.Clone()
		snap.UpdatedAt = models.At(now)
		return snap, false
	}

	if models.At(stored.UpdatedAt).After(req.BaseUpdatedAt) {
		merged, _ := merge.Snapshots(stored.Snapshot, req.Snapshot, now)
		merged.UpdatedAt = models.At(now)
		return merged, true
	}

	next := stored.Snapshot.Clone()
	if next.DailyLogs == nil {
		next.DailyLogs = make(map[string]models.DailyLog)
	}
	for date, day := range req.DailyLogs {
		if !models.IsValidDate(date) {
			continue
		}
		next.DailyLogs[date] = day.Clone()
	}
	if req.Goals != nil {
		g := *req.Goals
		next.Goals = &g
	}
	next.UpdatedAt = models.At(now)
	return next, false
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if r.URL.Path == remote.Path {
			metrics.ServerRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		}
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func errorBody(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
