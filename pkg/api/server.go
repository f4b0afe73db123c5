package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rmax-ai/ghbridge/pkg/engine"
	"github.com/rmax-ai/ghbridge/pkg/graph"
	"github.com/rmax-ai/ghbridge/pkg/intent"
	"github.com/rmax-ai/ghbridge/pkg/reports"
	"github.com/rmax-ai/ghbridge/pkg/store"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

const defaultJournalLimit = 50

// Interfaces for dependencies to enable mocking

type EngineInterface interface {
	HealthCheck(ctx context.Context) engine.HostStatus
	ListPatterns(query string) []string
	Classify(description string) (string, bool)
	ClassifyAll(description string) []intent.Score
}

type JournalInterface interface {
	Recent(ctx context.Context, limit int) ([]store.Record, error)
	Get(ctx context.Context, id string) (store.Record, error)
	PatternStats(ctx context.Context) ([]store.PatternStat, error)
	Between(ctx context.Context, from, to time.Time) ([]store.Record, error)
}

type GraphProjectionInterface interface {
	GetGraph() *graph.Graph
}

// Server encapsulates the HTTP API server
type Server struct {
	engine  EngineInterface
	journal JournalInterface
	graph   GraphProjectionInterface
	log     *zap.Logger
	server  *http.Server
}

// NewServer creates a new API server instance. journal and graphProj may be nil.
func NewServer(e EngineInterface, journal JournalInterface, graphProj GraphProjectionInterface, addr string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine:  e,
		journal: journal,
		graph:   graphProj,
		log:     log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/patterns", s.handlePatterns)
	mux.HandleFunc("/v1/classify", s.handleClassify)
	mux.HandleFunc("/v1/journal", s.handleJournal)
	mux.HandleFunc("/v1/journal/stats", s.handleJournalStats)
	mux.HandleFunc("/v1/journal/{id}", s.handleJournalEntry)
	mux.HandleFunc("/v1/graph", s.handleGraph)
	mux.HandleFunc("/v1/reports", s.handleReports)

	// Middleware: Logging, Panic Recovery, Security Headers
	handler := s.withLogging(s.withRecovery(withSecureHeaders(mux)))

	if addr == "" {
		addr = "127.0.0.1:8091"
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second, // health pings the host
		IdleTimeout:  15 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	s.log.Info("server_starting", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("server_stopping")
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed_to_encode_response", zap.String("trace_id", getTraceID(r.Context())), zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// handleHealth reports host connectivity. An unreachable host yields 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	status := s.engine.HealthCheck(r.Context())
	code := http.StatusOK
	if !status.Connected {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, code, status)
}

// handlePatterns lists pattern names, optionally filtered by ?q=.
func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	names := s.engine.ListPatterns(r.URL.Query().Get("q"))
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, r, http.StatusOK, names)
}

// handleClassify runs intent classification without touching the host.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Error(w, `{"error":"missing_query","param":"q"}`, http.StatusBadRequest)
		return
	}

	pattern, ok := s.engine.Classify(q)
	scores := s.engine.ClassifyAll(q)
	if scores == nil {
		scores = []intent.Score{}
	}
	s.writeJSON(w, r, http.StatusOK, ClassifyResponse{
		Description: q,
		Matched:     ok,
		Pattern:     pattern,
		Scores:      scores,
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if s.journal == nil {
		http.Error(w, `{"error":"journal_not_available"}`, http.StatusServiceUnavailable)
		return
	}

	limit := defaultJournalLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	records, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("failed_to_read_journal", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	s.writeJSON(w, r, http.StatusOK, records)
}

func (s *Server) handleJournalStats(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if s.journal == nil {
		http.Error(w, `{"error":"journal_not_available"}`, http.StatusServiceUnavailable)
		return
	}
	stats, err := s.journal.PatternStats(r.Context())
	if err != nil {
		s.log.Error("failed_to_read_pattern_stats", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	if stats == nil {
		stats = []store.PatternStat{}
	}
	s.writeJSON(w, r, http.StatusOK, stats)
}

func (s *Server) handleJournalEntry(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if s.journal == nil {
		http.Error(w, `{"error":"journal_not_available"}`, http.StatusServiceUnavailable)
		return
	}
	rec, err := s.journal.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("failed_to_read_journal_entry", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, http.StatusOK, rec)
}

// handleGraph returns the engine's last view of the canvas.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if s.graph == nil {
		http.Error(w, `{"error":"graph_not_available"}`, http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.graph.GetGraph())
}

// handleReports generates and streams CSV reports over the journal.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if s.journal == nil {
		http.Error(w, `{"error":"journal_not_available"}`, http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	reportType := reports.ReportType(q.Get("type"))
	if reportType == "" {
		http.Error(w, `{"error":"missing_type"}`, http.StatusBadRequest)
		return
	}

	// Default time range: last 24h if not specified
	to := time.Now()
	if toStr := q.Get("to"); toStr != "" {
		var err error
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			http.Error(w, `{"error":"invalid_to","format":"RFC3339"}`, http.StatusBadRequest)
			return
		}
	}
	from := to.Add(-24 * time.Hour)
	if fromStr := q.Get("from"); fromStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			http.Error(w, `{"error":"invalid_from","format":"RFC3339"}`, http.StatusBadRequest)
			return
		}
	}

	params := reports.ReportParams{
		Start:   from,
		End:     to,
		Filters: make(map[string]interface{}),
	}
	if pattern := q.Get("pattern"); pattern != "" {
		params.Filters["pattern"] = pattern
	}
	if failedOnly, err := strconv.ParseBool(q.Get("failed_only")); err == nil {
		params.Filters["failed_only"] = failedOnly
	}

	gen, err := reports.NewReportGenerator(reportType, s.journal)
	if err != nil {
		http.Error(w, `{"error":"invalid_report_type"}`, http.StatusBadRequest)
		return
	}

	reader, err := gen.Generate(r.Context(), params)
	if err != nil {
		s.log.Error("failed_to_generate_report", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
		http.Error(w, `{"error":"report_generation_failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	filename := fmt.Sprintf("report_%s_%d.csv", reportType, time.Now().Unix())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if _, err := io.Copy(w, reader); err != nil {
		s.log.Error("failed_to_stream_report", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
	}
}

// Middleware: Panic Recovery
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error("panic_recovered", zap.Any("error", err), zap.String("path", r.URL.Path))
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = generateTraceID()
		}
		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		s.log.Info("http_request",
			zap.String("trace_id", traceID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func generateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}
