// =============================================================================
// Weight Merge - HTTP Server
// =============================================================================
//
// ENDPOINTS:
//   POST /merge    multipart form with "sales" and "weights" file parts.
//                  Optional fields: "format" (xlsx|csv|sqlite), "profile",
//                  "response" ("file", the default, or "json").
//                  Returns the rendered report as an attachment, with the
//                  row count in X-Total-Rows, or a JSON run summary.
//   GET  /healthz  liveness check
//
// ERRORS:
//   Every failure is a JSON body {"error": ..., "kind": ...}.
//     400  malformed request, unreadable upload, unknown format or profile
//     413  upload larger than the configured limit
//     422  schema, parse and duplicate-key failures
//     500  anything else
//
// =============================================================================

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/weight-merge/internal/config"
	"github.com/ginjaninja78/weight-merge/internal/reconcile"
	"github.com/ginjaninja78/weight-merge/internal/report"
	"github.com/ginjaninja78/weight-merge/internal/tabular"
	"github.com/ginjaninja78/weight-merge/internal/types"
	"github.com/ginjaninja78/weight-merge/pkg/utils"
)

// KindRequest labels errors caused by the request itself.
const KindRequest types.ErrorKind = "request"

// Config holds server settings.
type Config struct {
	Addr             string
	MaxUploadBytes   int64
	DefaultFormat    report.Format
	CSVPrecision     int
	OutputNameFormat string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ShutdownTimeout  time.Duration
}

// ConfigFrom builds server settings from the main configuration.
func ConfigFrom(c *config.Main) (Config, error) {
	format, err := report.ParseFormat(c.DefaultFormat)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Addr:             c.Server.Addr,
		MaxUploadBytes:   c.Server.MaxUploadMB << 20,
		DefaultFormat:    format,
		CSVPrecision:     c.CSVPrecision,
		OutputNameFormat: c.OutputNameFormat,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     120 * time.Second,
		ShutdownTimeout:  30 * time.Second,
	}, nil
}

// Server serves merge requests.
type Server struct {
	cfg      Config
	profiles []*config.Profile
	log      *zap.SugaredLogger
	now      func() time.Time
}

// New creates a Server. profiles may be empty; the built-in profile is then
// used for every request.
func New(cfg Config, profiles []*config.Profile, log *zap.SugaredLogger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = report.FormatXLSX
	}
	if cfg.OutputNameFormat == "" {
		cfg.OutputNameFormat = "final_merged_{timestamp}.{format}"
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{cfg: cfg, profiles: profiles, log: log, now: time.Now}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /merge", s.handleMerge)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.loggingMiddleware(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		s.log.Infof("shutting down")
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Infof("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, KindRequest, fmt.Errorf("upload exceeds %d bytes", s.cfg.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, KindRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	format := s.cfg.DefaultFormat
	if v := r.FormValue("format"); v != "" {
		f, err := report.ParseFormat(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, KindRequest, err)
			return
		}
		format = f
	}

	salesName, salesData, err := readPart(r, "sales")
	if err != nil {
		writeError(w, http.StatusBadRequest, KindRequest, err)
		return
	}
	weightsName, weightsData, err := readPart(r, "weights")
	if err != nil {
		writeError(w, http.StatusBadRequest, KindRequest, err)
		return
	}

	profile, err := config.Select(s.profiles, r.FormValue("profile"), salesName)
	if err != nil {
		writeError(w, http.StatusBadRequest, KindRequest, err)
		return
	}

	pipeline, err := reconcile.New(profile.Options(), s.log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err)
		return
	}

	sales, err := tabular.Decode(salesName, salesData, profile.SalesSettings())
	if err != nil {
		writePipelineError(w, err)
		return
	}
	weights, err := tabular.Decode(weightsName, weightsData, profile.WeightSettings())
	if err != nil {
		writePipelineError(w, err)
		return
	}

	result, err := pipeline.Run(sales, weights)
	if err != nil {
		s.log.Warnf("merge %s + %s failed: %v", salesName, weightsName, err)
		writePipelineError(w, err)
		return
	}

	now := s.now()
	name := utils.GenerateOutputFileName(s.cfg.OutputNameFormat, map[string]string{
		"format":  format.Extension(),
		"profile": profile.Name,
		"source":  strings.TrimSuffix(salesName, filepath.Ext(salesName)),
	}, now)

	if r.FormValue("response") == "json" {
		writeJSON(w, http.StatusOK, utils.RunSummary{
			Message:     "Files merged successfully",
			TotalRows:   len(result.Records),
			Columns:     result.Columns,
			GeneratedAt: now,
			Profile:     profile.Name,
			Sales:       salesName,
			Weights:     weightsName,
			Output:      name,
			Format:      string(format),
			Stats:       result.Stats,
		})
		return
	}

	opts := report.DefaultOptions()
	opts.Banner = profile.BannerEnabled()
	opts.CSVPrecision = s.cfg.CSVPrecision
	body, err := report.Render(format, result.Records, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("X-Total-Rows", strconv.Itoa(len(result.Records)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func readPart(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, fmt.Errorf("missing %q file", field)
		}
		return "", nil, fmt.Errorf("read %q: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read %q: %w", field, err)
	}
	return partName(header, field), data, nil
}

func partName(h *multipart.FileHeader, field string) string {
	if h != nil && h.Filename != "" {
		return h.Filename
	}
	return field
}

// =============================================================================
// RESPONSES
// =============================================================================

type errorBody struct {
	Error string          `json:"error"`
	Kind  types.ErrorKind `json:"kind,omitempty"`
}

// StatusFor maps a pipeline error to an HTTP status.
func StatusFor(err error) int {
	kind, ok := types.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case types.KindSchema, types.KindParse, types.KindDuplicateKey:
		return http.StatusUnprocessableEntity
	case types.KindSourceFetch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writePipelineError(w http.ResponseWriter, err error) {
	kind, _ := types.KindOf(err)
	writeError(w, StatusFor(err), kind, err)
}

func writeError(w http.ResponseWriter, status int, kind types.ErrorKind, err error) {
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
