// Package http provides the HTTP server infrastructure. Framework layer,
// outermost circle: it translates requests into usecase calls and never
// contains business rules.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"corag/internal/domain/entities"
	"corag/internal/domain/usecases"
	"corag/internal/store"
)

// Server exposes the tenant-scoped document and answering API.
type Server struct {
	echo   *echo.Echo
	ingest *usecases.IngestUseCase
	ask    *usecases.AskUseCase
	store  *store.TenantStore
	logger *zap.Logger
	addr   string
}

// Config configures the server.
type Config struct {
	Addr        string
	MaxUploadMB int
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(
	cfg Config,
	ingest *usecases.IngestUseCase,
	ask *usecases.AskUseCase,
	st *store.TenantStore,
	logger *zap.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))
	if cfg.MaxUploadMB > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.MaxUploadMB)))
	}

	s := &Server{
		echo:   e,
		ingest: ingest,
		ask:    ask,
		store:  st,
		logger: logger,
		addr:   cfg.Addr,
	}

	e.GET("/ping", s.handlePing)
	e.POST("/upload", s.handleUpload)
	e.GET("/get-documents", s.handleGetDocuments)
	e.POST("/delete-document", s.handleDeleteDocument)
	e.POST("/sanitize", s.handleSanitize)
	e.GET("/ask", s.handleAsk)

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.addr)
	}()
	s.logger.Info("http server listening", zap.String("addr", s.addr))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handlePing(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload ingests one or more multipart files under the caller's
// tenant. An optional expiration_hours query parameter overrides the
// default retention.
func (s *Server) handleUpload(c echo.Context) error {
	passphrase := requestPassphrase(c)
	if passphrase == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "passphrase is required")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		uploads = form.File["file"]
	}
	if len(uploads) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files provided")
	}

	var expiresAt time.Time
	if raw := c.QueryParam("expiration_hours"); raw != "" {
		var hours float64
		if _, err := fmt.Sscanf(raw, "%g", &hours); err != nil || hours <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "expiration_hours must be a positive number")
		}
		expiresAt = time.Now().Add(time.Duration(hours * float64(time.Hour)))
	}

	files := make([]entities.File, 0, len(uploads))
	for _, upload := range uploads {
		src, err := upload.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("opening %s: %v", upload.Filename, err))
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("reading %s: %v", upload.Filename, err))
		}
		files = append(files, entities.File{Name: upload.Filename, Data: data})
	}

	report, err := s.ingest.Ingest(c.Request().Context(), passphrase, files, expiresAt)
	if err != nil {
		if errors.Is(err, entities.ErrEmptyTenantKey) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "ingestion failed")
	}

	status := http.StatusOK
	if len(report.ProcessedFiles) == 0 && len(report.FailedFiles) > 0 {
		status = http.StatusUnprocessableEntity
	}
	return c.JSON(status, uploadResponse(report))
}

func uploadResponse(report *entities.IngestReport) map[string]any {
	failed := make([]map[string]string, 0, len(report.FailedFiles))
	for _, fe := range report.FailedFiles {
		failed = append(failed, map[string]string{"filename": fe.Name, "error": fe.Err.Error()})
	}
	return map[string]any{
		"processed_files": report.ProcessedFiles,
		"failed_files":    failed,
		"total_chunks":    report.TotalChunks,
	}
}

func (s *Server) handleGetDocuments(c echo.Context) error {
	passphrase := requestPassphrase(c)
	if passphrase == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "passphrase is required")
	}

	names, err := s.store.ListDocuments(c.Request().Context(), passphrase)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "listing documents failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"documents": names})
}

type deleteDocumentRequest struct {
	Passphrase string `json:"passphrase"`
	Filename   string `json:"filename"`
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	var req deleteDocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Passphrase == "" || req.Filename == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "passphrase and filename are required")
	}

	if err := s.store.DeleteDocument(c.Request().Context(), req.Passphrase, req.Filename); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "deleting document failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted", "filename": req.Filename})
}

// handleSanitize purges records past their expiry. With a passphrase the
// sweep is scoped to that tenant; without one it covers every tenant.
// Unexpired records are never touched.
func (s *Server) handleSanitize(c echo.Context) error {
	passphrase := requestPassphrase(c)

	removed, err := s.store.PurgeExpired(c.Request().Context(), passphrase)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "sanitize failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "sanitized", "removed": removed})
}

// handleAsk streams the answer as server-sent events. Token frames are
// plain data events; a failure after streaming has begun arrives as an
// error event, since the status line is already on the wire.
func (s *Server) handleAsk(c echo.Context) error {
	passphrase := requestPassphrase(c)
	question := c.QueryParam("question")
	if passphrase == "" || question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "passphrase and question are required")
	}

	ctx := c.Request().Context()
	tokens, err := s.ask.Ask(ctx, passphrase, question)
	if err != nil {
		if errors.Is(err, entities.ErrEmptyTenantKey) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "answering failed")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	for token := range tokens {
		if token.Err != nil {
			writeSSE(res, "error", map[string]string{"error": token.Err.Error()})
			return nil
		}
		if token.Done {
			writeSSE(res, "", map[string]any{"done": true})
			return nil
		}
		writeSSE(res, "", map[string]any{"content": token.Content})
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
	return nil
}

func writeSSE(res *echo.Response, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if event != "" {
		fmt.Fprintf(res, "event: %s\n", event)
	}
	fmt.Fprintf(res, "data: %s\n\n", data)
	res.Flush()
}

// requestPassphrase reads the tenant secret from the query string or form.
// It is hashed before it ever reaches storage.
func requestPassphrase(c echo.Context) string {
	if v := c.QueryParam("passphrase"); v != "" {
		return v
	}
	return c.FormValue("passphrase")
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}
