// Package http provides the HTTP API for bookseek.
//
// The server owns a single rag.Session shared by every request, matching
// the single-user model of the assistant.
package http

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/bookseek/internal/chunker"
	"github.com/fyrsmithlabs/bookseek/internal/extraction"
	"github.com/fyrsmithlabs/bookseek/internal/generation"
	"github.com/fyrsmithlabs/bookseek/internal/logging"
	"github.com/fyrsmithlabs/bookseek/internal/rag"
	"github.com/fyrsmithlabs/bookseek/internal/retriever"
	"github.com/fyrsmithlabs/bookseek/internal/sanitize"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// uploadField is the multipart field carrying PDF files.
const uploadField = "files"

// Server provides HTTP endpoints for bookseek.
type Server struct {
	echo      *echo.Echo
	svc       *rag.Service
	session   *rag.Session
	extractor *extraction.PDFExtractor
	logger    *zap.Logger
	config    *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// BodyLimit caps upload size, in echo's notation such as "64M".
	BodyLimit string
}

// NewServer creates a new HTTP server with a fresh session.
func NewServer(svc *rag.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("rag service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 8501,
		}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "64M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			c.SetRequest(c.Request().WithContext(logging.WithRequestID(c.Request().Context(), id)))

			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", id),
			)
			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:      e,
		svc:       svc,
		session:   svc.NewSession(),
		extractor: extraction.NewPDFExtractor(),
		logger:    logger,
		config:    cfg,
	}
	s.registerRoutes()
	return s, nil
}

// Session returns the session shared by all requests.
func (s *Server) Session() *rag.Session { return s.session }

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/documents", s.handleUpload, middleware.BodyLimit(s.config.BodyLimit))
	v1.POST("/ask", s.handleAsk)
	v1.GET("/sources", s.handleSources)
	v1.GET("/conversations", s.handleConversations)
	v1.POST("/conversations", s.handleNewConversation)
	v1.POST("/conversations/:id/select", s.handleSelectConversation)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	idx := s.svc.Index()
	return c.JSON(http.StatusOK, StatusResponse{
		State:     s.session.State().String(),
		SessionID: s.session.ID,
		Entries:   idx.Len(),
		Dimension: idx.Dimension(),
		Sources:   s.svc.Sources(),
	})
}

// handleUpload ingests the PDFs in the multipart field "files" as one batch.
func (s *Server) handleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expected a multipart form with PDF files")
	}
	files := form.File[uploadField]
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("no files in form field %q", uploadField))
	}

	ctx := c.Request().Context()
	docs := make([]chunker.Document, 0, len(files))
	for _, fh := range files {
		doc, err := s.readUpload(ctx, fh)
		if err != nil {
			return s.fail(c, &rag.IngestFailedError{Source: doc.SourceID, Stage: "extract", Err: err})
		}
		docs = append(docs, doc)
	}

	report, err := s.svc.Ingest(ctx, s.session, docs)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) readUpload(ctx context.Context, fh *multipart.FileHeader) (chunker.Document, error) {
	doc := chunker.Document{SourceID: fh.Filename}
	name, err := sanitize.SourceName(fh.Filename)
	if err != nil {
		return doc, err
	}
	doc.SourceID = name

	f, err := fh.Open()
	if err != nil {
		return doc, err
	}
	defer f.Close()

	doc.Pages, err = s.extractor.ExtractReader(ctx, f, fh.Size, doc.SourceID)
	return doc, err
}

func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ask request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ans, err := s.svc.Answer(c.Request().Context(), s.session, req.Question)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, ans)
}

func (s *Server) handleSources(c echo.Context) error {
	return c.JSON(http.StatusOK, SourcesResponse{Sources: s.svc.Sources()})
}

func (s *Server) handleConversations(c echo.Context) error {
	return c.JSON(http.StatusOK, ConversationsResponse{
		Current:       s.session.Current().ID,
		Conversations: s.session.Conversations(),
	})
}

func (s *Server) handleNewConversation(c echo.Context) error {
	return c.JSON(http.StatusCreated, ConversationResponse{ID: s.session.StartConversation()})
}

func (s *Server) handleSelectConversation(c echo.Context) error {
	id := c.Param("id")
	if !s.session.SelectConversation(id) {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	return c.JSON(http.StatusOK, ConversationResponse{ID: id})
}

// fail writes err as a user-facing message with a status matching its kind.
func (s *Server) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: s.svc.UserMessage(err)})
}

func statusFor(err error) int {
	var gf *generation.GenerationFailedError
	switch {
	case errors.Is(err, retriever.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, rag.ErrIngestFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &gf):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
