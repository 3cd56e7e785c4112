// Package server exposes the orchestrator over HTTP: workflow design and
// import, event injection, run inspection, and the dashboard streams.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petrijr/opsflow/internal/pubsub"
	"github.com/petrijr/opsflow/pkg/api"
	"github.com/petrijr/opsflow/pkg/worker"
)

// WorkflowStore is the subset of the persistence layer the API needs.
type WorkflowStore interface {
	SaveWorkflow(ctx context.Context, wf *api.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*api.Workflow, error)
}

// GraphValidator checks a workflow before it is stored.
type GraphValidator interface {
	Validate(wf *api.Workflow) error
}

// EventPublisher injects events onto the inbound channel.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt api.Event) error
}

// RunReader exposes Run Registry snapshots.
type RunReader interface {
	Get(id string) (*api.RunState, error)
	List(status api.Status) []*api.RunState
}

// Subscriber opens subscriptions on the notification channel.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (pubsub.Subscription, error)
}

// Options wires a Server.
type Options struct {
	Workflows WorkflowStore
	Validator GraphValidator
	Events    EventPublisher
	Runs      RunReader
	Updates   Subscriber

	// UpdatesTopic defaults to api.TopicDashboardUpdates.
	UpdatesTopic string

	// Gatherer backs /metrics. The endpoint is not registered when nil.
	Gatherer prometheus.Gatherer

	// StreamWriteTimeout bounds each dashboard frame write. Zero means 10s.
	StreamWriteTimeout time.Duration

	Logger *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	opts   Options
	logger *slog.Logger
	router *gin.Engine
}

// New builds the router.
func New(opts Options) *Server {
	if opts.UpdatesTopic == "" {
		opts.UpdatesTopic = api.TopicDashboardUpdates
	}
	if opts.StreamWriteTimeout <= 0 {
		opts.StreamWriteTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{opts: opts, logger: logger, router: gin.New()}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	r.POST("/workflows", s.createWorkflow)
	r.GET("/workflows/:id", s.getWorkflow)

	r.POST("/publish_event", s.publishEvent)

	r.GET("/runs", s.listRuns)
	r.GET("/runs/:id", s.getRun)

	r.GET("/ws/dashboard", s.dashboardWebSocket)
	r.GET("/sse/dashboard", s.dashboardSSE)
}

// Handler returns the http.Handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.DebugContext(c.Request.Context(), "http_request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// abortWithError maps the error taxonomy onto HTTP status codes.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var transport *api.TransportError
	switch {
	case errors.Is(err, api.ErrInvalidWorkflow), errors.Is(err, worker.ErrMalformedEvent):
		status = http.StatusBadRequest
	case errors.Is(err, api.ErrWorkflowNotFound), errors.Is(err, api.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.As(err, &transport):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "http_error",
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
