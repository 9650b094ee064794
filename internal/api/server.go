// Package api exposes the form engine over HTTP for the control front end
// and serves the process health and metrics endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"appcc-workers/internal/common/logger"
	"appcc-workers/internal/forms"
	submitcontrolrecord "appcc-workers/internal/workers/appcc/submit-control-record"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submitter runs the complete-control flow shared with the submit worker.
type Submitter interface {
	Execute(ctx context.Context, input *submitcontrolrecord.Input) (*submitcontrolrecord.Output, error)
}

// Publisher resumes process instances waiting on a completed control.
type Publisher interface {
	PublishControlCompleted(ctx context.Context, recordID string, vars map[string]interface{}) error
}

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

type Options struct {
	Submitter       Submitter
	Publisher       Publisher
	Checks          map[string]Check
	Location        *time.Location
	DefaultUserName string
	Clock           func() time.Time
}

type Server struct {
	echo    *echo.Echo
	opts    Options
	logger  logger.Logger
	started time.Time
}

func New(opts Options, log logger.Logger) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.DefaultUserName == "" {
		opts.DefaultUserName = forms.DefaultUserName
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		opts:    opts,
		logger:  log.WithFields(map[string]interface{}{"component": "api"}),
		started: time.Now(),
	}

	e.Use(echoMiddleware.Recover())
	e.Use(s.requestLogger())

	e.GET("/health", s.health)
	e.GET("/ready", s.ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")
	v1.POST("/forms/render", s.renderForm)
	v1.POST("/forms/validate", s.validateForm)
	v1.POST("/forms/submission", s.buildSubmission)
	v1.POST("/controls/submit", s.submitControl)

	return s
}

// Handler returns the router for use with an http.Server or httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", map[string]interface{}{"addr": addr})
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			s.logger.Debug("http request", map[string]interface{}{
				"method":    v.Method,
				"uri":       v.URI,
				"status":    v.Status,
				"latencyMs": v.Latency.Milliseconds(),
			})
			return nil
		},
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"uptime_sec": int(time.Since(s.started).Seconds()),
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}

type checkResult struct {
	OK  bool   `json:"ok"`
	Err string `json:"err,omitempty"`
}

func (s *Server) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	allOK := true
	checks := make(map[string]checkResult, len(s.opts.Checks))
	for name, check := range s.opts.Checks {
		if err := check(ctx); err != nil {
			allOK = false
			checks[name] = checkResult{Err: err.Error()}
			continue
		}
		checks[name] = checkResult{OK: true}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]interface{}{
		"ready":  allOK,
		"checks": checks,
	})
}
