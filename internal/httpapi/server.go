// Package httpapi serves run status, stored reports and live progress.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Wjlljw/pdf-translator/internal/persistence"
	"github.com/Wjlljw/pdf-translator/internal/service"
	"github.com/Wjlljw/pdf-translator/pkg/icron"
	"github.com/Wjlljw/pdf-translator/pkg/log"
)

// Scheduler is the part of service.Scheduler the API triggers and inspects.
type Scheduler interface {
	RunOnce(ctx context.Context) (*service.RunReport, error)
	Trigger(now time.Time) (*icron.TriggerInfo, error)
	Last() *service.RunReport
}

type Server struct {
	hub       *service.Hub
	runs      persistence.RunStore
	scheduler Scheduler

	// base outlives requests; runs started over HTTP use it.
	base    context.Context
	running sync.WaitGroup

	echo   *echo.Echo
	server *http.Server
}

type Option func(*Server)

func WithScheduler(s Scheduler) Option {
	return func(srv *Server) { srv.scheduler = s }
}

// WithBaseContext bounds runs triggered through the API.
func WithBaseContext(ctx context.Context) Option {
	return func(srv *Server) { srv.base = ctx }
}

func NewServer(hub *service.Hub, runs persistence.RunStore, opts ...Option) *Server {
	s := &Server{
		hub:  hub,
		runs: runs,
		base: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.echo = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				log.Warn("%s %s -> %d (%s): %v", v.Method, v.URI, v.Status, v.Latency, v.Error)
				return nil
			}
			log.Debug("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/runs", s.handleListRuns)
	api.POST("/runs", s.handleStartRun)
	api.GET("/runs/current", s.handleCurrentRun)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/progress", s.handleProgress)
	return e
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Info("status server listening on %s", addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for API-triggered runs.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok && strings.TrimSpace(m) != "" {
			message = m
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	}

	if status >= 500 {
		_ = internalError(c, message)
		return
	}
	_ = fail(c, status, message)
}
