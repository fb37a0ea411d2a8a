// Package api exposes the tasknode boundaries over HTTP: the listener's
// ingestion put, the bot's query and review surface, and the operator's
// authorization registry.
package api

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/postfiatorg/tasknode/internal/tasknode"
	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

type Server struct {
	echo       *echo.Echo
	logger     *slog.Logger
	store      store.TasknodeStore
	processor  *tasknode.Processor
	correlator *tasknode.Correlator
	registry   *tasknode.Registry
}

func NewServer(logger *slog.Logger, st store.TasknodeStore, processor *tasknode.Processor, correlator *tasknode.Correlator, registry *tasknode.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:       e,
		logger:     logger.With(slog.String("service", "api")),
		store:      st,
		processor:  processor,
		correlator: correlator,
		registry:   registry,
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.Health)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/v1")

	v1.POST("/transactions", s.PutTransaction)
	v1.GET("/transactions/:hash", s.GetTransaction)
	v1.DELETE("/transactions/:hash", s.PurgeTransaction)

	v1.GET("/balances/:account", s.GetBalance)
	v1.GET("/memos", s.ListMemos)
	v1.POST("/responses/search", s.FindResponse)

	v1.PUT("/reviews/:hash", s.RecordReview)
	v1.GET("/reviews", s.ListReviews)

	v1.POST("/addresses/:address/authorize", s.Authorize)
	v1.POST("/addresses/:address/deauthorize", s.Deauthorize)
	v1.POST("/addresses/:address/flag", s.FlagAddress)
	v1.GET("/addresses/:address", s.GetAddress)
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() *echo.Echo {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
