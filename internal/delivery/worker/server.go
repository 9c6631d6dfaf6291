package worker

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"coursebook/config"
	"coursebook/internal/delivery"
	apimiddleware "coursebook/internal/delivery/api/middleware"
	"coursebook/internal/delivery/middleware"
	"coursebook/internal/delivery/worker/handler"
	"coursebook/internal/domain/lifecycle"
	"coursebook/internal/errors"
	"coursebook/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
)

const (
	// PushPath receives Pub/Sub push deliveries and local publisher posts.
	PushPath = "/push"

	// Pub/Sub caps push payloads well below this; verification events are a few hundred bytes.
	pushBodyLimit = "256KB"
)

type workerServer struct {
	port   int
	logger *slog.Logger
	server *echo.Echo
}

type ServerParams struct {
	fx.In

	Lc          fx.Lifecycle
	Cfg         *config.Config
	Logger      *slog.Logger
	Metrics     *metrics.Metrics `optional:"true"`
	PushHandler *handler.PushHandler
}

// NewServer serves the push endpoint next to health and metrics.
func NewServer(params ServerParams) (delivery.Delivery, error) {
	if params.Cfg.Worker == nil {
		return nil, errors.New("worker config is required")
	}

	srv := &workerServer{
		port:   params.Cfg.Worker.Port,
		logger: params.Logger,
		server: NewEcho(params.Cfg, params.Logger, params.Metrics, params.PushHandler),
	}
	params.Lc.Append(fx.Hook{OnStop: srv.stop})

	return srv, nil
}

func NewEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, push *handler.PushHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.Recover())
	e.Use(middleware.NewRequestIDMiddleware(logger).Process)
	e.Use(middleware.NewLoggerMiddleware(logger, cfg).Handle)
	if m != nil {
		e.Use(apimiddleware.NewMetricsMiddleware(m))
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.POST(PushPath, push.HandlePush, echomiddleware.BodyLimit(pushBodyLimit))

	return e
}

func (s *workerServer) Serve(context.Context) error {
	hostPort := net.JoinHostPort("0.0.0.0", strconv.Itoa(s.port))
	s.logger.Info("Mail worker listening", slog.String("host_port", hostPort))

	if err := s.server.Start(hostPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithStack(err)
	}

	return nil
}

func (s *workerServer) stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("Mail worker shutting down")

	return errors.WithStack(s.server.Shutdown(ctx))
}
