// Package server exposes the calendar pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/eventchain/internal/profile"
	"github.com/hrygo/eventchain/plugin/ai"
	"github.com/hrygo/eventchain/plugin/ai/calendar"
	"github.com/hrygo/eventchain/plugin/ai/timeout"
	"github.com/hrygo/eventchain/server/middleware"
	apiv1 "github.com/hrygo/eventchain/server/router/api/v1"
)

type Server struct {
	Profile  *profile.Profile
	Pipeline *calendar.Pipeline

	echoServer *echo.Echo
}

func NewServer(_ context.Context, profile *profile.Profile, pipeline *calendar.Pipeline, gateway ai.Gateway) (*Server, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline is required")
	}

	s := &Server{
		Profile:  profile,
		Pipeline: pipeline,
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomiddleware.Recover())
	echoServer.Use(echomiddleware.RequestID())
	if profile.HTTPRequestsPerSecond > 0 {
		echoServer.Use(middleware.NewRateLimiter(profile.HTTPRequestsPerSecond, profile.HTTPBurst).PerClient())
	}
	s.echoServer = echoServer

	// Register healthz endpoint.
	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	apiv1.NewAPIV1Service(profile, pipeline, gateway).RegisterRoutes(echoServer)

	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", "error", err)
		}
	}()

	slog.Info("server started", "address", listener.Addr().String(), "mode", s.Profile.Mode)
	<-ctx.Done()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, timeout.ShutdownTimeout)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	slog.Info("server stopped properly")
}
