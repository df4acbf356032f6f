// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/poiesic/docsift"
	"github.com/poiesic/docsift/config"
)

// multipartOverhead is the allowance for multipart framing on top of the
// configured upload size.
const multipartOverhead = 64 << 10

// Server is the HTTP front end of an engine.
type Server struct {
	echo   *echo.Echo
	engine *docsift.Engine
	config config.ServerConfig
	ttl    int // session cookie max-age in seconds, zero for a browser session
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New builds the echo instance and registers every route.
func New(engine *docsift.Engine, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}

	cfg := engine.Config()
	s := &Server{
		engine: engine,
		config: cfg.Server,
		ttl:    int(cfg.Session.TTL.Seconds()),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "server")

	renderer, err := newTemplateRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(s.requestLogger())
	if s.config.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeout(s.config.RequestTimeout))
	}
	s.echo = e
	s.routes()

	return s, nil
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/", s.home, s.withSession)
	e.POST("/", s.search, s.withSession)
	uploadLimit := strconv.FormatInt(s.config.MaxUploadBytes+multipartOverhead, 10)
	e.POST("/upload", s.upload, middleware.BodyLimit(uploadLimit), s.withSession)
	e.GET("/documents/:name", s.document, s.withSession)
	e.POST("/favorites/:name", s.toggleFavorite, s.withSession)
	e.POST("/history/clear", s.clearHistory, s.withSession)

	e.GET("/api/search", s.apiSearch)
	e.GET("/healthz", s.healthz)
	if m := s.engine.Metrics(); m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr and blocks until the server stops. It returns
// nil after a graceful Shutdown.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = s.config.Address
	}
	s.logger.Info("listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remoteIP", v.RemoteIP,
			}
			if v.Error != nil {
				s.logger.Warn("request failed", append(attrs, "err", v.Error)...)
				return nil
			}
			s.logger.Debug("request", attrs...)
			return nil
		},
	})
}

// handleError renders errors as JSON for the API and as an HTML page
// everywhere else.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	} else if errors.Is(err, context.DeadlineExceeded) {
		code = http.StatusServiceUnavailable
		msg = "request timed out"
	}
	if code == http.StatusNotFound {
		msg = "not found"
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("request error", "method", c.Request().Method, "path", c.Request().URL.Path, "status", code, "err", err)
	}

	var rerr error
	switch {
	case c.Request().Method == http.MethodHead:
		rerr = c.NoContent(code)
	case strings.HasPrefix(c.Request().URL.Path, "/api/"):
		rerr = c.JSON(code, map[string]string{"error": msg})
	default:
		rerr = c.Render(code, "error.html", errorPage{Status: code, Message: msg})
	}
	if rerr != nil {
		s.logger.Error("failed to write error response", "err", rerr)
	}
}
