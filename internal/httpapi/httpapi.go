// Package httpapi exposes the ingestor's read-only status surface
// (/healthz, /sessions), grounded on rustyguts-bken/server/internal/httpapi's
// Echo-based Server (registerRoutes/Run pattern), generalized from that
// repo's blob/channel-state API down to this system's session manifest.
package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fieldsync/fieldsync/internal/ingestor"
	"github.com/fieldsync/fieldsync/internal/logging"
)

// Server is the Echo application serving the ingestor's HTTP surface.
type Server struct {
	echo     *echo.Echo
	manifest *ingestor.Manifest
	log      *logging.Logger
}

// New constructs the Echo app and registers its routes.
func New(manifest *ingestor.Manifest, log *logging.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, manifest: manifest, log: log}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/sessions", s.handleSessions)
}

// Run starts serving on addr, blocking until the listener fails.
func (s *Server) Run(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSessions(c echo.Context) error {
	sessions, err := s.manifest.ListOpen()
	if err != nil {
		s.log.Error("httpapi: list open sessions failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, sessions)
}
