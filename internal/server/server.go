// Package server exposes ranking over HTTP with echo. Clients POST a graph
// and receive the report; saved runs can be listed and fetched back.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/papapumpkin/linkrank/internal/corpus"
	"github.com/papapumpkin/linkrank/internal/engine"
	"github.com/papapumpkin/linkrank/internal/linkgraph"
	"github.com/papapumpkin/linkrank/internal/rank"
	"github.com/papapumpkin/linkrank/internal/report"
	"github.com/papapumpkin/linkrank/internal/store"
)

// History is the subset of the run store the server needs.
type History interface {
	Save(ctx context.Context, r *report.Report) error
	List(ctx context.Context, limit int) ([]store.Summary, error)
	Get(ctx context.Context, id string) (*report.Report, error)
}

// RankRequest is the body of POST /rank. Unset parameters fall back to the
// server's defaults.
type RankRequest struct {
	engine.Job
	Save bool `json:"save"`
}

// Options configure a Server.
type Options struct {
	// Defaults fill the parameters a request leaves unset.
	Defaults  engine.Request
	Limits    engine.Limits
	// BodyLimit caps request bodies, in echo's size syntax ("4M"). Empty
	// means no cap.
	BodyLimit string
}

// Server wires the HTTP routes.
type Server struct {
	echo    *echo.Echo
	history History
	log     *logrus.Logger
	opts    Options
}

// New builds a Server. history may be nil, in which case saving is refused
// and the /runs routes answer 404.
func New(opts Options, history History, log *logrus.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, history: history, log: log, opts: opts}
	e.Use(s.logRequests)
	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}
	e.HTTPErrorHandler = s.handleError

	e.GET("/healthz", s.health)
	e.POST("/rank", s.rank)
	e.GET("/runs", s.listRuns)
	e.GET("/runs/:id", s.getRun)
	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.WithField("addr", addr).Info("http server listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) rank(c echo.Context) error {
	req := RankRequest{Job: engine.Job{Request: s.opts.Defaults}}
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := s.opts.Limits.Check(req.Request); err != nil {
		return err
	}
	if req.Save && s.history == nil {
		return echo.NewHTTPError(http.StatusConflict, "run history is disabled")
	}

	rep, err := req.Execute(c.Request().Context(), engine.Hooks{})
	if err != nil {
		return err
	}
	if req.Save {
		if err := s.history.Save(c.Request().Context(), rep); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, rep)
}

func (s *Server) listRuns(c echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run history is disabled")
	}
	limit := 0
	if q := c.QueryParam("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	runs, err := s.history.List(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []store.Summary{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(c echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run history is disabled")
	}
	rep, err := s.history.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

// StatusFor maps a ranking or storage error to an HTTP status code.
func StatusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, rank.ErrConvergenceTimeout):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rank.ErrInvalidParameter),
		errors.Is(err, linkgraph.ErrEmptyGraph),
		errors.Is(err, linkgraph.ErrUnknownPage),
		errors.Is(err, linkgraph.ErrSelfLink),
		errors.Is(err, engine.ErrNoGraph),
		errors.Is(err, engine.ErrConflictingGraph),
		errors.Is(err, corpus.ErrMalformedEdge):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := StatusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(he.Code)
		}
	}
	if code >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	if err := c.JSON(code, map[string]string{"error": msg}); err != nil {
		s.log.WithError(err).Warn("write error response")
	}
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		begin := time.Now()
		err := next(c)
		status := c.Response().Status
		if err != nil {
			status = StatusFor(err)
		}
		s.log.WithFields(logrus.Fields{
			"method":        c.Request().Method,
			"path":          c.Path(),
			"status":        status,
			"response_time": time.Since(begin),
		}).Info()
		return err
	}
}
