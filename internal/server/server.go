// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes searches over HTTP.
package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-fetcher/internal/agent"
	"github.com/pdiddy/paper-fetcher/internal/fetcher"
	"github.com/pdiddy/paper-fetcher/pkg/types"
)

// SearchResponse is the body of a successful /v1/search call.
type SearchResponse struct {
	Query      string        `json:"query"`
	SessionID  string        `json:"session_id,omitempty"`
	SessionURL string        `json:"session_url,omitempty"`
	Policy     string        `json:"policy"`
	Papers     []types.Paper `json:"papers"`
	Count      int           `json:"count"`
	Skipped    int           `json:"skipped"`
	Cached     bool          `json:"cached"`
}

// Handler serves the search API.
type Handler struct {
	searcher fetcher.Searcher
	log      zerolog.Logger
}

// NewHandler returns a handler backed by searcher.
func NewHandler(searcher fetcher.Searcher, log zerolog.Logger) *Handler {
	return &Handler{searcher: searcher, log: log.With().Str("component", "server").Logger()}
}

// RegisterRoutes adds the API routes to e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/v1/search", h.Search)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// New returns a configured echo instance serving searcher.
func New(searcher fetcher.Searcher, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	h := NewHandler(searcher, log)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := h.log.Info()
			if v.Error != nil {
				ev = h.log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).
				Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())

	h.RegisterRoutes(e)
	return e
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Search runs one search.
// GET /v1/search?q=...&max=N&mode=standard|thorough&sort=true
func (h *Handler) Search(c echo.Context) error {
	opts, err := searchOptions(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	res, err := h.searcher.Search(c.Request().Context(), c.QueryParam("q"), opts)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("session", res.SessionID).Msg("search failed")
		}
		return c.JSON(status, map[string]string{"error": err.Error()})
	}

	papers := res.Papers
	if papers == nil {
		papers = []types.Paper{}
	}
	return c.JSON(http.StatusOK, SearchResponse{
		Query:      res.Query,
		SessionID:  res.SessionID,
		SessionURL: res.SessionURL,
		Policy:     res.Policy,
		Papers:     papers,
		Count:      len(papers),
		Skipped:    res.Skipped,
		Cached:     res.Cached,
	})
}

func searchOptions(c echo.Context) (fetcher.Options, error) {
	var opts fetcher.Options

	if s := c.QueryParam("max"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return opts, errors.New("max must be a non-negative integer")
		}
		opts.MaxResults = n
	}

	policy, err := agent.ParsePolicy(c.QueryParam("mode"))
	if err != nil {
		return opts, err
	}
	opts.Policy = policy

	if s := c.QueryParam("sort"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return opts, errors.New("sort must be a boolean")
		}
		opts.SortByRelevance = b
	}
	return opts, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fetcher.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, agent.ErrInitiation), errors.Is(err, agent.ErrPollTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
