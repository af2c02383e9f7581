package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskmux/taskmux/config"
	"github.com/taskmux/taskmux/internal/agent"
	"github.com/taskmux/taskmux/internal/capability"
	"github.com/taskmux/taskmux/internal/dispatch"
	"github.com/taskmux/taskmux/internal/history"
	"github.com/taskmux/taskmux/internal/search"
	"github.com/taskmux/taskmux/internal/telemetry"
	"github.com/taskmux/taskmux/provider"
)

// Run wires the full engine together and serves the HTTP API until the
// listener fails. All shared dependencies are constructed here (top-level DI).
func Run(cfg *config.Config) error {
	ctx := context.Background()

	oracle, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	tele := telemetry.NewTelemetry(cfg.Telemetry)

	idx, err := search.NewIndex(search.DefaultCorpus())
	if err != nil {
		return fmt.Errorf("building search index: %w", err)
	}
	agents, err := agent.NewAgents(cfg, oracle, tele, idx)
	if err != nil {
		return err
	}
	registry, err := capability.NewRegistry(agents, capability.DefaultActions())
	if err != nil {
		return err
	}
	formatter := agent.NewFormatterAgent(cfg, oracle, tele)
	engine := dispatch.NewDispatcher(cfg, oracle, registry, formatter, tele)

	st, err := history.NewStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	e := newEcho(tele)
	registerRoutes(e, cfg, engine, st)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10010"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho builds the echo instance with recovery, CORS, metrics exposure and
// a unified JSON error handler.
func newEcho(tele *telemetry.Telemetry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(tele.Registry(), promhttp.HandlerOpts{})))
	return e
}

// registerRoutes mounts the API group. When server.jwt_secret is set the
// whole group requires a bearer token; otherwise the API is open.
func registerRoutes(e *echo.Echo, cfg *config.Config, engine Engine, st history.Store) {
	h := NewDispatchHandler(engine, st)

	api := e.Group("/api")
	if cfg.Server.JWTSecret != "" {
		api.Use(authMiddleware([]byte(cfg.Server.JWTSecret)))
	}
	api.POST("/dispatch", h.dispatch)
	api.GET("/dispatches", h.recent)
}
