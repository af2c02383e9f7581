package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskmux/taskmux/internal/capability"
	"github.com/taskmux/taskmux/internal/history"
)

// Engine is the dispatch surface the HTTP layer depends on.
type Engine interface {
	Process(ctx context.Context, request string) (capability.Aggregate, string, error)
}

// DispatchRequest is the POST /api/dispatch payload.
type DispatchRequest struct {
	Request string `json:"request"`
}

// DispatchResponse carries the aggregate and its natural-language rendering.
type DispatchResponse struct {
	ID            string               `json:"id"`
	Aggregate     capability.Aggregate `json:"aggregate"`
	FormattedText string               `json:"formatted_text"`
}

// DispatchHandler serves dispatch requests and the persisted history.
type DispatchHandler struct {
	Engine  Engine
	History history.Store

	logger *log.Logger
}

// NewDispatchHandler creates the handler used by registerRoutes.
func NewDispatchHandler(engine Engine, st history.Store) *DispatchHandler {
	return &DispatchHandler{
		Engine:  engine,
		History: st,
		logger:  log.New(log.Writer(), "[API] ", log.LstdFlags),
	}
}

func (h *DispatchHandler) dispatch(c echo.Context) error {
	var req DispatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Request) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "request is required")
	}

	start := time.Now()
	aggregate, text, err := h.Engine.Process(c.Request().Context(), req.Request)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	id := uuid.New().String()
	h.persist(c.Request().Context(), id, req.Request, aggregate, text, time.Since(start))

	return c.JSON(http.StatusOK, DispatchResponse{
		ID:            id,
		Aggregate:     aggregate,
		FormattedText: text,
	})
}

// persist saves a completed cycle when a history backend is configured.
// Persistence failures are logged, never surfaced to the caller.
func (h *DispatchHandler) persist(ctx context.Context, id, request string, aggregate capability.Aggregate, text string, elapsed time.Duration) {
	if h.History == nil {
		return
	}
	raw, err := json.Marshal(aggregate)
	if err != nil {
		h.logger.Printf("marshalling aggregate for history: %v", err)
		return
	}
	rec := history.Record{
		ID:             id,
		Request:        request,
		Aggregate:      raw,
		FormattedText:  text,
		ProcessingTime: elapsed,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.History.SaveDispatch(ctx, rec); err != nil {
		h.logger.Printf("saving dispatch history: %v", err)
	}
}

func (h *DispatchHandler) recent(c echo.Context) error {
	if h.History == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "dispatch history not configured")
	}
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	recs, err := h.History.RecentDispatches(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if recs == nil {
		recs = []history.Record{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"dispatches": recs})
}
