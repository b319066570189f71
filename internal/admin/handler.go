// Package admin exposes the debug HTTP surface of the router service:
// connection state, per-sender throttle inspection and cache invalidation.
package admin

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"replybot/internal/gateway"
	"replybot/internal/logger"
	"replybot/pkg/errors"
	"replybot/pkg/models"
)

type Connection interface {
	Snapshot() gateway.Snapshot
	Reconnect() error
}

// Throttle is the subset of ratelimit.Limiter the API inspects.
type Throttle interface {
	Key(subject string) string
	Window() time.Duration
	Max() int
	CurrentCount(ctx context.Context, subject string) (int64, error)
	Reset(ctx context.Context, subject string) error
}

type Invalidator interface {
	Apply(event models.ConfigUpdateEvent)
}

type Handler struct {
	connection  Connection
	limiters    map[string]Throttle
	invalidator Invalidator
	logger      logger.Logger
}

// NewHandler builds the handler. limiters is keyed by the name used in the
// ?limiter= query parameter; the "sender" entry is the default.
func NewHandler(connection Connection, limiters map[string]Throttle, invalidator Invalidator, log logger.Logger) *Handler {
	return &Handler{
		connection:  connection,
		limiters:    limiters,
		invalidator: invalidator,
		logger:      log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		conn := v1.Group("/connection")
		{
			conn.GET("", h.GetConnection)
			conn.POST("/reconnect", h.Reconnect)
		}

		limits := v1.Group("/ratelimit")
		{
			limits.GET("/:key", h.GetRateLimit)
			limits.DELETE("/:key", h.ResetRateLimit)
		}

		v1.POST("/cache/invalidate", h.InvalidateCache)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// GetConnection godoc
// @Summary      Get gateway connection state
// @Description  Report the gateway session state, its handle, the last frame time and reconnect progress
// @Tags         connection
// @Produce      json
// @Success      200  {object}  gateway.Snapshot
// @Router       /connection [get]
func (h *Handler) GetConnection(c *gin.Context) {
	c.JSON(http.StatusOK, h.connection.Snapshot())
}

// Reconnect godoc
// @Summary      Force a gateway reconnect
// @Description  Drop the current session and reconnect, resetting an exhausted reconnect budget
// @Tags         connection
// @Produce      json
// @Success      202  {object}  gateway.Snapshot
// @Failure      409  {object}  errors.ErrorResponse
// @Failure      503  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /connection/reconnect [post]
func (h *Handler) Reconnect(c *gin.Context) {
	err := h.connection.Reconnect()
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, h.connection.Snapshot())
	case stderrors.Is(err, gateway.ErrShutdown):
		h.handleError(c, errors.ErrConflict.WithCause(err))
	case stderrors.Is(err, gateway.ErrNotStarted):
		h.handleError(c, errors.ErrServiceUnavailable.WithCause(err))
	default:
		h.handleError(c, err)
	}
}

// RateLimitResponse describes one subject's sliding window.
type RateLimitResponse struct {
	Limiter       string `json:"limiter"`
	Key           string `json:"key"`
	Count         int64  `json:"count"`
	Max           int    `json:"max"`
	WindowSeconds int    `json:"window_seconds"`
}

func (h *Handler) limiter(c *gin.Context) (string, Throttle, bool) {
	name := c.DefaultQuery("limiter", "sender")
	l, ok := h.limiters[name]
	if !ok {
		c.JSON(http.StatusNotFound, errors.ToErrorResponse(errors.ErrNotFound.WithDetail("limiter", name)))
		return "", nil, false
	}
	return name, l, true
}

// GetRateLimit godoc
// @Summary      Inspect a rate limit window
// @Description  Count the admissions recorded for a subject in the limiter's current sliding window
// @Tags         ratelimit
// @Produce      json
// @Param        key      path      string  true   "Subject, e.g. a sender ID or rule ID"
// @Param        limiter  query     string  false  "Limiter name (sender or rule)"  default(sender)
// @Success      200      {object}  RateLimitResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      503      {object}  errors.ErrorResponse
// @Router       /ratelimit/{key} [get]
func (h *Handler) GetRateLimit(c *gin.Context) {
	name, l, ok := h.limiter(c)
	if !ok {
		return
	}
	subject := c.Param("key")

	count, err := l.CurrentCount(c.Request.Context(), subject)
	if err != nil {
		h.handleError(c, errors.ErrStoreUnavailable.WithCause(err))
		return
	}

	c.JSON(http.StatusOK, RateLimitResponse{
		Limiter:       name,
		Key:           l.Key(subject),
		Count:         count,
		Max:           l.Max(),
		WindowSeconds: int(l.Window() / time.Second),
	})
}

// ResetRateLimit godoc
// @Summary      Reset a rate limit window
// @Description  Forget every admission recorded for a subject
// @Tags         ratelimit
// @Param        key      path      string  true   "Subject, e.g. a sender ID or rule ID"
// @Param        limiter  query     string  false  "Limiter name (sender or rule)"  default(sender)
// @Success      204
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      503      {object}  errors.ErrorResponse
// @Router       /ratelimit/{key} [delete]
func (h *Handler) ResetRateLimit(c *gin.Context) {
	name, l, ok := h.limiter(c)
	if !ok {
		return
	}
	subject := c.Param("key")

	if err := l.Reset(c.Request.Context(), subject); err != nil {
		h.handleError(c, errors.ErrStoreUnavailable.WithCause(err))
		return
	}

	h.logger.InfowCtx(c.Request.Context(), "Rate limit reset", "limiter", name, "key", subject)
	c.Status(http.StatusNoContent)
}

type InvalidateRequest struct {
	EventType      string `json:"event_type"`
	RuleID         string `json:"rule_id"`
	ConversationID string `json:"conversation_id"`
	Action         string `json:"action"`
}

// InvalidateCache godoc
// @Summary      Invalidate cached rules and policies
// @Description  Accepts the same shape as a broker config event. An empty body reloads everything.
// @Tags         cache
// @Accept       json
// @Param        event  body  InvalidateRequest  false  "Config update event"
// @Success      204
// @Failure      400    {object}  errors.ErrorResponse
// @Router       /cache/invalidate [post]
func (h *Handler) InvalidateCache(c *gin.Context) {
	var req InvalidateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
			return
		}
	}
	if req.EventType == "" && req.Action == "" {
		req.Action = models.ActionReload
	}

	h.invalidator.Apply(models.ConfigUpdateEvent{
		EventType:      req.EventType,
		RuleID:         req.RuleID,
		ConversationID: req.ConversationID,
		Action:         req.Action,
		ChangedBy:      "admin-api",
	})

	h.logger.InfowCtx(c.Request.Context(), "Cache invalidated",
		"event_type", req.EventType,
		"action", req.Action,
		"rule_id", req.RuleID,
		"conversation_id", req.ConversationID,
	)
	c.Status(http.StatusNoContent)
}
