package hooks

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/logger"
	"courier/internal/router"
	pkgerrors "courier/pkg/errors"
)

// MessageSender is the slice of the programmatic publish path the endpoint
// needs.
type MessageSender interface {
	SendMessage(ctx context.Context, key, secret, topic string, payload []byte, opts router.SendOptions) error
}

type PublishRequest struct {
	Key     string `json:"key" binding:"required"`
	Secret  string `json:"secret" binding:"required"`
	Topic   string `json:"topic" binding:"required"`
	Payload string `json:"payload"`
	QoS     byte   `json:"qos"`
	Retain  bool   `json:"retain"`
}

// PublishHandler exposes message publishing over HTTP for callers that do not
// hold a broker connection of their own. Unlike the auth hooks, failures here
// answer with real status codes and a JSON error body.
type PublishHandler struct {
	sender MessageSender
	log    logger.Logger
}

func NewPublishHandler(sender MessageSender, log logger.Logger) *PublishHandler {
	return &PublishHandler{sender: sender, log: log}
}

func (h *PublishHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/messages", h.Publish)
}

func (h *PublishHandler) Publish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, pkgerrors.ToErrorResponse(pkgerrors.ErrValidation.WithCause(err)))
		return
	}

	err := h.sender.SendMessage(c.Request.Context(), req.Key, req.Secret, req.Topic,
		[]byte(req.Payload), router.SendOptions{QoS: req.QoS, Retain: req.Retain})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *PublishHandler) handleError(c *gin.Context, err error) {
	status := pkgerrors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorw("Publish failed", "error", err, "path", c.Request.URL.Path)
	} else {
		h.log.Debugw("Publish rejected", "error", err)
	}
	c.JSON(status, pkgerrors.ToErrorResponse(err))
}
