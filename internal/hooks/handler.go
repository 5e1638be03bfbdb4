// Package hooks serves the HTTP callbacks the broker's auth plugin invokes
// during connection setup and on every publish/subscribe, plus the publish
// endpoint for credentialed HTTP callers. Authorization failures on the hook
// routes resolve to an explicit deny response; they never surface as 5xx.
package hooks

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"courier/internal/authz"
	"courier/internal/logger"
	"courier/internal/topic"
	pkgerrors "courier/pkg/errors"
	"courier/pkg/metrics"
)

const (
	responseAllow = "allow"
	responseDeny  = "deny"
)

type UserRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

type TopicRequest struct {
	Username   string `form:"username" json:"username"`
	Vhost      string `form:"vhost" json:"vhost"`
	Resource   string `form:"resource" json:"resource"`
	Name       string `form:"name" json:"name"`
	Permission string `form:"permission" json:"permission"`
	RoutingKey string `form:"routing_key" json:"routing_key"`
}

type Handler struct {
	service *authz.Service
	log     logger.Logger
}

func NewHandler(service *authz.Service, log logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	auth := router.Group("/auth")
	{
		auth.POST("/user", h.CheckUser)
		auth.POST("/vhost", h.CheckVhost)
		auth.POST("/resource", h.CheckResource)
		auth.POST("/topic", h.CheckTopic)
	}
}

func (h *Handler) CheckUser(c *gin.Context) {
	start := time.Now()
	defer metrics.ObserveAuthDecision("user", time.Since(start))

	var req UserRequest
	if err := c.ShouldBind(&req); err != nil {
		h.deny(c, "user", pkgerrors.ErrInvalidCredentials.WithCause(err))
		return
	}

	name, err := h.service.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.deny(c, "user", err)
		return
	}

	h.log.Debugw("Connection authenticated", "principal", name)
	h.allow(c, "user")
}

// CheckVhost and CheckResource are permissive at this layer; topic-level
// checks carry the whole authorization model.
func (h *Handler) CheckVhost(c *gin.Context) {
	h.allow(c, "vhost")
}

func (h *Handler) CheckResource(c *gin.Context) {
	h.allow(c, "resource")
}

func (h *Handler) CheckTopic(c *gin.Context) {
	start := time.Now()
	defer metrics.ObserveAuthDecision("topic", time.Since(start))

	var req TopicRequest
	if err := c.ShouldBind(&req); err != nil {
		h.deny(c, "topic", pkgerrors.ErrInvalidTopic.WithCause(err))
		return
	}

	addr, err := topic.FromRoutingKey(req.RoutingKey)
	if err != nil {
		h.deny(c, "topic", err)
		return
	}

	switch req.Permission {
	case "write":
		direction, err := h.service.AuthorizePublish(c.Request.Context(), req.Username, addr.String(), true)
		if err != nil {
			h.deny(c, "topic", err)
			return
		}
		h.log.Debugw("Publish authorized",
			"username", req.Username,
			"topic", addr.String(),
			"direction", direction.String(),
		)
		h.allow(c, "topic")
	case "read":
		if err := h.service.AuthorizeSubscribe(c.Request.Context(), req.Username, addr.String()); err != nil {
			h.deny(c, "topic", err)
			return
		}
		h.allow(c, "topic")
	default:
		h.deny(c, "topic", pkgerrors.ErrUnauthorizedTopic.WithDetail("permission", req.Permission))
	}
}

func (h *Handler) allow(c *gin.Context, hook string) {
	metrics.AuthDecisionsTotal.WithLabelValues(hook, responseAllow).Inc()
	c.String(http.StatusOK, responseAllow)
}

func (h *Handler) deny(c *gin.Context, hook string, err error) {
	metrics.AuthDecisionsTotal.WithLabelValues(hook, responseDeny).Inc()

	if pkgerrors.IsInvalidCredentials(err) {
		h.log.Debugw("Denied", "hook", hook, "error", err)
	} else if pkgerrors.Denial(err) {
		h.log.Warnw("Denied", "hook", hook, "error", err)
	} else {
		// Storage and other infrastructure faults still answer deny, but
		// loudly: they may indicate a degraded backing store.
		h.log.Errorw("Denied on infrastructure failure", "hook", hook, "error", err)
	}

	c.String(http.StatusOK, responseDeny)
}
