package http

import (
	"net/http"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"
	"tempvox/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
)

// InstanceHandler is the command-dispatch adapter: it turns authenticated
// HTTP requests into typed intents and lifecycle calls.
type InstanceHandler struct {
	orchestrator ports.Orchestrator
	health       *monitoring.HealthChecker
}

func NewInstanceHandler(orchestrator ports.Orchestrator, health *monitoring.HealthChecker) *InstanceHandler {
	return &InstanceHandler{
		orchestrator: orchestrator,
		health:       health,
	}
}

func (h *InstanceHandler) SetupRoutes(router *gin.Engine, authed gin.HandlerFunc) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	api.Use(authed)
	{
		api.POST("/communities/:communityID/channels", h.CreateChannel)
		api.GET("/communities/:communityID/channels", h.ListInstances)
		api.GET("/channels/:channelID", h.GetInstance)
		api.POST("/channels/:channelID/intents", h.DispatchIntent)
		api.POST("/events/membership", h.MembershipEvent)
	}
}

func (h *InstanceHandler) Health(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (h *InstanceHandler) CreateChannel(c *gin.Context) {
	communityID := domain.CommunityID(c.Param("communityID"))

	var req struct {
		RequesterID domain.MemberID `json:"requester_id" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	instance, err := h.orchestrator.CreateChannel(c.Request.Context(), communityID, req.RequesterID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"instance": instance,
	})
}

func (h *InstanceHandler) ListInstances(c *gin.Context) {
	communityID := domain.CommunityID(c.Param("communityID"))

	instances, err := h.orchestrator.ListInstances(c.Request.Context(), communityID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"instances": instances,
	})
}

func (h *InstanceHandler) GetInstance(c *gin.Context) {
	channelID := domain.ChannelID(c.Param("channelID"))

	instance, err := h.orchestrator.GetInstance(c.Request.Context(), channelID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"instance": instance,
	})
}

func (h *InstanceHandler) DispatchIntent(c *gin.Context) {
	channelID := domain.ChannelID(c.Param("channelID"))

	var intent domain.Intent
	if err := c.BindJSON(&intent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if intent.Kind == "" || intent.ActorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind and actor_id are required"})
		return
	}
	intent.ChannelID = channelID

	if err := h.orchestrator.Dispatch(c.Request.Context(), intent); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// MembershipEvent accepts webhook-style membership signals, an
// alternative path to the websocket gateway consumer.
func (h *InstanceHandler) MembershipEvent(c *gin.Context) {
	var event domain.MembershipEvent
	if err := c.BindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	switch event.Kind {
	case domain.MemberJoined:
		err = h.orchestrator.OnMemberJoined(c.Request.Context(), event.ChannelID, event.MemberID)
	case domain.MemberLeft:
		err = h.orchestrator.OnMemberLeft(c.Request.Context(), event.ChannelID, event.MemberID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event kind"})
		return
	}
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
