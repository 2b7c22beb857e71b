package handler

import (
	"net/http"
	"strconv"

	"github.com/Baptiste-Yucca/rent2repay/internal/service"
	"github.com/Baptiste-Yucca/rent2repay/internal/stream"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	events *service.EventService
	hub    *stream.Hub
}

func NewEventHandler(events *service.EventService, hub *stream.Hub) *EventHandler {
	return &EventHandler{events: events, hub: hub}
}

func (h *EventHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	user := c.Query("user")
	if user != "" {
		if !common.IsHexAddress(user) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed user address"})
			return
		}
		user = common.HexToAddress(user).Hex()
	}

	records, err := h.events.List(c.Request.Context(), user, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": records, "count": len(records)})
}

func (h *EventHandler) Stream(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
