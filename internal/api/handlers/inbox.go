package handlers

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/langchou/stationos/internal/inbox"
)

// SetInbox 启用工单和改道通知接收端，需在 RegisterRoutes 之前调用
func (h *Handler) SetInbox(svc *inbox.Service, maintenanceToken, rerouteToken string) {
	h.inbox = svc
	h.maintenanceToken = maintenanceToken
	h.rerouteToken = rerouteToken
}

func (h *Handler) registerInboxRoutes(api *gin.RouterGroup) {
	if h.inbox == nil {
		return
	}

	maintenance := api.Group("/maintenance")
	{
		maintenance.POST("/ticket", bearerAuth(h.maintenanceToken), h.ReceiveTicket)
		maintenance.GET("/history", h.TicketHistory)
		maintenance.GET("/ticket/:id", h.GetTicket)
		maintenance.PATCH("/ticket/:id", h.UpdateTicket)
		maintenance.DELETE("/history", h.ClearTickets)
	}

	reroute := api.Group("/reroute-driver")
	{
		reroute.POST("", bearerAuth(h.rerouteToken), h.ReceiveReroute)
		reroute.GET("/history", h.RerouteHistory)
		reroute.DELETE("/history", h.ClearRerouteHistory)
	}
}

// bearerAuth 校验 Bearer token，未配置 token 时拒绝所有请求
func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization header"})
			return
		}
		got, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			return
		}
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid token"})
			return
		}
		c.Next()
	}
}

// ReceiveTicket 接收维修工单
// POST /api/maintenance/ticket
func (h *Handler) ReceiveTicket(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ticket, err := h.inbox.ReceiveTicket(c.Request.Context(), body)
	if err != nil {
		h.respondError(c, err, "Failed to create ticket")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"ticket_id": ticket.ID,
		"message":   "Maintenance ticket created successfully",
	})
}

// TicketHistory 工单列表
// GET /api/maintenance/history
func (h *Handler) TicketHistory(c *gin.Context) {
	tickets := h.inbox.Tickets()
	c.JSON(http.StatusOK, gin.H{
		"tickets": tickets,
		"total":   len(tickets),
	})
}

// GetTicket 工单详情
// GET /api/maintenance/ticket/:id
func (h *Handler) GetTicket(c *gin.Context) {
	ticket, err := h.inbox.Ticket(c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to get ticket")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

// UpdateTicket 更新工单状态、处理结果或负责人
// PATCH /api/maintenance/ticket/:id
func (h *Handler) UpdateTicket(c *gin.Context) {
	var req inbox.TicketUpdate
	if err := bindOptional(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ticket, err := h.inbox.UpdateTicket(c.Param("id"), req)
	if err != nil {
		h.respondError(c, err, "Failed to update ticket")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ticket":  ticket,
	})
}

// ClearTickets 清空工单
// DELETE /api/maintenance/history
func (h *Handler) ClearTickets(c *gin.Context) {
	n := h.inbox.ClearTickets()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Cleared %d tickets", n),
	})
}

// ReceiveReroute 接收改道通知
// POST /api/reroute-driver
func (h *Handler) ReceiveReroute(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	n, err := h.inbox.ReceiveReroute(c.Request.Context(), body)
	if err != nil {
		h.respondError(c, err, "Failed to record reroute notification")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"notification_id": n.ID,
		"forward_status":  n.Status,
		"timestamp":       n.Timestamp,
		"mode":            n.Mode,
	})
}

// RerouteHistory 最近的改道通知
// GET /api/reroute-driver/history
func (h *Handler) RerouteHistory(c *gin.Context) {
	history, total := h.inbox.RerouteHistory()
	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"history": history,
	})
}

// ClearRerouteHistory 清空改道通知
// DELETE /api/reroute-driver/history
func (h *Handler) ClearRerouteHistory(c *gin.Context) {
	h.inbox.ClearRerouteHistory()
	c.JSON(http.StatusOK, gin.H{"success": true, "total": 0})
}
