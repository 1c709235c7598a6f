package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/stationos/internal/service"
)

// ReceiveSignal 接收单条信号
// POST /api/signals/receive
func (h *Handler) ReceiveSignal(c *gin.Context) {
	var in service.SignalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signal payload"})
		return
	}

	sig, err := h.svc.Ingest(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err, "Failed to receive signal")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"signalId": sig.ID,
	})
}

type batchRequest struct {
	Signals []service.SignalInput `json:"signals"`
}

// ReceiveBatch 批量接收信号，单条错误在结果中返回
// POST /api/signals/batch
func (h *Handler) ReceiveBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid batch payload"})
		return
	}

	results := h.svc.IngestBatch(c.Request.Context(), req.Signals)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
	})
}

// RecentSignals 站点最近信号
// GET /api/signals/:stationId/recent
func (h *Handler) RecentSignals(c *gin.Context) {
	signals, err := h.svc.RecentSignals(c.Param("stationId"))
	if err != nil {
		h.respondError(c, err, "Failed to list signals")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": signals})
}
