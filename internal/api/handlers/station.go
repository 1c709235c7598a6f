package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StationMetrics 重新计算并返回单个站点指标
// GET /api/monitoring/station/:stationId
func (h *Handler) StationMetrics(c *gin.Context) {
	st, err := h.svc.RefreshMetrics(c.Param("stationId"))
	if err != nil {
		h.respondError(c, err, "Failed to compute metrics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stationId": st.ID,
		"metrics":   st.Metrics,
	})
}

// AllMetrics 重新计算所有站点指标
// GET /api/monitoring/all
func (h *Handler) AllMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stations": h.svc.RefreshAll()})
}

// UpdateMetrics 刷新站点指标
// POST /api/monitoring/update-metrics/:stationId
func (h *Handler) UpdateMetrics(c *gin.Context) {
	st, err := h.svc.RefreshMetrics(c.Param("stationId"))
	if err != nil {
		h.respondError(c, err, "Failed to update metrics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"metrics": st.Metrics,
	})
}

// ListStations 站点列表
func (h *Handler) ListStations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.svc.Stations()})
}

// GetStation 站点详情
func (h *Handler) GetStation(c *gin.Context) {
	st, err := h.svc.Station(c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to get station")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": st})
}
