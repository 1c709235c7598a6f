package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/langchou/stationos/internal/models"
)

type evaluateRequest struct {
	Mode string `json:"mode"`
}

type approveRequest struct {
	DeliveryMode string `json:"deliveryMode"`
}

// bindOptional 请求体可以为空
func bindOptional(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parseMode(c *gin.Context) (models.Mode, bool) {
	var req evaluateRequest
	if err := bindOptional(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return "", false
	}
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return mode, true
}

// Evaluate 评估站点并生成推荐
// POST /api/decisions/evaluate/:stationId
func (h *Handler) Evaluate(c *gin.Context) {
	mode, ok := parseMode(c)
	if !ok {
		return
	}

	// 客户端断开不应中断通知重试
	eval, err := h.svc.Evaluate(context.WithoutCancel(c.Request.Context()), c.Param("stationId"), mode)
	if err != nil {
		h.respondError(c, err, "Failed to evaluate station")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"station": gin.H{
			"id":   eval.StationID,
			"name": eval.StationName,
		},
		"decision":        eval,
		"recommendations": eval.Recommendations,
	})
}

// EvaluateAll 逐个评估所有站点
// POST /api/decisions/evaluate-all
func (h *Handler) EvaluateAll(c *gin.Context) {
	mode, ok := parseMode(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": h.svc.EvaluateAll(context.WithoutCancel(c.Request.Context()), mode),
	})
}

// Explain 决策详情
// GET /api/decisions/explain/:decisionId
func (h *Handler) Explain(c *gin.Context) {
	d, err := h.svc.Explain(c.Param("decisionId"))
	if err != nil {
		h.respondError(c, err, "Failed to get decision")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": d})
}

// Approve 审批并下发决策
// POST /api/decisions/approve/:decisionId
func (h *Handler) Approve(c *gin.Context) {
	var req approveRequest
	if err := bindOptional(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	mode, err := models.ParseDeliveryMode(req.DeliveryMode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.svc.Approve(context.WithoutCancel(c.Request.Context()), c.Param("decisionId"), mode)
	if err != nil {
		h.respondError(c, err, "Failed to approve decision")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"decision": d,
	})
}

// Alerts 告警列表
// GET /api/decisions/alerts
func (h *Handler) Alerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": h.svc.Alerts()})
}

// DecisionLog 最近的决策日志
// GET /api/decisions/log?limit=50
func (h *Handler) DecisionLog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.svc.DecisionLog(queryLimit(c))})
}

// Failures 最近的失败记录
// GET /api/decisions/failures?limit=50
func (h *Handler) Failures(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.svc.Failures(queryLimit(c))})
}

// queryLimit 解析 limit 参数，非法值使用默认窗口
func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
