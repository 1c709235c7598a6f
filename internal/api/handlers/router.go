package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/stationos/internal/inbox"
	"github.com/langchou/stationos/internal/models"
	"github.com/langchou/stationos/internal/repository"
	"github.com/langchou/stationos/internal/service"
	"github.com/langchou/stationos/internal/state"
	"github.com/langchou/stationos/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger   *zap.Logger
	svc      *service.StationService
	wsHub    *ws.Hub
	upgrader websocket.Upgrader

	// 接收端，可选
	inbox            *inbox.Service
	maintenanceToken string
	rerouteToken     string
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	svc *service.StationService,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger: logger,
		svc:    svc,
		wsHub:  wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// 信号
		api.POST("/signals/receive", h.ReceiveSignal)
		api.POST("/signals/batch", h.ReceiveBatch)
		api.GET("/signals/:stationId/recent", h.RecentSignals)

		// 监控
		api.GET("/monitoring/station/:stationId", h.StationMetrics)
		api.GET("/monitoring/all", h.AllMetrics)
		api.POST("/monitoring/update-metrics/:stationId", h.UpdateMetrics)

		// 站点
		api.GET("/stations", h.ListStations)
		api.GET("/stations/:id", h.GetStation)

		// 决策
		api.POST("/decisions/evaluate/:stationId", h.Evaluate)
		api.POST("/decisions/evaluate-all", h.EvaluateAll)
		api.GET("/decisions/explain/:decisionId", h.Explain)
		api.POST("/decisions/approve/:decisionId", h.Approve)
		api.GET("/decisions/alerts", h.Alerts)
		api.GET("/decisions/log", h.DecisionLog)
		api.GET("/decisions/failures", h.Failures)
	}

	// 维修工单与改道通知
	h.registerInboxRoutes(api)

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// respondError 把领域错误映射为 HTTP 状态码
func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrStationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Station not found"})
	case errors.Is(err, repository.ErrDecisionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Decision not found"})
	case errors.Is(err, repository.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
	case errors.Is(err, models.ErrInvalidSignal), errors.Is(err, models.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, state.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"stations":   len(h.svc.Stations()),
		"ws_clients": h.wsHub.ClientCount(),
	})
}
