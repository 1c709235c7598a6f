package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/stationos/internal/models"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SignalIngested(models.SignalSwapEvent)
	m.SignalIngested(models.SignalSwapEvent)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.signalsIngested.WithLabelValues("swap_event")))

	m.DecisionCreated(&models.Decision{
		Action: models.ActionRerouteDrivers,
		Source: models.SourceRules,
		Mode:   models.ModeAggressive,
		ExecutionResult: &models.ExecutionResult{
			Success:      false,
			DeliveryMode: models.DeliverySimulation,
			Attempts:     3,
		},
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("Reroute Drivers", "rules", "aggressive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("Reroute Drivers", "simulation", "failure")))

	m.LogFailure(models.LogNotificationFailure)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logFailures.WithLabelValues("notification_failure")))

	m.InboxReceived("ticket", models.ForwardSkipped)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inboxReceived.WithLabelValues("ticket", "received")))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/stations/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stations/x", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "/api/stations/:id", "404")))
}
