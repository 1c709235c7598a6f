package executor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/stationos/internal/models"
	"github.com/langchou/stationos/internal/reroute"
	"github.com/langchou/stationos/internal/repository"
)

type fixture struct {
	exec   *Executor
	log    *repository.MemoryDecisionLog
	sleeps []time.Duration
}

func newFixture(t *testing.T, url string) *fixture {
	t.Helper()

	stations := repository.DefaultStations()
	for _, st := range stations {
		st.Metrics = &models.Metrics{ChargedBatteries: 6, ChargerUptimePercent: 100}
	}
	stations[0].Metrics = &models.Metrics{SwapRate: 10, QueueLength: 8, ChargedBatteries: 5, ChargerUptimePercent: 67, ErrorFrequency: 4}

	down, err := models.NewSignal("s-1", models.SignalChargerStatus, json.RawMessage(`{"chargerId":"C1","status":"down"}`), time.Now())
	require.NoError(t, err)
	fault, err := models.NewSignal("s-2", models.SignalErrorLog, json.RawMessage(`{"errorCode":"CFET_FAIL","message":"FET failure"}`), time.Now())
	require.NoError(t, err)
	stations[0].AppendSignal(down)
	stations[0].AppendSignal(fault)

	store := repository.NewMemoryStationStore(stations)
	log := repository.NewMemoryDecisionLog()

	cfg := DefaultConfig()
	cfg.Reroute = Endpoint{URL: url, Token: "reroute-token"}
	cfg.Maintenance = Endpoint{URL: url, Token: "maintenance-token"}
	cfg.DemoDriverPhone = "+15550100"

	f := &fixture{log: log}
	f.exec = New(cfg, store, reroute.NewSelector(store), log, zap.NewNop())
	f.exec.SetSleeper(func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	})
	return f
}

func decision(action models.Action) *models.Decision {
	return &models.Decision{
		ID:          "d-1",
		StationID:   "station-0",
		StationName: "NYC Central Hub",
		Trigger:     models.TriggerCongestion,
		Severity:    models.SeverityWarning,
		Action:      action,
		Explanation: models.Explanation{
			Why:               "Queue length (8) exceeds threshold (3)",
			ExpectedImpact:    "Queue ↓ by ~35%",
			Confidence:        models.ConfidenceMedium,
			ProbableRootCause: "Charger calibration drift",
		},
	}
}

func TestRetryExhaustionRecordsFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	result := f.exec.Execute(context.Background(), decision(models.ActionRerouteDrivers), models.DeliverySimulation)

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.Contains(t, result.Error, "status=500")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeps)

	failures := f.log.Failures(0)
	require.Len(t, failures, 1)
	assert.Equal(t, models.LogNotificationFailure, failures[0].Type)
	assert.Equal(t, "d-1", failures[0].Failure.DecisionID)
	assert.Equal(t, 3, failures[0].Failure.Attempts)
	assert.JSONEq(t, string(result.Payload), string(failures[0].Failure.Payload))
}

func TestRetryRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	result := f.exec.Execute(context.Background(), decision(models.ActionRerouteDrivers), models.DeliverySimulation)

	require.True(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.JSONEq(t, `{"ok":true}`, string(result.Response))
	assert.Empty(t, f.log.Failures(0))
}

func TestNonJSONResponseIsAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Workflow was started"))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	result := f.exec.Execute(context.Background(), decision(models.ActionRerouteDrivers), models.DeliverySimulation)

	require.True(t, result.Success)
	assert.Equal(t, "Workflow was started", result.RawResponse)
	assert.Nil(t, result.Response)
}

func TestSimulationReroutePayload(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer reroute-token", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	result := f.exec.Execute(context.Background(), decision(models.ActionRerouteDrivers), models.DeliverySimulation)
	require.True(t, result.Success)

	assert.Equal(t, "simulation", body["mode"])
	assert.Len(t, body["drivers"], 3)
	assert.NotContains(t, body, "driver")
	assert.Equal(t, "station-0", body["station_from"].(map[string]interface{})["id"])
	assert.Equal(t, "station-3", body["station_to"].(map[string]interface{})["id"])
	assert.Equal(t, "Queue length (8) exceeds threshold (3)", body["reason"])
}

func TestLiveDemoReroutePayload(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	result := f.exec.Execute(context.Background(), decision(models.ActionRerouteDrivers), models.DeliveryLiveDemo)
	require.True(t, result.Success)
	assert.Equal(t, models.DeliveryLiveDemo, result.DeliveryMode)

	assert.Equal(t, "live_demo", body["mode"])
	assert.NotContains(t, body, "drivers")
	driver := body["driver"].(map[string]interface{})
	assert.Equal(t, "+15550100", driver["phone"])
	assert.InDelta(t, 0.72, body["confidence"], 1e-9)
	assert.InDelta(t, 306.1, body["distance_km"], 1)
	assert.EqualValues(t, 1, body["expected_wait_time_min"])
	assert.Contains(t, body, "target_location")
}

func TestMaintenancePayload(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer maintenance-token", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		_, _ = w.Write([]byte(`{"ticket":"T-1"}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	d := decision(models.ActionMaintenanceTicket)
	d.Trigger = models.TriggerChargerFault
	d.Severity = models.SeverityCritical

	result := f.exec.Execute(context.Background(), d, models.DeliverySimulation)
	require.True(t, result.Success)

	assert.Equal(t, "maintenance_ticket", body["action"])
	assert.Equal(t, "2 hours", body["sla"])
	station := body["station"].(map[string]interface{})
	assert.Equal(t, "NYC, USA", station["address"])
	issue := body["issue"].(map[string]interface{})
	assert.EqualValues(t, 67, issue["current_uptime"])
	assert.EqualValues(t, 4, issue["error_count"])
	assert.Equal(t, []interface{}{"CFET_FAIL: FET failure"}, issue["error_details"])
	assert.Equal(t, "Charger calibration drift", issue["probable_root_cause"])
	impact := body["impact"].(map[string]interface{})
	assert.EqualValues(t, 1, impact["affected_chargers"])
	assert.Equal(t, "33%", impact["reduced_capacity"])
	assert.EqualValues(t, 8, impact["current_queue"])
}

func TestMaintenanceFailureType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	result := f.exec.Execute(context.Background(), decision(models.ActionAlertMaintenance), models.DeliverySimulation)
	assert.False(t, result.Success)

	failures := f.log.Failures(0)
	require.Len(t, failures, 1)
	assert.Equal(t, models.LogMaintenanceNotificationFailure, failures[0].Type)
}

func TestNonExecutableAction(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:0")
	result := f.exec.Execute(context.Background(), decision(models.ActionEscalate), models.DeliverySimulation)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Attempts)
	assert.Empty(t, f.log.Failures(0))
}
