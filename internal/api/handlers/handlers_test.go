package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/stationos/internal/decision"
	"github.com/langchou/stationos/internal/executor"
	"github.com/langchou/stationos/internal/inbox"
	"github.com/langchou/stationos/internal/monitoring"
	"github.com/langchou/stationos/internal/repository"
	"github.com/langchou/stationos/internal/reroute"
	"github.com/langchou/stationos/internal/service"
	"github.com/langchou/stationos/internal/state"
	"github.com/langchou/stationos/pkg/ws"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(endpoint.Close)

	logger := zap.NewNop()
	stations := repository.NewMemoryStationStore(repository.DefaultStations())
	log := repository.NewMemoryDecisionLog()
	sink := service.NewFailureSink(log, nil, nil)

	cfg := executor.DefaultConfig()
	cfg.Reroute = executor.Endpoint{URL: endpoint.URL}
	cfg.Maintenance = executor.Endpoint{URL: endpoint.URL}
	exec := executor.New(cfg, stations, reroute.NewSelector(stations), sink, logger)

	engine := decision.NewEngine(nil, exec, log, state.NewLifecycle(nil), decision.DefaultConfidenceScores(), logger)
	svc := service.NewStationService(logger, stations, log, monitoring.NewDeriver(time.Now), engine, nil, nil, nil, 0)

	tickets := inbox.NewService(logger,
		repository.NewMemoryTicketStore(),
		repository.NewMemoryRerouteHistory(),
		state.NewTicketLifecycle(),
		nil, nil, nil, nil)

	r := gin.New()
	h := NewHandler(logger, svc, ws.NewHub(logger))
	h.SetInbox(tickets, testMaintenanceToken, testRerouteToken)
	h.RegisterRoutes(r)
	return r
}

const (
	testMaintenanceToken = "maint-secret"
	testRerouteToken     = "reroute-secret"
)

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	return doRequest(r, newRequest(method, path, body))
}

func doRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newRequest(method, path, body string) *http.Request {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestReceiveSignal(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/api/signals/receive", `{"stationId":"station-0","type":"swap_event","data":{}}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["signalId"])

	w = do(r, http.MethodPost, "/api/signals/receive", `{"stationId":"station-42","type":"swap_event"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/signals/receive", `{"stationId":"station-0","type":"telemetry"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/signals/station-0/recent", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)
}

func TestReceiveBatch(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/api/signals/batch", `{"signals":[
		{"stationId":"station-1","type":"swap_event"},
		{"stationId":"nowhere","type":"swap_event"}
	]}`)
	require.Equal(t, http.StatusOK, w.Code)

	results, ok := decode(t, w)["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, true, results[0].(map[string]interface{})["success"])
	assert.Equal(t, false, results[1].(map[string]interface{})["success"])
}

func TestEvaluateAndApprove(t *testing.T) {
	r := newRouter(t)

	for i := 0; i < 10; i++ {
		do(r, http.MethodPost, "/api/signals/receive", `{"stationId":"station-0","type":"swap_event"}`)
	}
	do(r, http.MethodPost, "/api/signals/receive", `{"stationId":"station-0","type":"battery_inventory","data":{"charged":5}}`)
	do(r, http.MethodGet, "/api/monitoring/all", "")

	w := do(r, http.MethodPost, "/api/decisions/evaluate/station-0", `{"mode":"conservative"}`)
	require.Equal(t, http.StatusOK, w.Code)
	recs, ok := decode(t, w)["recommendations"].([]interface{})
	require.True(t, ok)
	require.Len(t, recs, 1)
	id, _ := recs[0].(map[string]interface{})["decisionId"].(string)
	require.NotEmpty(t, id)

	w = do(r, http.MethodGet, "/api/decisions/explain/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/decisions/approve/"+id, `{"deliveryMode":"simulation"}`)
	require.Equal(t, http.StatusOK, w.Code)
	d, ok := decode(t, w)["decision"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "executed", d["status"])

	w = do(r, http.MethodPost, "/api/decisions/approve/"+id, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodGet, "/api/decisions/log?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)
}

func TestEvaluateRejectsUnknownMode(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/api/decisions/evaluate/station-0", `{"mode":"reckless"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/decisions/evaluate/station-9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotFound(t *testing.T) {
	r := newRouter(t)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/stations/station-9", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/decisions/explain/missing", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/monitoring/station/station-9", "").Code)
}

func TestEvaluateAllAndAlerts(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/api/decisions/evaluate-all", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["results"], 5)

	w = do(r, http.MethodGet, "/api/decisions/alerts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["alerts"])
}

func TestHealthCheck(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 5, body["stations"])
	assert.EqualValues(t, 0, body["ws_clients"])
}

func TestApproveOutlivesClientDisconnect(t *testing.T) {
	r := newRouter(t)

	for i := 0; i < 10; i++ {
		do(r, http.MethodPost, "/api/signals/receive", `{"stationId":"station-0","type":"swap_event"}`)
	}
	do(r, http.MethodPost, "/api/signals/receive", `{"stationId":"station-0","type":"battery_inventory","data":{"charged":5}}`)
	do(r, http.MethodGet, "/api/monitoring/all", "")

	w := do(r, http.MethodPost, "/api/decisions/evaluate/station-0", "")
	require.Equal(t, http.StatusOK, w.Code)
	recs, ok := decode(t, w)["recommendations"].([]interface{})
	require.True(t, ok)
	require.Len(t, recs, 1)
	id, _ := recs[0].(map[string]interface{})["decisionId"].(string)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := newRequest(http.MethodPost, "/api/decisions/approve/"+id, "").WithContext(ctx)
	w = doRequest(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	d, ok := decode(t, w)["decision"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "executed", d["status"])

	w = do(r, http.MethodGet, "/api/decisions/failures", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["data"])
}

func TestInboxAuth(t *testing.T) {
	r := newRouter(t)

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"ticket missing header", "/api/maintenance/ticket", "", http.StatusUnauthorized},
		{"ticket wrong scheme", "/api/maintenance/ticket", "Basic " + testMaintenanceToken, http.StatusUnauthorized},
		{"ticket wrong token", "/api/maintenance/ticket", "Bearer nope", http.StatusForbidden},
		{"ticket uses reroute token", "/api/maintenance/ticket", "Bearer " + testRerouteToken, http.StatusForbidden},
		{"reroute missing header", "/api/reroute-driver", "", http.StatusUnauthorized},
		{"reroute wrong token", "/api/reroute-driver", "Bearer nope", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := newRequest(http.MethodPost, tc.path, `{"mode":"simulation","station_from":"a","station_to":"b"}`)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			assert.Equal(t, tc.want, doRequest(r, req).Code)
		})
	}

	w := do(r, http.MethodGet, "/api/maintenance/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["total"])
}

func TestMaintenanceTicketLifecycle(t *testing.T) {
	r := newRouter(t)

	req := newRequest(http.MethodPost, "/api/maintenance/ticket", `{"station_id":"station-2","issue":"charger fault"}`)
	req.Header.Set("Authorization", "Bearer "+testMaintenanceToken)
	w := doRequest(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	id, _ := decode(t, w)["ticket_id"].(string)
	require.NotEmpty(t, id)

	w = do(r, http.MethodGet, "/api/maintenance/ticket/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	ticket, ok := decode(t, w)["ticket"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "open", ticket["status"])
	assert.Equal(t, "received", ticket["forward_status"])

	w = do(r, http.MethodPatch, "/api/maintenance/ticket/"+id, `{"status":"in-progress","technician":"Li Wei"}`)
	require.Equal(t, http.StatusOK, w.Code)
	ticket, _ = decode(t, w)["ticket"].(map[string]interface{})
	assert.Equal(t, "in-progress", ticket["status"])
	assert.Equal(t, "Li Wei", ticket["assigned_to"])

	w = do(r, http.MethodPatch, "/api/maintenance/ticket/"+id, `{"status":"closed"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPatch, "/api/maintenance/ticket/"+id, `{"status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/maintenance/ticket/TICKET_0_NONE", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPatch, "/api/maintenance/ticket/TICKET_0_NONE", `{"status":"resolved"}`).Code)

	w = do(r, http.MethodGet, "/api/maintenance/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = do(r, http.MethodDelete, "/api/maintenance/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cleared 1 tickets", decode(t, w)["message"])
}

func TestRerouteNotificationInbox(t *testing.T) {
	r := newRouter(t)

	send := func(body string) *httptest.ResponseRecorder {
		req := newRequest(http.MethodPost, "/api/reroute-driver", body)
		req.Header.Set("Authorization", "Bearer "+testRerouteToken)
		return doRequest(r, req)
	}

	w := send(`{"mode":"simulation","station_from":{"id":"station-0"},"station_to":{"id":"station-3"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "simulation", body["mode"])
	assert.Equal(t, "received", body["forward_status"])
	assert.NotEmpty(t, body["notification_id"])

	assert.Equal(t, http.StatusBadRequest, send(`{"mode":"simulation"}`).Code)

	w = do(r, http.MethodGet, "/api/reroute-driver/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.EqualValues(t, 1, body["total"])
	assert.Len(t, body["history"], 1)

	w = do(r, http.MethodDelete, "/api/reroute-driver/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodGet, "/api/reroute-driver/history", "")
	assert.EqualValues(t, 0, decode(t, w)["total"])
}
