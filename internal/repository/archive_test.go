package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/stationos/internal/models"
)

type failureCollector struct {
	mu       sync.Mutex
	failures []*models.Failure
}

func (c *failureCollector) record(f *models.Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, f)
}

func (c *failureCollector) all() []*models.Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.Failure(nil), c.failures...)
}

func testDecision() *models.Decision {
	return &models.Decision{
		ID:        "dec-1",
		StationID: "station-0",
		Trigger:   models.TriggerCongestion,
		Action:    models.ActionRerouteDrivers,
		Status:    models.DecisionPendingApproval,
		Explanation: models.Explanation{
			Why:        "Queue is long",
			Confidence: models.ConfidenceHigh,
		},
		CreatedAt: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
	}
}

// closedArchive 返回已关闭的归档器，之后的写入都会失败
func closedArchive(t *testing.T) (*Archive, *failureCollector) {
	t.Helper()
	c := &failureCollector{}
	a := NewArchive(nil, zap.NewNop(), c.record)
	go a.Run(context.Background())
	a.Close()
	return a, c
}

func TestArchiveClosedReportsFailures(t *testing.T) {
	a, c := closedArchive(t)

	sig, err := models.NewSignal("sig-1", models.SignalSwapEvent, json.RawMessage(`{}`), time.Now())
	require.NoError(t, err)
	a.SaveSignal("station-0", sig)
	a.SaveDecision(testDecision())

	failures := c.all()
	require.Len(t, failures, 2)

	assert.Equal(t, "station-0", failures[0].StationID)
	assert.Contains(t, failures[0].Error, "insert signal")
	assert.Contains(t, failures[0].Error, "archive closed")
	assert.NotEmpty(t, failures[0].ID)

	assert.Equal(t, "dec-1", failures[1].DecisionID)
	assert.Contains(t, failures[1].Error, "upsert decision")
	assert.JSONEq(t, `{"why":"Queue is long","expectedImpact":"","confidence":"High"}`, string(failures[1].Payload))
}

func TestArchiveFailureWritesAreNotReported(t *testing.T) {
	a, c := closedArchive(t)

	a.SaveFailure(models.LogNotificationFailure, &models.Failure{ID: "f-1", Error: "status=500"})

	assert.Empty(t, c.all())
}

func TestArchiveReportsMarshalErrors(t *testing.T) {
	c := &failureCollector{}
	a := NewArchive(nil, zap.NewNop(), c.record)

	d := testDecision()
	d.ExecutionResult = &models.ExecutionResult{Response: json.RawMessage(`{not json`)}
	a.SaveDecision(d)

	failures := c.all()
	require.Len(t, failures, 1)
	assert.Equal(t, "dec-1", failures[0].DecisionID)
	assert.Contains(t, failures[0].Error, "marshal decision execution result")
}

func TestArchiveQueueFull(t *testing.T) {
	c := &failureCollector{}
	a := NewArchive(nil, zap.NewNop(), c.record)

	sig, err := models.NewSignal("sig-1", models.SignalSwapEvent, json.RawMessage(`{}`), time.Now())
	require.NoError(t, err)

	// 未启动 Run，队列不会被消费
	for i := 0; i < archiveQueueSize+1; i++ {
		a.SaveSignal("station-0", sig)
	}

	failures := c.all()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Error, "archive queue full")
}
