package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/stationos/internal/models"
)

const (
	archiveQueueSize    = 1024
	archiveWriteTimeout = 5 * time.Second
)

// archiveOp 一次异步写入
type archiveOp struct {
	name       string
	stationID  string
	decisionID string
	payload    json.RawMessage
	reportable bool // 失败是否回写决策日志
	exec       func(ctx context.Context) error
}

// Archive 把信号、决策和失败记录异步写入 Postgres
// 写入失败通过 onFailure 回调进入决策日志，不会被静默丢弃
type Archive struct {
	db        *DB
	logger    *zap.Logger
	queue     chan archiveOp
	onFailure func(f *models.Failure)

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewArchive 创建归档器，需要调用 Run 启动写入协程
func NewArchive(db *DB, logger *zap.Logger, onFailure func(f *models.Failure)) *Archive {
	return &Archive{
		db:        db,
		logger:    logger,
		queue:     make(chan archiveOp, archiveQueueSize),
		onFailure: onFailure,
		done:      make(chan struct{}),
	}
}

// Run 消费写入队列，直到 Close 被调用且队列排空
func (a *Archive) Run(ctx context.Context) {
	defer close(a.done)

	for op := range a.queue {
		writeCtx, cancel := context.WithTimeout(ctx, archiveWriteTimeout)
		err := op.exec(writeCtx)
		cancel()
		if err != nil {
			a.fail(op, err)
		}
	}
}

// Close 停止接收新任务并等待队列排空
func (a *Archive) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

// SaveSignal 归档信号
func (a *Archive) SaveSignal(stationID string, sig *models.Signal) {
	data, err := json.Marshal(sig.Data())
	if err != nil {
		a.fail(archiveOp{name: "marshal signal", stationID: stationID, reportable: true}, err)
		return
	}

	a.enqueue(archiveOp{
		name:       "insert signal",
		stationID:  stationID,
		payload:    data,
		reportable: true,
		exec: func(ctx context.Context) error {
			query := `
				INSERT INTO signals (id, station_id, type, data, recorded_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO NOTHING
			`
			_, err := a.db.Pool.Exec(ctx, query, sig.ID, stationID, string(sig.Type), data, sig.Timestamp)
			return err
		},
	})
}

// SaveDecision 归档决策，状态变化时重复调用即可覆盖
func (a *Archive) SaveDecision(d *models.Decision) {
	d = d.Clone()
	explanation, err := json.Marshal(d.Explanation)
	if err != nil {
		a.failDecision(d, "marshal decision explanation", err)
		return
	}
	metrics, err := marshalNullable(d.Metrics)
	if err != nil {
		a.failDecision(d, "marshal decision metrics", err)
		return
	}
	result, err := marshalNullable(d.ExecutionResult)
	if err != nil {
		a.failDecision(d, "marshal decision execution result", err)
		return
	}

	a.enqueue(archiveOp{
		name:       "upsert decision",
		stationID:  d.StationID,
		decisionID: d.ID,
		payload:    explanation,
		reportable: true,
		exec: func(ctx context.Context) error {
			query := `
				INSERT INTO decisions (id, station_id, station_name, trigger, severity, action, mode, source, status,
					explanation, metrics, execution_result, created_at, approved_at, executed_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
				ON CONFLICT (id) DO UPDATE SET
					status = EXCLUDED.status,
					execution_result = EXCLUDED.execution_result,
					approved_at = EXCLUDED.approved_at,
					executed_at = EXCLUDED.executed_at
			`
			_, err := a.db.Pool.Exec(ctx, query,
				d.ID,
				d.StationID,
				d.StationName,
				string(d.Trigger),
				string(d.Severity),
				string(d.Action),
				string(d.Mode),
				d.Source,
				string(d.Status),
				explanation,
				metrics,
				result,
				d.CreatedAt,
				d.ApprovedAt,
				d.ExecutedAt,
			)
			return err
		},
	})
}

// SaveFailure 归档失败记录，归档自身失败时只记日志
func (a *Archive) SaveFailure(typ models.LogEntryType, f *models.Failure) {
	stored := *f
	a.enqueue(archiveOp{
		name:       "insert failure",
		stationID:  stored.StationID,
		decisionID: stored.DecisionID,
		exec: func(ctx context.Context) error {
			query := `
				INSERT INTO log_failures (id, type, decision_id, station_id, payload, error, attempts, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (id) DO NOTHING
			`
			var payload []byte
			if len(stored.Payload) > 0 {
				payload = stored.Payload
			}
			_, err := a.db.Pool.Exec(ctx, query,
				stored.ID,
				string(typ),
				stored.DecisionID,
				stored.StationID,
				payload,
				stored.Error,
				stored.Attempts,
				stored.Timestamp,
			)
			return err
		},
	})
}

func (a *Archive) enqueue(op archiveOp) {
	if err := a.tryEnqueue(op); err != nil {
		a.fail(op, err)
	}
}

func (a *Archive) tryEnqueue(op archiveOp) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return fmt.Errorf("archive closed")
	}
	select {
	case a.queue <- op:
		return nil
	default:
		return fmt.Errorf("archive queue full")
	}
}

func (a *Archive) failDecision(d *models.Decision, name string, err error) {
	a.fail(archiveOp{name: name, stationID: d.StationID, decisionID: d.ID, reportable: true}, err)
}

func (a *Archive) fail(op archiveOp, err error) {
	a.logger.Error("Archive write failed",
		zap.String("op", op.name),
		zap.String("station_id", op.stationID),
		zap.String("decision_id", op.decisionID),
		zap.Error(err))

	if !op.reportable || a.onFailure == nil {
		return
	}
	a.onFailure(&models.Failure{
		ID:         uuid.NewString(),
		DecisionID: op.decisionID,
		StationID:  op.stationID,
		Payload:    op.payload,
		Error:      fmt.Sprintf("%s: %v", op.name, err),
		Attempts:   1,
		Timestamp:  time.Now(),
	})
}

func marshalNullable(v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case *models.Metrics:
		if x == nil {
			return nil, nil
		}
	case *models.ExecutionResult:
		if x == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
