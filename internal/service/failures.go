package service

import (
	"github.com/langchou/stationos/internal/models"
	"github.com/langchou/stationos/internal/repository"
	"github.com/langchou/stationos/internal/telemetry"
)

// FailureSink 把下发失败写入决策日志并归档
type FailureSink struct {
	log     repository.DecisionLog
	archive Archiver
	metrics *telemetry.Metrics
}

// NewFailureSink 创建失败记录器，archive 可以为 nil
func NewFailureSink(log repository.DecisionLog, archive Archiver, metrics *telemetry.Metrics) *FailureSink {
	if archive == nil {
		archive = nopArchiver{}
	}
	if metrics == nil {
		metrics = telemetry.New(nil)
	}
	return &FailureSink{log: log, archive: archive, metrics: metrics}
}

// RecordFailure 记录失败
func (f *FailureSink) RecordFailure(typ models.LogEntryType, failure *models.Failure) {
	f.log.RecordFailure(typ, failure)
	f.metrics.LogFailure(typ)
	f.archive.SaveFailure(typ, failure)
}

// RecordPersistenceFailure 归档写入失败只进日志，避免再次归档
func (f *FailureSink) RecordPersistenceFailure(failure *models.Failure) {
	f.log.RecordFailure(models.LogPersistenceFailure, failure)
	f.metrics.LogFailure(models.LogPersistenceFailure)
}
