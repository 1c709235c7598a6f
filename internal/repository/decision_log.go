package repository

import (
	"errors"
	"fmt"
	"sync"

	"github.com/langchou/stationos/internal/models"
)

// ErrDecisionNotFound 决策不存在
var ErrDecisionNotFound = errors.New("decision not found")

// DecisionLog 只追加的决策日志
type DecisionLog interface {
	Append(d *models.Decision)
	Get(id string) (*models.Decision, error)
	Update(id string, fn func(d *models.Decision) error) (*models.Decision, error)
	RecordFailure(typ models.LogEntryType, f *models.Failure)
	Recent(n int) []models.LogEntry
	Decisions(n int) []*models.Decision
	Failures(n int) []models.LogEntry
}

// MemoryDecisionLog 进程内决策日志，条目从不删除
type MemoryDecisionLog struct {
	mu      sync.RWMutex
	entries []models.LogEntry
	byID    map[string]*models.Decision
}

// NewMemoryDecisionLog 创建决策日志
func NewMemoryDecisionLog() *MemoryDecisionLog {
	return &MemoryDecisionLog{byID: make(map[string]*models.Decision)}
}

// Append 追加决策
func (l *MemoryDecisionLog) Append(d *models.Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := d.Clone()
	l.entries = append(l.entries, models.LogEntry{Type: models.LogDecision, Decision: stored})
	l.byID[stored.ID] = stored
}

// Get 按 ID 获取决策副本
func (l *MemoryDecisionLog) Get(id string) (*models.Decision, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	d, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDecisionNotFound, id)
	}
	return d.Clone(), nil
}

// Update 原地修改决策，fn 返回错误时不做任何修改
func (l *MemoryDecisionLog) Update(id string, fn func(d *models.Decision) error) (*models.Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDecisionNotFound, id)
	}

	draft := d.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	*d = *draft
	return d.Clone(), nil
}

// RecordFailure 追加失败记录
func (l *MemoryDecisionLog) RecordFailure(typ models.LogEntryType, f *models.Failure) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := *f
	l.entries = append(l.entries, models.LogEntry{Type: typ, Failure: &stored})
}

// Recent 返回最近 n 条日志，n <= 0 返回全部
func (l *MemoryDecisionLog) Recent(n int) []models.LogEntry {
	return l.collect(n, func(models.LogEntry) bool { return true })
}

// Decisions 返回最近 n 条决策
func (l *MemoryDecisionLog) Decisions(n int) []*models.Decision {
	entries := l.collect(n, func(e models.LogEntry) bool { return e.Type == models.LogDecision })
	out := make([]*models.Decision, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Decision)
	}
	return out
}

// Failures 返回最近 n 条失败记录
func (l *MemoryDecisionLog) Failures(n int) []models.LogEntry {
	return l.collect(n, func(e models.LogEntry) bool { return e.Type != models.LogDecision })
}

// collect 从尾部向前取满 n 条，结果保持时间顺序
func (l *MemoryDecisionLog) collect(n int, keep func(models.LogEntry) bool) []models.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.LogEntry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if n > 0 && len(out) == n {
			break
		}
		e := l.entries[i]
		if !keep(e) {
			continue
		}
		if e.Decision != nil {
			e.Decision = e.Decision.Clone()
		}
		if e.Failure != nil {
			f := *e.Failure
			e.Failure = &f
		}
		out = append(out, e)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
