package advisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/langchou/stationos/internal/models"
)

// ErrMalformedResponse 顾问返回的推荐无法使用
var ErrMalformedResponse = errors.New("malformed advisor response")

// Request 提交给顾问的站点快照
type Request struct {
	StationID   string           `json:"stationId"`
	StationName string           `json:"stationName"`
	City        string           `json:"city,omitempty"`
	Metrics     models.Metrics   `json:"metrics"`
	Triggers    []models.Trigger `json:"triggers"`
}

// Recommendation 针对单个触发器的推荐
type Recommendation struct {
	Trigger     models.TriggerName `json:"trigger"`
	Severity    models.Severity    `json:"severity"`
	Action      models.Action      `json:"action"`
	Explanation models.Explanation `json:"explanation"`
}

// Advisor 可替换的智能顾问，出错时由调用方回退到规则表
type Advisor interface {
	Advise(ctx context.Context, req Request) ([]Recommendation, error)
}

// Validate 校验顾问推荐并补全缺失的严重程度
// 每个已触发的触发器必须恰好对应一条推荐
func Validate(recs []Recommendation, triggers []models.Trigger) ([]Recommendation, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no recommendations", ErrMalformedResponse)
	}

	fired := make(map[models.TriggerName]models.Severity, len(triggers))
	for _, t := range triggers {
		fired[t.Name] = t.Severity
	}

	seen := make(map[models.TriggerName]bool, len(recs))
	out := make([]Recommendation, 0, len(recs))
	for i, r := range recs {
		severity, ok := fired[r.Trigger]
		if !ok {
			return nil, fmt.Errorf("%w: recommendation %d names unknown trigger %q", ErrMalformedResponse, i, r.Trigger)
		}
		if seen[r.Trigger] {
			return nil, fmt.Errorf("%w: recommendation %d repeats trigger %q", ErrMalformedResponse, i, r.Trigger)
		}
		seen[r.Trigger] = true
		if !r.Action.Valid() {
			return nil, fmt.Errorf("%w: recommendation %d has unknown action %q", ErrMalformedResponse, i, r.Action)
		}
		if r.Explanation.Why == "" {
			return nil, fmt.Errorf("%w: recommendation %d has no explanation", ErrMalformedResponse, i)
		}
		switch r.Explanation.Confidence {
		case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
		default:
			return nil, fmt.Errorf("%w: recommendation %d has confidence %q", ErrMalformedResponse, i, r.Explanation.Confidence)
		}
		switch r.Severity {
		case "":
			r.Severity = severity
		case models.SeverityWarning, models.SeverityCritical:
		default:
			return nil, fmt.Errorf("%w: recommendation %d has severity %q", ErrMalformedResponse, i, r.Severity)
		}
		out = append(out, r)
	}

	for _, t := range triggers {
		if !seen[t.Name] {
			return nil, fmt.Errorf("%w: no recommendation for trigger %q", ErrMalformedResponse, t.Name)
		}
	}
	return out, nil
}
