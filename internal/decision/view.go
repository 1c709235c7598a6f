package decision

import "github.com/langchou/stationos/internal/models"

// ConfidenceScores 置信度到展示分数的映射
type ConfidenceScores struct {
	High   int
	Medium int
	Low    int
}

// DefaultConfidenceScores 默认 90/70/50
func DefaultConfidenceScores() ConfidenceScores {
	return ConfidenceScores{High: 90, Medium: 70, Low: 50}
}

// Score 返回置信度对应的分数
func (s ConfidenceScores) Score(c models.Confidence) int {
	switch c {
	case models.ConfidenceHigh:
		return s.High
	case models.ConfidenceMedium:
		return s.Medium
	}
	return s.Low
}

// RecommendationExplanation 推荐解释
type RecommendationExplanation struct {
	Why                   string            `json:"why"`
	ExpectedImpact        string            `json:"expectedImpact"`
	Impact                string            `json:"impact"`
	Confidence            models.Confidence `json:"confidence"`
	ConfidenceScore       int               `json:"confidenceScore"`
	ProbableRootCause     string            `json:"probableRootCause,omitempty"`
	TimeToStockoutMinutes *int              `json:"timeToStockoutMinutes,omitempty"`
}

// Recommendation 面向调用方的推荐视图
type Recommendation struct {
	DecisionID      string                    `json:"decisionId"`
	Trigger         models.TriggerName        `json:"trigger"`
	Severity        models.Severity           `json:"severity"`
	Action          models.Action             `json:"action"`
	Status          models.DecisionStatus     `json:"status"`
	Source          string                    `json:"source"`
	Explanation     RecommendationExplanation `json:"explanation"`
	ExecutionResult *models.ExecutionResult   `json:"executionResult,omitempty"`
}

// Recommendations 把决策转换为推荐视图
func (e *Engine) Recommendations(decisions []*models.Decision) []Recommendation {
	out := make([]Recommendation, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, Recommendation{
			DecisionID: d.ID,
			Trigger:    d.Trigger,
			Severity:   d.Severity,
			Action:     d.Action,
			Status:     d.Status,
			Source:     d.Source,
			Explanation: RecommendationExplanation{
				Why:                   d.Explanation.Why,
				ExpectedImpact:        d.Explanation.ExpectedImpact,
				Impact:                d.Explanation.ExpectedImpact,
				Confidence:            d.Explanation.Confidence,
				ConfidenceScore:       e.scores.Score(d.Explanation.Confidence),
				ProbableRootCause:     d.Explanation.ProbableRootCause,
				TimeToStockoutMinutes: d.Explanation.TimeToStockoutMinutes,
			},
			ExecutionResult: d.ExecutionResult,
		})
	}
	return out
}
