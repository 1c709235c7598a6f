package decision

import (
	"fmt"

	"github.com/langchou/stationos/internal/advisor"
	"github.com/langchou/stationos/internal/models"
)

// rule 规则表中的一行
type rule struct {
	action     models.Action
	confidence models.Confidence
	impact     string
	why        func(t models.Trigger, st *models.Station) string
	rootCause  func(t models.Trigger, st *models.Station) string
}

func because(suffix string) func(models.Trigger, *models.Station) string {
	return func(t models.Trigger, _ *models.Station) string {
		return t.Reason + ". " + suffix
	}
}

var rules = map[models.TriggerName]rule{
	models.TriggerCongestion: {
		action:     models.ActionRerouteDrivers,
		confidence: models.ConfidenceHigh,
		impact:     "Queue ↓ by ~35%, Wait time ↓",
		why:        because("Drivers are waiting too long."),
	},
	models.TriggerDemandSurge: {
		action:     models.ActionRerouteDrivers,
		confidence: models.ConfidenceHigh,
		impact:     "Load spread to nearby stations, Queue growth prevented",
		why:        because("Demand is well above the recent baseline."),
	},
	models.TriggerStockoutRisk: {
		action:     models.ActionInventoryRebalance,
		confidence: models.ConfidenceHigh,
		impact:     "Stockout probability ↓ by ~80%",
		why: func(t models.Trigger, _ *models.Station) string {
			why := t.Reason + ". Station may run out of charged batteries."
			if t.TimeToStockoutMinutes != nil {
				why += fmt.Sprintf(" Estimated time to stockout: %d minutes.", *t.TimeToStockoutMinutes)
			}
			return why
		},
	},
	models.TriggerChargerFault: {
		action:     models.ActionMaintenanceTicket,
		confidence: models.ConfidenceMedium,
		impact:     "Prevent charger failure, Uptime ↑",
		why:        because("Charger may need service."),
		rootCause: func(models.Trigger, *models.Station) string {
			return "Possible charger hardware fault or sensor calibration drift"
		},
	},
	models.TriggerRecurringFault: {
		action:     models.ActionMaintenanceTicket,
		confidence: models.ConfidenceHigh,
		impact:     "Persistent fault resolved, Repeat errors ↓",
		why:        because("The same fault keeps recurring."),
		rootCause: func(t models.Trigger, _ *models.Station) string {
			return fmt.Sprintf("Recurring error %s points to a persistent component failure", t.ErrorCode)
		},
	},
	models.TriggerChargerDowntime: {
		action:     models.ActionAlertMaintenance,
		confidence: models.ConfidenceMedium,
		impact:     "Early intervention, Uptime ↑ to 95%+",
		why:        because("Charger reliability is degrading."),
		rootCause: func(_ models.Trigger, st *models.Station) string {
			uptime := 100
			if st.Metrics != nil {
				uptime = st.Metrics.ChargerUptimePercent
			}
			return fmt.Sprintf("Charger uptime at %d%%, below the 90%% target", uptime)
		},
	},
	models.TriggerMultiFailure: {
		action:     models.ActionEscalate,
		confidence: models.ConfidenceHigh,
		impact:     "Rapid response, Prevent outage",
		why: func(_ models.Trigger, st *models.Station) string {
			return fmt.Sprintf("Multiple issues at %s. This requires immediate attention.", st.Name)
		},
	},
}

// ruleRecommendations 按规则表为每个触发器生成一条推荐
func ruleRecommendations(st *models.Station, triggers []models.Trigger) []advisor.Recommendation {
	recs := make([]advisor.Recommendation, 0, len(triggers))
	for _, t := range triggers {
		r, ok := rules[t.Name]
		if !ok {
			continue
		}

		explanation := models.Explanation{
			Why:                   r.why(t, st),
			ExpectedImpact:        r.impact,
			Confidence:            r.confidence,
			TimeToStockoutMinutes: t.TimeToStockoutMinutes,
		}
		if r.rootCause != nil {
			explanation.ProbableRootCause = r.rootCause(t, st)
		}

		recs = append(recs, advisor.Recommendation{
			Trigger:     t.Name,
			Severity:    t.Severity,
			Action:      r.action,
			Explanation: explanation,
		})
	}
	return recs
}
