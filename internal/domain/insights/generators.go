package insights

import (
	"fmt"
	"math"
)

// Financial model assumptions for first-case delay pricing: the average late
// start loses about 12 minutes, across 4 first-case rooms per day.
const (
	avgFirstCaseDelayMinutes = 12.0
	firstCaseRoomsPerDay     = 4.0
)

func analyzeFirstCaseDelays(o *Overview, cfg Config) []Insight {
	m := o.FCOTS
	if m.Value == 0 {
		return nil
	}

	if m.TargetMet {
		// targetMet can be true with target data absent; only celebrate when
		// the numbers actually back it up.
		if m.Target != nil && m.Value >= *m.Target {
			return []Insight{{
				ID:           "fcots-on-target",
				Category:     CategoryEfficiency,
				Severity:     SeverityPositive,
				Title:        "First Case Starts On Target",
				Body:         fmt.Sprintf("%.0f%% of first cases started on time, meeting the %.0f%% goal. The morning routine is holding.", m.Value, *m.Target),
				DrillThrough: drill(DrillFCOTS),
			}}
		}
		return nil
	}

	severity := SeverityWarning
	if m.Value < 50 {
		severity = SeverityCritical
	}

	body := fmt.Sprintf("Only %.0f%% of first cases started on time this period.", m.Value)
	if m.TotalFirstCases > 0 {
		body = fmt.Sprintf("%d of %d first cases started late, putting on-time starts at %.0f%%.",
			m.LateCount, m.TotalFirstCases, m.Value)
	}
	if m.Target != nil {
		body += fmt.Sprintf(" The facility goal is %.0f%%.", *m.Target)
	}
	if worst := findWorstDayOfWeek(m.DailyData); worst != nil {
		body += fmt.Sprintf(" Late starts cluster on %ss (%.0f%% on time across %d weeks).",
			worst.Day, worst.GreenRate*100, worst.Observations)
	}

	var annual float64
	if m.TotalFirstCases > 0 {
		lateShare := float64(m.LateCount) / float64(m.TotalFirstCases)
		dailyDelayMinutes := lateShare * avgFirstCaseDelayMinutes * firstCaseRoomsPerDay
		annual = math.Round(dailyDelayMinutes * cfg.RevenuePerORMinute * float64(cfg.OperatingDaysPerYear))
	}

	ins := Insight{
		ID:           "fcots-delays",
		Category:     CategoryEfficiency,
		Severity:     severity,
		Title:        "First Case Delays Are Costing OR Time",
		Body:         body,
		Action:       "Review anesthesia and pre-op readiness for first cases",
		ActionRoute:  "/analytics/fcots",
		DrillThrough: drill(DrillFCOTS),
		Metadata: map[string]interface{}{
			"lateCount":       m.LateCount,
			"totalFirstCases": m.TotalFirstCases,
		},
	}
	if annual > 0 {
		ins.FinancialImpact = estimatedImpact(annual)
	}
	return []Insight{ins}
}

func analyzeTurnoverEfficiency(o *Overview, cfg Config) []Insight {
	var insights []Insight

	m := o.TurnoverTime
	if !m.TargetMet && m.Value > 0 && m.ThresholdMinutes > 0 {
		severity := SeverityWarning
		if m.CompliancePct < 50 {
			severity = SeverityCritical
		}

		recoverable := math.Max(0, m.Value-m.ThresholdMinutes)
		dailyTurnovers := float64(o.StandardSurgicalTurnover.Count+o.FlipRoomTime.Count) / float64(o.periodLength())
		annual := math.Round(recoverable * dailyTurnovers * cfg.RevenuePerORMinute * float64(cfg.OperatingDaysPerYear))

		body := fmt.Sprintf("Average turnover is %.0f minutes against a %.0f-minute goal; %.0f%% of turnovers finish under the threshold.",
			m.Value, m.ThresholdMinutes, m.CompliancePct)
		if recoverable > 0 {
			body += fmt.Sprintf(" Each turnover carries roughly %.0f recoverable minutes.", recoverable)
		}

		ins := Insight{
			ID:           "turnover-over-threshold",
			Category:     CategoryEfficiency,
			Severity:     severity,
			Title:        "Room Turnovers Are Running Long",
			Body:         body,
			Action:       "Audit turnover workflows with the OR team",
			DrillThrough: drill(DrillTurnover),
			Metadata: map[string]interface{}{
				"thresholdMinutes": m.ThresholdMinutes,
				"compliancePct":    m.CompliancePct,
			},
		}
		if annual > 0 {
			ins.FinancialImpact = estimatedImpact(annual)
		}
		insights = append(insights, ins)
	}

	same, flip := o.StandardSurgicalTurnover, o.FlipRoomTime
	if same.GapMinutes > 0 && flip.GapMinutes > 0 && same.Count > 0 && flip.Count > 0 {
		sameExcess := same.GapMinutes * float64(same.Count)
		flipExcess := flip.GapMinutes * float64(flip.Count)

		pathway, minutes := "same-room", sameExcess
		if flipExcess > sameExcess {
			pathway, minutes = "flip-room", flipExcess
		}

		insights = append(insights, Insight{
			ID:       "turnover-pathway-comparison",
			Category: CategoryEfficiency,
			Severity: SeverityInfo,
			Title:    "Where Turnover Minutes Are Going",
			Body: fmt.Sprintf("Same-room turnovers average %.0f excess minutes across %d turnovers; flip-room averages %.0f across %d. The %s pathway holds the larger recovery lever at %.0f total minutes.",
				same.GapMinutes, same.Count, flip.GapMinutes, flip.Count, pathway, minutes),
			DrillThrough: drill(DrillTurnover),
		})
	}

	return insights
}

func analyzeCallbackOptimization(o *Overview, cfg Config) []Insight {
	var insights []Insight
	fa := o.FlipRoomAnalysis

	var flipSurgeons, sooner, later []SurgeonIdleSummary
	for _, s := range fa.Surgeons {
		if !s.HasFlipData {
			continue
		}
		flipSurgeons = append(flipSurgeons, s)
		switch s.Status {
		case StatusCallSooner:
			sooner = append(sooner, s)
		case StatusCallLater:
			later = append(later, s)
		}
	}

	if len(sooner) > 0 {
		var totalRecoverable float64
		for _, s := range sooner {
			totalRecoverable += s.MedianCallbackDelta * float64(s.FlipGapCount)
		}

		severity := SeverityInfo
		if totalRecoverable > 60 {
			severity = SeverityWarning
		}

		daily := totalRecoverable / math.Max(float64(fa.DaysObserved), 1)
		annual := math.Round(daily * float64(cfg.OperatingDaysPerYear) * cfg.RevenuePerORMinute)

		worst := maxByCallbackDelta(sooner)
		best := minByFlipIdle(flipSurgeons)

		body := fmt.Sprintf("Calling flip rooms back earlier would recover about %.0f minutes across %d surgeon(s).",
			totalRecoverable, len(sooner))
		body += fmt.Sprintf(" %s carries the largest callback delay at %.0f minutes", worst.SurgeonName, worst.MedianCallbackDelta)
		if best.SurgeonName != worst.SurgeonName {
			body += fmt.Sprintf("; %s runs the tightest flip gaps at %.0f minutes idle", best.SurgeonName, best.MedianFlipIdle)
		}
		body += "."

		ins := Insight{
			ID:           "callback-call-sooner",
			Category:     CategoryEfficiency,
			Severity:     severity,
			Title:        "Flip Room Callbacks Are Going Out Late",
			Body:         body,
			Action:       "Tune callback timing with the charge desk",
			DrillThrough: drill(DrillCallback),
			Metadata: map[string]interface{}{
				"surgeons":           len(sooner),
				"recoverableMinutes": totalRecoverable,
			},
		}
		if annual > 0 {
			ins.FinancialImpact = estimatedImpact(annual)
		}
		insights = append(insights, ins)
	}

	if len(later) > 0 {
		insights = append(insights, Insight{
			ID:       "callback-call-later",
			Category: CategoryEfficiency,
			Severity: SeverityInfo,
			Title:    "Some Callbacks Are Going Out Too Early",
			Body: fmt.Sprintf("%d surgeon(s) are called back before the flip room is ready, leaving patients waiting under anesthesia. Delaying those callbacks 3-5 minutes would smooth the handoff.",
				len(later)),
			DrillThrough: drill(DrillCallback),
		})
	}

	if len(flipSurgeons) > 0 && len(sooner) == 0 && len(later) == 0 {
		insights = append(insights, Insight{
			ID:       "callback-on-track",
			Category: CategoryEfficiency,
			Severity: SeverityPositive,
			Title:    "Callback Timing Is Dialed In",
			Body: fmt.Sprintf("All %d surgeon(s) with flip-room data are on track. Callback timing is working.",
				len(flipSurgeons)),
			DrillThrough: drill(DrillCallback),
		})
	}

	// Surgeons without a flip room who idle long between cases are a separate
	// conversation from callback timing.
	var idlers []SurgeonIdleSummary
	anyOver45 := false
	for _, s := range fa.Surgeons {
		if s.HasFlipData || s.MedianSameRoomIdle <= 30 {
			continue
		}
		idlers = append(idlers, s)
		if s.MedianSameRoomIdle > 45 {
			anyOver45 = true
		}
	}
	if len(idlers) > 0 {
		severity := SeverityInfo
		if anyOver45 {
			severity = SeverityWarning
		}
		worst := maxBySameRoomIdle(idlers)
		insights = append(insights, Insight{
			ID:       "callback-same-room-idle",
			Category: CategoryEfficiency,
			Severity: severity,
			Title:    "Long Idle Gaps Between Same-Room Cases",
			Body: fmt.Sprintf("%d surgeon(s) without flip rooms idle more than 30 minutes between cases. %s has the longest median gap at %.0f minutes; a flip room may be worth considering.",
				len(idlers), worst.SurgeonName, worst.MedianSameRoomIdle),
			DrillThrough: drill(DrillCallback),
		})
	}

	return insights
}

func maxByCallbackDelta(surgeons []SurgeonIdleSummary) SurgeonIdleSummary {
	worst := surgeons[0]
	for _, s := range surgeons[1:] {
		if s.MedianCallbackDelta > worst.MedianCallbackDelta {
			worst = s
		}
	}
	return worst
}

func minByFlipIdle(surgeons []SurgeonIdleSummary) SurgeonIdleSummary {
	best := surgeons[0]
	for _, s := range surgeons[1:] {
		if s.MedianFlipIdle < best.MedianFlipIdle {
			best = s
		}
	}
	return best
}

func maxBySameRoomIdle(surgeons []SurgeonIdleSummary) SurgeonIdleSummary {
	worst := surgeons[0]
	for _, s := range surgeons[1:] {
		if s.MedianSameRoomIdle > worst.MedianSameRoomIdle {
			worst = s
		}
	}
	return worst
}

func analyzeUtilizationGaps(o *Overview, cfg Config) []Insight {
	m := o.ORUtilization

	if m.TargetMet {
		body := fmt.Sprintf("OR utilization is at %.0f%%", m.Value)
		if m.Target != nil {
			body += fmt.Sprintf(", meeting the %.0f%% target", *m.Target)
		}
		body += ". Room hours are being put to work."
		return []Insight{{
			ID:           "utilization-on-target",
			Category:     CategoryUtilization,
			Severity:     SeverityPositive,
			Title:        "OR Utilization On Target",
			Body:         body,
			DrillThrough: drill(DrillUtilization),
		}}
	}

	severity := SeverityWarning
	if m.Value < 50 {
		severity = SeverityCritical
	}

	underTarget := 0
	defaultHours := 0
	var unusedMinutes float64
	for _, room := range m.Rooms {
		if m.Target != nil && room.UtilizationPct < *m.Target {
			underTarget++
		}
		if room.UsingDefaultHours {
			defaultHours++
		}
		unusedMinutes += math.Max(0, room.AvailableMinutes-room.UsedMinutes)
	}

	body := fmt.Sprintf("Facility utilization is %.0f%%", m.Value)
	if m.Target != nil {
		body += fmt.Sprintf(" against a %.0f%% target", *m.Target)
	}
	body += "."
	if underTarget > 0 {
		body += fmt.Sprintf(" %d of %d rooms are running under target.", underTarget, len(m.Rooms))
	}
	if unusedMinutes > 0 {
		body += fmt.Sprintf(" Rooms sat unused for %.0f hours of scheduled availability this period.", unusedMinutes/60)
	}
	if defaultHours > 0 {
		body += fmt.Sprintf(" Note: %d room(s) are measured against default hours; configure actual availability to tighten these numbers.", defaultHours)
	}

	var annual float64
	if m.RoomDaysActive > 0 {
		unusedHours := unusedMinutes / 60
		annualUnusedHours := unusedHours * float64(cfg.OperatingDaysPerYear) / float64(m.RoomDaysActive)
		annual = math.Round(annualUnusedHours * cfg.RevenuePerORMinute * 60)
	}

	ins := Insight{
		ID:           "utilization-below-target",
		Category:     CategoryUtilization,
		Severity:     severity,
		Title:        "OR Utilization Below Target",
		Body:         body,
		Action:       "Review block allocation and release timing",
		ActionRoute:  "/analytics/utilization",
		DrillThrough: drill(DrillUtilization),
		Metadata: map[string]interface{}{
			"underTargetRooms":  underTarget,
			"defaultHoursRooms": defaultHours,
		},
	}
	if annual > 50_000 {
		ins.FinancialImpact = estimatedImpact(annual)
	}
	return []Insight{ins}
}

func analyzeCancellationTrends(o *Overview, cfg Config) []Insight {
	m := o.CancellationRate

	// Trailing streak: consecutive green days counted from the end of the
	// trace, not the historical maximum.
	streak := 0
	for i := len(m.DailyData) - 1; i >= 0; i-- {
		if m.DailyData[i].Color != "green" {
			break
		}
		streak++
	}

	if m.SameDayCount == 0 && streak > 5 {
		return []Insight{{
			ID:       "cancellation-zero-streak",
			Category: CategoryQuality,
			Severity: SeverityPositive,
			Title:    "Zero Same-Day Cancellations Streak",
			Body: fmt.Sprintf("No same-day cancellations for %d straight days. Whatever pre-op screening is doing, it is working.",
				streak),
			DrillThrough: drill(DrillCancellation),
			Metadata:     map[string]interface{}{"streak": streak},
		}}
	}

	if m.SameDayCount > 0 {
		severity := SeverityInfo
		if !m.TargetMet {
			severity = SeverityWarning
		}

		var annualCancellations, annual float64
		if len(m.DailyData) > 0 {
			dailyCases := float64(m.TotalCases) / float64(len(m.DailyData))
			annualCancellations = math.Round(m.Value / 100 * dailyCases * float64(cfg.OperatingDaysPerYear))
			annual = math.Round(annualCancellations * cfg.RevenuePerCase)
		}

		body := fmt.Sprintf("%d same-day cancellation(s) this period put the rate at %.1f%%.", m.SameDayCount, m.Value)
		if m.Target != nil {
			if m.TargetMet {
				body += fmt.Sprintf(" That is within the %.1f%% target, but same-day cancellations still strand prepped rooms.", *m.Target)
			} else {
				body += fmt.Sprintf(" The facility target is %.1f%%.", *m.Target)
			}
		}
		if annualCancellations > 0 {
			body += fmt.Sprintf(" At the current pace that projects to roughly %.0f cancellations a year.", annualCancellations)
		}

		ins := Insight{
			ID:           "cancellation-same-day",
			Category:     CategoryQuality,
			Severity:     severity,
			Title:        "Same-Day Cancellations Need Attention",
			Body:         body,
			Action:       "Audit pre-op confirmation calls",
			DrillThrough: drill(DrillCancellation),
			Metadata:     map[string]interface{}{"sameDayCount": m.SameDayCount},
		}
		if annual > 0 {
			ins.FinancialImpact = revenueAtRisk(annual)
		}
		return []Insight{ins}
	}

	return nil
}

func analyzeNonOperativeTime(o *Overview, cfg Config) []Insight {
	var insights []Insight
	m := o.NonOperativeTime

	if m.Value > 30 {
		severity := SeverityInfo
		if m.Value > 40 {
			severity = SeverityWarning
		}

		postOp := m.ClosingMinutes + m.EmergenceMinutes
		dominant, dominantMinutes := "pre-op preparation", m.PreOpMinutes
		if postOp > m.PreOpMinutes {
			dominant, dominantMinutes = "closing and emergence", postOp
		}
		savedPerCase := dominantMinutes * 0.2

		var annual float64
		if o.CaseVolume.Value > 0 {
			dailyCases := o.CaseVolume.Value / float64(o.periodLength())
			annual = math.Round(savedPerCase * dailyCases * float64(cfg.OperatingDaysPerYear) * cfg.RevenuePerORMinute)
		}

		ins := Insight{
			ID:       "non-op-time-reduction",
			Category: CategoryEfficiency,
			Severity: severity,
			Title:    "Non-Operative Time Is Crowding Out Surgery",
			Body: fmt.Sprintf("Non-operative time is %.0f%% of total case time, with %s as the largest block at %.0f minutes per case. Trimming it 20%% frees about %.0f minutes per case.",
				m.Value, dominant, dominantMinutes, savedPerCase),
			Action:       "Walk the dominant phase with the anesthesia team",
			DrillThrough: drill(DrillNonOpTime),
			Metadata:     map[string]interface{}{"dominantPhase": dominant},
		}
		if annual > 0 {
			ins.FinancialImpact = estimatedImpact(annual)
		}
		insights = append(insights, ins)
	}

	if m.SurgicalMinutes > 0 && m.PreOpMinutes/m.SurgicalMinutes > 0.5 {
		insights = append(insights, Insight{
			ID:       "non-op-preop-ratio",
			Category: CategoryEfficiency,
			Severity: SeverityInfo,
			Title:    "Pre-Op Time Is Half of Surgical Time",
			Body: fmt.Sprintf("Pre-op preparation runs %.0f minutes per case against %.0f surgical minutes. Parallel workflows (induction rooms, earlier workups) tend to pay off at this ratio.",
				m.PreOpMinutes, m.SurgicalMinutes),
			DrillThrough: drill(DrillNonOpTime),
		})
	}

	return insights
}

func analyzeSchedulingPatterns(o *Overview, cfg Config) []Insight {
	var insights []Insight
	vol := o.CaseVolume
	util := o.ORUtilization

	if vol.Delta != nil && vol.DeltaType == "increase" && *vol.Delta > 10 && util.DeltaType == "decrease" {
		insights = append(insights, Insight{
			ID:       "scheduling-volume-utilization-divergence",
			Category: CategoryScheduling,
			Severity: SeverityWarning,
			Title:    "Case Volume Up, Utilization Down",
			Body: fmt.Sprintf("Case volume rose %.0f%% while utilization fell. More cases are fitting into the schedule less efficiently; block boundaries are the usual suspect.",
				*vol.Delta),
			Action:       "Review block allocation against recent booking patterns",
			DrillThrough: drill(DrillScheduling),
		})
	}

	if vol.Delta != nil && vol.DeltaType == "decrease" && *vol.Delta > 15 {
		severity := SeverityWarning
		if *vol.Delta > 25 {
			severity = SeverityCritical
		}
		annual := math.Round(vol.Value * (*vol.Delta / 100) * cfg.RevenuePerCase)

		ins := Insight{
			ID:       "scheduling-volume-decline",
			Category: CategoryScheduling,
			Severity: severity,
			Title:    "Case Volume Is Declining",
			Body: fmt.Sprintf("Case volume dropped %.0f%% versus the prior period. A decline this size usually traces to referral patterns or block availability, both worth a look now rather than next quarter.",
				*vol.Delta),
			Action:       "Compare referral and booking trends with the prior period",
			DrillThrough: drill(DrillScheduling),
		}
		if annual > 0 {
			ins.FinancialImpact = revenueAtRisk(annual)
		}
		insights = append(insights, ins)
	}

	return insights
}
