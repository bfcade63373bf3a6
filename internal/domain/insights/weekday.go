package insights

import "time"

// WeekdayFinding names a weekday that consistently underperforms the rest of
// the week on a daily metric trace.
type WeekdayFinding struct {
	Day          time.Weekday
	GreenRate    float64
	Observations int
}

type weekdayBucket struct {
	total int
	green int
}

// findWorstDayOfWeek looks for a weekday whose on-time rate trails the rest
// of the week. It returns nil unless the sample can support the claim: at
// least 5 points overall, at least 2 observations on the candidate weekday,
// and a green rate at least 10 percentage points below the mean across
// weekdays with data. Anything closer than that is indistinguishable from
// noise.
func findWorstDayOfWeek(points []DailyPoint) *WeekdayFinding {
	if len(points) < 5 {
		return nil
	}

	var byDay [7]weekdayBucket
	daysWithData := 0
	for _, p := range points {
		wd := p.Date.Weekday()
		if byDay[wd].total == 0 {
			daysWithData++
		}
		byDay[wd].total++
		if p.Color == "green" {
			byDay[wd].green++
		}
	}
	if daysWithData == 0 {
		return nil
	}

	var rateSum float64
	for _, b := range byDay {
		if b.total > 0 {
			rateSum += float64(b.green) / float64(b.total)
		}
	}
	mean := rateSum / float64(daysWithData)

	var worst *WeekdayFinding
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		b := byDay[wd]
		if b.total < 2 {
			continue
		}
		rate := float64(b.green) / float64(b.total)
		if worst == nil || rate < worst.GreenRate {
			worst = &WeekdayFinding{Day: wd, GreenRate: rate, Observations: b.total}
		}
	}
	if worst == nil {
		return nil
	}

	if mean-worst.GreenRate < 0.10 {
		return nil
	}
	return worst
}
