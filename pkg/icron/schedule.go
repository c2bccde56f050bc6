package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

type TriggerInfo struct {
	Next       time.Time
	Last       time.Time
	Expression string

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

// Parse accepts the standard five-field syntax and descriptors such as @daily.
func Parse(cronExpr string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return schedule, nil
}

// GetTriggerInfo reports the last and next firing of cronExpr around refTime.
// Last is searched hour by hour up to a year back and stays zero when the
// expression never fired in that window.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := Parse(cronExpr)
	if err != nil {
		return nil, err
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       schedule.Next(refTime),
	}

	for i := 1; i <= 366*24; i++ {
		from := refTime.Add(-time.Duration(i) * time.Hour)
		candidate := schedule.Next(from)
		if candidate.After(refTime) {
			continue
		}
		// walk forward to the latest firing not after refTime
		for {
			next := schedule.Next(candidate)
			if next.After(refTime) {
				break
			}
			candidate = next
		}
		info.Last = candidate
		break
	}

	if !info.Last.IsZero() {
		info.TimeSinceLast = refTime.Sub(info.Last)
	}
	info.TimeUntilNext = info.Next.Sub(refTime)
	return info, nil
}
