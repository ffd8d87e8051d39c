package recovery

import (
	"sort"
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
)

// urgencyEpsilon floors the remaining-hours divisor so a case seconds from
// its deadline gets a huge but finite priority instead of a division blowup.
const urgencyEpsilon = 0.01

// RankedCase pairs a case with its computed priority for the work queue.
type RankedCase struct {
	Case           models.RecoveryCase `json:"case"`
	Priority       float64             `json:"priority"`
	HoursRemaining float64             `json:"hours_remaining"`
}

// Rank orders cases by urgency: amount at risk divided by hours remaining,
// so a small invoice about to expire outranks a large one with days of
// runway. Cases whose window already closed rank at priority zero, behind
// every live case. Ties break on the earlier deadline; the sort is stable
// beyond that.
func Rank(cases []models.RecoveryCase, now time.Time) []RankedCase {
	ranked := make([]RankedCase, 0, len(cases))
	for _, rc := range cases {
		hours := rc.HoursRemaining(now)
		entry := RankedCase{Case: rc, HoursRemaining: hours}
		if rc.EffectiveStatus(now) == models.CaseOpen && hours > 0 {
			divisor := hours
			if divisor < urgencyEpsilon {
				divisor = urgencyEpsilon
			}
			entry.Priority = float64(rc.AmountAtRisk) / divisor
		}
		ranked = append(ranked, entry)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		return ranked[i].Case.DeadlineAt.Before(ranked[j].Case.DeadlineAt)
	})
	return ranked
}
