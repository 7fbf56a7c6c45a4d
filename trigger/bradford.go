package trigger

import (
	"github.com/shopspring/decimal"

	"github.com/warp/absence-engine/sickness"
)

// =============================================================================
// BRADFORD FACTOR - spells^2 x total days
// =============================================================================

// BradfordScore computes spells squared times total working days lost. The
// heuristic weights frequent short absences above infrequent long ones: two
// spells totalling 10 days score 40, one spell of 10 days scores 10.
func BradfordScore(spells int, totalDays decimal.Decimal) decimal.Decimal {
	s := decimal.NewFromInt(int64(spells))
	return s.Mul(s).Mul(totalDays)
}

// ScoreHistory computes the Bradford Factor over an employee's full absence
// history. Every case is one spell; open-ended cases count as a spell but
// contribute no days until an end date fixes workingDaysLost.
func ScoreHistory(cases []sickness.SicknessCase) decimal.Decimal {
	spells := len(cases)
	total := decimal.Zero
	for _, c := range cases {
		if c.WorkingDaysLost != nil {
			total = total.Add(*c.WorkingDaysLost)
		}
	}
	return BradfordScore(spells, total)
}
