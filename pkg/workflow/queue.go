package workflow

import (
	"cmp"
	"slices"
	"time"

	"github.com/dukex/signoff/pkg/models"
)

// SortByPriority orders subs for reviewer queues: urgent, high, normal, low,
// then insertion order.
func SortByPriority(subs []*models.Submission) {
	slices.SortStableFunc(subs, func(a, b *models.Submission) int {
		if byRank := cmp.Compare(b.Priority.Rank(), a.Priority.Rank()); byRank != 0 {
			return byRank
		}

		return cmp.Compare(a.Sequence, b.Sequence)
	})
}

// Overdue filters subs down to the ones overdue at now.
func Overdue(subs []*models.Submission, now time.Time) []*models.Submission {
	overdue := make([]*models.Submission, 0)

	for _, sub := range subs {
		if IsOverdue(sub, now) {
			overdue = append(overdue, sub)
		}
	}

	return overdue
}
