// Package aging computes overdue state for pending invoices. All
// functions are pure over (dueDate, now).
package aging

import (
	"time"
)

// IsOverdue reports whether the due date has passed.
func IsOverdue(dueDate, now time.Time) bool {
	return dueDate.Before(now)
}

// DaysOverdue returns the count of whole days past the due date,
// truncating any partial day. Zero when not overdue.
func DaysOverdue(dueDate, now time.Time) int {
	if !IsOverdue(dueDate, now) {
		return 0
	}
	return int(now.Sub(dueDate) / (24 * time.Hour))
}
