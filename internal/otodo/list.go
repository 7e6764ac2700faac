package otodo

import (
	"sort"
	"time"
)

// SortTasks orders tasks for display: open before completed, overdue first,
// then by due date ascending (dated before undated), then by creation time.
func SortTasks(tasks []Task, today time.Time) {
	day := today.Truncate(24 * time.Hour)
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		aDue, aOK := parseDate(a.DueDate)
		bDue, bOK := parseDate(b.DueDate)
		aOverdue := aOK && aDue.Before(day)
		bOverdue := bOK && bDue.Before(day)
		if aOverdue != bOverdue {
			return aOverdue
		}
		if aOK && bOK && !aDue.Equal(bDue) {
			return aDue.Before(bDue)
		}
		if aOK != bOK {
			return aOK
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// Due state values for list rendering.
const (
	DueOverdue  = "overdue"
	DueToday    = "today"
	DueUpcoming = "upcoming"
)

// DueInfo is the display label and state for a task's due date.
type DueInfo struct {
	Label string
	State string
}

// Due classifies a due date relative to today. An empty or unparsable date
// yields an empty DueInfo.
func Due(dueDate string, today time.Time) DueInfo {
	due, ok := parseDate(dueDate)
	if !ok {
		return DueInfo{}
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case due.Before(day):
		return DueInfo{Label: "Overdue", State: DueOverdue}
	case due.Equal(day):
		return DueInfo{Label: "Today", State: DueToday}
	case due.Equal(day.AddDate(0, 0, 1)):
		return DueInfo{Label: "Tomorrow", State: DueUpcoming}
	default:
		return DueInfo{Label: due.Format("Jan 2"), State: DueUpcoming}
	}
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
