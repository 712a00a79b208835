package models

import (
	"time"

	"github.com/Dan9191/budget-service/internal/calendar"
)

// DueSchedule describes how a debt's payment cycle is tracked. It is either
// CalendarDue or MonthlyDue; a nil schedule means the debt has no cycle.
type DueSchedule interface {
	dueSchedule()
}

// CalendarDue tracks cycles by a full due date that rolls forward one month
// each time a cycle is settled or accrued
type CalendarDue struct {
	Date time.Time
}

// MonthlyDue is the legacy day-of-month schedule, guarded by the last month
// that was accrued
type MonthlyDue struct {
	Day              int
	LastAccrualMonth calendar.MonthKey
}

func (CalendarDue) dueSchedule() {}
func (MonthlyDue) dueSchedule()  {}

// ScheduleFields flattens a schedule into its persisted columns
func ScheduleFields(s DueSchedule) (dueDate *time.Time, dueDay *int, lastAccrual string) {
	switch v := s.(type) {
	case CalendarDue:
		d := v.Date
		return &d, nil, ""
	case MonthlyDue:
		day := v.Day
		return nil, &day, v.LastAccrualMonth.String()
	}
	return nil, nil, ""
}

// ScheduleFromFields builds the schedule variant from persisted columns.
// A due date always wins over a due day.
func ScheduleFromFields(dueDate *time.Time, dueDay *int, lastAccrual string) DueSchedule {
	if dueDate != nil && !dueDate.IsZero() {
		return CalendarDue{Date: *dueDate}
	}
	if dueDay != nil && *dueDay > 0 {
		key, err := calendar.ParseMonthKey(lastAccrual)
		if err != nil {
			key = calendar.MonthKey{}
		}
		return MonthlyDue{Day: *dueDay, LastAccrualMonth: key}
	}
	return nil
}
