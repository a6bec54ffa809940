package model

import "time"

// BudgetPeriod is a time-bounded budget with a total income to partition.
// Periods for one user never overlap in date range.
type BudgetPeriod struct {
	StartDate   time.Time
	EndDate     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string
	ID          int64
	UserID      int64
	TotalIncome Cents
}

// Covers reports whether the date falls inside the period, inclusive.
func (p *BudgetPeriod) Covers(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}

// Overlaps reports whether two date ranges intersect.
func (p *BudgetPeriod) Overlaps(start, end time.Time) bool {
	return !p.EndDate.Before(start) && !p.StartDate.After(end)
}

// Allocation links a category to a budget period with a fixed amount.
// The (period, category) pair is unique. Spent and remaining are derived by
// the allocation engine, never stored.
type Allocation struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ID              int64
	BudgetPeriodID  int64
	CategoryID      int64
	AllocatedAmount Cents
}
