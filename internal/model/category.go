package model

import (
	"regexp"
	"time"
)

var monthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidMonth reports whether s is a YYYY-MM month key.
func ValidMonth(s string) bool {
	return monthRe.MatchString(s)
}

// Category is an envelope: a named budget bucket scoped to one month.
// BudgetAmount is the fixed allocation for that month and is never negative.
type Category struct {
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Name         string
	Month        string // YYYY-MM
	ID           int64
	UserID       int64
	BudgetAmount Cents
}

// CategoryBalance is a category with its derived spend for the month,
// computed at read time and never stored.
type CategoryBalance struct {
	Category
	Spent     Cents
	Remaining Cents
}
