package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func marchPeriod() BudgetPeriod {
	return BudgetPeriod{
		StartDate: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC),
	}
}

func TestPeriodCovers(t *testing.T) {
	p := marchPeriod()

	assert.True(t, p.Covers(p.StartDate), "start date is inclusive")
	assert.True(t, p.Covers(p.EndDate), "end date is inclusive")
	assert.True(t, p.Covers(time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)))
	assert.False(t, p.Covers(time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Covers(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPeriodOverlaps(t *testing.T) {
	p := marchPeriod()

	feb := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	apr := time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC)

	assert.True(t, p.Overlaps(feb, apr), "containing range overlaps")
	assert.True(t, p.Overlaps(p.StartDate, p.StartDate), "single shared day overlaps")
	assert.False(t, p.Overlaps(feb, time.Date(2025, time.February, 28, 23, 59, 59, 0, time.UTC)))
	assert.False(t, p.Overlaps(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), apr))
}

func TestValidMonth(t *testing.T) {
	assert.True(t, ValidMonth("2025-03"))
	assert.True(t, ValidMonth("2025-12"))
	assert.False(t, ValidMonth("2025-13"))
	assert.False(t, ValidMonth("2025-00"))
	assert.False(t, ValidMonth("2025-3"))
	assert.False(t, ValidMonth("March 2025"))
	assert.False(t, ValidMonth(""))
}
