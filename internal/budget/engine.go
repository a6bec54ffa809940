// Package budget implements the allocation engine: derived period and
// envelope aggregates, recomputed from the ledger store on every read.
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/service"
)

// AllocationView is one envelope with its derived balances. Spent is the
// signed sum of assigned transactions inside the period's date range;
// callers take the magnitude only for display.
type AllocationView struct {
	CategoryName    string
	ID              int64
	CategoryID      int64
	AllocatedAmount model.Cents
	Spent           model.Cents
	Remaining       model.Cents
}

// PeriodSummary is the full derived view of one budget period. Nothing in it
// is stored; it is a pure function of the store's committed state at call
// time. Unallocated may be negative: over-allocating income is surfaced, not
// rejected.
type PeriodSummary struct {
	Period      model.BudgetPeriod
	Allocations []AllocationView

	TotalIncome    model.Cents
	TotalAllocated model.Cents
	TotalSpent     model.Cents
	TotalRemaining model.Cents
	Unallocated    model.Cents

	// UnallocatedSpend is spend on categories that have no envelope in this
	// period. It is surfaced separately, never silently dropped.
	UnallocatedSpend model.Cents
	// UnassignedSpend is spend on transactions with no category at all.
	UnassignedSpend model.Cents
}

// Engine computes period and category aggregates. It holds no state and
// performs no locking: every call recomputes from the store, so it can see a
// stale snapshot but never a torn write.
type Engine struct {
	storage service.Storage
}

// New creates an allocation engine over the given store.
func New(storage service.Storage) *Engine {
	return &Engine{storage: storage}
}

// Summarize recomputes the derived view of a period.
func (e *Engine) Summarize(ctx context.Context, userID, periodID int64) (*PeriodSummary, error) {
	period, err := e.storage.GetPeriod(ctx, userID, periodID)
	if err != nil {
		return nil, err
	}

	allocations, err := e.storage.GetAllocationsForPeriod(ctx, userID, periodID)
	if err != nil {
		return nil, err
	}

	// One pass over the period's transactions; everything else is derived
	// from this map.
	transactions, err := e.storage.ListTransactions(ctx, userID, service.TransactionFilter{
		StartDate: &period.StartDate,
		EndDate:   &period.EndDate,
	})
	if err != nil {
		return nil, err
	}

	spentByCategory := make(map[int64]model.Cents)
	var unassigned model.Cents
	for _, txn := range transactions {
		if txn.CategoryID == nil {
			unassigned += txn.Amount
			continue
		}
		spentByCategory[*txn.CategoryID] += txn.Amount
	}

	summary := &PeriodSummary{
		Period:          *period,
		TotalIncome:     period.TotalIncome,
		UnassignedSpend: unassigned,
	}

	allocated := make(map[int64]bool, len(allocations))
	for _, alloc := range allocations {
		category, err := e.storage.GetCategory(ctx, userID, alloc.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("allocation %d: %w", alloc.ID, err)
		}

		spent := spentByCategory[alloc.CategoryID]
		view := AllocationView{
			ID:              alloc.ID,
			CategoryID:      alloc.CategoryID,
			CategoryName:    category.Name,
			AllocatedAmount: alloc.AllocatedAmount,
			Spent:           spent,
			Remaining:       alloc.AllocatedAmount - spent,
		}
		summary.Allocations = append(summary.Allocations, view)
		summary.TotalAllocated += alloc.AllocatedAmount
		summary.TotalSpent += spent
		allocated[alloc.CategoryID] = true
	}

	// Spend against categories with no envelope in this period: counted in
	// its own bucket so deleting an allocation never hides transactions.
	for categoryID, spent := range spentByCategory {
		if !allocated[categoryID] {
			summary.UnallocatedSpend += spent
		}
	}

	summary.TotalRemaining = summary.TotalAllocated - summary.TotalSpent
	summary.Unallocated = summary.TotalIncome - summary.TotalAllocated
	return summary, nil
}

// CategoryBalance returns a category with its spend for the category's
// month. The month window is the calendar month; categories are month-scoped
// by design.
func (e *Engine) CategoryBalance(ctx context.Context, userID, categoryID int64) (*model.CategoryBalance, error) {
	category, err := e.storage.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}

	start, err := time.Parse("2006-01", category.Month)
	if err != nil {
		return nil, fmt.Errorf("category %d has invalid month %q: %w", categoryID, category.Month, err)
	}
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)

	transactions, err := e.storage.ListTransactions(ctx, userID, service.TransactionFilter{
		CategoryID: &categoryID,
		StartDate:  &start,
		EndDate:    &end,
	})
	if err != nil {
		return nil, err
	}

	var spent model.Cents
	for _, txn := range transactions {
		spent += txn.Amount
	}

	return &model.CategoryBalance{
		Category:  *category,
		Spent:     spent,
		Remaining: category.BudgetAmount - spent,
	}, nil
}
