package classify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/service"
)

const (
	defaultConcurrency   = 4
	defaultCallTimeout   = 20 * time.Second
	defaultMinConfidence = 0.5
)

// Assigner applies a category suggestion to a transaction. Satisfied by
// ledger.Service.
type Assigner interface {
	Assign(ctx context.Context, userID int64, transactionID string, categoryID *int64) (*model.Transaction, error)
}

// Outcome reports the result of classifying one transaction.
type Outcome struct {
	TransactionID string
	Description   string
	CategoryID    int64
	CategoryName  string
	Confidence    float64
	Applied       bool
	Err           error
}

// Dispatcher fans unassigned transactions out to the classifier and applies
// accepted suggestions.
type Dispatcher struct {
	storage       service.Storage
	assigner      Assigner
	classifier    Classifier
	concurrency   int
	callTimeout   time.Duration
	minConfidence float64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency bounds the number of in-flight classifier calls.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithCallTimeout sets the per-transaction classifier deadline.
func WithCallTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.callTimeout = t
		}
	}
}

// WithMinConfidence sets the confidence below which suggestions are discarded.
func WithMinConfidence(c float64) Option {
	return func(d *Dispatcher) {
		if c > 0 {
			d.minConfidence = c
		}
	}
}

// NewDispatcher creates a Dispatcher with the given storage, assigner, and
// classifier.
func NewDispatcher(storage service.Storage, assigner Assigner, classifier Classifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		storage:       storage,
		assigner:      assigner,
		classifier:    classifier,
		concurrency:   defaultConcurrency,
		callTimeout:   defaultCallTimeout,
		minConfidence: defaultMinConfidence,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CategorizeUnassigned classifies every transaction without a category and
// applies suggestions that clear the confidence threshold. Individual
// failures leave that transaction unassigned and are reported in its Outcome;
// the batch itself only fails if the context is canceled or the user has no
// categories to offer.
func (d *Dispatcher) CategorizeUnassigned(ctx context.Context, userID int64) ([]Outcome, error) {
	categories, err := d.storage.ListCategories(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, common.ErrNoSuggestion
	}

	txns, err := d.storage.ListTransactions(ctx, userID, service.TransactionFilter{Unassigned: true})
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, nil
	}

	nameByID := make(map[int64]string, len(categories))
	for _, cat := range categories {
		nameByID[cat.ID] = cat.Name
	}

	// Each goroutine writes its own slot, so no lock is needed.
	outcomes := make([]Outcome, len(txns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, txn := range txns {
		i, txn := i, txn
		g.Go(func() error {
			outcomes[i] = d.classifyOne(gctx, userID, txn, categories, nameByID)
			// Only context cancellation stops the batch.
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (d *Dispatcher) classifyOne(ctx context.Context, userID int64, txn model.Transaction, categories []model.Category, nameByID map[int64]string) Outcome {
	out := Outcome{TransactionID: txn.ID, Description: txn.Description}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	categoryID, confidence, err := d.classifier.Suggest(callCtx, txn, categories)
	if err != nil {
		if !errors.Is(err, common.ErrNoSuggestion) {
			slog.Warn("classification failed",
				"transaction_id", txn.ID,
				"error", err)
		}
		out.Err = err
		return out
	}

	out.CategoryID = categoryID
	out.CategoryName = nameByID[categoryID]
	out.Confidence = confidence

	if confidence < d.minConfidence {
		slog.Debug("suggestion below confidence threshold",
			"transaction_id", txn.ID,
			"category", out.CategoryName,
			"confidence", confidence)
		out.Err = common.ErrNoSuggestion
		return out
	}

	if _, err := d.assigner.Assign(ctx, userID, txn.ID, &categoryID); err != nil {
		slog.Warn("failed to apply suggestion",
			"transaction_id", txn.ID,
			"category_id", categoryID,
			"error", err)
		out.Err = err
		return out
	}

	out.Applied = true
	return out
}
