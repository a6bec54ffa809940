package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
)

// Config contains classifier backend configuration.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewClient creates a classifier backend based on the configured provider.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic", "claude":
		return newAnthropicClient(cfg)
	case "openai", "gpt":
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported classifier provider %q: %w", cfg.Provider, common.ErrInvalidConfig)
	}
}

// Classifier suggests an envelope category for a transaction. Implementations
// return common.ErrNoSuggestion when none of the offered categories fit.
type Classifier interface {
	Suggest(ctx context.Context, txn model.Transaction, categories []model.Category) (categoryID int64, confidence float64, err error)
}

// llmClassifier asks a model backend to pick from the user's categories.
type llmClassifier struct {
	client Client
}

// NewClassifier wraps a backend client in the Classifier interface.
func NewClassifier(client Client) Classifier {
	return &llmClassifier{client: client}
}

// Suggest builds a prompt from the transaction and offered categories, then
// maps the returned category name back to its id. Names are matched
// case-insensitively; an unknown name means the model invented a category and
// yields ErrNoSuggestion.
func (c *llmClassifier) Suggest(ctx context.Context, txn model.Transaction, categories []model.Category) (int64, float64, error) {
	if len(categories) == 0 {
		return 0, 0, fmt.Errorf("no categories to choose from: %w", common.ErrNoSuggestion)
	}

	prompt := buildPrompt(txn, categories)

	resp, err := c.client.Classify(ctx, prompt)
	if err != nil {
		return 0, 0, fmt.Errorf("classification request: %w", err)
	}

	if strings.EqualFold(resp.Category, "none") {
		return 0, 0, common.ErrNoSuggestion
	}

	for _, cat := range categories {
		if strings.EqualFold(cat.Name, resp.Category) {
			return cat.ID, resp.Confidence, nil
		}
	}

	return 0, 0, fmt.Errorf("model suggested unknown category %q: %w", resp.Category, common.ErrNoSuggestion)
}

// buildPrompt formats a single-transaction classification request.
func buildPrompt(txn model.Transaction, categories []model.Category) string {
	var sb strings.Builder

	sb.WriteString("Classify this financial transaction into one of the available categories.\n\n")
	sb.WriteString("Transaction:\n")
	fmt.Fprintf(&sb, "- Description: %s\n", txn.Description)
	fmt.Fprintf(&sb, "- Amount: %s\n", txn.Amount.String())
	fmt.Fprintf(&sb, "- Date: %s\n", txn.Date.Format("2006-01-02"))
	if txn.Notes != "" {
		fmt.Fprintf(&sb, "- Notes: %s\n", txn.Notes)
	}

	sb.WriteString("\nAvailable categories:\n")
	for _, cat := range categories {
		fmt.Fprintf(&sb, "- %s\n", cat.Name)
	}

	sb.WriteString("\nRespond with JSON in this exact format:\n")
	sb.WriteString(`{"category": "<exact category name from the list, or \"none\" if nothing fits>", "confidence": <0.0 to 1.0>}`)
	sb.WriteString("\n")

	return sb.String()
}
