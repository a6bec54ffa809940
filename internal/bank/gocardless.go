package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
)

const (
	gocardlessLiveURL    = "https://api.gocardless.com"
	gocardlessSandboxURL = "https://api-sandbox.gocardless.com"
	gocardlessVersion    = "2015-07-06"
	gocardlessPageLimit  = 500
)

// GoCardlessClient fetches payments from the GoCardless Pro API.
type GoCardlessClient struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

// NewGoCardlessClient creates a client for the given environment. The access
// token is carried in the account's secret id.
func NewGoCardlessClient(secretID, environment string) (*GoCardlessClient, error) {
	if secretID == "" {
		return nil, fmt.Errorf("gocardless access token is required: %w", common.ErrMissingConfig)
	}

	baseURL := gocardlessSandboxURL
	switch environment {
	case "live":
		baseURL = gocardlessLiveURL
	case "", "sandbox":
	default:
		return nil, fmt.Errorf("unknown gocardless environment %q: %w", environment, common.ErrInvalidConfig)
	}

	return &GoCardlessClient{
		baseURL:     baseURL,
		accessToken: secretID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type gcPayment struct {
	ID          string            `json:"id"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Status      string            `json:"status"`
	CreatedAt   string            `json:"created_at"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type gcPaymentList struct {
	Payments []gcPayment `json:"payments"`
	Meta     struct {
		Cursors struct {
			Before string `json:"before"`
			After  string `json:"after"`
		} `json:"cursors"`
	} `json:"meta"`
}

// FetchTransactions lists payments created in the date range. Payments
// represent money movements in GoCardless; amounts arrive as integer cents
// and payment ids are stable, so they become external ids directly.
func (c *GoCardlessClient) FetchTransactions(ctx context.Context, start, end time.Time) ([]model.ExternalTransaction, error) {
	var transactions []model.ExternalTransaction
	after := ""

	for {
		page, err := c.listPayments(ctx, start, after)
		if err != nil {
			return nil, err
		}

		for _, payment := range page.Payments {
			date, err := parseGoCardlessTime(payment.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("failed to parse payment %s created_at: %w", payment.ID, err)
			}
			if date.After(end) {
				continue
			}

			description := payment.Description
			if description == "" {
				description = fmt.Sprintf("Payment %s", payment.ID)
			}

			transactions = append(transactions, model.ExternalTransaction{
				ExternalID:  payment.ID,
				Date:        date,
				Description: description,
				Amount:      model.Cents(payment.Amount),
			})
		}

		if page.Meta.Cursors.After == "" {
			break
		}
		after = page.Meta.Cursors.After
	}

	slog.Debug("fetched gocardless payments", "count", len(transactions))
	return transactions, nil
}

func (c *GoCardlessClient) listPayments(ctx context.Context, since time.Time, after string) (*gcPaymentList, error) {
	u, err := url.Parse(c.baseURL + "/payments")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("created_at[gte]", since.UTC().Format("2006-01-02T15:04:05Z"))
	q.Set("limit", fmt.Sprintf("%d", gocardlessPageLimit))
	if after != "" {
		q.Set("after", after)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("GoCardless-Version", gocardlessVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payments: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("gocardless API rate limited: %w", common.ErrRateLimit)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gocardless API error: %d - %s", resp.StatusCode, string(body))
	}

	var page gcPaymentList
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &page, nil
}

// parseGoCardlessTime accepts created_at with or without fractional seconds.
func parseGoCardlessTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04:05.000Z", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
