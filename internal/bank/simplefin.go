// Package bank implements the provider feeds that turn external bank data
// into normalized transactions for the import reconciler.
package bank

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coinconductor/coinconductor/internal/model"
)

// SimpleFINClient fetches transactions through a SimpleFIN access URL.
type SimpleFINClient struct {
	accessURL  string
	httpClient *http.Client
}

// SimpleFIN API response types.
type sfAccountSet struct {
	Accounts []sfAccount `json:"accounts"`
}

type sfAccount struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Currency     string          `json:"currency"`
	Balance      string          `json:"balance"`
	Transactions []sfTransaction `json:"transactions"`
}

type sfTransaction struct {
	ID          string `json:"id"`
	Posted      int64  `json:"posted"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payee       string `json:"payee"`
	Pending     bool   `json:"pending"`
}

// NewSimpleFINClient creates a client for an already-claimed access URL.
func NewSimpleFINClient(accessURL string) *SimpleFINClient {
	return &SimpleFINClient{
		accessURL: accessURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ClaimAccessURL exchanges a SimpleFIN claim token for an access URL. Tokens
// are base64-encoded claim URLs; claiming is a one-time POST.
func ClaimAccessURL(ctx context.Context, token string) (string, error) {
	decodedBytes, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		decodedBytes, err = base64.StdEncoding.DecodeString(token)
		if err != nil {
			return "", fmt.Errorf("failed to decode SimpleFIN token: %w", err)
		}
	}

	claimURL := string(decodedBytes)
	if !strings.HasPrefix(claimURL, "http://") && !strings.HasPrefix(claimURL, "https://") {
		return "", fmt.Errorf("decoded token is not a valid URL: %s", claimURL)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create claim request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to claim access URL: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to claim SimpleFIN access: %d - %s", resp.StatusCode, string(body))
	}

	accessURLBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read access URL: %w", err)
	}

	accessURL := strings.TrimSpace(string(accessURLBytes))
	if !strings.HasPrefix(accessURL, "http://") && !strings.HasPrefix(accessURL, "https://") {
		return "", fmt.Errorf("invalid access URL received: %s", accessURL)
	}

	return accessURL, nil
}

// FetchTransactions fetches posted transactions in the date range. Pending
// transactions are skipped; amounts are negated so debits come out positive.
func (c *SimpleFINClient) FetchTransactions(ctx context.Context, start, end time.Time) ([]model.ExternalTransaction, error) {
	u, err := url.Parse(c.accessURL + "/accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("start-date", fmt.Sprintf("%d", start.Unix()))
	// SimpleFIN's end-date is exclusive.
	q.Set("end-date", fmt.Sprintf("%d", end.AddDate(0, 0, 1).Unix()))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	slog.Debug("requesting SimpleFIN transactions",
		"start_date", start.Format("2006-01-02"),
		"end_date", end.Format("2006-01-02"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("SimpleFIN API error: %d - %s", resp.StatusCode, string(body))
	}

	var accountSet sfAccountSet
	if err := json.NewDecoder(resp.Body).Decode(&accountSet); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var transactions []model.ExternalTransaction
	for _, account := range accountSet.Accounts {
		for _, tx := range account.Transactions {
			if tx.Pending {
				continue
			}

			date := time.Unix(tx.Posted, 0).UTC()
			if date.Before(start) || date.After(end) {
				continue
			}

			amount, err := model.ParseCents(tx.Amount)
			if err != nil {
				return nil, fmt.Errorf("failed to parse amount %s: %w", tx.Amount, err)
			}

			transactions = append(transactions, model.ExternalTransaction{
				ExternalID:  fmt.Sprintf("%s_%s", account.ID, tx.ID),
				Date:        date,
				Description: tx.Description,
				Payee:       strings.TrimSpace(tx.Payee),
				// SimpleFIN signs amounts bank-side: debits negative.
				Amount: -amount,
			})
		}
	}

	return transactions, nil
}
