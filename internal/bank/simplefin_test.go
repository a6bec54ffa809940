package bank

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinconductor/coinconductor/internal/model"
)

func TestSimpleFINFetchTransactions(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	posted := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC).Unix()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts", r.URL.Path)
		assert.Equal(t, fmt.Sprintf("%d", start.Unix()), r.URL.Query().Get("start-date"))
		// The end date on the wire is exclusive.
		assert.Equal(t, fmt.Sprintf("%d", end.AddDate(0, 0, 1).Unix()), r.URL.Query().Get("end-date"))

		fmt.Fprintf(w, `{
			"accounts": [{
				"id": "acc1",
				"name": "Checking",
				"transactions": [
					{"id": "tx1", "posted": %d, "amount": "-25.50", "description": "STARBUCKS", "payee": "Starbucks"},
					{"id": "tx2", "posted": %d, "amount": "1500.00", "description": "PAYROLL"},
					{"id": "tx3", "posted": %d, "amount": "-9.99", "description": "HOLD", "pending": true}
				]
			}]
		}`, posted, posted, posted)
	}))
	defer server.Close()

	client := NewSimpleFINClient(server.URL)
	transactions, err := client.FetchTransactions(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, transactions, 2, "pending transactions are skipped")

	debit := transactions[0]
	assert.Equal(t, "acc1_tx1", debit.ExternalID)
	assert.Equal(t, "STARBUCKS", debit.Description)
	assert.Equal(t, "Starbucks", debit.Payee)
	assert.Equal(t, model.Cents(2550), debit.Amount, "bank debits become positive expenses")

	credit := transactions[1]
	assert.Equal(t, model.Cents(-150000), credit.Amount)
}

func TestSimpleFINFetchTransactionsDateFilter(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	outside := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC).Unix()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{
			"accounts": [{
				"id": "acc1",
				"transactions": [
					{"id": "tx1", "posted": %d, "amount": "-5.00", "description": "LATE"}
				]
			}]
		}`, outside)
	}))
	defer server.Close()

	client := NewSimpleFINClient(server.URL)
	transactions, err := client.FetchTransactions(context.Background(), start, end)
	require.NoError(t, err)
	assert.Empty(t, transactions, "bridges may return records outside the requested window")
}

func TestSimpleFINFetchTransactionsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "access revoked", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewSimpleFINClient(server.URL)
	_, err := client.FetchTransactions(context.Background(), time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestClaimAccessURL(t *testing.T) {
	accessServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer accessServer.Close()

	claimServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		fmt.Fprintf(w, "%s/access\n", accessServer.URL)
	}))
	defer claimServer.Close()

	token := base64.URLEncoding.EncodeToString([]byte(claimServer.URL))
	accessURL, err := ClaimAccessURL(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, accessServer.URL+"/access", accessURL, "trailing whitespace is trimmed")
}

func TestClaimAccessURLBadToken(t *testing.T) {
	_, err := ClaimAccessURL(context.Background(), "not base64!!!")
	assert.Error(t, err)

	notAURL := base64.URLEncoding.EncodeToString([]byte("gopher://nope"))
	_, err = ClaimAccessURL(context.Background(), notAURL)
	assert.Error(t, err)
}
