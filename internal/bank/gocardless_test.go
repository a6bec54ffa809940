package bank

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
)

func TestNewGoCardlessClient(t *testing.T) {
	_, err := NewGoCardlessClient("", "sandbox")
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = NewGoCardlessClient("token", "staging")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	client, err := NewGoCardlessClient("token", "live")
	require.NoError(t, err)
	assert.Equal(t, gocardlessLiveURL, client.baseURL)

	client, err = NewGoCardlessClient("token", "")
	require.NoError(t, err)
	assert.Equal(t, gocardlessSandboxURL, client.baseURL)
}

func TestGoCardlessFetchTransactionsPaginates(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, gocardlessVersion, r.Header.Get("GoCardless-Version"))
		assert.Equal(t, "2025-03-01T00:00:00Z", r.URL.Query().Get("created_at[gte]"))

		if r.URL.Query().Get("after") == "" {
			fmt.Fprint(w, `{
				"payments": [
					{"id": "PM1", "amount": 2500, "created_at": "2025-03-05T10:00:00.000Z", "description": "Gym membership"},
					{"id": "PM2", "amount": 999, "created_at": "2025-03-06T10:00:00.000Z"}
				],
				"meta": {"cursors": {"after": "PM2"}}
			}`)
			return
		}
		assert.Equal(t, "PM2", r.URL.Query().Get("after"))
		fmt.Fprint(w, `{
			"payments": [
				{"id": "PM3", "amount": 1200, "created_at": "2025-04-05T10:00:00Z", "description": "Too late"}
			],
			"meta": {"cursors": {"after": ""}}
		}`)
	}))
	defer server.Close()

	client := &GoCardlessClient{
		httpClient:  server.Client(),
		baseURL:     server.URL,
		accessToken: "secret-token",
	}

	transactions, err := client.FetchTransactions(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, transactions, 2, "records past the end date are dropped")

	assert.Equal(t, "PM1", transactions[0].ExternalID)
	assert.Equal(t, "Gym membership", transactions[0].Description)
	assert.Equal(t, model.Cents(2500), transactions[0].Amount)

	assert.Equal(t, "Payment PM2", transactions[1].Description, "missing descriptions get a placeholder")
}

func TestGoCardlessFetchTransactionsRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := &GoCardlessClient{
		httpClient:  server.Client(),
		baseURL:     server.URL,
		accessToken: "secret-token",
	}

	_, err := client.FetchTransactions(context.Background(), time.Now().AddDate(0, -1, 0), time.Now())
	assert.ErrorIs(t, err, common.ErrRateLimit)
}

func TestParseGoCardlessTime(t *testing.T) {
	withFraction, err := parseGoCardlessTime("2025-03-05T10:00:00.123Z")
	require.NoError(t, err)
	assert.Equal(t, 2025, withFraction.Year())

	plain, err := parseGoCardlessTime("2025-03-05T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.March, plain.Month())

	_, err = parseGoCardlessTime("yesterday")
	assert.Error(t, err)
}
