package issuer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbank-service/dbank_service/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error", "test")
}

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		MaxRetries: 1,
	}, testLogger())
}

func TestCreateCard(t *testing.T) {
	t.Run("sends the api key and decodes the card", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/cards", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

			var req CreateCardRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "shopping", req.Nickname)

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(Card{
				ID:       "iss_123",
				Status:   "active",
				Last4:    "4242",
				Currency: "USD",
			})
		}))
		defer server.Close()

		card, err := newTestClient(server.URL).CreateCard(context.Background(), &CreateCardRequest{
			Nickname: "shopping",
			Currency: "USD",
		})

		require.NoError(t, err)
		assert.Equal(t, "iss_123", card.ID)
		assert.Equal(t, "4242", card.Last4)
	})

	t.Run("surfaces a typed api error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{
				"code":    "INVALID_CURRENCY",
				"message": "currency not supported",
			})
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).CreateCard(context.Background(), &CreateCardRequest{Currency: "EUR"})

		require.Error(t, err)
		var apiErr *ErrorResponse
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
		assert.Equal(t, "INVALID_CURRENCY", apiErr.Code)
		assert.False(t, apiErr.IsRetryable())
	})

	t.Run("treats an html error page as upstream failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("<html><body>Maintenance</body></html>"))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).CreateCard(context.Background(), &CreateCardRequest{Currency: "USD"})

		require.Error(t, err)
		var apiErr *ErrorResponse
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Equal(t, "UPSTREAM_ERROR", apiErr.Code)
	})
}

func TestTopUpCard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/cards/iss_123/topup", r.URL.Path)

		var req TopUpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Amount.Equal(decimal.NewFromInt(30)))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Card{ID: "iss_123", Balance: decimal.NewFromInt(30)})
	}))
	defer server.Close()

	card, err := newTestClient(server.URL).TopUpCard(context.Background(), "iss_123", &TopUpRequest{
		Amount: decimal.NewFromInt(30),
	})

	require.NoError(t, err)
	assert.True(t, card.Balance.Equal(decimal.NewFromInt(30)))
}

func TestCircuitBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	// Five consecutive transport failures trip the breaker.
	for i := 0; i < 5; i++ {
		_, err := client.GetCard(context.Background(), "iss_123")
		require.Error(t, err)
	}

	_, err := client.GetCard(context.Background(), "iss_123")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestListTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/cards/iss_123/transactions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ListTransactionsResponse{
			Data: []Transaction{{ID: "txn_1", MerchantName: "Grocer", Status: "completed"}},
		})
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).ListTransactions(context.Background(), "iss_123")

	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Grocer", resp.Data[0].MerchantName)
}
