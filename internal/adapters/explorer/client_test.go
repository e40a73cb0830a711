package explorer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbank-service/dbank_service/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error", "test")
}

func TestNewClient(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		client := NewClient(Config{}, testLogger())
		assert.Equal(t, "https://api.etherscan.io/v2/api", client.config.BaseURL)
		assert.Equal(t, 3, client.config.MaxRetries)
	})

	t.Run("respects custom base URL", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "https://custom.api"}, testLogger())
		assert.Equal(t, "https://custom.api", client.config.BaseURL)
	})
}

func TestGetTransactionReceipt(t *testing.T) {
	t.Run("returns receipt on success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "8453", r.URL.Query().Get("chainid"))
			assert.Equal(t, "proxy", r.URL.Query().Get("module"))
			assert.Equal(t, "eth_getTransactionReceipt", r.URL.Query().Get("action"))
			assert.Equal(t, "0xabc", r.URL.Query().Get("txhash"))
			assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))

			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{
				"transactionHash":"0xabc",
				"status":"0x1",
				"to":"0xdead",
				"logs":[{"address":"0xtoken","topics":["0xt0","0xt1","0xt2"],"data":"0x01"}]
			}}`)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", MaxRetries: 1}, testLogger())
		receipt, err := client.GetTransactionReceipt(context.Background(), 8453, "0xabc")

		require.NoError(t, err)
		assert.Equal(t, "0x1", receipt.Status)
		require.Len(t, receipt.Logs, 1)
		assert.Equal(t, "0xtoken", receipt.Logs[0].Address)
	})

	t.Run("maps null result to not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":null}`)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, MaxRetries: 1}, testLogger())
		_, err := client.GetTransactionReceipt(context.Background(), 1, "0xmissing")

		assert.ErrorIs(t, err, ErrTxNotFound)
	})

	t.Run("maps NOTOK envelope to not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":"Error! Invalid txhash"}`)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, MaxRetries: 1}, testLogger())
		_, err := client.GetTransactionReceipt(context.Background(), 1, "0xbad")

		assert.ErrorIs(t, err, ErrTxNotFound)
	})
}

func TestGetTransactionByHash(t *testing.T) {
	t.Run("returns transaction on success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "eth_getTransactionByHash", r.URL.Query().Get("action"))
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{
				"hash":"0xabc",
				"from":"0xsender",
				"to":"0xrecipient",
				"value":"0xde0b6b3a7640000"
			}}`)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, MaxRetries: 1}, testLogger())
		tx, err := client.GetTransactionByHash(context.Background(), 1, "0xabc")

		require.NoError(t, err)
		assert.Equal(t, "0xrecipient", tx.To)
		assert.Equal(t, "0xde0b6b3a7640000", tx.Value)
	})

	t.Run("propagates server errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, MaxRetries: 1}, testLogger())
		_, err := client.GetTransactionByHash(context.Background(), 1, "0xabc")

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrTxNotFound)
	})
}
