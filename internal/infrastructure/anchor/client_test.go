package anchor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestGetChallenge(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth", r.URL.Path)
			require.Equal(t, "acct", r.URL.Query().Get("account"))
			// nolint:all
			json.NewEncoder(w).Encode(map[string]string{
				"transaction": "AAAAAgAAAAB4", "network_passphrase": "Test Net",
			})
		}))
		defer srv.Close()

		envelope, err := NewClient().GetChallenge(ctx, "acct", srv.URL)
		require.NoError(t, err)
		require.Equal(t, "AAAAAgAAAAB4", envelope.Transaction)
	})

	t.Run("malformed challenge surfaces as anchor error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			// nolint:all
			w.Write([]byte(`{"transaction":"not base64!!"}`))
		}))
		defer srv.Close()

		_, err := NewClient().GetChallenge(ctx, "acct", srv.URL)
		var anchorErr *domain.AnchorError
		require.ErrorAs(t, err, &anchorErr)
	})

	t.Run("server error is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewClient().GetChallenge(ctx, "acct", srv.URL)
		var netErr *domain.NetworkError
		require.ErrorAs(t, err, &netErr)
		require.True(t, domain.IsTransient(err))
	})

	t.Run("unreachable authority is transient", func(t *testing.T) {
		_, err := NewClient().GetChallenge(ctx, "acct", "http://127.0.0.1:1")
		require.True(t, domain.IsTransient(err))
	})
}

func TestExchangeToken(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "signed-envelope", req["transaction"])
			// nolint:all
			json.NewEncoder(w).Encode(map[string]string{"token": "jwt-token"})
		}))
		defer srv.Close()

		token, err := NewClient().ExchangeToken(ctx, "signed-envelope", srv.URL)
		require.NoError(t, err)
		require.Equal(t, "jwt-token", token)
	})

	t.Run("rejection is an invalid signature", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			// nolint:all
			json.NewEncoder(w).Encode(map[string]string{"error": "signature mismatch"})
		}))
		defer srv.Close()

		_, err := NewClient().ExchangeToken(ctx, "signed-envelope", srv.URL)
		var sigErr *domain.InvalidSignatureError
		require.ErrorAs(t, err, &sigErr)
		require.False(t, domain.IsTransient(err))
	})

	t.Run("empty token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			// nolint:all
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		_, err := NewClient().ExchangeToken(ctx, "signed-envelope", srv.URL)
		var anchorErr *domain.AnchorError
		require.ErrorAs(t, err, &anchorErr)
	})
}

func TestCreateInteractive(t *testing.T) {
	t.Run("deposit", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/transactions/deposit/interactive", r.URL.Path)
			require.Equal(t, "Bearer jwt-token", r.Header.Get("Authorization"))
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "USDC", req["asset_code"])
			require.Equal(t, "100", req["amount"])
			// nolint:all
			json.NewEncoder(w).Encode(map[string]string{
				"id": "transfer-1", "url": "https://anchor/interactive",
			})
		}))
		defer srv.Close()

		session, err := NewClient().CreateDeposit(
			ctx, "jwt-token", srv.URL, "acct", "USDC", decimal.NewFromInt(100),
		)
		require.NoError(t, err)
		require.Equal(t, "transfer-1", session.Id)
		require.Equal(t, "https://anchor/interactive", session.Url)
	})

	t.Run("withdrawal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/transactions/withdraw/interactive", r.URL.Path)
			// nolint:all
			json.NewEncoder(w).Encode(map[string]string{"id": "transfer-2", "url": "u"})
		}))
		defer srv.Close()

		session, err := NewClient().CreateWithdrawal(
			ctx, "jwt-token", srv.URL, "acct", "USDC", decimal.NewFromInt(50),
		)
		require.NoError(t, err)
		require.Equal(t, "transfer-2", session.Id)
	})

	t.Run("missing transfer id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			// nolint:all
			w.Write([]byte(`{"url":"u"}`))
		}))
		defer srv.Close()

		_, err := NewClient().CreateDeposit(
			ctx, "jwt-token", srv.URL, "acct", "USDC", decimal.NewFromInt(100),
		)
		var anchorErr *domain.AnchorError
		require.ErrorAs(t, err, &anchorErr)
	})
}

func TestGetTransferStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction", r.URL.Path)
		require.Equal(t, "transfer-1", r.URL.Query().Get("id"))
		// nolint:all
		w.Write([]byte(`{"transaction":{"id":"transfer-1","status":"pending_anchor"}}`))
	}))
	defer srv.Close()

	status, err := NewClient().GetTransferStatus(ctx, "jwt-token", srv.URL, "transfer-1")
	require.NoError(t, err)
	require.Equal(t, "transfer-1", status.Id)
	require.Equal(t, "pending_anchor", status.Status)
}

func TestBaseURL(t *testing.T) {
	require.Equal(t, "https://anchor.example.com", baseURL("anchor.example.com"))
	require.Equal(t, "https://anchor.example.com", baseURL("anchor.example.com/"))
	require.Equal(t, "http://localhost:8080", baseURL("http://localhost:8080"))
	require.Equal(t, "https://anchor.example.com", baseURL("https://anchor.example.com/"))
}
