package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/openlancer/escrowd/internal/core/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestLoadAccount(t *testing.T) {
	t.Run("balances and trustlines", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/accounts/acct", r.URL.Path)
			// nolint:all
			w.Write([]byte(`{
				"address": "acct",
				"sequence": 42,
				"balances": [
					{"asset_type": "native", "balance": "100.5"},
					{"asset_type": "credit_alphanum4", "asset_code": "USDC", "asset_issuer": "issuer-addr", "balance": "250"}
				]
			}`))
		}))
		defer srv.Close()

		account, err := NewHTTPService(srv.URL, time.Second).LoadAccount(ctx, "acct")
		require.NoError(t, err)
		require.Equal(t, int64(42), account.Sequence)
		require.True(t, account.Balances["native"].Equal(decimal.NewFromFloat(100.5)))
		require.True(t, account.Balances["USDC:issuer-addr"].Equal(decimal.NewFromInt(250)))
		require.True(t, account.Trustline["USDC:issuer-addr"])
		require.False(t, account.Trustline["EURC:issuer-addr"])
	})

	t.Run("unknown account", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewHTTPService(srv.URL, time.Second).LoadAccount(ctx, "acct")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unreachable gateway", func(t *testing.T) {
		_, err := NewHTTPService("http://127.0.0.1:1", time.Second).LoadAccount(ctx, "acct")
		var netErr *domain.NetworkError
		require.ErrorAs(t, err, &netErr)
	})
}

func TestBuildAndSubmit(t *testing.T) {
	ops := []ports.Operation{{
		Type: ports.OpPayment, Source: "a", Destination: "b", Amount: decimal.NewFromInt(10),
	}}

	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/transactions", r.URL.Path)
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "memo-1", req["memo"])
			// nolint:all
			w.Write([]byte(`{"hash":"abc123","ledger":7}`))
		}))
		defer srv.Close()

		result, err := NewHTTPService(srv.URL, time.Second).BuildAndSubmit(ctx, ops, "memo-1")
		require.NoError(t, err)
		require.Equal(t, "abc123", result.Hash)
		require.Equal(t, int64(7), result.LedgerSequence)
	})

	t.Run("empty operation list", func(t *testing.T) {
		_, err := NewHTTPService("http://unused", time.Second).BuildAndSubmit(ctx, nil, "")
		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			// nolint:all
			w.Write([]byte(`{"error":"underfunded","code":"insufficient_funds","required":"100","available":"40"}`))
		}))
		defer srv.Close()

		_, err := NewHTTPService(srv.URL, time.Second).BuildAndSubmit(ctx, ops, "")
		var fundsErr *domain.InsufficientFundsError
		require.ErrorAs(t, err, &fundsErr)
		require.True(t, fundsErr.Required.Equal(decimal.NewFromInt(100)))
		require.True(t, fundsErr.Available.Equal(decimal.NewFromInt(40)))
	})

	t.Run("missing trustline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			// nolint:all
			w.Write([]byte(`{"error":"dest-acct","code":"no_trustline"}`))
		}))
		defer srv.Close()

		_, err := NewHTTPService(srv.URL, time.Second).BuildAndSubmit(ctx, ops, "")
		var trustErr *domain.TrustlineRequiredError
		require.ErrorAs(t, err, &trustErr)
	})

	t.Run("generic rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			// nolint:all
			w.Write([]byte(`{"error":"tx_bad_seq"}`))
		}))
		defer srv.Close()

		_, err := NewHTTPService(srv.URL, time.Second).BuildAndSubmit(ctx, ops, "")
		var txErr *domain.TransactionFailedError
		require.ErrorAs(t, err, &txErr)
		require.Equal(t, "tx_bad_seq", txErr.Reason)
	})

	t.Run("timed out submission reports failed, not retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			// nolint:all
			w.Write([]byte(`{"hash":"late"}`))
		}))
		defer srv.Close()

		_, err := NewHTTPService(srv.URL, 50*time.Millisecond).BuildAndSubmit(ctx, ops, "")
		var txErr *domain.TransactionFailedError
		require.ErrorAs(t, err, &txErr)
		require.False(t, domain.IsTransient(err))
	})
}
