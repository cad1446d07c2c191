package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/openlancer/escrowd/internal/core/ports"
	"github.com/shopspring/decimal"
)

// httpService implements ports.LedgerClient against a ledger gateway REST
// API. Envelope construction and network submission happen gateway-side;
// this client only ships operation lists and interprets the outcome.
type httpService struct {
	baseURL string
	client  *http.Client
}

// NewHTTPService creates an HTTP-based ledger client. The timeout bounds
// the transaction time-to-live: a submission still unconfirmed when it
// fires is reported as failed, never silently resubmitted.
func NewHTTPService(url string, txTimeout time.Duration) ports.LedgerClient {
	if txTimeout <= 0 {
		txTimeout = 30 * time.Second
	}
	return &httpService{
		baseURL: strings.TrimRight(url, "/"),
		client:  &http.Client{Timeout: txTimeout},
	}
}

type accountResponse struct {
	Address  string `json:"address"`
	Sequence int64  `json:"sequence"`
	Balances []struct {
		AssetType   string `json:"asset_type"`
		AssetCode   string `json:"asset_code"`
		AssetIssuer string `json:"asset_issuer"`
		Balance     string `json:"balance"`
	} `json:"balances"`
}

type submitRequest struct {
	Operations []ports.Operation `json:"operations"`
	Memo       string            `json:"memo,omitempty"`
}

type submitResponse struct {
	Hash           string `json:"hash"`
	LedgerSequence int64  `json:"ledger"`
	Error          string `json:"error"`
	Code           string `json:"code"`
	Required       string `json:"required"`
	Available      string `json:"available"`
}

func (s *httpService) LoadAccount(ctx context.Context, address string) (*ports.Account, error) {
	url := s.baseURL + "/accounts/" + address

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: "load account", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("account %s: %w", address, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var acc accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&acc); err != nil {
		return nil, fmt.Errorf("failed to parse account: %w", err)
	}

	account := &ports.Account{
		Address:   address,
		Sequence:  acc.Sequence,
		Balances:  make(map[string]decimal.Decimal),
		Trustline: make(map[string]bool),
	}
	for _, b := range acc.Balances {
		amount, err := decimal.NewFromString(b.Balance)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance %q: %w", b.Balance, err)
		}
		key := "native"
		if b.AssetType != "native" {
			key = b.AssetCode + ":" + b.AssetIssuer
			account.Trustline[key] = true
		}
		account.Balances[key] = amount
	}
	return account, nil
}

func (s *httpService) BuildAndSubmit(
	ctx context.Context, ops []ports.Operation, memo string,
) (*ports.SubmitResult, error) {
	if len(ops) == 0 {
		return nil, &domain.ValidationError{Field: "operations", Reason: "empty"}
	}

	body, err := json.Marshal(submitRequest{Operations: ops, Memo: memo})
	if err != nil {
		return nil, fmt.Errorf("marshal submit request: %w", err)
	}

	url := s.baseURL + "/transactions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// A timed out submission may or may not have reached the network.
		// Report it failed; resubmitting the same payload risks a replay.
		if ctx.Err() != nil || isTimeout(err) {
			return nil, &domain.TransactionFailedError{Reason: "submission timed out unconfirmed"}
		}
		return nil, &domain.NetworkError{Op: "submit transaction", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Op: "read submit response", Err: err}
	}

	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse submit response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return nil, submitError(resp.StatusCode, out)
	}
	return &ports.SubmitResult{Hash: out.Hash, LedgerSequence: out.LedgerSequence}, nil
}

// submitError maps gateway rejections onto the domain taxonomy so callers
// can distinguish monetary-state failures from plain transaction failures.
func submitError(status int, out submitResponse) error {
	switch out.Code {
	case "insufficient_funds":
		required, _ := decimal.NewFromString(out.Required)
		available, _ := decimal.NewFromString(out.Available)
		return &domain.InsufficientFundsError{Required: required, Available: available}
	case "no_trustline":
		return &domain.TrustlineRequiredError{Account: out.Error}
	default:
		reason := out.Error
		if reason == "" {
			reason = fmt.Sprintf("gateway returned status %d", status)
		}
		return &domain.TransactionFailedError{Hash: out.Hash, Reason: reason}
	}
}

func isTimeout(err error) bool {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Timeout()
	}
	return false
}
