package anchor

import (
	"bytes"
	"context"
	"encoding/json"
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

const defaultHTTPTimeout = 15 * time.Second

// Client implements ports.AnchorClient over the anchor's REST API. The base
// URL maps an authority domain to its transfer server endpoint.
type Client struct {
	client *http.Client
}

func NewClient() *Client {
	return &Client{client: &http.Client{Timeout: defaultHTTPTimeout}}
}

func (c *Client) GetChallenge(
	ctx context.Context, account, authorityDomain string,
) (*ports.ChallengeEnvelope, error) {
	endpoint := fmt.Sprintf(
		"%s/auth?account=%s", baseURL(authorityDomain), url.QueryEscape(account),
	)
	raw, err := c.call(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}

	envelope, err := parseChallenge(raw)
	if err != nil {
		return nil, &domain.AnchorError{Domain: authorityDomain, Message: err.Error()}
	}
	return envelope, nil
}

func (c *Client) ExchangeToken(
	ctx context.Context, signedEnvelope, authorityDomain string,
) (string, error) {
	endpoint := baseURL(authorityDomain) + "/auth"
	raw, err := c.call(ctx, http.MethodPost, endpoint, "", tokenRequest{Transaction: signedEnvelope})
	if err != nil {
		return "", err
	}

	var resp tokenResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &domain.AnchorError{Domain: authorityDomain, Message: fmt.Sprintf("unmarshal token response: %v", err)}
	}
	if resp.Error != "" {
		return "", &domain.InvalidSignatureError{Subject: "auth challenge"}
	}
	if resp.Token == "" {
		return "", &domain.AnchorError{Domain: authorityDomain, Message: "empty token in response"}
	}
	return resp.Token, nil
}

func (c *Client) CreateDeposit(
	ctx context.Context, token, authorityDomain, account, assetCode string, amount decimal.Decimal,
) (*ports.InteractiveSession, error) {
	return c.createInteractive(ctx, token, authorityDomain, account, assetCode, amount, "deposit")
}

func (c *Client) CreateWithdrawal(
	ctx context.Context, token, authorityDomain, account, assetCode string, amount decimal.Decimal,
) (*ports.InteractiveSession, error) {
	return c.createInteractive(ctx, token, authorityDomain, account, assetCode, amount, "withdraw")
}

func (c *Client) createInteractive(
	ctx context.Context, token, domainName, account, assetCode string, amount decimal.Decimal, kind string,
) (*ports.InteractiveSession, error) {
	endpoint := fmt.Sprintf("%s/transactions/%s/interactive", baseURL(domainName), kind)
	req := interactiveRequest{
		AssetCode: assetCode,
		Account:   account,
	}
	if amount.IsPositive() {
		req.Amount = amount.String()
	}
	raw, err := c.call(ctx, http.MethodPost, endpoint, token, req)
	if err != nil {
		return nil, err
	}

	var resp interactiveResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &domain.AnchorError{Domain: domainName, Message: fmt.Sprintf("unmarshal interactive response: %v", err)}
	}
	if resp.Error != "" {
		return nil, &domain.AnchorError{Domain: domainName, Message: resp.Error}
	}
	if resp.Id == "" {
		return nil, &domain.AnchorError{Domain: domainName, Message: "interactive response missing transfer id"}
	}
	return &ports.InteractiveSession{Id: resp.Id, Url: resp.Url}, nil
}

func (c *Client) GetTransferStatus(
	ctx context.Context, token, domainName, transferId string,
) (*ports.TransferStatus, error) {
	endpoint := fmt.Sprintf(
		"%s/transaction?id=%s", baseURL(domainName), url.QueryEscape(transferId),
	)
	raw, err := c.call(ctx, http.MethodGet, endpoint, token, nil)
	if err != nil {
		return nil, err
	}

	var resp transferStatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &domain.AnchorError{Domain: domainName, Message: fmt.Sprintf("unmarshal status response: %v", err)}
	}
	if resp.Error != "" {
		return nil, &domain.AnchorError{Domain: domainName, Message: resp.Error}
	}
	return &ports.TransferStatus{Id: resp.Transaction.Id, Status: resp.Transaction.Status}, nil
}

func (c *Client) call(
	ctx context.Context, method, endpoint, token string, reqBody any,
) ([]byte, error) {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("new %s %s: %w", method, endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: fmt.Sprintf("%s %s", method, endpoint), Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &domain.NetworkError{Op: "read response body", Err: err}
	}

	if res.StatusCode >= 500 {
		return nil, &domain.NetworkError{
			Op:  fmt.Sprintf("%s %s", method, endpoint),
			Err: fmt.Errorf("HTTP %d: %s", res.StatusCode, truncate(raw)),
		}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &domain.AnchorError{
			Domain:  endpoint,
			Message: fmt.Sprintf("HTTP %d: %s", res.StatusCode, truncate(raw)),
		}
	}
	return raw, nil
}

func truncate(raw []byte) string {
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 2000 {
		msg = msg[:2000] + "...(truncated)"
	}
	return msg
}

// baseURL normalizes an authority domain into its transfer server base.
func baseURL(authorityDomain string) string {
	if strings.HasPrefix(authorityDomain, "http://") || strings.HasPrefix(authorityDomain, "https://") {
		return strings.TrimRight(authorityDomain, "/")
	}
	return "https://" + strings.TrimRight(authorityDomain, "/")
}
