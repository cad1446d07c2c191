package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChallengeEnvelope is the time-boxed artifact issued by the authority. It
// must be signed without modification and never resubmitted once stale.
type ChallengeEnvelope struct {
	Transaction       string
	NetworkPassphrase string
}

// InteractiveSession is the anchor's answer to a deposit or withdrawal
// request.
type InteractiveSession struct {
	Id  string
	Url string
}

// TransferStatus is one status snapshot for an in-flight anchor transfer.
type TransferStatus struct {
	Id     string
	Status string
}

// AnchorClient covers the anchor HTTP API: challenge issuance, token
// exchange, interactive session creation and transfer status queries.
type AnchorClient interface {
	GetChallenge(ctx context.Context, account, authorityDomain string) (*ChallengeEnvelope, error)
	ExchangeToken(ctx context.Context, signedEnvelope, authorityDomain string) (string, error)
	CreateDeposit(ctx context.Context, token, authorityDomain, account, assetCode string, amount decimal.Decimal) (*InteractiveSession, error)
	CreateWithdrawal(ctx context.Context, token, authorityDomain, account, assetCode string, amount decimal.Decimal) (*InteractiveSession, error)
	GetTransferStatus(ctx context.Context, token, authorityDomain, transferId string) (*TransferStatus, error)
}
