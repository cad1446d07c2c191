package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// Operation is a single instruction inside a ledger transaction.
type Operation struct {
	Type        string
	Source      string
	Destination string
	Amount      decimal.Decimal
	AssetCode   string
	AssetIssuer string
}

const (
	OpCreateAccount = "create_account"
	OpChangeTrust   = "change_trust"
	OpPayment       = "payment"
)

// SubmitResult is the ledger acknowledgement for a submitted transaction.
type SubmitResult struct {
	Hash           string
	LedgerSequence int64
}

// Account is the subset of ledger account state the orchestration needs.
type Account struct {
	Address   string
	Sequence  int64
	Balances  map[string]decimal.Decimal
	Trustline map[string]bool
}

// LedgerClient is the opaque transaction building and submission capability.
// Submissions are atomic: the transaction either reaches the network or it
// does not, there is no partial mutation to clean up.
type LedgerClient interface {
	LoadAccount(ctx context.Context, address string) (*Account, error)
	BuildAndSubmit(ctx context.Context, ops []Operation, memo string) (*SubmitResult, error)
}
