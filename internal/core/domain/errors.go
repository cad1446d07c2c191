package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

// ValidationError reports bad input. It is resolved locally and never
// reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// UserRejectedError means the wallet signer declined the payload. Terminal,
// the user must re-initiate the operation.
type UserRejectedError struct {
	Op string
}

func (e *UserRejectedError) Error() string {
	return fmt.Sprintf("user rejected signing for %s", e.Op)
}

// NetworkError wraps a transient transport failure and is the only error
// class eligible for automatic retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AnchorError reports an authority-side failure. Alternative suggests
// another anchor domain when one is known.
type AnchorError struct {
	Domain      string
	Message     string
	Alternative string
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("anchor %s: %s", e.Domain, e.Message)
}

type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf(
		"insufficient funds: required %s, available %s",
		e.Required.String(), e.Available.String(),
	)
}

// TrustlineRequiredError signals the destination account has not yet
// established trust for the settlement asset.
type TrustlineRequiredError struct {
	Account     string
	AssetCode   string
	AssetIssuer string
}

func (e *TrustlineRequiredError) Error() string {
	return fmt.Sprintf(
		"account %s has no trustline for %s:%s", e.Account, e.AssetCode, e.AssetIssuer,
	)
}

// InvalidSignatureError reports a signature that failed verification.
// Non-terminal for bids (the bid is persisted unverified), terminal for auth.
type InvalidSignatureError struct {
	Subject string
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid signature on %s", e.Subject)
}

// TransactionFailedError means the ledger rejected the transaction or it
// expired unconfirmed. The signed payload must never be resubmitted as-is.
type TransactionFailedError struct {
	Hash   string
	Reason string
}

func (e *TransactionFailedError) Error() string {
	if e.Hash == "" {
		return fmt.Sprintf("transaction failed: %s", e.Reason)
	}
	return fmt.Sprintf("transaction %s failed: %s", e.Hash, e.Reason)
}

// ConflictError reports a concurrent mutation, e.g. a double release on the
// same milestone.
type ConflictError struct {
	Resource string
	Id       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting operation in flight on %s %s", e.Resource, e.Id)
}

// IsTransient reports whether err may be retried automatically. Validation,
// rejection and monetary-state errors always require a new user decision.
func IsTransient(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
