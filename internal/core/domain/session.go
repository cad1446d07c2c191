package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type SessionKind int

const (
	OnRamp SessionKind = iota
	OffRamp
)

func (k SessionKind) String() string {
	if k == OffRamp {
		return "withdrawal"
	}
	return "deposit"
}

// SessionStatus values follow the anchor transfer protocol wire format.
type SessionStatus string

const (
	StatusIncomplete               SessionStatus = "incomplete"
	StatusPendingUserTransferStart SessionStatus = "pending_user_transfer_start"
	StatusPendingUserTransferDone  SessionStatus = "pending_user_transfer_complete"
	StatusPendingAnchor            SessionStatus = "pending_anchor"
	StatusPendingStellar           SessionStatus = "pending_stellar"
	StatusPendingExternal          SessionStatus = "pending_external"
	StatusPendingTrust             SessionStatus = "pending_trust"
	StatusPendingUser              SessionStatus = "pending_user"
	StatusCompleted                SessionStatus = "completed"
	StatusError                    SessionStatus = "error"
	StatusExpired                  SessionStatus = "expired"
	StatusRefunded                 SessionStatus = "refunded"
)

// IsTerminal reports whether the status closes the session. Once terminal,
// no further polls may be issued.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

// AnchorSession is one in-flight deposit or withdrawal against an anchor.
type AnchorSession struct {
	Id              string
	Kind            SessionKind
	Status          SessionStatus
	AuthorityDomain string
	Account         string
	InteractiveUrl  string
	Amount          decimal.Decimal
	Currency        string
	StartedAt       int64
	LastPolledAt    int64
}

// SessionRepository stores the anchor on/off-ramp sessions
type SessionRepository interface {
	GetAll(ctx context.Context) ([]AnchorSession, error)
	Get(ctx context.Context, sessionId string) (*AnchorSession, error)
	Add(ctx context.Context, session AnchorSession) error
	Update(ctx context.Context, session AnchorSession) error
	Close()
}

// AuthCredential is an ephemeral bearer token scoped to exactly one
// (account, authority domain) pair. Never persisted beyond the session.
type AuthCredential struct {
	Account         string
	AuthorityDomain string
	Token           string
	ExpiresAt       time.Time
}

// Valid reports whether the credential covers the given account and
// authority and has not expired.
func (c *AuthCredential) Valid(account, authorityDomain string, now time.Time) bool {
	if c == nil {
		return false
	}
	if c.Account != account || c.AuthorityDomain != authorityDomain {
		return false
	}
	return now.Before(c.ExpiresAt)
}
