package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Bid is one freelancer's proposal against an escrow. Immutable once
// persisted; acceptance is a separate operation on the escrow record.
type Bid struct {
	EscrowId           string
	FreelancerAddress  string
	BidAmount          decimal.Decimal
	DeliveryDays       int
	Proposal           string
	PortfolioLink      string
	MilestonesApproach string
	Signature          []byte
	Timestamp          int64
	Verified           bool
}

// Key identifies a bid by (escrowId, freelancerAddress, timestamp) to avoid
// collisions between re-submissions.
func (b *Bid) Key() string {
	return fmt.Sprintf("%s:%s:%d", b.EscrowId, b.FreelancerAddress, b.Timestamp)
}

// CanonicalBytes serializes the signed fields with a stable ordering so the
// same logical bid always produces identical bytes. Every value is length
// prefixed, so no combination of field contents can collide with another
// bid's encoding. The signature and the verified flag are excluded.
func (b *Bid) CanonicalBytes() []byte {
	var sb strings.Builder
	writeCanonicalField(&sb, "escrow_id", b.EscrowId)
	writeCanonicalField(&sb, "freelancer", b.FreelancerAddress)
	writeCanonicalField(&sb, "amount", b.BidAmount.String())
	writeCanonicalField(&sb, "delivery_days", strconv.Itoa(b.DeliveryDays))
	writeCanonicalField(&sb, "proposal", b.Proposal)
	writeCanonicalField(&sb, "portfolio", b.PortfolioLink)
	writeCanonicalField(&sb, "milestones", b.MilestonesApproach)
	writeCanonicalField(&sb, "timestamp", strconv.FormatInt(b.Timestamp, 10))
	return []byte(sb.String())
}

func writeCanonicalField(sb *strings.Builder, name, value string) {
	sb.WriteString(name)
	sb.WriteByte('=')
	sb.WriteString(strconv.Itoa(len(value)))
	sb.WriteByte(':')
	sb.WriteString(value)
	sb.WriteByte('|')
}

// Hash returns the hex digest of the canonical payload, used as the public
// bid identifier.
func (b *Bid) Hash() string {
	sum := sha256.Sum256(b.CanonicalBytes())
	return hex.EncodeToString(sum[:])
}

// Validate runs the local field checks of the Validating checkpoint.
func (b *Bid) Validate(totalBudget decimal.Decimal) error {
	if b.EscrowId == "" {
		return &ValidationError{Field: "escrowId", Reason: "empty"}
	}
	if b.FreelancerAddress == "" {
		return &ValidationError{Field: "freelancerAddress", Reason: "empty"}
	}
	if b.Proposal == "" {
		return &ValidationError{Field: "proposal", Reason: "empty"}
	}
	if !b.BidAmount.IsPositive() {
		return &ValidationError{Field: "bidAmount", Reason: "must be positive"}
	}
	if b.BidAmount.GreaterThan(totalBudget) {
		return &ValidationError{
			Field: "bidAmount",
			Reason: fmt.Sprintf(
				"bid %s exceeds escrow budget %s", b.BidAmount.String(), totalBudget.String(),
			),
		}
	}
	if b.DeliveryDays <= 0 {
		return &ValidationError{Field: "deliveryDays", Reason: "must be positive"}
	}
	return nil
}

// BidRepository stores the bids submitted against escrows
type BidRepository interface {
	GetByEscrow(ctx context.Context, escrowId string) ([]Bid, error)
	Get(ctx context.Context, key string) (*Bid, error)
	Add(ctx context.Context, bid Bid) error
	Close()
}
