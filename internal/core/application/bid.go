package application

import (
	"context"
	"fmt"
	"time"

	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BidStage is the current checkpoint of the bid intake pipeline.
type BidStage string

const (
	BidIdle       BidStage = "idle"
	BidValidating BidStage = "validating"
	BidSigning    BidStage = "signing"
	BidVerifying  BidStage = "verifying"
	BidSubmitting BidStage = "submitting"
	BidSuccess    BidStage = "success"
	BidError      BidStage = "error"
)

// BidRequest carries the freelancer's proposal into the pipeline.
type BidRequest struct {
	EscrowId           string
	FreelancerAddress  string
	BidAmount          decimal.Decimal
	DeliveryDays       int
	Proposal           string
	PortfolioLink      string
	MilestonesApproach string
}

// BidReceipt is the pipeline outcome exposed to the caller.
type BidReceipt struct {
	BidHash  string
	Verified bool
}

// StageListener observes pipeline progress. Nil is fine.
type StageListener func(stage BidStage)

// SubmitBid runs the strict five-checkpoint pipeline: validating, signing,
// verifying, submitting, success. No checkpoint is skipped, and a failure
// halts the pipeline at the checkpoint it names.
//
// A signature mismatch is special: the bid is persisted flagged unverified
// so an auditable trail exists, and the receipt is returned alongside the
// InvalidSignatureError.
func (s *Service) SubmitBid(
	ctx context.Context, req BidRequest, listener StageListener,
) (*BidReceipt, error) {
	report := func(stage BidStage) {
		if listener != nil {
			listener(stage)
		}
	}
	fail := func(stage BidStage, err error) (*BidReceipt, error) {
		report(BidError)
		logrus.WithError(err).WithFields(logrus.Fields{
			"escrow": req.EscrowId, "checkpoint": stage,
		}).Warn("bid pipeline halted")
		return nil, fmt.Errorf("bid checkpoint %s: %w", stage, err)
	}

	// Validating
	report(BidValidating)
	escrow, err := s.repoManager.Escrow().Get(ctx, req.EscrowId)
	if err != nil {
		return fail(BidValidating, err)
	}
	if escrow.Status != domain.EscrowActive {
		return fail(BidValidating, &domain.ValidationError{
			Field: "escrow.status", Reason: "escrow is not accepting bids",
		})
	}
	bid := domain.Bid{
		EscrowId:           req.EscrowId,
		FreelancerAddress:  req.FreelancerAddress,
		BidAmount:          req.BidAmount,
		DeliveryDays:       req.DeliveryDays,
		Proposal:           req.Proposal,
		PortfolioLink:      req.PortfolioLink,
		MilestonesApproach: req.MilestonesApproach,
		Timestamp:          time.Now().Unix(),
	}
	if err := bid.Validate(escrow.TotalBudget); err != nil {
		return fail(BidValidating, err)
	}

	// Signing: the one human-interactive suspension point. A decline is
	// terminal, not retryable.
	report(BidSigning)
	payload := bid.CanonicalBytes()
	signature, err := s.walletSvc.Sign(ctx, payload)
	if err != nil {
		return fail(BidSigning, err)
	}
	bid.Signature = signature

	// Verifying
	report(BidVerifying)
	ok, err := s.walletSvc.Verify(req.FreelancerAddress, payload, signature)
	if err != nil {
		return fail(BidVerifying, err)
	}
	bid.Verified = ok

	// Submitting
	report(BidSubmitting)
	if err := s.repoManager.Bid().Add(ctx, bid); err != nil {
		return fail(BidSubmitting, fmt.Errorf("failed to persist bid: %w", err))
	}

	receipt := &BidReceipt{BidHash: bid.Hash(), Verified: bid.Verified}

	if !bid.Verified {
		report(BidError)
		logrus.WithFields(logrus.Fields{
			"escrow": req.EscrowId, "freelancer": req.FreelancerAddress,
		}).Warn("bid persisted with failed signature verification")
		s.notify(ctx, "bid_unverified", req.EscrowId, "bid stored unverified")
		return receipt, &domain.InvalidSignatureError{Subject: "bid " + bid.Key()}
	}

	report(BidSuccess)
	logrus.WithFields(logrus.Fields{
		"escrow": req.EscrowId, "freelancer": req.FreelancerAddress, "hash": receipt.BidHash,
	}).Info("bid submitted")
	s.notify(ctx, "bid_submitted", req.EscrowId, "verified bid received")
	return receipt, nil
}
