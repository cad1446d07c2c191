package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/openlancer/escrowd/internal/core/ports"
	"github.com/openlancer/escrowd/pkg/retry"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// SettlementAsset identifies the asset used to settle escrow payments.
type SettlementAsset struct {
	Code   string
	Issuer string
}

func (a SettlementAsset) Key() string {
	return a.Code + ":" + a.Issuer
}

// MilestoneInput is the caller-supplied milestone description used by
// CreateEscrow.
type MilestoneInput struct {
	Title       string
	Description string
	Budget      decimal.Decimal
}

// Service orchestrates escrow custody, bid intake, anchor authentication
// and on/off-ramp sessions on top of the injected collaborators.
type Service struct {
	BuildInfo BuildInfo

	repoManager  ports.RepoManager
	walletSvc    ports.WalletSigner
	ledgerSvc    ports.LedgerClient
	anchorSvc    ports.AnchorClient
	schedulerSvc ports.SchedulerService
	notifier     ports.NotificationSink

	asset        SettlementAsset
	pollInterval time.Duration
	retryPolicy  *retry.Policy

	// in-flight test-and-set guards serializing monetary mutations per key
	mu       sync.Mutex
	inFlight map[string]struct{}

	// credentials caches one bearer token per (account, authority) pair
	credMu      sync.Mutex
	credentials map[string]*domain.AuthCredential
}

func NewService(
	buildInfo BuildInfo,
	repoManager ports.RepoManager,
	walletSvc ports.WalletSigner,
	ledgerSvc ports.LedgerClient,
	anchorSvc ports.AnchorClient,
	schedulerSvc ports.SchedulerService,
	notifier ports.NotificationSink,
	asset SettlementAsset,
	pollInterval time.Duration,
) *Service {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Service{
		BuildInfo:    buildInfo,
		repoManager:  repoManager,
		walletSvc:    walletSvc,
		ledgerSvc:    ledgerSvc,
		anchorSvc:    anchorSvc,
		schedulerSvc: schedulerSvc,
		notifier:     notifier,
		asset:        asset,
		pollInterval: pollInterval,
		retryPolicy:  retry.NewPolicy(retry.WithRetryable(domain.IsTransient)),
		inFlight:     make(map[string]struct{}),
		credentials:  make(map[string]*domain.AuthCredential),
	}
}

// Stop tears the service down: polling stops and the notifier is closed.
func (s *Service) Stop() {
	s.schedulerSvc.Stop()
	if s.notifier != nil {
		s.notifier.Close()
	}
	logrus.Info("service stopped")
}

// acquire takes the in-flight guard for key. It returns a ConflictError if
// another mutation already holds it.
func (s *Service) acquire(resource, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return &domain.ConflictError{Resource: resource, Id: key}
	}
	s.inFlight[key] = struct{}{}
	return nil
}

func (s *Service) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

// escrowGuard is the in-flight key shared by every read-modify-write of one
// escrow record. A single key per escrow, not per milestone: two concurrent
// mutations of different milestones would otherwise both re-read the record
// and the second update would silently drop the first one's accounting.
func escrowGuard(escrowId string) string {
	return "escrow:" + escrowId
}

// CreateEscrow validates the budget breakdown, submits the funding
// transaction and persists the new record.
func (s *Service) CreateEscrow(
	ctx context.Context, clientAddress string, totalBudget decimal.Decimal, milestones []MilestoneInput,
) (*domain.EscrowRecord, error) {
	ms := make([]domain.Milestone, 0, len(milestones))
	for _, m := range milestones {
		ms = append(ms, domain.Milestone{
			Id:          uuid.NewString(),
			Title:       m.Title,
			Description: m.Description,
			Budget:      m.Budget,
			Status:      domain.MilestonePending,
		})
	}

	escrow, err := domain.NewEscrowRecord(uuid.NewString(), clientAddress, totalBudget, ms)
	if err != nil {
		return nil, err
	}

	// The vault account holding the custodial budget; funded, given trust
	// for the settlement asset, then paid in one transaction.
	vault := vaultAddress(escrow.Id)
	ops := []ports.Operation{
		{Type: ports.OpCreateAccount, Source: clientAddress, Destination: vault},
		{Type: ports.OpChangeTrust, Source: vault, AssetCode: s.asset.Code, AssetIssuer: s.asset.Issuer},
		{
			Type: ports.OpPayment, Source: clientAddress, Destination: vault,
			Amount: totalBudget, AssetCode: s.asset.Code, AssetIssuer: s.asset.Issuer,
		},
	}

	result, err := s.ledgerSvc.BuildAndSubmit(ctx, ops, "escrow:"+escrow.Id)
	if err != nil {
		return nil, err
	}
	escrow.LastTxHash = result.Hash

	if err := s.repoManager.Escrow().Add(ctx, *escrow); err != nil {
		return nil, fmt.Errorf("failed to persist escrow: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"escrow": escrow.Id, "budget": totalBudget.String(), "tx": result.Hash,
	}).Info("escrow created")
	s.notify(ctx, "escrow_created", escrow.Id, "escrow funded and active")

	return escrow, nil
}

// ReleaseMilestone pays out one milestone budget to the freelancer. The
// precondition check and state transition run under the escrow guard so a
// concurrent second call, on this or any other milestone of the escrow,
// fails with a conflict instead of paying twice.
func (s *Service) ReleaseMilestone(
	ctx context.Context, escrowId, milestoneId, actorAddress string,
) (string, error) {
	guardKey := escrowGuard(escrowId)
	if err := s.acquire("escrow", guardKey); err != nil {
		return "", err
	}
	defer s.release(guardKey)

	// Re-read current state, never release from a cached copy.
	escrow, err := s.repoManager.Escrow().Get(ctx, escrowId)
	if err != nil {
		return "", err
	}
	if escrow.Status != domain.EscrowActive {
		return "", &domain.ConflictError{Resource: "escrow", Id: escrowId}
	}
	if actorAddress != escrow.ClientAddress {
		return "", &domain.ValidationError{
			Field: "actorAddress", Reason: "only the funding client may release a milestone",
		}
	}
	if escrow.FreelancerAddress == "" {
		return "", &domain.ValidationError{
			Field: "freelancerAddress", Reason: "no freelancer assigned to escrow",
		}
	}
	milestone, err := escrow.Milestone(milestoneId)
	if err != nil {
		return "", err
	}
	if milestone.Status == domain.MilestoneApproved || milestone.Status == domain.MilestoneCompleted {
		return "", &domain.ConflictError{Resource: "milestone", Id: milestoneId}
	}
	if milestone.Status != domain.MilestoneInProgress {
		return "", &domain.ValidationError{
			Field: "milestone.status", Reason: "milestone is not in progress",
		}
	}

	ops := []ports.Operation{{
		Type:        ports.OpPayment,
		Source:      vaultAddress(escrow.Id),
		Destination: escrow.FreelancerAddress,
		Amount:      milestone.Budget,
		AssetCode:   s.asset.Code,
		AssetIssuer: s.asset.Issuer,
	}}

	// Submission failures surface verbatim: a monetary transaction is
	// never blindly resubmitted.
	result, err := s.ledgerSvc.BuildAndSubmit(ctx, ops, "release:"+milestoneId)
	if err != nil {
		return "", err
	}

	if err := escrow.ApproveMilestone(milestoneId, result.Hash); err != nil {
		return "", err
	}
	if err := escrow.CheckInvariants(); err != nil {
		return "", err
	}
	if err := s.repoManager.Escrow().Update(ctx, *escrow); err != nil {
		return "", fmt.Errorf("failed to persist release: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"escrow": escrowId, "milestone": milestoneId,
		"amount": milestone.Budget.String(), "tx": result.Hash,
	}).Info("milestone released")
	s.notify(ctx, "milestone_released", escrowId, "milestone "+milestoneId+" approved")
	if escrow.Status == domain.EscrowCompleted {
		s.notify(ctx, "escrow_completed", escrowId, "full budget released")
	}

	return result.Hash, nil
}

// AddTimeRelease schedules a time-based release on top of the milestone
// budgets. The committed amount is deposited into the vault up front, so
// the grown budget stays fully custodial.
func (s *Service) AddTimeRelease(
	ctx context.Context, escrowId, actorAddress string, releaseTime int64, amount decimal.Decimal,
) (string, error) {
	if !amount.IsPositive() {
		return "", &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if releaseTime <= 0 {
		return "", &domain.ValidationError{Field: "releaseTime", Reason: "must be a unix timestamp"}
	}
	guardKey := escrowGuard(escrowId)
	if err := s.acquire("escrow", guardKey); err != nil {
		return "", err
	}
	defer s.release(guardKey)

	escrow, err := s.repoManager.Escrow().Get(ctx, escrowId)
	if err != nil {
		return "", err
	}
	if actorAddress != escrow.ClientAddress {
		return "", &domain.ValidationError{
			Field: "actorAddress", Reason: "only the funding client may schedule a release",
		}
	}
	if escrow.Status != domain.EscrowActive {
		return "", &domain.ConflictError{Resource: "escrow", Id: escrowId}
	}

	ops := []ports.Operation{{
		Type:        ports.OpPayment,
		Source:      escrow.ClientAddress,
		Destination: vaultAddress(escrow.Id),
		Amount:      amount,
		AssetCode:   s.asset.Code,
		AssetIssuer: s.asset.Issuer,
	}}
	result, err := s.ledgerSvc.BuildAndSubmit(ctx, ops, "schedule:"+escrowId)
	if err != nil {
		return "", err
	}

	if err := escrow.AddTimeRelease(releaseTime, amount); err != nil {
		return "", err
	}
	escrow.LastTxHash = result.Hash
	if err := s.repoManager.Escrow().Update(ctx, *escrow); err != nil {
		return "", fmt.Errorf("failed to persist schedule entry: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"escrow": escrowId, "amount": amount.String(), "releaseTime": releaseTime,
	}).Info("time release scheduled")
	s.notify(ctx, "time_release_scheduled", escrowId, "scheduled release of "+amount.String())
	return result.Hash, nil
}

// ReleaseTimeBased pays out one due schedule entry. Anyone may trigger it,
// the schedule itself is the authorization.
func (s *Service) ReleaseTimeBased(
	ctx context.Context, escrowId string, index int,
) (string, error) {
	guardKey := escrowGuard(escrowId)
	if err := s.acquire("escrow", guardKey); err != nil {
		return "", err
	}
	defer s.release(guardKey)

	escrow, err := s.repoManager.Escrow().Get(ctx, escrowId)
	if err != nil {
		return "", err
	}
	if escrow.Status != domain.EscrowActive {
		return "", &domain.ConflictError{Resource: "escrow", Id: escrowId}
	}
	if escrow.FreelancerAddress == "" {
		return "", &domain.ValidationError{
			Field: "freelancerAddress", Reason: "no freelancer assigned to escrow",
		}
	}
	if index < 0 || index >= len(escrow.TimeReleases) {
		return "", fmt.Errorf("time release %d: %w", index, domain.ErrNotFound)
	}
	entry := escrow.TimeReleases[index]
	if entry.Released {
		return "", &domain.ConflictError{Resource: "time release", Id: fmt.Sprintf("%d", index)}
	}
	now := time.Now().Unix()
	if now < entry.ReleaseTime {
		return "", &domain.ValidationError{
			Field: "releaseTime", Reason: "release time not reached",
		}
	}

	ops := []ports.Operation{{
		Type:        ports.OpPayment,
		Source:      vaultAddress(escrow.Id),
		Destination: escrow.FreelancerAddress,
		Amount:      entry.Amount,
		AssetCode:   s.asset.Code,
		AssetIssuer: s.asset.Issuer,
	}}
	result, err := s.ledgerSvc.BuildAndSubmit(ctx, ops, fmt.Sprintf("timed:%s:%d", escrowId, index))
	if err != nil {
		return "", err
	}

	amount, err := escrow.ReleaseTimeBased(index, now, result.Hash)
	if err != nil {
		return "", err
	}
	if err := escrow.CheckInvariants(); err != nil {
		return "", err
	}
	if err := s.repoManager.Escrow().Update(ctx, *escrow); err != nil {
		return "", fmt.Errorf("failed to persist timed release: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"escrow": escrowId, "index": index, "amount": amount.String(), "tx": result.Hash,
	}).Info("time release paid out")
	s.notify(ctx, "time_release_paid", escrowId, "scheduled release "+amount.String()+" paid")
	if escrow.Status == domain.EscrowCompleted {
		s.notify(ctx, "escrow_completed", escrowId, "full budget released")
	}
	return result.Hash, nil
}

// FundEscrow records a third-party contribution, kept separate from the
// released-amount accounting.
func (s *Service) FundEscrow(
	ctx context.Context, escrowId string, amount decimal.Decimal, funderAddress string,
) (string, error) {
	if !amount.IsPositive() {
		return "", &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	guardKey := escrowGuard(escrowId)
	if err := s.acquire("escrow", guardKey); err != nil {
		return "", err
	}
	defer s.release(guardKey)

	escrow, err := s.repoManager.Escrow().Get(ctx, escrowId)
	if err != nil {
		return "", err
	}
	if escrow.Status != domain.EscrowActive {
		return "", &domain.ConflictError{Resource: "escrow", Id: escrowId}
	}

	ops := []ports.Operation{{
		Type:        ports.OpPayment,
		Source:      funderAddress,
		Destination: vaultAddress(escrow.Id),
		Amount:      amount,
		AssetCode:   s.asset.Code,
		AssetIssuer: s.asset.Issuer,
	}}
	result, err := s.ledgerSvc.BuildAndSubmit(ctx, ops, "fund:"+escrowId)
	if err != nil {
		return "", err
	}

	escrow.Contributions = append(escrow.Contributions, domain.Contribution{
		Funder:    funderAddress,
		Amount:    amount,
		TxHash:    result.Hash,
		Timestamp: time.Now().Unix(),
	})
	escrow.LastTxHash = result.Hash
	if err := s.repoManager.Escrow().Update(ctx, *escrow); err != nil {
		return "", fmt.Errorf("failed to persist contribution: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"escrow": escrowId, "funder": funderAddress, "amount": amount.String(),
	}).Info("escrow funded")
	return result.Hash, nil
}

// WithdrawReleased pays the withdrawable residual out to the assigned
// freelancer and zeroes it. A failed submission leaves the residual intact.
func (s *Service) WithdrawReleased(
	ctx context.Context, escrowId, freelancerAddress string,
) (string, error) {
	guardKey := escrowGuard(escrowId)
	if err := s.acquire("escrow", guardKey); err != nil {
		return "", err
	}
	defer s.release(guardKey)

	escrow, err := s.repoManager.Escrow().Get(ctx, escrowId)
	if err != nil {
		return "", err
	}
	if escrow.FreelancerAddress == "" || freelancerAddress != escrow.FreelancerAddress {
		return "", &domain.ValidationError{
			Field: "freelancerAddress", Reason: "not the assigned freelancer",
		}
	}
	if !escrow.WithdrawableAmount.IsPositive() {
		return "", &domain.InsufficientFundsError{
			Required:  decimal.New(1, -7),
			Available: escrow.WithdrawableAmount,
		}
	}

	ops := []ports.Operation{{
		Type:        ports.OpPayment,
		Source:      vaultAddress(escrow.Id),
		Destination: freelancerAddress,
		Amount:      escrow.WithdrawableAmount,
		AssetCode:   s.asset.Code,
		AssetIssuer: s.asset.Issuer,
	}}
	result, err := s.ledgerSvc.BuildAndSubmit(ctx, ops, "withdraw:"+escrowId)
	if err != nil {
		return "", err
	}

	amount, err := escrow.Withdraw(freelancerAddress, result.Hash)
	if err != nil {
		return "", err
	}
	if err := s.repoManager.Escrow().Update(ctx, *escrow); err != nil {
		return "", fmt.Errorf("failed to persist withdrawal: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"escrow": escrowId, "amount": amount.String(), "tx": result.Hash,
	}).Info("released funds withdrawn")
	s.notify(ctx, "funds_withdrawn", escrowId, "withdrawn "+amount.String())
	return result.Hash, nil
}

func (s *Service) GetStatus(ctx context.Context, escrowId string) (*domain.EscrowRecord, error) {
	return s.repoManager.Escrow().Get(ctx, escrowId)
}

func (s *Service) ListEscrows(ctx context.Context) ([]domain.EscrowRecord, error) {
	return s.repoManager.Escrow().GetAll(ctx)
}

func (s *Service) GetBids(ctx context.Context, escrowId string) ([]domain.Bid, error) {
	return s.repoManager.Bid().GetByEscrow(ctx, escrowId)
}

// AcceptBid assigns the bidding freelancer to the escrow. Unverified bids
// never move funds or gain assignment.
func (s *Service) AcceptBid(ctx context.Context, escrowId, bidKey, actorAddress string) error {
	guardKey := escrowGuard(escrowId)
	if err := s.acquire("escrow", guardKey); err != nil {
		return err
	}
	defer s.release(guardKey)

	escrow, err := s.repoManager.Escrow().Get(ctx, escrowId)
	if err != nil {
		return err
	}
	if actorAddress != escrow.ClientAddress {
		return &domain.ValidationError{
			Field: "actorAddress", Reason: "only the funding client may accept a bid",
		}
	}
	if escrow.FreelancerAddress != "" {
		return &domain.ConflictError{Resource: "escrow", Id: escrowId}
	}
	bid, err := s.repoManager.Bid().Get(ctx, bidKey)
	if err != nil {
		return err
	}
	if bid.EscrowId != escrowId {
		return &domain.ValidationError{Field: "bidKey", Reason: "bid does not belong to escrow"}
	}
	if !bid.Verified {
		return &domain.InvalidSignatureError{Subject: "bid " + bidKey}
	}

	escrow.FreelancerAddress = bid.FreelancerAddress
	if err := s.repoManager.Escrow().Update(ctx, *escrow); err != nil {
		return fmt.Errorf("failed to persist acceptance: %w", err)
	}
	s.notify(ctx, "bid_accepted", escrowId, "freelancer "+bid.FreelancerAddress+" assigned")
	return nil
}

// StartMilestone moves a pending milestone to in progress. Only the
// assigned freelancer may start work.
func (s *Service) StartMilestone(ctx context.Context, escrowId, milestoneId, actorAddress string) error {
	guardKey := escrowGuard(escrowId)
	if err := s.acquire("escrow", guardKey); err != nil {
		return err
	}
	defer s.release(guardKey)

	escrow, err := s.repoManager.Escrow().Get(ctx, escrowId)
	if err != nil {
		return err
	}
	if escrow.FreelancerAddress == "" || actorAddress != escrow.FreelancerAddress {
		return &domain.ValidationError{
			Field: "actorAddress", Reason: "only the assigned freelancer may start a milestone",
		}
	}
	if err := escrow.StartMilestone(milestoneId); err != nil {
		return err
	}
	return s.repoManager.Escrow().Update(ctx, *escrow)
}

// OpenDispute freezes the escrow. Either party may raise it.
func (s *Service) OpenDispute(ctx context.Context, escrowId, actorAddress string) error {
	guardKey := escrowGuard(escrowId)
	if err := s.acquire("escrow", guardKey); err != nil {
		return err
	}
	defer s.release(guardKey)

	escrow, err := s.repoManager.Escrow().Get(ctx, escrowId)
	if err != nil {
		return err
	}
	if actorAddress != escrow.ClientAddress && actorAddress != escrow.FreelancerAddress {
		return &domain.ValidationError{
			Field: "actorAddress", Reason: "only an escrow party may open a dispute",
		}
	}
	if escrow.Status != domain.EscrowActive {
		return &domain.ConflictError{Resource: "escrow", Id: escrowId}
	}
	escrow.Status = domain.EscrowDisputed
	if err := s.repoManager.Escrow().Update(ctx, *escrow); err != nil {
		return fmt.Errorf("failed to persist dispute: %w", err)
	}
	s.notify(ctx, "dispute_opened", escrowId, "escrow frozen pending resolution")
	return nil
}

// ResolveDispute closes a disputed escrow: cancelled when refunding the
// client, completed otherwise.
func (s *Service) ResolveDispute(ctx context.Context, escrowId string, refundToClient bool) error {
	guardKey := escrowGuard(escrowId)
	if err := s.acquire("escrow", guardKey); err != nil {
		return err
	}
	defer s.release(guardKey)

	escrow, err := s.repoManager.Escrow().Get(ctx, escrowId)
	if err != nil {
		return err
	}
	if escrow.Status != domain.EscrowDisputed {
		return &domain.ValidationError{Field: "escrow.status", Reason: "no dispute active"}
	}
	if refundToClient {
		escrow.Status = domain.EscrowCancelled
	} else {
		escrow.Status = domain.EscrowCompleted
	}
	if err := s.repoManager.Escrow().Update(ctx, *escrow); err != nil {
		return fmt.Errorf("failed to persist resolution: %w", err)
	}
	s.notify(ctx, "dispute_resolved", escrowId, "dispute closed")
	return nil
}

func (s *Service) notify(ctx context.Context, kind, subject, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, ports.Notification{Kind: kind, Subject: subject, Message: message})
}

// vaultAddress derives the deterministic custody address for an escrow.
// A production deployment would swap this for a real custody contract
// without touching the calling code.
func vaultAddress(escrowId string) string {
	return "vault:" + escrowId
}
