package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type EscrowStatus int

const (
	EscrowActive EscrowStatus = iota
	EscrowCompleted
	EscrowDisputed
	EscrowCancelled
)

type MilestoneStatus int

const (
	MilestonePending MilestoneStatus = iota
	MilestoneInProgress
	MilestoneCompleted
	MilestoneApproved
)

// budgetEpsilon is the tolerance used when checking that milestone budgets
// add up to the total budget.
var budgetEpsilon = decimal.NewFromFloat(0.01)

type Milestone struct {
	Id          string
	Title       string
	Description string
	Budget      decimal.Decimal
	Status      MilestoneStatus
	CompletedAt time.Time
}

// Contribution is a third-party top-up recorded by fundEscrow. It is kept
// separate from the released-amount accounting.
type Contribution struct {
	Funder    string
	Amount    decimal.Decimal
	TxHash    string
	Timestamp int64
}

type Withdrawal struct {
	Freelancer string
	Amount     decimal.Decimal
	TxHash     string
	Timestamp  int64
}

// TimeRelease is one entry of the time-based release schedule. The amount
// is committed by the client when the entry is added and becomes claimable
// once ReleaseTime has passed.
type TimeRelease struct {
	ReleaseTime int64
	Amount      decimal.Decimal
	Released    bool
	TxHash      string
}

// EscrowRecord is the custodial budget for one project. It is never
// deleted, only superseded to Completed, Disputed or Cancelled.
type EscrowRecord struct {
	Id                 string
	ClientAddress      string
	FreelancerAddress  string
	TotalBudget        decimal.Decimal
	ReleasedAmount     decimal.Decimal
	WithdrawableAmount decimal.Decimal
	Milestones         []Milestone
	TimeReleases       []TimeRelease
	Contributions      []Contribution
	Withdrawals        []Withdrawal
	Status             EscrowStatus
	CreatedAt          int64
	LastTxHash         string
}

// NewEscrowRecord validates inputs and the milestone budget sum before
// constructing an Active record.
func NewEscrowRecord(
	id, clientAddress string, totalBudget decimal.Decimal, milestones []Milestone,
) (*EscrowRecord, error) {
	if clientAddress == "" {
		return nil, &ValidationError{Field: "clientAddress", Reason: "empty"}
	}
	if !totalBudget.IsPositive() {
		return nil, &ValidationError{Field: "totalBudget", Reason: "must be positive"}
	}
	if len(milestones) == 0 {
		return nil, &ValidationError{Field: "milestones", Reason: "at least one milestone required"}
	}

	sum := decimal.Zero
	for i, m := range milestones {
		if !m.Budget.IsPositive() {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("milestones[%d].budget", i),
				Reason: "must be positive",
			}
		}
		sum = sum.Add(m.Budget)
	}
	if sum.Sub(totalBudget).Abs().GreaterThan(budgetEpsilon) {
		return nil, &ValidationError{
			Field:  "milestones",
			Reason: fmt.Sprintf("budgets sum to %s, expected %s", sum.String(), totalBudget.String()),
		}
	}

	ms := make([]Milestone, len(milestones))
	copy(ms, milestones)

	return &EscrowRecord{
		Id:                 id,
		ClientAddress:      clientAddress,
		TotalBudget:        totalBudget,
		ReleasedAmount:     decimal.Zero,
		WithdrawableAmount: decimal.Zero,
		Milestones:         ms,
		Status:             EscrowActive,
		CreatedAt:          time.Now().Unix(),
	}, nil
}

func (e *EscrowRecord) Milestone(milestoneId string) (*Milestone, error) {
	for i := range e.Milestones {
		if e.Milestones[i].Id == milestoneId {
			return &e.Milestones[i], nil
		}
	}
	return nil, fmt.Errorf("milestone %s: %w", milestoneId, ErrNotFound)
}

// ApproveMilestone moves a milestone to Approved and accounts the released
// amount. A milestone already Approved is a conflict, not a second spend.
// The escrow flips to Completed once the full budget is released.
func (e *EscrowRecord) ApproveMilestone(milestoneId, txHash string) error {
	if e.Status != EscrowActive {
		return &ConflictError{Resource: "escrow", Id: e.Id}
	}
	m, err := e.Milestone(milestoneId)
	if err != nil {
		return err
	}
	if m.Status == MilestoneApproved || m.Status == MilestoneCompleted {
		return &ConflictError{Resource: "milestone", Id: milestoneId}
	}
	if m.Status != MilestoneInProgress {
		return &ValidationError{Field: "milestone.status", Reason: "milestone is not in progress"}
	}

	m.Status = MilestoneApproved
	m.CompletedAt = time.Now()
	e.ReleasedAmount = e.ReleasedAmount.Add(m.Budget)
	e.WithdrawableAmount = e.WithdrawableAmount.Add(m.Budget)
	e.LastTxHash = txHash

	if e.ReleasedAmount.GreaterThanOrEqual(e.TotalBudget) {
		e.Status = EscrowCompleted
	}
	return nil
}

// AddTimeRelease appends a scheduled release. The amount is fresh money on
// top of the milestone budgets, so the total budget grows with it; the
// matching vault deposit is the caller's responsibility.
func (e *EscrowRecord) AddTimeRelease(releaseTime int64, amount decimal.Decimal) error {
	if e.Status != EscrowActive {
		return &ConflictError{Resource: "escrow", Id: e.Id}
	}
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if releaseTime <= 0 {
		return &ValidationError{Field: "releaseTime", Reason: "must be a unix timestamp"}
	}
	e.TimeReleases = append(e.TimeReleases, TimeRelease{
		ReleaseTime: releaseTime,
		Amount:      amount,
	})
	e.TotalBudget = e.TotalBudget.Add(amount)
	return nil
}

// ReleaseTimeBased marks one schedule entry released and accounts the
// amount. An entry already released is a conflict, an entry not yet due is
// a validation failure.
func (e *EscrowRecord) ReleaseTimeBased(index int, now int64, txHash string) (decimal.Decimal, error) {
	if e.Status != EscrowActive {
		return decimal.Zero, &ConflictError{Resource: "escrow", Id: e.Id}
	}
	if index < 0 || index >= len(e.TimeReleases) {
		return decimal.Zero, fmt.Errorf("time release %d: %w", index, ErrNotFound)
	}
	entry := &e.TimeReleases[index]
	if entry.Released {
		return decimal.Zero, &ConflictError{Resource: "time release", Id: fmt.Sprintf("%d", index)}
	}
	if now < entry.ReleaseTime {
		return decimal.Zero, &ValidationError{
			Field: "releaseTime", Reason: "release time not reached",
		}
	}

	entry.Released = true
	entry.TxHash = txHash
	e.ReleasedAmount = e.ReleasedAmount.Add(entry.Amount)
	e.WithdrawableAmount = e.WithdrawableAmount.Add(entry.Amount)
	e.LastTxHash = txHash

	if e.ReleasedAmount.GreaterThanOrEqual(e.TotalBudget) {
		e.Status = EscrowCompleted
	}
	return entry.Amount, nil
}

// StartMilestone moves a milestone from Pending to InProgress.
func (e *EscrowRecord) StartMilestone(milestoneId string) error {
	if e.Status != EscrowActive {
		return &ConflictError{Resource: "escrow", Id: e.Id}
	}
	m, err := e.Milestone(milestoneId)
	if err != nil {
		return err
	}
	if m.Status != MilestonePending {
		return &ValidationError{Field: "milestone.status", Reason: "milestone already started"}
	}
	m.Status = MilestoneInProgress
	return nil
}

// Withdraw zeroes the withdrawable residual and appends a withdrawal record.
// ReleasedAmount is untouched so fund-conservation accounting stays monotone.
func (e *EscrowRecord) Withdraw(freelancer, txHash string) (decimal.Decimal, error) {
	if e.FreelancerAddress == "" || freelancer != e.FreelancerAddress {
		return decimal.Zero, &ValidationError{
			Field: "freelancerAddress", Reason: "not the assigned freelancer",
		}
	}
	if !e.WithdrawableAmount.IsPositive() {
		// one stroop, the smallest settlement unit
		return decimal.Zero, &InsufficientFundsError{
			Required:  decimal.New(1, -7),
			Available: e.WithdrawableAmount,
		}
	}
	amount := e.WithdrawableAmount
	e.WithdrawableAmount = decimal.Zero
	e.Withdrawals = append(e.Withdrawals, Withdrawal{
		Freelancer: freelancer,
		Amount:     amount,
		TxHash:     txHash,
		Timestamp:  time.Now().Unix(),
	})
	e.LastTxHash = txHash
	return amount, nil
}

// CheckInvariants verifies fund conservation on the record: released never
// exceeds the budget and always equals the sum of approved milestone
// budgets and released schedule entries.
func (e *EscrowRecord) CheckInvariants() error {
	if e.ReleasedAmount.GreaterThan(e.TotalBudget) {
		return fmt.Errorf(
			"released %s exceeds budget %s on escrow %s",
			e.ReleasedAmount.String(), e.TotalBudget.String(), e.Id,
		)
	}
	released := decimal.Zero
	for _, m := range e.Milestones {
		if m.Status == MilestoneApproved || m.Status == MilestoneCompleted {
			released = released.Add(m.Budget)
		}
	}
	for _, tr := range e.TimeReleases {
		if tr.Released {
			released = released.Add(tr.Amount)
		}
	}
	if !released.Equal(e.ReleasedAmount) {
		return fmt.Errorf(
			"accounted releases %s do not match released amount %s on escrow %s",
			released.String(), e.ReleasedAmount.String(), e.Id,
		)
	}
	return nil
}

// EscrowRepository stores the escrow records of the marketplace
type EscrowRepository interface {
	GetAll(ctx context.Context) ([]EscrowRecord, error)
	Get(ctx context.Context, escrowId string) (*EscrowRecord, error)
	Add(ctx context.Context, escrow EscrowRecord) error
	Update(ctx context.Context, escrow EscrowRecord) error
	Close()
}
