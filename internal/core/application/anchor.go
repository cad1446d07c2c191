package application

import (
	"context"
	"fmt"
	"time"

	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/openlancer/escrowd/internal/core/ports"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// StartOnRamp opens an interactive deposit session with the anchor and
// begins polling its status. The destination account must already trust
// the settlement asset; otherwise TrustlineRequiredError is surfaced and
// no transfer is attempted.
func (s *Service) StartOnRamp(
	ctx context.Context, account, authorityDomain string, amount decimal.Decimal,
) (*domain.AnchorSession, error) {
	acc, err := s.ledgerSvc.LoadAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	if !acc.Trustline[s.asset.Key()] {
		return nil, &domain.TrustlineRequiredError{
			Account:     account,
			AssetCode:   s.asset.Code,
			AssetIssuer: s.asset.Issuer,
		}
	}
	return s.startSession(ctx, domain.OnRamp, account, authorityDomain, amount)
}

// StartOffRamp opens an interactive withdrawal session with the anchor and
// begins polling its status.
func (s *Service) StartOffRamp(
	ctx context.Context, account, authorityDomain string, amount decimal.Decimal,
) (*domain.AnchorSession, error) {
	return s.startSession(ctx, domain.OffRamp, account, authorityDomain, amount)
}

func (s *Service) startSession(
	ctx context.Context, kind domain.SessionKind, account, authorityDomain string, amount decimal.Decimal,
) (*domain.AnchorSession, error) {
	if !amount.IsPositive() {
		return nil, &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	cred, err := s.Authenticate(ctx, account, authorityDomain)
	if err != nil {
		return nil, err
	}

	var interactive *ports.InteractiveSession
	err = s.retryPolicy.Do(ctx, func(ctx context.Context) error {
		var err error
		if kind == domain.OnRamp {
			interactive, err = s.anchorSvc.CreateDeposit(
				ctx, cred.Token, authorityDomain, account, s.asset.Code, amount,
			)
		} else {
			interactive, err = s.anchorSvc.CreateWithdrawal(
				ctx, cred.Token, authorityDomain, account, s.asset.Code, amount,
			)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	session := domain.AnchorSession{
		Id:              interactive.Id,
		Kind:            kind,
		Status:          domain.StatusPendingUserTransferStart,
		AuthorityDomain: authorityDomain,
		Account:         account,
		InteractiveUrl:  interactive.Url,
		Amount:          amount,
		Currency:        s.asset.Code,
		StartedAt:       time.Now().Unix(),
	}
	if err := s.repoManager.Session().Add(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	if err := s.schedulerSvc.SchedulePoll(
		sessionTag(session.Id), s.pollInterval,
		func() { s.pollSession(session.Id) },
	); err != nil {
		// A persisted session nobody polls would stay pending forever.
		session.Status = domain.StatusError
		if updErr := s.repoManager.Session().Update(ctx, session); updErr != nil {
			logrus.WithError(updErr).WithField("session", session.Id).
				Warn("failed to mark unpolled session errored")
		}
		return nil, fmt.Errorf("failed to schedule session polling: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"session": session.Id, "kind": kind.String(), "amount": amount.String(),
	}).Info("anchor session started")
	s.notify(ctx, "session_started", session.Id, kind.String()+" session open")

	return &session, nil
}

// pollSession runs one status poll for a session. Terminal statuses stop
// the polling job unconditionally.
func (s *Service) pollSession(sessionId string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.pollInterval)
	defer cancel()

	session, err := s.repoManager.Session().Get(ctx, sessionId)
	if err != nil {
		logrus.WithError(err).WithField("session", sessionId).Warn("poll: session lookup failed")
		return
	}
	if session.Status.IsTerminal() {
		s.schedulerSvc.CancelPoll(sessionTag(sessionId))
		return
	}

	// Never poll with a stale credential; re-run the handshake on expiry.
	cred, err := s.Authenticate(ctx, session.Account, session.AuthorityDomain)
	if err != nil {
		logrus.WithError(err).WithField("session", sessionId).Warn("poll: authentication failed")
		return
	}

	var status *ports.TransferStatus
	err = s.retryPolicy.Do(ctx, func(ctx context.Context) error {
		var err error
		status, err = s.anchorSvc.GetTransferStatus(ctx, cred.Token, session.AuthorityDomain, sessionId)
		return err
	})
	if err != nil {
		logrus.WithError(err).WithField("session", sessionId).Warn("poll: status query failed")
		return
	}

	next := domain.SessionStatus(status.Status)
	session.LastPolledAt = time.Now().Unix()
	if next != session.Status {
		logrus.WithFields(logrus.Fields{
			"session": sessionId, "from": session.Status, "to": next,
		}).Info("anchor session status changed")
		session.Status = next
		s.notify(ctx, "session_status", sessionId, string(next))
	}
	if err := s.repoManager.Session().Update(ctx, *session); err != nil {
		logrus.WithError(err).WithField("session", sessionId).Warn("poll: failed to persist session")
		return
	}

	if next.IsTerminal() {
		s.schedulerSvc.CancelPoll(sessionTag(sessionId))
		logrus.WithFields(logrus.Fields{
			"session": sessionId, "status": next,
		}).Info("anchor session closed")
	}
}

// StopPolling cancels the polling job for a session, used on user cancel
// and component teardown.
func (s *Service) StopPolling(sessionId string) {
	s.schedulerSvc.CancelPoll(sessionTag(sessionId))
}

func (s *Service) GetSession(ctx context.Context, sessionId string) (*domain.AnchorSession, error) {
	return s.repoManager.Session().Get(ctx, sessionId)
}

func (s *Service) ListSessions(ctx context.Context) ([]domain.AnchorSession, error) {
	return s.repoManager.Session().GetAll(ctx)
}

// EstablishTrustline submits the one-time, separately signed change-trust
// operation for the settlement asset.
func (s *Service) EstablishTrustline(ctx context.Context, account string) (string, error) {
	ops := []ports.Operation{{
		Type:        ports.OpChangeTrust,
		Source:      account,
		AssetCode:   s.asset.Code,
		AssetIssuer: s.asset.Issuer,
	}}
	result, err := s.ledgerSvc.BuildAndSubmit(ctx, ops, "trust:"+s.asset.Code)
	if err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{
		"account": account, "asset": s.asset.Key(), "tx": result.Hash,
	}).Info("trustline established")
	return result.Hash, nil
}

func sessionTag(sessionId string) string {
	return "session:" + sessionId
}
