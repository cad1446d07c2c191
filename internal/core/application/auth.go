package application

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/openlancer/escrowd/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// fallbackTokenTTL is assumed when the authority token carries no expiry.
const fallbackTokenTTL = 15 * time.Minute

// Authenticate runs the three-step challenge handshake against the
// authority and returns a bearer credential scoped to exactly this
// (account, authorityDomain) pair. A cached, unexpired credential is
// reused; a rejected exchange restarts from a fresh challenge, never by
// resubmitting the stale envelope.
func (s *Service) Authenticate(
	ctx context.Context, account, authorityDomain string,
) (*domain.AuthCredential, error) {
	s.credMu.Lock()
	cached := s.credentials[account+"@"+authorityDomain]
	s.credMu.Unlock()
	if cached.Valid(account, authorityDomain, time.Now()) {
		return cached, nil
	}

	// Step 1: request the challenge envelope. Transient failures retry.
	var envelope *ports.ChallengeEnvelope
	err := s.retryPolicy.Do(ctx, func(ctx context.Context) error {
		var err error
		envelope, err = s.anchorSvc.GetChallenge(ctx, account, authorityDomain)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Step 2: sign the envelope without modification. User may decline.
	signedEnvelope, err := s.walletSvc.Sign(ctx, []byte(envelope.Transaction))
	if err != nil {
		return nil, err
	}

	// Step 3: exchange for a token. A rejection here is terminal for this
	// attempt; only network failures retry.
	var token string
	err = s.retryPolicy.Do(ctx, func(ctx context.Context) error {
		var err error
		token, err = s.anchorSvc.ExchangeToken(ctx, string(signedEnvelope), authorityDomain)
		return err
	})
	if err != nil {
		return nil, err
	}

	cred := &domain.AuthCredential{
		Account:         account,
		AuthorityDomain: authorityDomain,
		Token:           token,
		ExpiresAt:       tokenExpiry(token),
	}

	s.credMu.Lock()
	s.credentials[account+"@"+authorityDomain] = cred
	s.credMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"account": account, "authority": authorityDomain, "expires": cred.ExpiresAt,
	}).Debug("authenticated with anchor authority")
	return cred, nil
}

// tokenExpiry reads the exp claim from the bearer JWT. The signature is the
// authority's concern, only the expiry matters locally.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Now().Add(fallbackTokenTTL)
}
