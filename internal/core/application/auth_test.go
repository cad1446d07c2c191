package application_test

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	t.Run("handshake yields a scoped credential", func(t *testing.T) {
		env := newTestEnv()

		cred, err := env.svc.Authenticate(ctx, "acct", "anchor.example.com")
		require.NoError(t, err)
		require.Equal(t, "acct", cred.Account)
		require.Equal(t, "anchor.example.com", cred.AuthorityDomain)
		require.Equal(t, "bearer-token", cred.Token)
		require.Equal(t, 1, env.anchor.challengeCalls)
		require.Equal(t, 1, env.anchor.exchangeCalls)
		require.Equal(t, 1, env.wallet.signCalls)
	})

	t.Run("credential is cached per account and authority", func(t *testing.T) {
		env := newTestEnv()

		_, err := env.svc.Authenticate(ctx, "acct", "anchor.example.com")
		require.NoError(t, err)
		_, err = env.svc.Authenticate(ctx, "acct", "anchor.example.com")
		require.NoError(t, err)
		require.Equal(t, 1, env.anchor.challengeCalls)

		// a different scope restarts the handshake
		_, err = env.svc.Authenticate(ctx, "acct", "other.example.com")
		require.NoError(t, err)
		require.Equal(t, 2, env.anchor.challengeCalls)
		_, err = env.svc.Authenticate(ctx, "acct2", "anchor.example.com")
		require.NoError(t, err)
		require.Equal(t, 3, env.anchor.challengeCalls)
	})

	t.Run("transient challenge failures retry", func(t *testing.T) {
		env := newTestEnv()
		env.anchor.challengeErrs = []error{
			&domain.NetworkError{Op: "get challenge", Err: errors.New("connection reset")},
		}

		cred, err := env.svc.Authenticate(ctx, "acct", "anchor.example.com")
		require.NoError(t, err)
		require.NotNil(t, cred)
		require.Equal(t, 2, env.anchor.challengeCalls)
	})

	t.Run("rejected exchange is not retried", func(t *testing.T) {
		env := newTestEnv()
		env.anchor.exchangeErrs = []error{
			&domain.InvalidSignatureError{Subject: "auth challenge"},
		}

		_, err := env.svc.Authenticate(ctx, "acct", "anchor.example.com")
		var sigErr *domain.InvalidSignatureError
		require.ErrorAs(t, err, &sigErr)
		require.Equal(t, 1, env.anchor.exchangeCalls)
	})

	t.Run("declined signature aborts before the exchange", func(t *testing.T) {
		env := newTestEnv()
		env.wallet.signErr = &domain.UserRejectedError{Op: "sign challenge"}

		_, err := env.svc.Authenticate(ctx, "acct", "anchor.example.com")
		var rejectedErr *domain.UserRejectedError
		require.ErrorAs(t, err, &rejectedErr)
		require.Equal(t, 0, env.anchor.exchangeCalls)
	})

	t.Run("token expiry is read from the exp claim", func(t *testing.T) {
		env := newTestEnv()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": float64(1999999999),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		env.anchor.token = token

		cred, err := env.svc.Authenticate(ctx, "acct", "anchor.example.com")
		require.NoError(t, err)
		require.Equal(t, int64(1999999999), cred.ExpiresAt.Unix())
	})
}
