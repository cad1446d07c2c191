package wallet

import (
	"context"
	"testing"

	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

var ctx = context.Background()

const testKeyHex = "b7e151628aed2a6abf7158809cf4f3c762e7160f38b4da56a784d9045190cfef"

func TestNewServiceFromMnemonic(t *testing.T) {
	t.Run("valid mnemonic", func(t *testing.T) {
		entropy, err := bip39.NewEntropy(128)
		require.NoError(t, err)
		mnemonic, err := bip39.NewMnemonic(entropy)
		require.NoError(t, err)

		svc, err := NewServiceFromMnemonic(mnemonic, nil)
		require.NoError(t, err)
		require.NotEmpty(t, svc.Address())

		// the same mnemonic always derives the same key
		svc2, err := NewServiceFromMnemonic(mnemonic, nil)
		require.NoError(t, err)
		require.Equal(t, svc.Address(), svc2.Address())
	})

	t.Run("invalid mnemonic", func(t *testing.T) {
		_, err := NewServiceFromMnemonic("not a valid mnemonic at all", nil)
		require.Error(t, err)
	})
}

func TestSignAndVerify(t *testing.T) {
	svc, err := NewServiceFromKey(testKeyHex, nil)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		payload := []byte("escrow_id=e1|freelancer=f1|amount=900")
		sig, err := svc.Sign(ctx, payload)
		require.NoError(t, err)

		ok, err := svc.Verify(svc.Address(), payload, sig)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("mutated payload fails verification", func(t *testing.T) {
		payload := []byte("payload")
		sig, err := svc.Sign(ctx, payload)
		require.NoError(t, err)

		ok, err := svc.Verify(svc.Address(), []byte("payloae"), sig)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("wrong signer fails verification", func(t *testing.T) {
		other, err := NewServiceFromKey(
			"0000000000000000000000000000000000000000000000000000000000000001", nil,
		)
		require.NoError(t, err)

		payload := []byte("payload")
		sig, err := svc.Sign(ctx, payload)
		require.NoError(t, err)

		ok, err := other.Verify(other.Address(), payload, sig)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("garbage signature is a clean false", func(t *testing.T) {
		ok, err := svc.Verify(svc.Address(), []byte("payload"), []byte("not a signature"))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("garbage address is an error", func(t *testing.T) {
		_, err := svc.Verify("zz-not-hex", []byte("payload"), nil)
		require.Error(t, err)
	})
}

func TestApprover(t *testing.T) {
	t.Run("decline surfaces as user rejection", func(t *testing.T) {
		svc, err := NewServiceFromKey(testKeyHex, func(_ context.Context, _ []byte) bool {
			return false
		})
		require.NoError(t, err)

		_, err = svc.Sign(ctx, []byte("payload"))
		var rejectedErr *domain.UserRejectedError
		require.ErrorAs(t, err, &rejectedErr)
	})

	t.Run("approval sees the payload", func(t *testing.T) {
		var seen []byte
		svc, err := NewServiceFromKey(testKeyHex, func(_ context.Context, payload []byte) bool {
			seen = payload
			return true
		})
		require.NoError(t, err)

		_, err = svc.Sign(ctx, []byte("payload"))
		require.NoError(t, err)
		require.Equal(t, []byte("payload"), seen)
	})
}
