package ports

import "context"

// WalletSigner is the external signing capability. Signing is the only
// suspension point that requires human interaction and may be declined,
// which surfaces as domain.UserRejectedError.
type WalletSigner interface {
	Address() string
	Sign(ctx context.Context, payload []byte) ([]byte, error)
	Verify(address string, payload, signature []byte) (bool, error)
}
