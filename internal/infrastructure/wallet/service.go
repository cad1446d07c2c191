package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/openlancer/escrowd/internal/core/ports"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// Approver is the interactive confirmation hook. Signing suspends until it
// answers; a false answer surfaces as domain.UserRejectedError.
type Approver func(ctx context.Context, payload []byte) bool

type service struct {
	privKey  *btcec.PrivateKey
	pubKey   *btcec.PublicKey
	approver Approver
}

// NewServiceFromMnemonic derives the signing key from a BIP39 mnemonic and
// returns a wallet signer. A nil approver auto-approves every payload.
func NewServiceFromMnemonic(mnemonic string, approver Approver) (ports.WalletSigner, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive master key: %w", err)
	}
	child, err := master.NewChildKey(bip32.FirstHardenedChild)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	privKey, pubKey := btcec.PrivKeyFromBytes(child.Key)
	return &service{privKey: privKey, pubKey: pubKey, approver: approver}, nil
}

// NewServiceFromKey builds a signer from a raw hex private key. Used by
// tests and by setups that keep the key outside a mnemonic.
func NewServiceFromKey(privateKeyHex string, approver Approver) (ports.WalletSigner, error) {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	privKey, pubKey := btcec.PrivKeyFromBytes(raw)
	return &service{privKey: privKey, pubKey: pubKey, approver: approver}, nil
}

func (s *service) Address() string {
	return hex.EncodeToString(schnorr.SerializePubKey(s.pubKey))
}

func (s *service) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	if s.approver != nil && !s.approver(ctx, payload) {
		return nil, &domain.UserRejectedError{Op: "sign payload"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := sha256.Sum256(payload)
	sig, err := schnorr.Sign(s.privKey, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}
	return sig.Serialize(), nil
}

// Verify checks a schnorr signature against the hex-encoded x-only public
// key used as the signer's address.
func (s *service) Verify(address string, payload, signature []byte) (bool, error) {
	raw, err := hex.DecodeString(address)
	if err != nil {
		return false, fmt.Errorf("invalid address encoding: %w", err)
	}
	pubKey, err := schnorr.ParsePubKey(raw)
	if err != nil {
		return false, fmt.Errorf("invalid public key: %w", err)
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false, nil
	}
	digest := sha256.Sum256(payload)
	return sig.Verify(digest[:], pubKey), nil
}
