package anchor

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/openlancer/escrowd/internal/core/ports"
)

var (
	// ErrMissingChallengeField means none of the known challenge field names
	// were present in the authority response.
	ErrMissingChallengeField = errors.New("challenge field missing from authority response")

	// ErrMalformedChallenge means the challenge was present but not a valid
	// base64 transaction envelope.
	ErrMalformedChallenge = errors.New("malformed challenge encoding")
)

// parseChallenge isolates the authority response variability at the
// boundary: the challenge may appear under "transaction", "challenge" or
// "envelope". The caller only ever sees a well-formed envelope or a tagged
// parse error.
func parseChallenge(raw []byte) (*ports.ChallengeEnvelope, error) {
	var resp challengeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Join(ErrMalformedChallenge, err)
	}

	tx := resp.Transaction
	if tx == "" {
		tx = resp.Challenge
	}
	if tx == "" {
		tx = resp.Envelope
	}
	if tx == "" {
		return nil, ErrMissingChallengeField
	}

	if _, err := base64.StdEncoding.DecodeString(tx); err != nil {
		return nil, errors.Join(ErrMalformedChallenge, err)
	}

	return &ports.ChallengeEnvelope{
		Transaction:       tx,
		NetworkPassphrase: resp.NetworkPassphrase,
	}, nil
}
