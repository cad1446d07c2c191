package anchor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseChallenge(t *testing.T) {
	// any valid base64 stands in for a transaction envelope
	const tx = "AAAAAgAAAAB4"

	t.Run("transaction field", func(t *testing.T) {
		envelope, err := parseChallenge([]byte(`{"transaction":"` + tx + `","network_passphrase":"Test Net"}`))
		require.NoError(t, err)
		require.Equal(t, tx, envelope.Transaction)
		require.Equal(t, "Test Net", envelope.NetworkPassphrase)
	})

	t.Run("challenge field", func(t *testing.T) {
		envelope, err := parseChallenge([]byte(`{"challenge":"` + tx + `"}`))
		require.NoError(t, err)
		require.Equal(t, tx, envelope.Transaction)
	})

	t.Run("envelope field", func(t *testing.T) {
		envelope, err := parseChallenge([]byte(`{"envelope":"` + tx + `"}`))
		require.NoError(t, err)
		require.Equal(t, tx, envelope.Transaction)
	})

	t.Run("transaction wins over aliases", func(t *testing.T) {
		envelope, err := parseChallenge([]byte(`{"transaction":"` + tx + `","challenge":"b3RoZXI="}`))
		require.NoError(t, err)
		require.Equal(t, tx, envelope.Transaction)
	})

	t.Run("no known field", func(t *testing.T) {
		_, err := parseChallenge([]byte(`{"something_else":"value"}`))
		require.ErrorIs(t, err, ErrMissingChallengeField)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := parseChallenge([]byte(`<html>nope</html>`))
		require.ErrorIs(t, err, ErrMalformedChallenge)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := parseChallenge([]byte(`{"transaction":"not base64!!"}`))
		require.ErrorIs(t, err, ErrMalformedChallenge)
	})
}
