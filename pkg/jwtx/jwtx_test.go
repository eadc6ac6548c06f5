package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	signer, err := GenerateSignerEdDSA("test-key")
	require.NoError(t, err)

	now := time.Now().UTC()
	claims := NewAccessClaims("user-1", "a@x.com", "user", "A", time.Minute, "pocketlist", now)

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	verifier := NewVerifierEdDSA(signer.PublicKey(), "pocketlist")
	got, err := verifier.Verify(token)
	require.NoError(t, err)

	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "a@x.com", got.Email)
	require.Equal(t, "user", got.Role)
	require.Equal(t, "A", got.Name)
	require.NotEmpty(t, got.ID)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	t.Parallel()

	signer, err := GenerateSignerEdDSA("a")
	require.NoError(t, err)
	other, err := GenerateSignerEdDSA("b")
	require.NoError(t, err)

	token, err := signer.Sign(NewAccessClaims(
		"user-1", "a@x.com", "user", "A", time.Minute, "pocketlist", time.Now().UTC(),
	))
	require.NoError(t, err)

	_, err = NewVerifierEdDSA(other.PublicKey(), "pocketlist").Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	signer, err := GenerateSignerEdDSA("test-key")
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	token, err := signer.Sign(NewAccessClaims(
		"user-1", "a@x.com", "user", "A", time.Minute, "pocketlist", past,
	))
	require.NoError(t, err)

	_, err = NewVerifierEdDSA(signer.PublicKey(), "pocketlist").Verify(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsIssuerMismatch(t *testing.T) {
	t.Parallel()

	signer, err := GenerateSignerEdDSA("test-key")
	require.NoError(t, err)

	token, err := signer.Sign(NewAccessClaims(
		"user-1", "a@x.com", "user", "A", time.Minute, "other-issuer", time.Now().UTC(),
	))
	require.NoError(t, err)

	_, err = NewVerifierEdDSA(signer.PublicKey(), "pocketlist").Verify(token)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Parallel()

	signer, err := GenerateSignerEdDSA("test-key")
	require.NoError(t, err)

	_, err = NewVerifierEdDSA(signer.PublicKey(), "pocketlist").Verify("not.a.jwt")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestTimeToExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	claims := NewAccessClaims("u", "e", "user", "n", 15*time.Minute, "pocketlist", now)

	require.Equal(t, 15*time.Minute, claims.TimeToExpiry(now))
	require.Negative(t, claims.TimeToExpiry(now.Add(16*time.Minute)))
}
