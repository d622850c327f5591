package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate(PurposeUpload, "blob-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	purpose, subject, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, PurposeUpload, purpose)
	require.Equal(t, "blob-1", subject)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	base := time.Now()
	signer.now = func() time.Time { return base }
	token, _, err := signer.Generate(PurposeDownload, "blob-1")
	require.NoError(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, _, _, err = signer.Parse(token, false)
	require.ErrorIs(t, err, ErrTokenExpired)

	purpose, subject, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, PurposeDownload, purpose)
	require.Equal(t, "blob-1", subject)
}

func TestSignedURLSignerRejectsTamperingAndWrongPurpose(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate(PurposeDownload, "blob-1")
	require.NoError(t, err)

	_, err = signer.Verify(token, PurposeUpload)
	require.ErrorIs(t, err, ErrInvalidToken)

	subject, err := signer.Verify(token, PurposeDownload)
	require.NoError(t, err)
	require.Equal(t, "blob-1", subject)

	other := NewSignedURLSigner("other", time.Hour)
	_, err = other.Verify(token, PurposeDownload)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Verify("garbage", PurposeDownload)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignedURLSignerWithTTL(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	short := signer.WithTTL(time.Minute)
	_, exp, err := short.Generate(PurposeUpload, "blob-2")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)
}
