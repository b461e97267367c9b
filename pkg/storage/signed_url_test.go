package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("export-1", "assignments/export-1.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	exportID, relPath, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "export-1", exportID)
	require.Equal(t, "assignments/export-1.csv", relPath)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", 10*time.Millisecond)
	token, _, err := signer.Generate("export-1", "assignments/export-1.csv")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	// Cleanup still needs the metadata out of expired tokens.
	exportID, relPath, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "export-1", exportID)
	require.Equal(t, "assignments/export-1.csv", relPath)
}

func TestSignedURLSignerTamperedToken(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("export-1", "assignments/export-1.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "export-2"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	require.Error(t, err)

	other := NewSignedURLSigner("other-secret", time.Hour)
	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}
