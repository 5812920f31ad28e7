package ws

import (
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveResumeToken derives a 32-byte resume token for a disconnected
// session from a server-held secret and the player/zone identifiers, using
// HKDF-SHA256 (golang.org/x/crypto/hkdf) so the token is reproducible
// without persisting it anywhere but Redis's grace-window record, where the
// session layer stores it on disconnect. VerifyResumeToken re-derives it
// and compares a presented token in constant time; Handler.tryResume does
// not call it and checks only that the grace window is still open.
func DeriveResumeToken(secret []byte, playerID, zoneID string) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, []byte(zoneID), []byte(playerID))
	token := make([]byte, 32)
	if _, err := io.ReadFull(r, token); err != nil {
		return nil, err
	}
	return token, nil
}

// VerifyResumeToken reports whether presented matches the token derived for
// playerID/zoneID, in constant time.
func VerifyResumeToken(secret []byte, playerID, zoneID string, presented []byte) bool {
	expected, err := DeriveResumeToken(secret, playerID, zoneID)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, presented)
}
