package qrsign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Signer signs and verifies venue QR payloads with a shared server secret.
// The signature covers the mission/place binding, the nonce and the issue
// time, so a payload cannot be replayed against another mission or place.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) canonical(missionID, placeID, nonce string, issuedAt int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", missionID, placeID, nonce, issuedAt)
}

// Sign returns the hex-encoded HMAC-SHA256 signature for a payload.
func (s *Signer) Sign(missionID, placeID, nonce string, issuedAt int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(s.canonical(missionID, placeID, nonce, issuedAt)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the payload. Comparison is
// constant-time.
func (s *Signer) Verify(missionID, placeID, nonce string, issuedAt int64, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(s.canonical(missionID, placeID, nonce, issuedAt)))
	return hmac.Equal(sig, mac.Sum(nil))
}
