package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	ErrMissingCredentials = errors.New("missing timestamp or signature")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrStaleTimestamp     = errors.New("handshake timestamp outside tolerance")
)

// Verifier validates worker handshake credentials signed with the shared secret.
type Verifier struct {
	secret  []byte
	maxSkew time.Duration
}

// NewVerifier creates a verifier. maxSkew bounds how far a handshake
// timestamp may deviate from master time; 0 disables the freshness check.
func NewVerifier(secret string, maxSkew time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), maxSkew: maxSkew}
}

// Sign computes hex(HMAC-SHA256(secret, workerID+timestamp)).
// The agent uses the same function to build its handshake.
func (v *Verifier) Sign(workerID, timestamp string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(workerID + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a worker's identity claim. timestamp is unix milliseconds
// as a decimal string. The signature comparison is constant time.
func (v *Verifier) Verify(workerID, timestamp, signature string) error {
	if timestamp == "" || signature == "" {
		return ErrMissingCredentials
	}

	expected := v.Sign(workerID, timestamp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}

	if v.maxSkew > 0 {
		ms, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return ErrStaleTimestamp
		}
		if d := time.Since(time.UnixMilli(ms)); d > v.maxSkew || d < -v.maxSkew {
			return ErrStaleTimestamp
		}
	}

	return nil
}
