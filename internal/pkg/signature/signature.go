package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Outcome is the result of checking a delivery signature.
type Outcome int

const (
	Malformed Outcome = iota
	Mismatched
	Verified
)

func (o Outcome) String() string {
	switch o {
	case Verified:
		return "verified"
	case Mismatched:
		return "mismatched"
	default:
		return "malformed"
	}
}

// Result carries the outcome plus the hex digest computed over the payload,
// so callers can store computed and received signatures side by side.
type Result struct {
	Outcome  Outcome
	Computed string
}

// Verify checks receivedSignature against HMAC-SHA256(secret, payload). The
// signature is expected as hex; an empty or undecodable signature is
// Malformed. The comparison is constant time.
func Verify(payload []byte, receivedSignature string, secret []byte) Result {
	computed := Sign(payload, secret)

	// Hex case carries no bits. The MAC is compared on the decoded bytes,
	// so "AB" and "ab" are the same signature.
	sig := strings.ToLower(strings.TrimSpace(receivedSignature))
	if sig == "" {
		return Result{Outcome: Malformed, Computed: computed}
	}
	decoded, err := hex.DecodeString(sig)
	if err != nil || len(decoded) != sha256.Size {
		return Result{Outcome: Malformed, Computed: computed}
	}

	if verifyHMAC(payload, decoded, secret) {
		return Result{Outcome: Verified, Computed: computed}
	}
	return Result{Outcome: Mismatched, Computed: computed}
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(payload, expectedSig, secret []byte) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}
