package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signaturePrefix is an optional prefix some senders put in front of the
// hex signature.
const signaturePrefix = "sha256="

// HMACVerifier validates webhook authenticity with a symmetric secret:
// HMAC-SHA256 over the raw body, compared in constant time against the
// claimed signature.
type HMACVerifier struct {
	secret []byte
}

// NewHMAC creates a verifier for the given shared secret.
func NewHMAC(secret []byte) *HMACVerifier {
	return &HMACVerifier{secret: secret}
}

// Verify reports whether claimed is a valid HMAC-SHA256 of rawBody under
// the shared secret. It fails closed: a panicking crypto backend, an
// undecodable signature, or a length mismatch all yield false. The
// length check short-circuits before the constant-time comparison;
// differing lengths are not a secret-dependent branch.
func (v *HMACVerifier) Verify(rawBody []byte, claimed string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	if len(v.secret) == 0 || claimed == "" {
		return false
	}

	claimed = strings.TrimPrefix(claimed, signaturePrefix)
	claimedBytes, err := hex.DecodeString(claimed)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	if len(claimedBytes) != len(expected) {
		return false
	}
	return hmac.Equal(claimedBytes, expected)
}
