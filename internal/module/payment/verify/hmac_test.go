package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHMACVerify(t *testing.T) {
	secret := []byte("webhook-secret")
	body := []byte(`{"payment_id":"abc","status":"paid"}`)

	t.Run("accepts a valid signature", func(t *testing.T) {
		v := NewHMAC(secret)
		assert.True(t, v.Verify(body, sign(secret, body)))
	})

	t.Run("accepts a valid signature with prefix", func(t *testing.T) {
		v := NewHMAC(secret)
		assert.True(t, v.Verify(body, "sha256="+sign(secret, body)))
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		v := NewHMAC(secret)
		tampered := []byte(`{"payment_id":"abc","status":"paid","amount_received":"999"}`)
		assert.False(t, v.Verify(tampered, sign(secret, body)))
	})

	t.Run("rejects a signature under a different secret", func(t *testing.T) {
		v := NewHMAC(secret)
		assert.False(t, v.Verify(body, sign([]byte("other-secret"), body)))
	})

	t.Run("rejects a wrong-length signature", func(t *testing.T) {
		v := NewHMAC(secret)
		assert.False(t, v.Verify(body, "deadbeef"))
	})

	t.Run("rejects non-hex signature", func(t *testing.T) {
		v := NewHMAC(secret)
		assert.False(t, v.Verify(body, "not-hex-at-all!"))
	})

	t.Run("rejects empty signature", func(t *testing.T) {
		v := NewHMAC(secret)
		assert.False(t, v.Verify(body, ""))
	})

	t.Run("rejects everything when secret is empty", func(t *testing.T) {
		v := NewHMAC(nil)
		assert.False(t, v.Verify(body, sign(nil, body)))
	})
}
