package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

const SignatureHeader = "x-paystack-signature"

// Sign returns the hex-encoded HMAC-SHA512 of body keyed with the secret key.
func Sign(secretKey string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares the expected signature with the header value.
// The raw body must be the exact bytes received.
func ValidSignature(secretKey string, body []byte, signature string) bool {
	if secretKey == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secretKey, body)), []byte(signature))
}
