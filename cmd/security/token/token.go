package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

const (
	// StoreKeyEnv is the env var name for the store root key.
	// #nosec G101 -- not a credential; it's an environment variable name.
	StoreKeyEnv = "TOKEX_STORE_KEY"

	// MinKeyBytes is the minimum accepted root key size for HMAC-SHA256.
	MinKeyBytes = 32
)

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	return hex.EncodeToString(hmacSHA256([]byte(s), key))
}

// SignHMACSHA256Base64 returns the standard base64 encoding of HMAC-SHA256(key, msg).
func SignHMACSHA256Base64(msg string, key []byte) string {
	return base64.StdEncoding.EncodeToString(hmacSHA256([]byte(msg), key))
}

// KeyFromString trims raw and enforces a minimum byte length.
// Blank input -> ErrKeyMissing, short input -> ErrKeyTooShort.
func KeyFromString(raw string, minBytes int) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrKeyTooShort
	}
	return b, nil
}

// SecureEqual compares two secrets in constant time.
// Empty values never match.
func SecureEqual(a, b string) bool {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func hmacSHA256(msg, key []byte) []byte {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write(msg)
	return m.Sum(nil)
}
