// Package token provides the keyed-hash and comparison primitives shared by tokex.
//
// It is the single source of truth for:
//   - POS challenge signing: base64(HMAC-SHA256(secret, message)).
//   - Integration fingerprints: hex(HMAC-SHA256(key, message)), stable 64-char output.
//   - Constant-time comparison of caller-supplied secrets.
//
// Environment:
//   - TOKEX_STORE_KEY: root key for fingerprints and at-rest sealing (min 32 bytes).
package token
