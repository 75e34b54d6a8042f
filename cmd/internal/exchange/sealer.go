package exchange

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"tokex/cmd/security/token"
)

const (
	sealInfo        = "tokex/api-key-seal/v1"
	fingerprintInfo = "tokex/pos-fingerprint/v1"
)

// ErrUnseal is returned when a sealed value cannot be opened with the configured key.
var ErrUnseal = errors.New("exchange: unseal failed")

// Sealer encrypts API keys at rest (XChaCha20-Poly1305) and fingerprints POS identities
// (HMAC-SHA256). Both keys are derived from one root key with HKDF-SHA256.
type Sealer struct {
	aead  cipher.AEAD
	fpKey []byte
}

// NewSealer derives the sealing and fingerprint keys from root (min token.MinKeyBytes).
func NewSealer(root []byte) (*Sealer, error) {
	if len(root) == 0 {
		return nil, token.ErrKeyMissing
	}
	if len(root) < token.MinKeyBytes {
		return nil, token.ErrKeyTooShort
	}

	sealKey, err := derive(root, sealInfo, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	fpKey, err := derive(root, fingerprintInfo, 32)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(sealKey)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead, fpKey: fpKey}, nil
}

// NewEphemeralSealer uses a random root key. Sealed values do not survive a restart.
func NewEphemeralSealer() (*Sealer, error) {
	root := make([]byte, 32)
	if _, err := rand.Read(root); err != nil {
		return nil, err
	}
	return NewSealer(root)
}

func derive(root []byte, info string, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, root, nil, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("exchange: derive key: %w", err)
	}
	return out, nil
}

// Seal encrypts plaintext bound to aad. Output is nonce || ciphertext.
func (s *Sealer) Seal(plaintext, aad string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(aad)), nil
}

// Open decrypts a value produced by Seal with the same aad.
func (s *Sealer) Open(sealed []byte, aad string) (string, error) {
	ns := s.aead.NonceSize()
	if len(sealed) < ns+s.aead.Overhead() {
		return "", ErrUnseal
	}
	pt, err := s.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(aad))
	if err != nil {
		return "", ErrUnseal
	}
	return string(pt), nil
}

// Fingerprint identifies a POS identity without storing its secret material.
func (s *Sealer) Fingerprint(host, accessKey string) string {
	return token.HashHMACSHA256Hex(host+"|"+accessKey, s.fpKey)
}

func orgAAD(id string) string  { return "organisation:" + id }
func teamAAD(id string) string { return "team:" + id }
