// Package presign mints short-lived, optionally scoped presign tokens.
//
// The caller's long-lived API key never leaves the gateway: it is exchanged upstream
// for a token whose lifetime is clamped to [5, 10080] minutes and whose capability can
// be narrowed with an opaque scope such as "templateId:42".
package presign

import (
	"context"
	"strconv"
	"strings"

	"tokex/cmd/internal/documenso"
)

// Minter is the upstream operation the Issuer depends on.
type Minter interface {
	CreatePresignToken(ctx context.Context, apiKey string, opts documenso.PresignOptions) (documenso.PresignToken, error)
}

// Options narrows a token. ExpiresIn is clamped before use; zero means DefaultExpiresIn.
type Options struct {
	ExpiresIn int
	Scope     string
}

// Token is an issued presign token. The upstream values are authoritative.
type Token struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	ExpiresIn int    `json:"expiresIn"`
}

// Issuer issues presign tokens through a Minter.
type Issuer struct {
	minter Minter
}

// NewIssuer constructs an Issuer.
func NewIssuer(m Minter) *Issuer {
	return &Issuer{minter: m}
}

// Issue mints a token for apiKey. Upstream failures are returned unchanged.
func (i *Issuer) Issue(ctx context.Context, apiKey string, opts Options) (Token, error) {
	expiresIn := DefaultExpiresIn
	if opts.ExpiresIn != 0 {
		expiresIn = ClampExpiresIn(float64(opts.ExpiresIn))
	}

	res, err := i.minter.CreatePresignToken(ctx, apiKey, documenso.PresignOptions{
		ExpiresIn: expiresIn,
		Scope:     strings.TrimSpace(opts.Scope),
	})
	if err != nil {
		return Token{}, err
	}
	return Token{Token: res.Token, ExpiresAt: res.ExpiresAt, ExpiresIn: res.ExpiresIn}, nil
}

// TemplateScope restricts a token to one template.
func TemplateScope(id int64) string {
	return "templateId:" + strconv.FormatInt(id, 10)
}
