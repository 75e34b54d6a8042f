package gateway

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"tokex/cmd/internal/exchange"
	"tokex/cmd/internal/presign"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type documentRequestBody struct {
	APIKey         any             `json:"apiKey"`
	Credentials    any             `json:"credentials"`
	Slug           any             `json:"slug"`
	OrganisationID any             `json:"organisationId"`
	RecipientEmail any             `json:"recipientEmail"`
	ExpiresIn      json.RawMessage `json:"expiresIn"`
	Scope          any             `json:"scope"`
}

type documentRequestResponse struct {
	Link           string `json:"link"`
	ExpiresAt      string `json:"expiresAt"`
	ExpiresIn      int    `json:"expiresIn"`
	RecipientEmail string `json:"recipientEmail,omitempty"`
}

// documentRequestInput is the validated form of documentRequestBody: exactly one of
// APIKey or Exchange is set.
type documentRequestInput struct {
	APIKey         string
	Exchange       *exchange.Request
	RecipientEmail string
	ExpiresIn      int
	Scope          string
}

func parseDocumentRequest(body documentRequestBody) (documentRequestInput, *Failure) {
	in := documentRequestInput{
		RecipientEmail: normalizeEmail(body.RecipientEmail),
		ExpiresIn:      presign.ExpiresInFromJSON(body.ExpiresIn),
		Scope:          nonEmptyString(body.Scope),
	}

	if key := nonEmptyString(body.APIKey); key != "" {
		in.APIKey = key
		return in, nil
	}

	creds, isObject := body.Credentials.(map[string]any)
	slug := nonEmptyString(body.Slug)
	orgID := nonEmptyString(body.OrganisationID)
	if !isObject || slug == "" || orgID == "" {
		return documentRequestInput{}, failure(CodeInvalidRequest,
			"Provide either apiKey or credentials, slug and organisationId")
	}

	in.Exchange = &exchange.Request{Credentials: creds, Slug: slug, OrganisationID: orgID}
	return in, nil
}

func (h *Handler) handleDocumentRequest(w http.ResponseWriter, r *http.Request) {
	const route = routeDocumentRequest
	if !h.admit(w, r, route, http.MethodPost) {
		return
	}

	var body documentRequestBody
	if f := decodeJSON(w, r, h.cfg.MaxBodyBytes, &body); f != nil {
		h.fail(w, route, f)
		return
	}
	in, f := parseDocumentRequest(body)
	if f != nil {
		h.fail(w, route, f)
		return
	}
	if !h.requireUpstream(w, route) {
		return
	}

	ctx := r.Context()
	apiKey := in.APIKey
	if in.Exchange != nil {
		if h.exchanger == nil {
			h.fail(w, route, failure(CodeNotConfigured, "Credential exchange is not configured"))
			return
		}
		res := h.exchanger.Exchange(ctx, *in.Exchange)
		h.auditExchange(ctx, *in.Exchange, res, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
		if !res.Success {
			h.log.Info("gateway.exchange.fail", "code", res.Code, "organisation_id", in.Exchange.OrganisationID, "slug", in.Exchange.Slug)
			h.fail(w, route, failure(Code(res.Code), res.Error))
			return
		}
		apiKey = res.APIKey
	}

	tok, err := h.issuer.Issue(ctx, apiKey, presign.Options{ExpiresIn: in.ExpiresIn, Scope: in.Scope})
	if err != nil {
		h.log.Error("gateway.document_request.presign.fail", "err", err)
		h.fail(w, route, classify(err, false))
		return
	}

	h.ok(w, route, documentRequestResponse{
		Link:           h.upstream.TemplateAuthoringLink(tok.Token),
		ExpiresAt:      tok.ExpiresAt,
		ExpiresIn:      tok.ExpiresIn,
		RecipientEmail: in.RecipientEmail,
	})
}

func nonEmptyString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// normalizeEmail lowercases a plausible address and drops anything else.
func normalizeEmail(v any) string {
	s := strings.ToLower(nonEmptyString(v))
	if s == "" || !emailRe.MatchString(s) {
		return ""
	}
	return s
}
