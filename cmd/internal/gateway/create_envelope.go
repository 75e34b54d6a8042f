package gateway

import (
	"net/http"
	"strings"

	"tokex/cmd/internal/documenso"
)

type createEnvelopeBody struct {
	RecipientEmail any `json:"recipientEmail"`
	RecipientName  any `json:"recipientName"`
	Title          any `json:"title"`
	PrefillFields  any `json:"prefillFields"`
}

// toRequest keeps only well-typed optional fields; the rest are dropped. A present
// empty string is forwarded so the upstream can reject it.
func (b createEnvelopeBody) toRequest() (documenso.EnvelopeRequest, *Failure) {
	email := nonEmptyString(b.RecipientEmail)
	if email == "" {
		return documenso.EnvelopeRequest{}, failure(CodeInvalidRequest, "recipientEmail is required and must be a non-empty string")
	}

	req := documenso.EnvelopeRequest{RecipientEmail: email}
	if s, ok := b.RecipientName.(string); ok {
		req.RecipientName = &s
	}
	if s, ok := b.Title.(string); ok {
		req.Title = &s
	}
	if list, ok := b.PrefillFields.([]any); ok {
		req.PrefillFields = make([]documenso.PrefillField, 0, len(list))
		for _, item := range list {
			if obj, ok := item.(map[string]any); ok {
				req.PrefillFields = append(req.PrefillFields, documenso.PrefillField(obj))
			}
		}
	}
	return req, nil
}

func (h *Handler) handleCreateEnvelope(w http.ResponseWriter, r *http.Request) {
	const route = routeCreateEnvelope
	if !h.admit(w, r, route, http.MethodPost) {
		return
	}

	apiKey := documensoAPIKey(r)
	if apiKey == "" {
		h.fail(w, route, failure(CodeInvalidRequest, missingAPIKeyMsg))
		return
	}

	templateID := strings.TrimSpace(r.PathValue("templateEnvelopeId"))
	if templateID == "" {
		h.fail(w, route, failure(CodeInvalidRequest, "Missing templateEnvelopeId in path"))
		return
	}

	var body createEnvelopeBody
	if f := decodeJSON(w, r, h.cfg.MaxBodyBytes, &body); f != nil {
		h.fail(w, route, f)
		return
	}
	req, f := body.toRequest()
	if f != nil {
		h.fail(w, route, f)
		return
	}
	if !h.requireUpstream(w, route) {
		return
	}

	env, err := h.upstream.CreateEnvelope(r.Context(), apiKey, templateID, req)
	if err != nil {
		h.log.Error("gateway.create_envelope.fail", "err", err, "template_id", templateID)
		h.fail(w, route, classify(err, true))
		return
	}

	h.ok(w, route, env)
}
