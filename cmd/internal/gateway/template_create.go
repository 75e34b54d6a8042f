package gateway

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"tokex/cmd/internal/documenso"
	"tokex/cmd/internal/presign"
)

type templateCreateResponse struct {
	ID            int64  `json:"id"`
	AuthoringLink string `json:"authoringLink"`
	ExpiresAt     string `json:"expiresAt"`
	ExpiresIn     int    `json:"expiresIn"`
}

const multipartMemory = 8 << 20

func (h *Handler) handleTemplateCreate(w http.ResponseWriter, r *http.Request) {
	const route = routeTemplateCreate
	if !h.admit(w, r, route, http.MethodPost) {
		return
	}

	apiKey := documensoAPIKey(r)
	if apiKey == "" {
		h.fail(w, route, failure(CodeInvalidRequest, missingAPIKeyMsg))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, route, failure(CodeInvalidRequest, "File is too large"))
			return
		}
		h.fail(w, route, failure(CodeInvalidRequest, "Invalid form data"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, fh, err := r.FormFile("file")
	if err != nil {
		h.fail(w, route, failure(CodeInvalidRequest, `Missing or invalid file. Send a PDF via multipart/form-data with key "file"`))
		return
	}
	defer func() { _ = file.Close() }()

	if mt, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type")); err != nil || mt != "application/pdf" {
		h.fail(w, route, failure(CodeInvalidRequest, "File must be a PDF (application/pdf)"))
		return
	}
	if !h.requireUpstream(w, route) {
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = strings.TrimSuffix(fh.Filename, ".pdf")
	}
	expiresIn := presign.ParseExpiresIn(r.FormValue("expiresIn"))

	ctx := r.Context()
	tpl, err := h.upstream.CreateTemplate(ctx, apiKey, documenso.TemplatePayload{Title: name}, fh.Filename, file)
	if err != nil {
		h.log.Error("gateway.template_create.upload.fail", "err", err)
		h.fail(w, route, classify(err, false))
		return
	}

	tok, err := h.issuer.Issue(ctx, apiKey, presign.Options{ExpiresIn: expiresIn, Scope: presign.TemplateScope(tpl.ID)})
	if err != nil {
		h.log.Error("gateway.template_create.presign.fail", "err", err, "template_id", tpl.ID)
		h.fail(w, route, classify(err, false))
		return
	}

	h.ok(w, route, templateCreateResponse{
		ID:            tpl.ID,
		AuthoringLink: h.upstream.TemplateEditAuthoringLink(tpl.ID, tok.Token),
		ExpiresAt:     tok.ExpiresAt,
		ExpiresIn:     tok.ExpiresIn,
	})
}
