package gateway

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

func (h *Handler) handleTemplates(w http.ResponseWriter, r *http.Request) {
	const route = routeTemplates
	if !h.admit(w, r, route, http.MethodGet, http.MethodPost) {
		return
	}

	apiKey := documensoAPIKey(r)
	if apiKey == "" {
		h.fail(w, route, failure(CodeInvalidRequest, missingAPIKeyMsg))
		return
	}
	if !h.requireUpstream(w, route) {
		return
	}

	q := r.URL.Query()
	page := max(1, intParam(q.Get("page"), 1))
	perPage := min(maxPerPage, max(1, intParam(q.Get("perPage"), defaultPerPage)))

	res, err := h.upstream.GetTemplates(r.Context(), apiKey, page, perPage)
	if err != nil {
		h.log.Error("gateway.templates.fail", "err", err)
		h.fail(w, route, classify(err, false))
		return
	}

	writeRawJSON(w, http.StatusOK, res.Raw)
	h.metrics.observe(route, "OK")
}

// intParam parses a query integer; blank, zero or malformed values yield def.
func intParam(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		return def
	}
	return n
}
