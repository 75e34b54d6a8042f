package gateway

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"tokex/cmd/internal/exchange"
	"tokex/cmd/internal/ids"
)

func (h *Handler) auditExchange(ctx context.Context, req exchange.Request, res exchange.Result, ip net.IP, ua string) {
	action := "exchange.success"
	var meta map[string]any
	if !res.Success {
		action = "exchange.failed"
		meta = map[string]any{"reason": res.Error}
	}
	h.insertAudit(ctx, auditEntry{
		Action:         action,
		Route:          routeDocumentRequest,
		OrganisationID: req.OrganisationID,
		Slug:           req.Slug,
		Code:           string(res.Code),
		IP:             ip,
		UserAgent:      ua,
		Meta:           meta,
	})
}

type auditEntry struct {
	Action         string
	Route          string
	OrganisationID string
	Slug           string
	Code           string
	IP             net.IP
	UserAgent      string
	Meta           map[string]any
}

func (h *Handler) insertAudit(ctx context.Context, e auditEntry) {
	if h == nil || h.pool == nil {
		return
	}

	action := strings.TrimSpace(e.Action)
	if action == "" {
		return
	}

	var ipVal any
	if e.IP != nil {
		ipVal = e.IP.String()
	}

	var metaVal *string
	if len(e.Meta) > 0 {
		if b, err := json.Marshal(e.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	_, err := h.pool.Exec(ctx, `
		INSERT INTO `+h.auditTable+` (
			id, action, route, organisation_id, slug, code, ip, user_agent, meta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, now())
	`, ids.MustULID(), action, trimOrNil(e.Route), trimOrNil(e.OrganisationID), trimOrNil(e.Slug),
		trimOrNil(e.Code), ipVal, trimOrNil(e.UserAgent), metaVal)
	if err != nil {
		h.log.Error("gateway.audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
