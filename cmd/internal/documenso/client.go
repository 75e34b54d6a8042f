// Package documenso is the HTTP client for the upstream e-signature API.
//
// Every call authenticates with the caller's API key as a bearer token. Failures come
// back as *HTTPError (non-2xx) or *NetworkError (transport, timeout, undecodable body).
// No call is retried.
package documenso

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds one upstream call.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 8 << 20

	opPresign        = "create-presign-token"
	opGetTemplates   = "get-templates"
	opCreateTemplate = "create-template"
	opCreateEnvelope = "create-envelope"
)

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one upstream deployment.
type Client struct {
	baseURL string
	http    HTTPDoer
	timeout time.Duration
	metrics *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(d HTTPDoer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMetrics records call outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a Client for baseURL. A trailing slash is dropped.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("documenso: invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL: base,
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized upstream base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// CreatePresignToken mints a short-lived presign token for apiKey.
func (c *Client) CreatePresignToken(ctx context.Context, apiKey string, opts PresignOptions) (PresignToken, error) {
	body, err := json.Marshal(opts)
	if err != nil {
		return PresignToken{}, &NetworkError{Op: opPresign, Err: err}
	}

	var out PresignToken
	err = c.do(ctx, opPresign, apiKey, http.MethodPost, "/api/v2-beta/embedding/create-presign-token",
		"application/json", bytes.NewReader(body), func(raw []byte) error {
			return json.Unmarshal(raw, &out)
		})
	return out, err
}

// GetTemplates lists one page of templates visible to apiKey.
func (c *Client) GetTemplates(ctx context.Context, apiKey string, page, perPage int) (TemplatesPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("perPage", strconv.Itoa(perPage))
	}
	path := "/api/v1/templates"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out TemplatesPage
	err := c.do(ctx, opGetTemplates, apiKey, http.MethodGet, path, "", nil, func(raw []byte) error {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
		out.Raw = append(json.RawMessage(nil), raw...)
		return nil
	})
	return out, err
}

// CreateTemplate uploads a PDF as a new template titled payload.Title.
func (c *Client) CreateTemplate(ctx context.Context, apiKey string, payload TemplatePayload, filename string, file io.Reader) (CreatedTemplate, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	pj, err := json.Marshal(payload)
	if err != nil {
		return CreatedTemplate{}, &NetworkError{Op: opCreateTemplate, Err: err}
	}
	if err := mw.WriteField("payload", string(pj)); err != nil {
		return CreatedTemplate{}, &NetworkError{Op: opCreateTemplate, Err: err}
	}

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return CreatedTemplate{}, &NetworkError{Op: opCreateTemplate, Err: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return CreatedTemplate{}, &NetworkError{Op: opCreateTemplate, Err: err}
	}
	if err := mw.Close(); err != nil {
		return CreatedTemplate{}, &NetworkError{Op: opCreateTemplate, Err: err}
	}

	var out CreatedTemplate
	err = c.do(ctx, opCreateTemplate, apiKey, http.MethodPost, "/api/v2-beta/template/create",
		mw.FormDataContentType(), &buf, func(raw []byte) error {
			return json.Unmarshal(raw, &out)
		})
	return out, err
}

// CreateEnvelope instantiates template templateID for one recipient.
func (c *Client) CreateEnvelope(ctx context.Context, apiKey, templateID string, req EnvelopeRequest) (Envelope, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Envelope{}, &NetworkError{Op: opCreateEnvelope, Err: err}
	}

	var out Envelope
	err = c.do(ctx, opCreateEnvelope, apiKey, http.MethodPost,
		"/api/v2/template/"+url.PathEscape(templateID)+"/create-envelope",
		"application/json", bytes.NewReader(body), func(raw []byte) error {
			return json.Unmarshal(raw, &out)
		})
	return out, err
}

func (c *Client) do(ctx context.Context, op, apiKey, method, path, contentType string, body io.Reader, decode func([]byte) error) (err error) {
	defer func() { c.metrics.observe(op, err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(op, resp.StatusCode, raw)
	}
	if err := decode(raw); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
