package documenso

import "encoding/json"

// PresignOptions are the create-presign-token inputs. ExpiresIn is in minutes.
type PresignOptions struct {
	ExpiresIn int    `json:"expiresIn"`
	Scope     string `json:"scope,omitempty"`
}

// PresignToken is the upstream create-presign-token result.
type PresignToken struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	ExpiresIn int    `json:"expiresIn"`
}

// TemplateListItem mirrors one entry of the upstream template listing.
type TemplateListItem struct {
	ID         int64       `json:"id"`
	ExternalID *string     `json:"externalId"`
	Type       string      `json:"type"`
	Title      string      `json:"title"`
	UserID     int64       `json:"userId"`
	TeamID     *int64      `json:"teamId"`
	CreatedAt  string      `json:"createdAt"`
	UpdatedAt  string      `json:"updatedAt"`
	DirectLink *DirectLink `json:"directLink,omitempty"`
}

// DirectLink is a template's public direct-signing link.
type DirectLink struct {
	Token   string `json:"token"`
	Enabled bool   `json:"enabled"`
}

// TemplatesPage is one page of templates. Raw keeps the upstream body byte for byte.
type TemplatesPage struct {
	Templates  []TemplateListItem `json:"templates"`
	TotalPages int                `json:"totalPages"`

	Raw json.RawMessage `json:"-"`
}

// TemplatePayload is the JSON "payload" part of a template upload.
type TemplatePayload struct {
	Title string `json:"title"`
}

// CreatedTemplate is the upstream create-template result.
type CreatedTemplate struct {
	EnvelopeID string `json:"envelopeId"`
	ID         int64  `json:"id"`
}

// PrefillField pre-populates one template field. Extra keys are forwarded as-is.
type PrefillField map[string]any

// EnvelopeRequest instantiates a template for one recipient. Optional fields are sent
// whenever the caller supplied them, empty values included.
type EnvelopeRequest struct {
	RecipientEmail string         `json:"recipientEmail"`
	RecipientName  *string        `json:"recipientName,omitempty"`
	Title          *string        `json:"title,omitempty"`
	PrefillFields  []PrefillField `json:"prefillFields,omitzero"`
}

// Envelope is the upstream create-envelope result.
type Envelope struct {
	EnvelopeID   string `json:"envelopeId"`
	SigningURL   string `json:"signingUrl"`
	SigningToken string `json:"signingToken"`
}
