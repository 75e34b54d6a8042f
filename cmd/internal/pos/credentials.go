package pos

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidCredentials is the kind for every credential narrowing failure.
	ErrInvalidCredentials = errors.New("invalid pos credentials")
)

// Credentials is the typed form of a POS integration identity.
type Credentials struct {
	Host      string
	AccessKey string
	SecretKey string
	Password  string
	AppID     *int64
}

// FieldError reports which credential field failed narrowing.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrInvalidCredentials, e.Field, e.Reason)
}

func (e FieldError) Unwrap() error { return ErrInvalidCredentials }

// ParseCredentials narrows an untyped credentials object (decoded JSON) into Credentials.
// host, accessKey and secretKey must be non-empty strings. password must be a string when
// present; appId must be an integral number when present.
func ParseCredentials(raw map[string]any) (Credentials, error) {
	if raw == nil {
		return Credentials{}, FieldError{Field: "credentials", Reason: "must be an object"}
	}

	var c Credentials
	var err error

	if c.Host, err = requiredString(raw, "host"); err != nil {
		return Credentials{}, err
	}
	if c.AccessKey, err = requiredString(raw, "accessKey"); err != nil {
		return Credentials{}, err
	}
	if c.SecretKey, err = requiredString(raw, "secretKey"); err != nil {
		return Credentials{}, err
	}

	if v, ok := raw["password"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return Credentials{}, FieldError{Field: "password", Reason: "must be a string"}
		}
		c.Password = s
	}

	if v, ok := raw["appId"]; ok && v != nil {
		n, ok := v.(float64)
		if !ok || n != math.Trunc(n) || math.IsInf(n, 0) {
			return Credentials{}, FieldError{Field: "appId", Reason: "must be an integer"}
		}
		id := int64(n)
		c.AppID = &id
	}

	c.Host = NormalizeHost(c.Host)
	return c, nil
}

func requiredString(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", FieldError{Field: key, Reason: "is required"}
	}
	s, ok := v.(string)
	if !ok {
		return "", FieldError{Field: key, Reason: "must be a string"}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", FieldError{Field: key, Reason: "is required"}
	}
	return s, nil
}

// NormalizeHost returns host as an absolute URL without a trailing slash.
// Hosts without a scheme default to https.
func NormalizeHost(host string) string {
	h := strings.TrimSpace(host)
	if h == "" {
		return ""
	}
	lower := strings.ToLower(h)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		h = "https://" + h
	}
	return strings.TrimRight(h, "/")
}
