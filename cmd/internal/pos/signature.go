package pos

import (
	"net/url"
	"time"

	"tokex/cmd/security/token"
)

// TimestampLayout is the challenge timestamp format: UTC, seconds precision, Z suffix.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Timestamp formats now for a signed challenge. Fractional seconds are dropped.
func Timestamp(now time.Time) string {
	return now.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// Sign returns base64(HMAC-SHA256(secretKey, path+timestamp)).
// It is deterministic for a given (path, timestamp, secretKey).
func Sign(path, timestamp, secretKey string) string {
	return token.SignHMACSHA256Base64(path+timestamp, []byte(secretKey))
}

// Challenge is one signed (path, timestamp) pair. It is computed per outbound call.
type Challenge struct {
	AccessKey string
	Timestamp string
	Signature string
}

// NewChallenge signs path for creds at now.
func NewChallenge(creds Credentials, path string, now time.Time) Challenge {
	ts := Timestamp(now)
	return Challenge{
		AccessKey: creds.AccessKey,
		Timestamp: ts,
		Signature: Sign(path, ts, creds.SecretKey),
	}
}

// Query encodes the challenge as the accesskey/timestamp/signature query string.
func (c Challenge) Query() string {
	q := url.Values{}
	q.Set("accesskey", c.AccessKey)
	q.Set("timestamp", c.Timestamp)
	q.Set("signature", c.Signature)
	return q.Encode()
}

// SignedURL returns host+path with the challenge query attached.
func SignedURL(creds Credentials, path string, now time.Time) string {
	return creds.Host + path + "?" + NewChallenge(creds, path, now).Query()
}
