package pos

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_StripsFractionalSeconds(t *testing.T) {
	t.Parallel()

	in := time.Date(2026, 3, 4, 5, 6, 7, 891_000_000, time.FixedZone("CET", 3600))
	assert.Equal(t, "2026-03-04T04:06:07Z", Timestamp(in))
}

func TestSign_Deterministic(t *testing.T) {
	t.Parallel()

	a := Sign("/apps/any/test", "2026-03-04T04:06:07Z", "secret")
	b := Sign("/apps/any/test", "2026-03-04T04:06:07Z", "secret")
	require.Equal(t, a, b)
	assert.NotEqual(t, a, Sign("/apps/any/test", "2026-03-04T04:06:08Z", "secret"))
	assert.NotEqual(t, a, Sign("/apps/any/other", "2026-03-04T04:06:07Z", "secret"))
	assert.NotEqual(t, a, Sign("/apps/any/test", "2026-03-04T04:06:07Z", "secret2"))
}

func TestSignedURL_CarriesChallenge(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	creds := Credentials{Host: "https://pos.example.com", AccessKey: "ak+1", SecretKey: "sk"}

	raw := SignedURL(creds, "/apps/any/test", now)
	require.True(t, strings.HasPrefix(raw, "https://pos.example.com/apps/any/test?"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "ak+1", q.Get("accesskey"))
	assert.Equal(t, "2026-03-04T05:06:07Z", q.Get("timestamp"))
	assert.Equal(t, Sign("/apps/any/test", "2026-03-04T05:06:07Z", "sk"), q.Get("signature"))
}

func TestNormalizeHost(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "pos.example.com", want: "https://pos.example.com"},
		{in: " pos.example.com/ ", want: "https://pos.example.com"},
		{in: "http://127.0.0.1:9000", want: "http://127.0.0.1:9000"},
		{in: "HTTPS://pos.example.com//", want: "HTTPS://pos.example.com"},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeHost(tc.in), "NormalizeHost(%q)", tc.in)
	}
}

func TestParseCredentials(t *testing.T) {
	t.Parallel()

	c, err := ParseCredentials(map[string]any{
		"host":      "pos.example.com/",
		"accessKey": " ak ",
		"secretKey": "sk",
		"password":  "pw",
		"appId":     float64(7),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pos.example.com", c.Host)
	assert.Equal(t, "ak", c.AccessKey)
	assert.Equal(t, "pw", c.Password)
	require.NotNil(t, c.AppID)
	assert.Equal(t, int64(7), *c.AppID)

	bad := []map[string]any{
		nil,
		{"accessKey": "ak", "secretKey": "sk"},
		{"host": "h", "accessKey": 5, "secretKey": "sk"},
		{"host": "h", "accessKey": "ak", "secretKey": "  "},
		{"host": "h", "accessKey": "ak", "secretKey": "sk", "password": 1},
		{"host": "h", "accessKey": "ak", "secretKey": "sk", "appId": 1.5},
	}
	for _, raw := range bad {
		_, err := ParseCredentials(raw)
		require.ErrorIs(t, err, ErrInvalidCredentials, "input %v", raw)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeProbe, m)

	m, err = ParseMode(" Session ")
	require.NoError(t, err)
	assert.Equal(t, ModeSession, m)

	_, err = ParseMode("both")
	require.Error(t, err)
}
