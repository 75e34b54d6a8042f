package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all runtime configuration. It is built once by LoadConfig and passed by value.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// SharedSecret authenticates gateway callers. Empty means every gateway route
	// answers NOT_CONFIGURED.
	SharedSecret string

	DocumensoURL    string
	UpstreamTimeout time.Duration

	POSVerifyMode  string
	POSProbePath   string
	POSSessionPath string
	POSTimeout     time.Duration

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// StoreKey is the root key for sealing API keys at rest.
	StoreKey string

	ReadinessRequireDB bool

	TrustProxy     bool
	MaxBodyBytes   int64
	MaxUploadBytes int64
	AuthFailMax    int
	AuthFailWindow time.Duration

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	MetricsEnabled bool
}

// envBindings maps config keys to the environment variables that feed them, in priority order.
var envBindings = map[string][]string{
	"http_addr":                {"TOKEX_HTTP_ADDR"},
	"log_level":                {"TOKEX_LOG_LEVEL"},
	"log_format":               {"TOKEX_LOG_FORMAT"},
	"http_read_header_timeout": {"TOKEX_HTTP_READ_HEADER_TIMEOUT"},
	"http_read_timeout":        {"TOKEX_HTTP_READ_TIMEOUT"},
	"http_write_timeout":       {"TOKEX_HTTP_WRITE_TIMEOUT"},
	"http_idle_timeout":        {"TOKEX_HTTP_IDLE_TIMEOUT"},
	"http_max_header_bytes":    {"TOKEX_HTTP_MAX_HEADER_BYTES"},
	"shared_secret":            {"TOKEN_EXCHANGE_SECRET", "TOKEX_SHARED_SECRET"},
	"documenso_url":            {"DOCUMENSO_URL", "NEXT_PUBLIC_DOCUMENSO_URL"},
	"upstream_timeout":         {"TOKEX_UPSTREAM_TIMEOUT"},
	"pos_verify_mode":          {"TOKEX_POS_VERIFY_MODE"},
	"pos_probe_path":           {"TOKEX_POS_PROBE_PATH"},
	"pos_session_path":         {"TOKEX_POS_SESSION_PATH"},
	"pos_timeout":              {"TOKEX_POS_TIMEOUT"},
	"database_url":             {"TOKEX_DATABASE_URL"},
	"db_schema":                {"TOKEX_DB_SCHEMA"},
	"db_max_conns":             {"TOKEX_DB_MAX_CONNS"},
	"db_min_conns":             {"TOKEX_DB_MIN_CONNS"},
	"store_key":                {"TOKEX_STORE_KEY"},
	"readiness_require_db":     {"TOKEX_READINESS_REQUIRE_DB"},
	"trust_proxy":              {"TOKEX_TRUST_PROXY"},
	"max_body_bytes":           {"TOKEX_MAX_BODY_BYTES"},
	"max_upload_bytes":         {"TOKEX_MAX_UPLOAD_BYTES"},
	"auth_fail_max":            {"TOKEX_AUTH_FAIL_MAX"},
	"auth_fail_window":         {"TOKEX_AUTH_FAIL_WINDOW"},
	"cors_allowed_origins":     {"TOKEX_CORS_ALLOWED_ORIGINS"},
	"cors_allow_credentials":   {"TOKEX_CORS_ALLOW_CREDENTIALS"},
	"cors_max_age_seconds":     {"TOKEX_CORS_MAX_AGE_SECONDS"},
	"metrics_enabled":          {"TOKEX_METRICS_ENABLED"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", "0.0.0.0:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("http_read_header_timeout", 5*time.Second)
	v.SetDefault("http_read_timeout", 60*time.Second)
	v.SetDefault("http_write_timeout", 90*time.Second)
	v.SetDefault("http_idle_timeout", 60*time.Second)
	v.SetDefault("http_max_header_bytes", 1<<20)

	v.SetDefault("upstream_timeout", 30*time.Second)

	v.SetDefault("pos_verify_mode", "probe")
	v.SetDefault("pos_timeout", 15*time.Second)

	v.SetDefault("db_schema", "tokex")
	v.SetDefault("db_max_conns", 10)
	v.SetDefault("db_min_conns", 0)

	v.SetDefault("max_body_bytes", 1<<20)
	v.SetDefault("max_upload_bytes", 50<<20)
	v.SetDefault("auth_fail_max", 0)
	v.SetDefault("auth_fail_window", 5*time.Minute)

	v.SetDefault("cors_allowed_origins", "*")
	v.SetDefault("cors_max_age_seconds", 600)

	v.SetDefault("metrics_enabled", true)
}

// LoadConfig reads defaults, then the optional config file, then the environment.
// An explicit configFile must exist; otherwise tokex.yaml is looked up in the working
// directory and silently skipped when absent.
func LoadConfig(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("tokex")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: read tokex.yaml: %w", err)
			}
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		HTTPAddr:  strings.TrimSpace(v.GetString("http_addr")),
		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),

		ReadHeaderTimeout: v.GetDuration("http_read_header_timeout"),
		ReadTimeout:       v.GetDuration("http_read_timeout"),
		WriteTimeout:      v.GetDuration("http_write_timeout"),
		IdleTimeout:       v.GetDuration("http_idle_timeout"),
		MaxHeaderBytes:    v.GetInt("http_max_header_bytes"),

		SharedSecret: strings.TrimSpace(v.GetString("shared_secret")),

		DocumensoURL:    strings.TrimSpace(v.GetString("documenso_url")),
		UpstreamTimeout: v.GetDuration("upstream_timeout"),

		POSVerifyMode:  v.GetString("pos_verify_mode"),
		POSProbePath:   v.GetString("pos_probe_path"),
		POSSessionPath: v.GetString("pos_session_path"),
		POSTimeout:     v.GetDuration("pos_timeout"),

		DatabaseURL: strings.TrimSpace(v.GetString("database_url")),
		DBSchema:    strings.TrimSpace(v.GetString("db_schema")),
		DBMaxConns:  v.GetInt32("db_max_conns"),
		DBMinConns:  v.GetInt32("db_min_conns"),

		StoreKey: v.GetString("store_key"),

		ReadinessRequireDB: v.GetBool("readiness_require_db"),

		TrustProxy:     v.GetBool("trust_proxy"),
		MaxBodyBytes:   v.GetInt64("max_body_bytes"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),
		AuthFailMax:    v.GetInt("auth_fail_max"),
		AuthFailWindow: v.GetDuration("auth_fail_window"),

		CORSAllowedOrigins:   splitList(v.GetString("cors_allowed_origins")),
		CORSAllowCredentials: v.GetBool("cors_allow_credentials"),
		CORSMaxAgeSeconds:    v.GetInt("cors_max_age_seconds"),

		MetricsEnabled: v.GetBool("metrics_enabled"),
	}
}

// splitList parses a comma separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
