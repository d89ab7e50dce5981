package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Push transport modes.
const (
	PushWebSocket = "websocket"
	PushRedis     = "redis"
	PushNone      = "none"
)

// Config holds all configuration required by the console process.
// All values come from env (or an env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	Upstream UpstreamConfig
	Push     PushConfig
	Redis    RedisConfig
	Sync     SyncConfig
	DB       DBConfig
}

type AppConfig struct {
	Env  string
	Port int
	// Timezone is used for "today" and hourly buckets in local aggregation.
	Timezone string
}

type UpstreamConfig struct {
	BaseURL string
	// Token is the operator's bearer credential. Never log it.
	Token       string
	HTTPTimeout time.Duration
}

type PushConfig struct {
	Mode string
	URL  string
}

type RedisConfig struct {
	Host    string
	Port    int
	Channel string
}

type SyncConfig struct {
	PollInterval time.Duration
	LatestLimit  int
}

// DBConfig describes the optional read replica. When Enabled, dashboard
// aggregates are computed from it instead of the upstream endpoints.
type DBConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.Timezone = strings.TrimSpace(os.Getenv("APP_TIMEZONE"))

	c.Upstream.BaseURL = strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL"))
	c.Upstream.Token = strings.TrimSpace(os.Getenv("UPSTREAM_TOKEN"))
	{
		d, err := optionalDuration("HTTP_TIMEOUT")
		d, parseErrs = appendParseErr(parseErrs, d, err)
		c.Upstream.HTTPTimeout = d
	}

	c.Push.Mode = strings.ToLower(strings.TrimSpace(os.Getenv("PUSH_MODE")))
	c.Push.URL = strings.TrimSpace(os.Getenv("PUSH_URL"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := optionalInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Channel = strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))

	{
		d, err := optionalDuration("POLL_INTERVAL")
		d, parseErrs = appendParseErr(parseErrs, d, err)
		c.Sync.PollInterval = d
	}
	{
		n, err := optionalInt("LATEST_CALLS_LIMIT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Sync.LatestLimit = n
	}

	{
		v := strings.TrimSpace(os.Getenv("READ_REPLICA"))
		if v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				parseErrs = append(parseErrs, fmt.Errorf("READ_REPLICA must be a boolean, got %q", v))
			}
			c.DB.Enabled = b
		}
	}
	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := optionalInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks c and fills in defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "Europe/Paris"
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("APP_TIMEZONE is not a known zone: %q", c.App.Timezone))
	}

	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("UPSTREAM_BASE_URL is required"))
	} else if !isHTTPURL(c.Upstream.BaseURL) {
		errs = append(errs, fmt.Errorf("UPSTREAM_BASE_URL must be an http(s) URL, got %q", c.Upstream.BaseURL))
	} else if c.IsProduction() && !strings.HasPrefix(c.Upstream.BaseURL, "https://") {
		errs = append(errs, errors.New("UPSTREAM_BASE_URL must use https in production"))
	}
	if c.Upstream.HTTPTimeout <= 0 {
		c.Upstream.HTTPTimeout = 15 * time.Second
	}

	if c.Push.Mode == "" {
		c.Push.Mode = PushWebSocket
	}
	switch c.Push.Mode {
	case PushWebSocket:
		if c.Push.URL == "" {
			c.Push.URL = deriveWebSocketURL(c.Upstream.BaseURL)
		}
		if !strings.HasPrefix(c.Push.URL, "ws://") && !strings.HasPrefix(c.Push.URL, "wss://") {
			errs = append(errs, fmt.Errorf("PUSH_URL must be a ws(s) URL, got %q", c.Push.URL))
		}
	case PushRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required when PUSH_MODE=redis"))
		}
		if c.Redis.Port == 0 {
			c.Redis.Port = 6379
		}
		if c.Redis.Port < 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
		if c.Redis.Channel == "" {
			c.Redis.Channel = "calls:events"
		}
	case PushNone:
	default:
		errs = append(errs, fmt.Errorf("PUSH_MODE must be one of websocket, redis, none, got %q", c.Push.Mode))
	}

	if c.Sync.PollInterval <= 0 {
		c.Sync.PollInterval = 2 * time.Second
	}
	if c.Sync.LatestLimit < 0 {
		errs = append(errs, fmt.Errorf("LATEST_CALLS_LIMIT must not be negative, got %d", c.Sync.LatestLimit))
	} else if c.Sync.LatestLimit == 0 {
		c.Sync.LatestLimit = 10
	}

	if c.DB.Enabled {
		if c.DB.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required when READ_REPLICA=true"))
		}
		if c.DB.Port == 0 {
			c.DB.Port = 5432
		}
		if c.DB.Port < 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when READ_REPLICA=true"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when READ_REPLICA=true"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				// Local-friendly default; production must be explicit.
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// Location returns the configured zone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// deriveWebSocketURL maps the REST base URL to its /ws/sync push endpoint.
func deriveWebSocketURL(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/sync"
	return u.String()
}

func isHTTPURL(v string) bool {
	u, err := url.Parse(v)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

func appendParseErr[T any](errs []error, v T, err error) (T, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return v, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
