package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from env; a .env file in the working directory is loaded first when present.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	Identity  IdentityConfig
	Session   SessionConfig
	Routes    RoutesConfig
	Directory DirectoryConfig
	DB        DBConfig
	Redis     RedisConfig
	Login     LoginConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// IdentityConfig points at the remote identity backend that issues token pairs.
type IdentityConfig struct {
	BaseURL string
	Timeout time.Duration
}

const (
	StateMemory = "memory"
	StateRedis  = "redis"

	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type SessionConfig struct {
	Secret     string
	Issuer     string
	CookieName string

	// Lifetimes stamped onto a credential at login and rotation.
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration

	RefreshMargin   time.Duration
	RotationTimeout time.Duration
	RotationGrace   time.Duration

	// State selects where the rotation ledger and revocation list live.
	State string
}

type RoutesConfig struct {
	LoginPath         string
	LandingPath       string
	ProtectedPrefixes []string
}

type DirectoryConfig struct {
	Driver      string
	SeedAdminID string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// MaxConns caps the pool; 0 uses the pool default.
	MaxConns int
}

type RedisConfig struct {
	Host string
	Port int
}

type LoginConfig struct {
	RatePerMinute int
	// Disabled turns login throttling off; RatePerMinute is then ignored.
	Disabled bool
}

const defaultLoginRatePerMinute = 30

var defaultProtectedPrefixes = []string{
	"/dashboard",
	"/profile",
	"/admin",
	"/reports",
	"/settings",
	"/api/protected",
	"/api/v1",
}

func Load() (Config, error) {
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Identity.BaseURL = strings.TrimSpace(os.Getenv("IDENTITY_BASE_URL"))
	c.Identity.Timeout = mustDuration("IDENTITY_TIMEOUT")

	c.Session.Secret = os.Getenv("SESSION_SECRET")
	c.Session.Issuer = strings.TrimSpace(os.Getenv("SESSION_ISSUER"))
	c.Session.CookieName = strings.TrimSpace(os.Getenv("SESSION_COOKIE_NAME"))
	{
		n, err := optionalInt("ACCESS_TOKEN_EXPIRY")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Session.AccessLifetime = time.Duration(n) * time.Second
	}
	{
		n, err := optionalInt("REFRESH_TOKEN_EXPIRY")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Session.RefreshLifetime = time.Duration(n) * time.Second
	}
	c.Session.RefreshMargin = mustDuration("SESSION_REFRESH_MARGIN")
	c.Session.RotationTimeout = mustDuration("SESSION_ROTATION_TIMEOUT")
	c.Session.RotationGrace = mustDuration("SESSION_ROTATION_GRACE")
	c.Session.State = strings.TrimSpace(os.Getenv("SESSION_STATE"))

	c.Routes.LoginPath = strings.TrimSpace(os.Getenv("LOGIN_PATH"))
	c.Routes.LandingPath = strings.TrimSpace(os.Getenv("LANDING_PATH"))
	c.Routes.ProtectedPrefixes = splitList(os.Getenv("PROTECTED_PREFIXES"))

	c.Directory.Driver = strings.TrimSpace(os.Getenv("DIRECTORY_DRIVER"))
	c.Directory.SeedAdminID = strings.TrimSpace(os.Getenv("DIRECTORY_SEED_ADMIN_ID"))

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
	{
		n, err := optionalInt("DB_MAX_CONNS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.MaxConns = n
	}

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := optionalInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	switch v := strings.ToLower(strings.TrimSpace(os.Getenv("LOGIN_RATE_PER_MINUTE"))); v {
	case "":
	case "off", "0":
		c.Login.Disabled = true
	default:
		n, err := mustInt("LOGIN_RATE_PER_MINUTE")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Login.RatePerMinute = n
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
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

	if c.Identity.BaseURL == "" {
		errs = append(errs, errors.New("IDENTITY_BASE_URL is required"))
	} else if u, err := url.Parse(c.Identity.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("IDENTITY_BASE_URL must be an absolute URL, got %q", c.Identity.BaseURL))
	}
	if c.Identity.Timeout <= 0 {
		c.Identity.Timeout = 10 * time.Second
	}

	if c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	} else if c.IsProduction() && len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes in production"))
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "rbac_session"
	}
	if c.Session.AccessLifetime <= 0 {
		c.Session.AccessLifetime = time.Hour
	}
	if c.Session.RefreshLifetime <= 0 {
		c.Session.RefreshLifetime = 7 * 24 * time.Hour
	}
	if c.Session.RefreshMargin < 0 {
		errs = append(errs, errors.New("SESSION_REFRESH_MARGIN must not be negative"))
	}
	if c.Session.RotationTimeout <= 0 {
		c.Session.RotationTimeout = 10 * time.Second
	}
	if c.Session.RotationGrace <= 0 {
		c.Session.RotationGrace = 30 * time.Second
	}
	if c.Session.State == "" {
		c.Session.State = StateMemory
	}
	switch c.Session.State {
	case StateMemory:
	case StateRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required when SESSION_STATE=redis"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STATE must be one of memory, redis, got %q", c.Session.State))
	}

	if c.Routes.LoginPath == "" {
		c.Routes.LoginPath = "/login"
	}
	if c.Routes.LandingPath == "" {
		c.Routes.LandingPath = "/dashboard"
	}
	if len(c.Routes.ProtectedPrefixes) == 0 {
		c.Routes.ProtectedPrefixes = append([]string(nil), defaultProtectedPrefixes...)
	}
	for _, p := range append([]string{c.Routes.LoginPath, c.Routes.LandingPath}, c.Routes.ProtectedPrefixes...) {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("route %q must start with /", p))
		}
	}

	if c.Directory.Driver == "" {
		c.Directory.Driver = DriverMemory
	}
	switch c.Directory.Driver {
	case DriverMemory:
		if c.Directory.SeedAdminID == "" {
			c.Directory.SeedAdminID = "1"
		}
	case DriverPostgres:
		errs = append(errs, c.validateDB()...)
	default:
		errs = append(errs, fmt.Errorf("DIRECTORY_DRIVER must be one of memory, postgres, got %q", c.Directory.Driver))
	}

	switch {
	case c.Login.Disabled:
		c.Login.RatePerMinute = 0
	case c.Login.RatePerMinute < 0:
		errs = append(errs, errors.New("LOGIN_RATE_PER_MINUTE must not be negative"))
	case c.Login.RatePerMinute == 0:
		c.Login.RatePerMinute = defaultLoginRatePerMinute
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	if c.DB.MaxConns < 0 {
		errs = append(errs, errors.New("DB_MAX_CONNS must not be negative"))
	}
	return errs
}

// Warnings reports settings that are accepted but likely unintended.
func (c Config) Warnings() []string {
	var out []string
	if c.Session.AccessLifetime > c.Session.RefreshLifetime {
		out = append(out, "ACCESS_TOKEN_EXPIRY exceeds REFRESH_TOKEN_EXPIRY; sessions outlive their refresh token")
	}
	if c.Session.RefreshMargin >= c.Session.AccessLifetime {
		out = append(out, "SESSION_REFRESH_MARGIN is not shorter than the access lifetime; every request will rotate")
	}
	return out
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
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

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
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
