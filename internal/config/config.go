package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env  string `env:"APP_ENV, default=dev"`
	Port int    `env:"PORT, default=8080"`

	JWTSecret         string `env:"JWT_SECRET, required"`
	AllowRegisterRole bool   `env:"AUTH_REGISTER_ALLOW_ROLE, default=false"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
	MaxBodyBytes       int64    `env:"MAX_BODY_BYTES, default=1048576"`

	// ListCacheTTL of zero disables the user-list cache.
	ListCacheTTL time.Duration `env:"LIST_CACHE_TTL, default=0s"`

	DB    DBConfig
	Redis RedisConfig
	OTel  OTelConfig
	Admin AdminConfig
}

type DBConfig struct {
	// URL, when set, wins over the individual postgres fields.
	URL        string `env:"DATABASE_URL"`
	Driver     string `env:"DB_DRIVER, default=postgres"`
	Host       string `env:"DB_HOST, default=127.0.0.1"`
	Port       string `env:"DB_PORT, default=5432"`
	User       string `env:"DB_USER, default=userapi"`
	Password   string `env:"DB_PASSWORD, default=userapi"`
	Name       string `env:"DB_NAME, default=userapi"`
	SSLMode    string `env:"DB_SSLMODE, default=disable"`
	MaxConns   int32  `env:"DB_MAX_CONNS, default=5"`
	SQLitePath string `env:"SQLITE_PATH, default=userapi.db"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// OTelConfig enables tracing only when Endpoint is set.
type OTelConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `env:"OTEL_SERVICE_NAME, default=userapi"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG, default=1"`
}

// AdminConfig seeds an admin account on startup when Email and Password are set.
type AdminConfig struct {
	Email    string `env:"ADMIN_EMAIL"`
	Username string `env:"ADMIN_USERNAME, default=admin"`
	Password string `env:"ADMIN_PASSWORD"`
}

// Load reads .env (when present) and then the process environment.
func Load(ctx context.Context) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.DB.Driver != "postgres" && c.DB.Driver != "sqlite" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DB.Driver))
	}
	if c.ListCacheTTL < 0 {
		errs = append(errs, errors.New("LIST_CACHE_TTL must not be negative"))
	}
	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be within [0, 1], got %v", c.OTel.SampleRatio))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}

	return errors.Join(errs...)
}

// DSN renders the postgres connection string.
func (d DBConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
