package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SUPPLYCHAIN"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "SUPPLYCHAIN_APP_ENV"
	EnvDBDSN  = "SUPPLYCHAIN_DB_DSN"
	EnvDBHost = "SUPPLYCHAIN_DB_HOST"
	EnvDBUser = "SUPPLYCHAIN_DB_USER"
	EnvDBName = "SUPPLYCHAIN_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App    AppConfig
	DB     DBConfig
	GCP    GCPConfig
	PubSub PubSubConfig
}

func Load() (*Config, error) {
	// Best effort; production supplies real environment variables.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SUPPLYCHAIN_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"SUPPLYCHAIN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUPPLYCHAIN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SUPPLYCHAIN_DB_DSN"`
	Driver string `envconfig:"SUPPLYCHAIN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SUPPLYCHAIN_DB_HOST"`
	LegacyPort     int    `envconfig:"SUPPLYCHAIN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SUPPLYCHAIN_DB_USER"`
	LegacyPassword string `envconfig:"SUPPLYCHAIN_DB_PASSWORD"`
	LegacyName     string `envconfig:"SUPPLYCHAIN_DB_NAME"`
	LegacySSLMode  string `envconfig:"SUPPLYCHAIN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SUPPLYCHAIN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUPPLYCHAIN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUPPLYCHAIN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUPPLYCHAIN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SUPPLYCHAIN_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"SUPPLYCHAIN_PUBSUB_DOMAIN_TOPIC" default:"supplychain-events"`
	Enabled     bool   `envconfig:"SUPPLYCHAIN_PUBSUB_ENABLED" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
