package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	AES           AESConfig           `mapstructure:"aes"`
	Trade         TradeConfig         `mapstructure:"trade"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	Log           LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

// TradeConfig governs the trade lifecycle protocol.
type TradeConfig struct {
	ChallengeTTL      time.Duration `mapstructure:"challenge_ttl"`      // one-time release code expiry
	ChallengeAttempts int64         `mapstructure:"challenge_attempts"` // invalid-code attempts before re-initiate
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`     // payment-window expiry sweep period
	SweepBatchSize    int           `mapstructure:"sweep_batch_size"`
}

// CollaboratorsConfig holds base URLs and the shared secret for the
// external collaborator services.
type CollaboratorsConfig struct {
	AdCatalogURL    string        `mapstructure:"ad_catalog_url"`
	KYCURL          string        `mapstructure:"kyc_url"`
	WalletLedgerURL string        `mapstructure:"wallet_ledger_url"`
	NotifierURL     string        `mapstructure:"notifier_url"`
	SigningSecret   string        `mapstructure:"signing_secret"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: ETS_ (Escrow Trade Service).
// Nested keys use underscore: ETS_DATABASE_HOST, ETS_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "escrow_trades")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "escrow-trade-service")
	v.SetDefault("aes.key", "")
	v.SetDefault("trade.challenge_ttl", "10m")
	v.SetDefault("trade.challenge_attempts", 5)
	v.SetDefault("trade.sweep_interval", "1m")
	v.SetDefault("trade.sweep_batch_size", 100)
	v.SetDefault("collaborators.ad_catalog_url", "")
	v.SetDefault("collaborators.kyc_url", "")
	v.SetDefault("collaborators.wallet_ledger_url", "")
	v.SetDefault("collaborators.notifier_url", "")
	v.SetDefault("collaborators.signing_secret", "")
	v.SetDefault("collaborators.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: ETS_DATABASE_HOST -> database.host
	v.SetEnvPrefix("ETS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required; env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
