package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "escrow_trades", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.Equal(t, int32(5), cfg.Database.MinConns)

	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "escrow-trade-service", cfg.JWT.Issuer)

	assert.Equal(t, 10*time.Minute, cfg.Trade.ChallengeTTL)
	assert.Equal(t, int64(5), cfg.Trade.ChallengeAttempts)
	assert.Equal(t, time.Minute, cfg.Trade.SweepInterval)
	assert.Equal(t, 100, cfg.Trade.SweepBatchSize)

	assert.Equal(t, 10*time.Second, cfg.Collaborators.Timeout)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	content := []byte(`
server:
  host: "127.0.0.1"
  port: 9090
  mode: "release"
database:
  host: "db.example.com"
  port: 5433
  user: "appuser"
  password: "secret123"
  dbname: "testdb"
  sslmode: "require"
redis:
  host: "redis.example.com"
  port: 6380
  password: "redispwd"
  db: 2
jwt:
  secret: "my-jwt-secret"
  expiry: "12h"
  issuer: "test-escrow"
aes:
  key: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
trade:
  challenge_ttl: "5m"
  challenge_attempts: 3
  sweep_interval: "30s"
  sweep_batch_size: 50
collaborators:
  ad_catalog_url: "http://ads.internal:8081"
  kyc_url: "http://kyc.internal:8082"
  wallet_ledger_url: "http://wallet.internal:8083"
  notifier_url: "http://notify.internal:8084"
  signing_secret: "shared-secret"
  timeout: "5s"
log:
  level: "debug"
  pretty: true
`)
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, content, 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)

	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "appuser", cfg.Database.User)
	assert.Equal(t, "secret123", cfg.Database.Password)
	assert.Equal(t, "testdb", cfg.Database.DBName)
	assert.Equal(t, "require", cfg.Database.SSLMode)

	assert.Equal(t, "redis.example.com", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, "redispwd", cfg.Redis.Password)
	assert.Equal(t, 2, cfg.Redis.DB)

	assert.Equal(t, "my-jwt-secret", cfg.JWT.Secret)
	assert.Equal(t, 12*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "test-escrow", cfg.JWT.Issuer)

	assert.Equal(t, 5*time.Minute, cfg.Trade.ChallengeTTL)
	assert.Equal(t, int64(3), cfg.Trade.ChallengeAttempts)
	assert.Equal(t, 30*time.Second, cfg.Trade.SweepInterval)
	assert.Equal(t, 50, cfg.Trade.SweepBatchSize)

	assert.Equal(t, "http://ads.internal:8081", cfg.Collaborators.AdCatalogURL)
	assert.Equal(t, "http://kyc.internal:8082", cfg.Collaborators.KYCURL)
	assert.Equal(t, "http://wallet.internal:8083", cfg.Collaborators.WalletLedgerURL)
	assert.Equal(t, "http://notify.internal:8084", cfg.Collaborators.NotifierURL)
	assert.Equal(t, "shared-secret", cfg.Collaborators.SigningSecret)
	assert.Equal(t, 5*time.Second, cfg.Collaborators.Timeout)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ETS_SERVER_PORT", "3000")
	t.Setenv("ETS_DATABASE_HOST", "env-db-host")
	t.Setenv("ETS_JWT_SECRET", "env-secret")
	t.Setenv("ETS_COLLABORATORS_SIGNING_SECRET", "env-signing")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "env-db-host", cfg.Database.Host)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, "env-signing", cfg.Collaborators.SigningSecret)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "pw",
		DBName:   "escrow_trades",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://postgres:pw@localhost:5432/escrow_trades?sslmode=disable", d.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "localhost", Port: 6379}
	assert.Equal(t, "localhost:6379", r.Addr())
}
