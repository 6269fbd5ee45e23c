// Package bootstrap wires every concrete adapter (Postgres, Redis,
// RabbitMQ, the external C7 adapters) into the domain services of
// spec.md §4, the way the teacher's own bootstrap package resolves a
// Config struct into a running app. Nothing here is itself a spec
// module; it is the composition root cmd/gateway and cmd/worker share.
package bootstrap

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Config is parsed from environment variables via caarlos0/env,
// matching the teacher's own config-via-struct-tags convention. Every
// field maps to one ambient or domain-stack concern named in
// SPEC_FULL.md's Configuration section.
type Config struct {
	ServerAddr string `env:"BIOS_SERVER_ADDR" envDefault:":8080"`

	PostgresPrimaryDSN string   `env:"BIOS_PG_PRIMARY_DSN,required"`
	PostgresReplicaDSNs []string `env:"BIOS_PG_REPLICA_DSNS" envSeparator:","`

	RedisDSN string `env:"BIOS_REDIS_DSN,required"`

	AmqpDSN     string `env:"BIOS_AMQP_DSN"`
	AmqpEnabled bool   `env:"BIOS_AMQP_ENABLED" envDefault:"false"`

	// TokenExpireSec/TokenCoexistNum are the default KindConfig every
	// login path mints against (spec.md §4.3); per-tenant overrides
	// still flow through token.KindConfig at call sites.
	TokenExpireSec   int `env:"BIOS_TOKEN_EXPIRE_SEC" envDefault:"7200"`
	TokenCoexistNum  int `env:"BIOS_TOKEN_COEXIST_NUM" envDefault:"1"`
	JwtExpireSec     int `env:"BIOS_JWT_EXPIRE_SEC" envDefault:"3600"`
	JwtSigningKey    string `env:"BIOS_JWT_SIGNING_KEY,required"`

	DoubleAuthTTLSec int `env:"BIOS_DOUBLE_AUTH_TTL_SEC" envDefault:"300"`

	RateLimitWindowSec int   `env:"BIOS_RATE_LIMIT_WINDOW_SEC" envDefault:"60"`
	RateLimitMax       int64 `env:"BIOS_RATE_LIMIT_MAX" envDefault:"6000"`

	// CryptoExemptPrefixes/LoginPaths feed gateway.Config directly
	// (spec.md §4.5).
	CryptoExemptPrefixes []string `env:"BIOS_CRYPTO_EXEMPT_PREFIXES" envSeparator:","`
	LoginPaths           []string `env:"BIOS_LOGIN_PATHS" envSeparator:"," envDefault:"/auth/login"`

	// SweeperCron is the robfig/cron expression the inactivity sweeper
	// runs on (spec.md §4.3's scheduled job).
	SweeperCron            string `env:"BIOS_SWEEPER_CRON" envDefault:"*/5 * * * *"`
	AccountInactivityLockSec  int `env:"BIOS_ACCOUNT_INACTIVITY_LOCK_SEC" envDefault:"1800"`
	AccountTempSleepSec       int `env:"BIOS_ACCOUNT_TEMP_SLEEP_SEC" envDefault:"900"`
	AccountTempSleepRemoveSec int `env:"BIOS_ACCOUNT_TEMP_SLEEP_REMOVE_SEC" envDefault:"3600"`
	AccountTempExpireSec      int `env:"BIOS_ACCOUNT_TEMP_EXPIRE_SEC" envDefault:"86400"`

	// TaskCleanerIntervalSec/TaskCleanerRetentionSec drive
	// core/taskreg.Registry.RunCleaner, generalizing spec.md §5's
	// "background cleaner task ... every 30 minutes" to the async-task
	// progress registry.
	TaskCleanerIntervalSec  int `env:"BIOS_TASK_CLEANER_INTERVAL_SEC" envDefault:"1800"`
	TaskCleanerRetentionSec int `env:"BIOS_TASK_CLEANER_RETENTION_SEC" envDefault:"3600"`

	OAuth2RedirectURL string `env:"BIOS_OAUTH2_REDIRECT_URL"`

	NotifierEndpoints map[string]string `env:"BIOS_NOTIFIER_ENDPOINTS"`

	// RootTenantCode/RootAccountAk seed the first-boot Root-scope
	// system tenant+account when rbum_item is empty.
	RootTenantCode string `env:"BIOS_ROOT_TENANT_CODE" envDefault:"system"`
	RootAccountAk  string `env:"BIOS_ROOT_ACCOUNT_AK" envDefault:"admin"`
	RootAccountSk  string `env:"BIOS_ROOT_ACCOUNT_SK,required"`
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("bootstrap: parse config: %w", err)
	}

	return cfg, nil
}
