package bootstrap

import (
	"context"
	"crypto/elliptic"
	"fmt"
	"net/http"
	"time"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tjfoc/gmsm/sm2"

	"github.com/ideal-world/bios/internal/adapters/audit"
	"github.com/ideal-world/bios/internal/adapters/ldap"
	"github.com/ideal-world/bios/internal/adapters/notifier"
	"github.com/ideal-world/bios/internal/adapters/oauth2"
	"github.com/ideal-world/bios/internal/cache"
	"github.com/ideal-world/bios/internal/core/taskreg"
	"github.com/ideal-world/bios/internal/credential"
	"github.com/ideal-world/bios/internal/crypto/sm"
	"github.com/ideal-world/bios/internal/gateway"
	"github.com/ideal-world/bios/internal/iam/account"
	"github.com/ideal-world/bios/internal/iam/app"
	"github.com/ideal-world/bios/internal/iam/res"
	"github.com/ideal-world/bios/internal/iam/role"
	"github.com/ideal-world/bios/internal/iam/tenant"
	"github.com/ideal-world/bios/internal/obs/mlog"
	"github.com/ideal-world/bios/internal/obs/mzap"
	"github.com/ideal-world/bios/internal/propagator"
	"github.com/ideal-world/bios/internal/rbum/item"
	"github.com/ideal-world/bios/internal/rbum/kernel"
	"github.com/ideal-world/bios/internal/rbum/kind"
	"github.com/ideal-world/bios/internal/rbum/set"
	"github.com/ideal-world/bios/internal/store/pg"
	"github.com/ideal-world/bios/internal/token"
	"github.com/ideal-world/bios/internal/token/sweeper"
)

// App bundles every wired service cmd/gateway and cmd/worker need, so
// the two entrypoints share one composition root and diverge only in
// which of App's fields they actually serve.
type App struct {
	Cfg Config

	PG    *pg.Connection
	Cache *cache.Connection

	Logger mlog.Logger

	Kernel     *kernel.Kernel
	Registry   *kernel.Registry
	Sets       *set.Service
	PolicyIdx  *cache.PolicyIndex
	Nonces     *cache.NonceGuard
	Verifier   *credential.Verifier
	Rotator    *credential.Rotator
	Provisioner *credential.Provisioner
	Tokens     *token.Manager
	JwtIssuer  *token.JWTIssuer
	Pipeline   *gateway.Pipeline
	Propagator *propagator.Propagator
	Fanout     *propagator.RabbitFanout
	Sweeper    *sweeper.Sweeper
	TaskRegistry *taskreg.Registry

	Directory *ldap.Directory
	OAuth2    *oauth2.Provider
	Notify    *notifier.Notifier
	VCode     notifier.VCodeSender
	Audit     *audit.Sink
	CredAudit credential.AuditSink

	AccountRepo account.Repository
	AppRepo     app.Repository
	TenantRepo  tenant.Repository
	RoleRepo    role.Repository
	ResRepo     res.Repository

	ServerKeyPair *sm.KeyPair

	db       dbresolver.DB
	amqpConn *amqp.Connection
}

// New wires every adapter and domain service described in SPEC_FULL.md
// against cfg, the way the teacher's own bootstrap resolves its Config
// into a running set of repositories/services. It opens the Postgres
// and Redis connections and runs pending migrations, but does not
// start the HTTP server or any background scheduler — that is
// cmd/gateway's and cmd/worker's job respectively.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger, err := mzap.InitializeLogger()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: init logger: %w", err)
	}

	if err := pg.Migrate(cfg.PostgresPrimaryDSN); err != nil {
		return nil, err
	}

	pgConn := &pg.Connection{PrimaryDSN: cfg.PostgresPrimaryDSN, ReplicaDSNs: cfg.PostgresReplicaDSNs, Logger: logger}

	db, err := pgConn.GetDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}

	cacheConn := &cache.Connection{ConnectionString: cfg.RedisDSN, Logger: logger}
	if err := cacheConn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: connect redis: %w", err)
	}

	items := &pg.ItemRepository{DB: db}
	rels := &pg.RelRepository{DB: db}
	confs := &pg.CertConfRepository{DB: db}
	certs := &pg.CertRepository{DB: db}
	accountRepo := &pg.AccountRepository{DB: db}
	appRepo := &pg.AppRepository{DB: db}
	tenantRepo := &pg.TenantRepository{DB: db}
	roleRepo := &pg.RoleRepository{DB: db}
	resRepo := &pg.ResRepository{DB: db}
	auditWriter := &pg.AuditWriter{DB: db}
	ldapQuerier := &pg.LdapQuerier{DB: db}
	setRepo := &pg.SetRepository{DB: db}

	registry := kernel.NewRegistry()
	registry.Register(kind.KindTenant, &tenant.Handler{Repo: tenantRepo})
	registry.Register(kind.KindApp, &app.Handler{Repo: appRepo})
	registry.Register(kind.KindAccount, &account.Handler{Repo: accountRepo})
	registry.Register(kind.KindRole, &role.Handler{Repo: roleRepo})
	registry.Register(kind.KindRes, &res.Handler{Repo: resRepo})

	k := kernel.New(items, rels, registry)
	k.Txer = func(ctx context.Context, fn func(ctx context.Context) error) error {
		return pg.WithTx(ctx, db, fn)
	}

	sets := set.NewService(setRepo)

	policyIdx := &cache.PolicyIndex{Conn: cacheConn, Prefix: "bios", ChangeEntryTTL: 24 * time.Hour}
	locker := &cache.Locker{Conn: cacheConn}
	nonces := &cache.NonceGuard{Conn: cacheConn}
	tokenStore := &cache.TokenStore{Conn: cacheConn}
	rateLimiter := &cache.RateLimiter{Conn: cacheConn, WindowSec: cfg.RateLimitWindowSec, MaxPerWindow: cfg.RateLimitMax}

	auditSink := audit.NewSink(auditWriter, logger)
	credAudit := audit.NewCredentialAuditAdapter(auditSink)

	verifier := credential.NewVerifier(confs, certs, locker, credAudit)
	rotator := credential.NewRotator(confs, certs, locker)

	selfRegGate := &tenant.SelfRegGate{Repo: tenantRepo}
	provisioner := credential.NewProvisioner(k, confs, certs, selfRegGate)
	provisioner.Txer = k.Txer

	tokens := token.NewManager(tokenStore)
	jwtIssuer := &token.JWTIssuer{SigningKey: []byte(cfg.JwtSigningKey)}

	serverKeyPair, err := sm.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: generate gateway sm2 key pair: %w", err)
	}

	gwCfg := gateway.Config{
		ServerPriv:      serverKeyPair.Private,
		CryptoExemptPfx: cfg.CryptoExemptPrefixes,
		LoginPaths:      cfg.LoginPaths,
		DoubleAuthTTL:   time.Duration(cfg.DoubleAuthTTLSec) * time.Second,
		TokenKindConfig: token.KindConfig{ExpireSec: cfg.TokenExpireSec, CoexistNum: cfg.TokenCoexistNum},
	}

	pipeline := gateway.NewPipeline(policyIdx, tokens, policyIdx, rateLimiter, gwCfg)

	var fanout *propagator.RabbitFanout
	var amqpConn *amqp.Connection

	var notify propagator.Notifier
	if cfg.AmqpEnabled && cfg.AmqpDSN != "" {
		amqpConn, err = amqp.Dial(cfg.AmqpDSN)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: dial amqp: %w", err)
		}

		ch, err := amqpConn.Channel()
		if err != nil {
			return nil, fmt.Errorf("bootstrap: open amqp channel: %w", err)
		}

		fanout, err = propagator.NewRabbitFanout(ch, logger)
		if err != nil {
			return nil, err
		}

		notify = fanout
	}

	prop := propagator.NewPropagator(rels, resRepo, policyIdx, notify)

	thresholds := sweeper.Thresholds{
		InactivityLock:  time.Duration(cfg.AccountInactivityLockSec) * time.Second,
		TempSleep:       time.Duration(cfg.AccountTempSleepSec) * time.Second,
		TempSleepRemove: time.Duration(cfg.AccountTempSleepRemoveSec) * time.Second,
		TempExpire:      time.Duration(cfg.AccountTempExpireSec) * time.Second,
	}
	sweep := sweeper.NewSweeper(accountRepo, tokens, thresholds)

	binder := &ldap.CredentialBinder{Verifier: verifier}
	directory := &ldap.Directory{Binder: binder, Querier: ldapQuerier}

	var oauthProvider *oauth2.Provider
	if cfg.OAuth2RedirectURL != "" {
		oauthProvider = &oauth2.Provider{RedirectURL: cfg.OAuth2RedirectURL, HTTPClient: http.DefaultClient}
	}

	endpoints := make(map[notifier.Channel]string, len(cfg.NotifierEndpoints))
	for ch, url := range cfg.NotifierEndpoints {
		endpoints[notifier.Channel(ch)] = url
	}

	notify2 := notifier.NewNotifier(http.DefaultClient, endpoints, logger)
	vcode := notifier.VCodeSender{Notifier: notify2}

	taskRegistry := taskreg.NewRegistry()

	return &App{
		Cfg:          cfg,
		PG:           pgConn,
		Cache:        cacheConn,
		Logger:       logger,
		Kernel:       k,
		Registry:     registry,
		Sets:         sets,
		PolicyIdx:    policyIdx,
		Nonces:       nonces,
		Verifier:     verifier,
		Rotator:      rotator,
		Provisioner:  provisioner,
		Tokens:       tokens,
		JwtIssuer:    jwtIssuer,
		Pipeline:     pipeline,
		Propagator:   prop,
		Fanout:       fanout,
		Sweeper:      sweep,
		TaskRegistry: taskRegistry,
		Directory:    directory,
		OAuth2:       oauthProvider,
		Notify:       notify2,
		VCode:        vcode,
		Audit:        auditSink,
		CredAudit:    credAudit,
		AccountRepo:  accountRepo,
		AppRepo:      appRepo,
		TenantRepo:   tenantRepo,
		RoleRepo:     roleRepo,
		ResRepo:      resRepo,
		ServerKeyPair: serverKeyPair,
		db:           db,
		amqpConn:     amqpConn,
	}, nil
}

// Close releases the amqp connection opened by New, if any. Postgres
// and Redis pools are left open for the process lifetime, the way the
// teacher's own bootstrap never tears its pools down outside of tests.
func (a *App) Close() error {
	if a.amqpConn != nil {
		return a.amqpConn.Close()
	}

	return nil
}

// SeedRoot provisions the Root-scope system tenant and its first admin
// account when rbum_item is empty, so a fresh deployment has a caller
// able to bootstrap every other tenant/app/role (spec.md §4.1's Root
// scope level and the "On first boot" note SPEC_FULL.md adds). It is
// a no-op once any item exists.
func (a *App) SeedRoot(ctx context.Context) error {
	existing, err := a.Kernel.Paginate(ctx, item.Filter{}, 1, 1, "")
	if err != nil {
		return err
	}

	if existing.Total > 0 {
		return nil
	}

	return pg.WithTx(ctx, a.db, func(ctx context.Context) error {
		tenantItem := &item.Item{
			Kind:       kind.KindTenant,
			Domain:     kind.DomainIAM,
			Code:       a.Cfg.RootTenantCode,
			Name:       "System",
			OwnPaths:   "",
			Owner:      a.Cfg.RootAccountAk,
			ScopeLevel: item.ScopeRoot,
		}

		createdTenant, err := a.Kernel.Add(ctx, tenantItem, &tenant.Ext{AccountSelfReg: false})
		if err != nil {
			return err
		}

		accountItem := &item.Item{
			Kind:       kind.KindAccount,
			Domain:     kind.DomainIAM,
			Code:       a.Cfg.RootAccountAk,
			Name:       "Administrator",
			OwnPaths:   createdTenant.Id,
			Owner:      a.Cfg.RootAccountAk,
			ScopeLevel: item.ScopeRoot,
		}

		createdAccount, err := a.Kernel.Add(ctx, accountItem, &account.Ext{State: account.StateActive})
		if err != nil {
			return err
		}

		now := time.Now()

		conf := &credential.CertConf{
			Id:                uuid.NewString(),
			Kind:              credential.KindUserPwd,
			OwnPaths:          createdTenant.Id,
			LenMin:            8,
			LenMax:            64,
			SkNeed:            true,
			SkEncrypted:       true,
			Repeatable:        true,
			SkLockErrTimes:    5,
			SkLockCycleSec:    900,
			SkLockDurationSec: 900,
			CoexistNum:        1,
		}

		if err := a.TenantConfs().Insert(ctx, conf); err != nil {
			return err
		}

		cert := &credential.Cert{
			Id:         uuid.NewString(),
			ItemId:     createdAccount.Id,
			CertConfId: conf.Id,
			Ak:         a.Cfg.RootAccountAk,
			Sk:         sm.HashHex([]byte(a.Cfg.RootAccountSk)),
			Kind:       credential.KindUserPwd,
			Status:     credential.StatusEnabled,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		return a.CertRepo().Insert(ctx, cert)
	})
}

// TenantConfs and CertRepo expose the concrete repositories SeedRoot
// needs without broadening App's public surface with raw DB access.
func (a *App) TenantConfs() credential.ConfRepository {
	return a.Verifier.Confs
}

func (a *App) CertRepo() credential.CertRepository {
	return a.Verifier.Certs
}

// ServerPublicKeyBytes marshals the gateway's SM2 public key in the
// uncompressed point form internal/gateway.sealEgress expects when
// unmarshalling a caller's key, for the "GET /auth/crypto/key"
// endpoint (spec.md §6).
func (a *App) ServerPublicKeyBytes() []byte {
	curve := sm2.P256Sm2()
	return elliptic.Marshal(curve, a.ServerKeyPair.Public.X, a.ServerKeyPair.Public.Y)
}
