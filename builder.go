package sessionauth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/maccas-one/sessionauth/internal/rate"
	"github.com/maccas-one/sessionauth/jwt"
	"github.com/maccas-one/sessionauth/legacy"
	"github.com/maccas-one/sessionauth/password"
	"github.com/maccas-one/sessionauth/session"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder defines a public type used by sessionauth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     Store
	legacy    LegacyMigrator
	auditSink AuditSink
	logger    logrus.FieldLogger
	now       func() time.Time

	built bool
}

// LegacyMigrator provisions accounts from the predecessor service.
// *legacy.Client satisfies it.
type LegacyMigrator interface {
	Migrate(ctx context.Context, username, password string) (*legacy.Account, error)
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The Builder keeps its own copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the user and session store. Required.
func (b *Builder) WithStore(s Store) *Builder {
	b.store = s
	return b
}

// WithRedis keeps rate limit windows in Redis. Without it windows live in
// process memory and are not shared between replicas.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLegacyMigrator overrides the legacy client built from Config.Legacy.
func (b *Builder) WithLegacyMigrator(m LegacyMigrator) *Builder {
	b.legacy = m
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default is the logrus standard logger.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for session expiry and in-memory rate windows.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the ValidateSession latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and assembles the Engine. A Builder
// can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// -------- TOKENS + SESSIONS --------
	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Subject:       cfg.JWT.Subject,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewManager(session.Config{TTL: cfg.Session.TTL, Now: now}, jm)
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	ph, err := password.NewBcrypt(cfg.Password.Cost)
	if err != nil {
		return nil, err
	}

	// -------- RATE LIMITER --------
	var counter rate.Counter
	if b.redis != nil {
		counter = rate.NewRedisCounter(b.redis)
	} else {
		mc, err := rate.NewMemoryCounter(0, now)
		if err != nil {
			return nil, err
		}
		counter = mc
	}

	// -------- LEGACY --------
	migrator := b.legacy
	if migrator == nil && cfg.Legacy.BaseURL != "" {
		client, err := legacy.NewClient(legacy.Config{
			BaseURL:     cfg.Legacy.BaseURL,
			Timeout:     cfg.Legacy.Timeout,
			FetchConfig: cfg.Legacy.FetchConfig,
		}, legacy.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		migrator = client
	}

	engine := &Engine{
		config:        cfg,
		store:         b.store,
		sessions:      sessions,
		jwtManager:    jm,
		passwords:     ph,
		limiter:       rate.New(counter, cfg.RateLimit.internal()),
		sharedLimiter: b.redis != nil,
		legacy:        migrator,
		log:           logger,
		now:           now,
		newUserID:     uuid.NewString,
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
