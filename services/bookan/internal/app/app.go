package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"bookan/internal/ratelimit"
	"bookan/internal/util"
	"bookan/pkg/catalog"
	"bookan/pkg/events"
	"bookan/pkg/identity"
	"bookan/pkg/kv"
	"bookan/pkg/ledger"
	"bookan/pkg/messaging"
	"bookan/pkg/storage"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// Config holds runtime configuration for the core application.
type Config struct {
	KVBackend     string
	RedisAddr     string
	RedisPassword string
	DatabaseURL   string

	SessionSecret     string
	SessionTTL        time.Duration
	VerifyCredentials bool

	SearchLatency       time.Duration
	DueSoonDays         int
	LoanRequestsPerHour int
	MessagesPerMinute   int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	AMQPURL      string
	AMQPExchange string
	// EventStream publishes events to this Redis stream when no AMQP broker is set.
	EventStream string

	// Optional collaborators. When set they replace the ones built from the fields above.
	KV             kv.Store
	Objects        storage.ObjectStore
	Events         events.Publisher
	LoanLimiter    ratelimit.Limiter
	MessageLimiter ratelimit.Limiter
	Logger         *slog.Logger
	Now            func() time.Time
}

// App wires the stores behind the session, catalog and inbox façades.
type App struct {
	Session *Session
	Catalog *Catalog
	Inbox   *Inbox

	logger  *slog.Logger
	closers []io.Closer
}

// deps is shared by the façades.
type deps struct {
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
	events   events.Publisher
	validate *validator.Validate
}

// New constructs the application from cfg.
func New(cfg Config) (*App, error) {
	a := &App{logger: cfg.Logger}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	d := deps{
		now:      cfg.Now,
		newID:    util.NewID,
		logger:   a.logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	if d.now == nil {
		d.now = time.Now
	}

	store := cfg.KV
	if store == nil {
		var err error
		store, err = a.openKV(cfg)
		if err != nil {
			return nil, err
		}
	}

	var codec identity.Codec = identity.JSONCodec{}
	if strings.TrimSpace(cfg.SessionSecret) != "" {
		ttl := cfg.SessionTTL
		if ttl <= 0 {
			ttl = defaultSessionTTL
		}
		jwtCodec, err := identity.NewJWTCodec(cfg.SessionSecret, ttl)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init session codec: %w", err)
		}
		codec = jwtCodec
	}

	objects := cfg.Objects
	if objects == nil {
		if strings.TrimSpace(cfg.MinioEndpoint) != "" {
			minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("init minio: %w", err)
			}
			objects = minioStore
		} else {
			objects = storage.NewMemoryStore()
		}
	}

	d.events = cfg.Events
	if d.events == nil {
		if strings.TrimSpace(cfg.AMQPURL) != "" {
			publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("init amqp: %w", err)
			}
			a.closers = append(a.closers, publisher)
			d.events = publisher
		} else if strings.TrimSpace(cfg.EventStream) != "" {
			publisher, err := events.NewRedisStreamPublisher(events.RedisStreamConfig{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				Stream:   cfg.EventStream,
			})
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("init event stream: %w", err)
			}
			a.closers = append(a.closers, publisher)
			d.events = publisher
		} else {
			d.events = events.Nop{}
		}
	}

	loanLimiter := cfg.LoanLimiter
	if loanLimiter == nil {
		var err error
		loanLimiter, err = newLimiter(cfg, "bookan:ratelimit:loan", cfg.LoanRequestsPerHour, time.Hour)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init loan rate limiter: %w", err)
		}
	}
	messageLimiter := cfg.MessageLimiter
	if messageLimiter == nil {
		var err error
		messageLimiter, err = newLimiter(cfg, "bookan:ratelimit:message", cfg.MessagesPerMinute, time.Minute)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init message rate limiter: %w", err)
		}
	}

	dueSoon := cfg.DueSoonDays
	if dueSoon <= 0 {
		dueSoon = ledger.DefaultDueSoonDays
	}

	books := catalog.NewStore()
	directory := identity.NewDirectory()
	a.Session = &Session{
		deps:       d,
		kv:         store,
		codec:      codec,
		identities: identity.NewStore(),
		directory:  directory,
		verify:     cfg.VerifyCredentials,
	}
	a.Session.loading.Store(true)
	a.Catalog = &Catalog{
		deps:        d,
		books:       books,
		loans:       ledger.NewLedger(),
		objects:     objects,
		limiter:     loanLimiter,
		latency:     cfg.SearchLatency,
		dueSoonDays: dueSoon,
	}
	a.Inbox = &Inbox{
		deps:      d,
		store:     messaging.NewStore(),
		books:     books,
		directory: directory,
		limiter:   messageLimiter,
	}
	return a, nil
}

func (a *App) openKV(cfg Config) (kv.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.KVBackend)) {
	case "", "memory":
		return kv.NewMemoryStore(), nil
	case "redis":
		redisStore, err := kv.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, "")
		if err != nil {
			return nil, fmt.Errorf("init redis kv: %w", err)
		}
		a.closers = append(a.closers, redisStore)
		return redisStore, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		gormStore, err := kv.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres kv: %w", err)
		}
		a.closers = append(a.closers, gormStore)
		return gormStore, nil
	default:
		return nil, fmt.Errorf("unknown kv backend: %s", cfg.KVBackend)
	}
}

func newLimiter(cfg Config, prefix string, limit int, window time.Duration) (ratelimit.Limiter, error) {
	if limit <= 0 {
		return ratelimit.Unlimited{}, nil
	}
	if strings.EqualFold(strings.TrimSpace(cfg.KVBackend), "redis") {
		return ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, window)
	}
	return ratelimit.NewMemoryFixedWindowLimiter(limit, window)
}

// Close releases broker and cache connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// checkInput runs struct validation and maps failures to ErrValidation.
func (d deps) checkInput(in any) error {
	err := d.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(parts, ", "))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

// log returns the request-scoped logger carried by ctx, if any.
func (d deps) log(ctx context.Context) *slog.Logger {
	return util.LoggerFromContext(ctx, d.logger)
}

// publish delivers an event. Failures are logged and do not undo the change.
func (d deps) publish(ctx context.Context, e events.Event) {
	if e.ID == "" {
		e.ID = util.NewID()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = d.now().UTC()
	}
	if err := d.events.Publish(ctx, e); err != nil {
		d.log(ctx).Warn("publish event failed", "type", e.Type, "subject_id", e.SubjectID, "err", err)
	}
}
