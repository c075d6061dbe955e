package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wellnesscoach/site-accounts/internal/accounts"
	"wellnesscoach/site-accounts/internal/audit"
	"wellnesscoach/site-accounts/internal/config"
	"wellnesscoach/site-accounts/internal/guard"
	"wellnesscoach/site-accounts/internal/storage"
)

// App wires one account store to the configured storage backend. Build it
// once per process and hand Accounts and Guard to consumers.
type App struct {
	cfg     config.Config
	log     zerolog.Logger
	storage storage.Storage
	closers []func() error

	Accounts *accounts.Store
	Guard    guard.Guard
}

func New(cfg config.Config, logger zerolog.Logger) (*App, error) {
	st, closers, err := OpenStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:     cfg,
		log:     logger,
		storage: st,
		closers: closers,
		Guard:   guard.New(cfg.Guard.LoginPath, cfg.Guard.LandingPath),
	}

	auditLogger := audit.NewLogger(cfg.AuditLogFile)
	a.closers = append(a.closers, auditLogger.Close)
	a.Accounts, err = accounts.New(st,
		accounts.WithLogger(logger.With().Str("component", "accounts").Logger()),
		accounts.WithAuditor(auditLogger),
		accounts.WithKeys(cfg.Accounts.UsersKey, cfg.Accounts.SessionKey),
	)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("create account store: %w", err)
	}

	logger.Debug().Str("backend", cfg.Storage.Backend).Msg("account store ready")
	return a, nil
}

// OpenStorage returns the backend named by cfg.Backend along with the
// functions that release it.
func OpenStorage(cfg config.StorageConfig) (storage.Storage, []func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStorage(), nil, nil
	case config.BackendFile:
		st, err := storage.NewFileStorage(cfg.File)
		if err != nil {
			return nil, nil, fmt.Errorf("create file storage: %w", err)
		}
		return st, nil, nil
	case config.BackendSQLite:
		db, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		st, err := storage.NewSQLiteStorage(db, cfg.OpTimeout)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("create sqlite storage: %w", err)
		}
		return st, []func() error{db.Close}, nil
	case config.BackendPostgres:
		db, err := storage.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		st, err := storage.NewPostgresStorage(db, cfg.OpTimeout)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return st, []func() error{db.Close}, nil
	case config.BackendRedis:
		st, err := storage.OpenRedis(storage.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			OpTimeout: cfg.OpTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create redis storage: %w", err)
		}
		return st, []func() error{st.Close}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// Ping checks backends that sit behind a network connection; local ones
// always succeed.
func (a *App) Ping(ctx context.Context) error {
	p, ok := a.storage.(storage.Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// WaitForStorage opens and pings the configured backend until it answers or
// timeout elapses. Each attempt opens a fresh connection and releases it.
func WaitForStorage(ctx context.Context, cfg config.StorageConfig, timeout, interval time.Duration, logger zerolog.Logger) error {
	deadline := time.Now().Add(timeout)
	for {
		err := pingOnce(ctx, cfg)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s storage not ready within %s: %w", cfg.Backend, timeout, err)
		}
		logger.Info().Err(err).Str("backend", cfg.Backend).Msg("storage not ready, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func pingOnce(ctx context.Context, cfg config.StorageConfig) error {
	st, closers, err := OpenStorage(cfg)
	if err != nil {
		return err
	}
	a := &App{storage: st, closers: closers}
	defer a.Close()

	pingCtx, cancel := context.WithTimeout(ctx, cfg.OpTimeout)
	defer cancel()
	return a.Ping(pingCtx)
}
