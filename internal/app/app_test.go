package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellnesscoach/site-accounts/internal/config"
	"wellnesscoach/site-accounts/internal/guard"
)

func baseConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Storage: config.StorageConfig{
			Backend:    backend,
			File:       filepath.Join(dir, "storage.json"),
			SQLitePath: filepath.Join(dir, "storage.db"),
			OpTimeout:  time.Second,
			Redis:      config.RedisConfig{KeyPrefix: "test:"},
		},
		Accounts:     config.AccountsConfig{UsersKey: "users", SessionKey: "currentUser"},
		Guard:        config.GuardConfig{LoginPath: "/login", LandingPath: "/"},
		AuditLogFile: filepath.Join(dir, "audit.log"),
	}
}

func exerciseApp(t *testing.T, a *App) {
	t.Helper()
	_, err := a.Accounts.Register("Jane", "Doe", "jane@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, guard.RedirectLogin, a.Guard.Admin(a.Accounts).Decision)

	_, err = a.Accounts.Login("JANE@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, guard.RedirectLanding, a.Guard.Admin(a.Accounts).Decision)
	require.NoError(t, a.Ping(context.Background()))

	require.NoError(t, a.Accounts.Logout())
	assert.False(t, a.Accounts.IsAuthenticated())
}

func TestNewWithLocalBackends(t *testing.T) {
	for _, backend := range []string{config.BackendMemory, config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			a, err := New(baseConfig(t, backend), zerolog.Nop())
			require.NoError(t, err)
			defer a.Close()
			exerciseApp(t, a)
		})
	}
}

func TestNewWithRedisBackend(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := baseConfig(t, config.BackendRedis)
	cfg.Storage.Redis.Addr = mr.Addr()
	a, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	exerciseApp(t, a)
	assert.True(t, mr.Exists("test:users"))
	assert.False(t, mr.Exists("test:currentUser"))
}

func TestFileBackendSharedAcrossApps(t *testing.T) {
	cfg := baseConfig(t, config.BackendFile)
	first, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = first.Accounts.Register("Jane", "Doe", "jane@x.com", "secret1")
	require.NoError(t, err)
	_, err = first.Accounts.Login("jane@x.com", "secret1")
	require.NoError(t, err)

	second, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, second.Accounts.IsAuthenticated())
	require.NoError(t, second.Accounts.Logout())
	assert.False(t, first.Accounts.IsAuthenticated())
}

func TestOpenStorageUnknownBackend(t *testing.T) {
	_, _, err := OpenStorage(config.StorageConfig{Backend: "dynamo"})
	require.Error(t, err)
}

func TestWaitForStorageTimesOut(t *testing.T) {
	cfg := baseConfig(t, config.BackendRedis)
	cfg.Storage.Redis.Addr = "127.0.0.1:1"
	cfg.Storage.OpTimeout = 50 * time.Millisecond

	err := WaitForStorage(context.Background(), cfg.Storage, 100*time.Millisecond, 20*time.Millisecond, zerolog.Nop())
	require.Error(t, err)
}

func TestWaitForStorageReady(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := baseConfig(t, config.BackendRedis)
	cfg.Storage.Redis.Addr = mr.Addr()
	require.NoError(t, WaitForStorage(context.Background(), cfg.Storage, time.Second, 10*time.Millisecond, zerolog.Nop()))
}

func TestAuditTrailWritten(t *testing.T) {
	cfg := baseConfig(t, config.BackendMemory)
	a, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = a.Accounts.Register("Jane", "Doe", "jane@x.com", "secret1")
	require.NoError(t, err)
	_, err = a.Accounts.Login("jane@x.com", "wrong")
	require.Error(t, err)
	require.NoError(t, a.Close())

	b, err := os.ReadFile(cfg.AuditLogFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"action":"account.register"`)
	assert.Contains(t, lines[1], `"outcome":"failed"`)
}
