package bootstrap

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xkeyring/pkg/config/xconf"
	"github.com/omeyang/xkeyring/pkg/keypool/xkeysource"
	"github.com/omeyang/xkeyring/pkg/keypool/xregistry"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newApp(t *testing.T, cfg *xconf.Config, opts ...Option) *App {
	t.Helper()
	require.NoError(t, cfg.Validate())
	app, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })
	return app
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestNew_LoadsAllSources(t *testing.T) {
	mr := miniredis.RunT(t)
	_, err := mr.SAdd("xkeyring:search", "sk-r1", "sk-r2")
	require.NoError(t, err)

	dir := t.TempDir()
	keyFile := writeFile(t, dir, "openai.keys", "# comment\nsk-f1\nsk-f2\nsk-a\n")

	cfg := xconf.Default()
	cfg.Pools = []xconf.PoolConfig{
		{Name: "openai", Keys: []string{"sk-a", "sk-b"}, KeyFiles: []string{keyFile}, BaseCooldown: time.Minute},
		{
			Name:         "search",
			Default:      true,
			BaseCooldown: time.Minute,
			Redis:        &xconf.RedisConfig{Addr: mr.Addr(), Set: "xkeyring:search"},
		},
	}

	var logs bytes.Buffer
	app := newApp(t, cfg, WithLogOutput(&logs), WithoutAutoReload())

	openai, err := app.Pool("openai")
	require.NoError(t, err)
	assert.Equal(t, 4, openai.Len())
	for _, k := range []string{"sk-a", "sk-b", "sk-f1", "sk-f2"} {
		assert.True(t, openai.Contains(k), k)
	}

	search, err := app.Pool("")
	require.NoError(t, err)
	assert.Equal(t, "search", search.Name())
	assert.Equal(t, 2, search.Len())

	assert.Equal(t, []string{"openai", "search"}, app.Registry.Names())
	assert.Contains(t, logs.String(), "pool loaded")
	assert.NotContains(t, logs.String(), "sk-f1", "keys must not be logged")
}

func TestNew_SourceFailureCleansUp(t *testing.T) {
	cfg := xconf.Default()
	cfg.Pools = []xconf.PoolConfig{
		{Name: "ok", Keys: []string{"k"}},
		{Name: "broken", KeyFiles: []string{filepath.Join(t.TempDir(), "absent.keys")}},
	}

	app, err := New(context.Background(), cfg, WithLogOutput(&bytes.Buffer{}))
	assert.Nil(t, app)
	assert.ErrorIs(t, err, xkeysource.ErrLoadFailed)
	assert.ErrorContains(t, err, "pool broken")
}

func TestNew_InvalidSchedule(t *testing.T) {
	keyFile := writeFile(t, t.TempDir(), "k.keys", "k1\n")
	cfg := xconf.Default()
	cfg.Pools = []xconf.PoolConfig{{Name: "p", KeyFiles: []string{keyFile}, Sync: "whenever"}}

	_, err := New(context.Background(), cfg, WithLogOutput(&bytes.Buffer{}))
	assert.ErrorIs(t, err, xkeysource.ErrInvalidSchedule)
}

func TestNew_DuplicatePool(t *testing.T) {
	cfg := xconf.Default()
	cfg.Pools = []xconf.PoolConfig{{Name: "p", Keys: []string{"a"}}, {Name: "p", Keys: []string{"b"}}}

	_, err := New(context.Background(), cfg, WithLogOutput(&bytes.Buffer{}))
	assert.ErrorIs(t, err, xregistry.ErrDuplicatePool)
}

func TestNew_WatchesKeyFiles(t *testing.T) {
	dir := t.TempDir()
	keyFile := writeFile(t, dir, "openai.keys", "sk-1\n")

	cfg := xconf.Default()
	cfg.Pools = []xconf.PoolConfig{{Name: "openai", KeyFiles: []string{keyFile}, Watch: true, BaseCooldown: time.Minute}}
	app := newApp(t, cfg, WithLogOutput(&bytes.Buffer{}))

	pool, err := app.Pool("openai")
	require.NoError(t, err)
	require.Equal(t, 1, pool.Len())

	require.NoError(t, os.WriteFile(keyFile, []byte("sk-1\nsk-2\n"), 0o600))
	assert.Eventually(t, func() bool { return pool.Contains("sk-2") }, 5*time.Second, 20*time.Millisecond)
}

func TestNew_SyncsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	_, err := mr.SAdd("keys", "sk-1")
	require.NoError(t, err)

	cfg := xconf.Default()
	cfg.Pools = []xconf.PoolConfig{{
		Name:         "p",
		BaseCooldown: time.Minute,
		Redis:        &xconf.RedisConfig{Addr: mr.Addr(), Set: "keys"},
		Sync:         "@every 1s",
	}}
	app := newApp(t, cfg, WithLogOutput(&bytes.Buffer{}))

	pool, err := app.Pool("")
	require.NoError(t, err)
	require.Equal(t, 1, pool.Len())

	_, err = mr.SAdd("keys", "sk-2")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return pool.Contains("sk-2") }, 5*time.Second, 50*time.Millisecond)
}

func TestNew_LogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "xkeyring.log")
	cfg := xconf.Default()
	cfg.Log.File = logFile
	cfg.Log.Format = "json"
	cfg.Pools = []xconf.PoolConfig{{Name: "p", Keys: []string{"k"}}}

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, app.Close())
	require.NoError(t, app.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"pool loaded"`)
}
