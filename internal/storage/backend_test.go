package storage

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "user", "alice"))
	require.NoError(t, b.Set(ctx, "user", "bob"))
	v, ok, err := b.Get(ctx, "user")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bob", v)

	require.NoError(t, b.Delete(ctx, "user", "never-set"))
	_, ok, err = b.Get(ctx, "user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	exerciseBackend(t, b)

	require.NoError(t, b.Set(context.Background(), "theme", "dark"))
	require.NoError(t, b.Close())

	reopened, err := Open(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	defer reopened.Close()
	v, ok, err := reopened.Get(context.Background(), "theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	b := NewRedisBackend(client)
	t.Cleanup(func() { _ = b.Close() })

	exerciseBackend(t, b)

	require.NoError(t, b.Set(context.Background(), "voice_shopping_theme", "dark"))
	raw, err := mr.Get("voiceshop:voice_shopping_theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", raw)
	assert.Equal(t, 0, int(mr.TTL("voiceshop:voice_shopping_theme")))
}

func TestOpenRedisURL(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := Open(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer b.Close()
	_, ok := b.(*RedisBackend)
	assert.True(t, ok)
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "mongodb://localhost")
	require.Error(t, err)

	b, err := Open(context.Background(), "")
	require.NoError(t, err)
	_, ok := b.(*MemoryBackend)
	assert.True(t, ok)
}

func TestPostgresBackend(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := &PostgresBackend{pool: mock}
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS voiceshop_kv")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, b.initSchema(ctx))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO voiceshop_kv")).
		WithArgs("user", "alice", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, b.Set(ctx, "user", "alice"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM voiceshop_kv WHERE key=$1")).
		WithArgs("user").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("alice"))
	v, ok, err := b.Get(ctx, "user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM voiceshop_kv WHERE key=$1")).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))
	_, ok, err = b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM voiceshop_kv WHERE key = ANY($1)")).
		WithArgs([]string{"user", "theme"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, b.Delete(ctx, "user", "theme"))

	require.NoError(t, mock.ExpectationsWereMet())
}
