package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kelime/internal/config"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// exerciseStorage проверяет общий контракт хранилища
func exerciseStorage(t *testing.T, s Storage) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "learningProgress", []byte(`{"xp":10}`)))
	require.NoError(t, s.Set(ctx, "offline_chapter_1", []byte(`{}`)))
	require.NoError(t, s.Set(ctx, "offline_chapter_2", []byte(`{}`)))
	require.NoError(t, s.Set(ctx, "offlineXchapter", []byte(`{}`)))

	value, err := s.Get(ctx, "learningProgress")
	require.NoError(t, err)
	assert.Equal(t, `{"xp":10}`, string(value))

	// Перезапись
	require.NoError(t, s.Set(ctx, "learningProgress", []byte(`{"xp":20}`)))
	value, err = s.Get(ctx, "learningProgress")
	require.NoError(t, err)
	assert.Equal(t, `{"xp":20}`, string(value))

	// Символ подчеркивания в префиксе не является шаблоном
	keys, err := s.Keys(ctx, "offline_")
	require.NoError(t, err)
	assert.Equal(t, []string{"offline_chapter_1", "offline_chapter_2"}, keys)

	require.NoError(t, s.Delete(ctx, "offline_chapter_1"))
	require.NoError(t, s.Delete(ctx, "never-existed"))

	keys, err = s.Keys(ctx, "offline_")
	require.NoError(t, err)
	assert.Equal(t, []string{"offline_chapter_2"}, keys)
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemory(0))
}

func TestSQLiteStorage(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "kelime.db"), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	exerciseStorage(t, s)
}

func TestMemoryQuota(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(20)

	require.NoError(t, m.Set(ctx, "a", []byte("0123456789")))
	assert.Equal(t, 11, m.Used())

	err := m.Set(ctx, "b", []byte("0123456789"))
	assert.True(t, IsQuotaExceeded(err))

	// Перезапись того же ключа учитывает освобождаемое место
	require.NoError(t, m.Set(ctx, "a", []byte("01234567890123456")))
	assert.Equal(t, 18, m.Used())

	require.NoError(t, m.Delete(ctx, "a"))
	assert.Equal(t, 0, m.Used())
	require.NoError(t, m.Set(ctx, "b", []byte("0123456789")))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		quota bool
	}{
		{name: "sqlite переполнена", err: sqlite3.Error{Code: sqlite3.ErrFull}, quota: true},
		{name: "sqlite занята", err: sqlite3.Error{Code: sqlite3.ErrBusy}, quota: false},
		{name: "postgres диск заполнен", err: &pgconn.PgError{Code: pgDiskFull}, quota: true},
		{name: "postgres лимит", err: &pgconn.PgError{Code: pgProgramLimitExceeded}, quota: true},
		{name: "postgres уникальность", err: &pgconn.PgError{Code: "23505"}, quota: false},
		{name: "redis нехватка памяти", err: errors.New("OOM command not allowed when used memory > 'maxmemory'"), quota: true},
		{name: "redis прочее", err: errors.New("READONLY You can't write against a read only replica"), quota: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mapped error
			switch tt.err.(type) {
			case sqlite3.Error:
				mapped = mapSQLiteError(tt.err)
			case *pgconn.PgError:
				mapped = mapPostgresError(tt.err)
			default:
				mapped = mapRedisError(tt.err)
			}
			assert.Equal(t, tt.quota, IsQuotaExceeded(mapped))
		})
	}
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "offline_", escapeGlob("offline_"))
	assert.Equal(t, `a\*b\?c\[d\]`, escapeGlob("a*b?c[d]"))
}

func TestNewUnknownBackend(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "mongo"}}
	_, err := New(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg.Storage.Backend = config.BackendMemory
	s, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
