package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type tokenStore interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Clear(ctx context.Context) error
}

// TokenStoreSuite runs the same contract against every implementation.
type TokenStoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) tokenStore
	store    tokenStore
}

func (s *TokenStoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
}

func sampleRecord() *Record {
	id := int64(7)
	at := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	return &Record{
		AccessToken:  "access",
		RefreshToken: "refresh",
		LoggedIn:     true,
		UserID:       &id,
		LoggedInAt:   &at,
		Device:       "Chrome on Linux",
	}
}

func (s *TokenStoreSuite) TestLoadEmpty() {
	_, err := s.store.Load(context.Background())
	s.ErrorIs(err, ErrNotFound)
}

func (s *TokenStoreSuite) TestSaveLoad() {
	ctx := context.Background()
	rec := sampleRecord()
	s.Require().NoError(s.store.Save(ctx, rec))

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal(rec.AccessToken, got.AccessToken)
	s.Equal(rec.RefreshToken, got.RefreshToken)
	s.True(got.LoggedIn)
	s.Equal(int64(7), *got.UserID)
	s.True(rec.LoggedInAt.Equal(*got.LoggedInAt))
	s.Equal("Chrome on Linux", got.Device)
}

func (s *TokenStoreSuite) TestSaveOverwrites() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, sampleRecord()))
	s.Require().NoError(s.store.Save(ctx, &Record{AccessToken: "new", RefreshToken: "refresh", LoggedIn: true}))

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal("new", got.AccessToken)
	s.Nil(got.UserID)
}

func (s *TokenStoreSuite) TestClear() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, sampleRecord()))
	s.Require().NoError(s.store.Clear(ctx))

	_, err := s.store.Load(ctx)
	s.ErrorIs(err, ErrNotFound)
	s.NoError(s.store.Clear(ctx), "clearing twice is fine")
}

func (s *TokenStoreSuite) TestSaveNil() {
	s.Error(s.store.Save(context.Background(), nil))
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &TokenStoreSuite{newStore: func(*testing.T) tokenStore {
		return NewInMemoryStore()
	}})
}

func TestFileStore(t *testing.T) {
	suite.Run(t, &TokenStoreSuite{newStore: func(t *testing.T) tokenStore {
		st, err := NewFileStore(filepath.Join(t.TempDir(), "session"), "test-secret")
		require.NoError(t, err)
		return st
	}})
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	suite.Run(t, &TokenStoreSuite{newStore: func(t *testing.T) tokenStore {
		st := NewRedisStore(client, WithKeyPrefix("milkadmin-test:"+t.Name()))
		require.NoError(t, st.Clear(context.Background()))
		return st
	}})
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	st := NewInMemoryStore()
	rec := sampleRecord()
	require.NoError(t, st.Save(context.Background(), rec))
	*rec.UserID = 99

	got, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), *got.UserID)
}

func TestFileStoreEncryption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	st, err := NewFileStore(path, "secret-one")
	require.NoError(t, err)
	require.NoError(t, st.Save(context.Background(), sampleRecord()))

	t.Run("file is sealed", func(t *testing.T) {
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "refresh")

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("wrong secret is corrupt", func(t *testing.T) {
		other, err := NewFileStore(path, "secret-two")
		require.NoError(t, err)
		_, err = other.Load(context.Background())
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("truncated file is corrupt", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))
		_, err := st.Load(context.Background())
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("requires path and secret", func(t *testing.T) {
		_, err := NewFileStore("", "x")
		assert.Error(t, err)
		_, err = NewFileStore(path, "")
		assert.Error(t, err)
	})
}
