package rowstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

func TestRedis_KeyLayout(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedis(client, testIndexes, WithKeyPrefix("test:"))
	ctx := context.Background()

	_, err := s.Insert(ctx, "resources", Row{IDColumn: "r1", "token": "tok", "storage_path": "guides/a.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "guides/a.pdf", mr.HGet("test:rows:resources:r1", "storage_path"))
	got, err := mr.Get("test:idx:resources:token:tok")
	require.NoError(t, err)
	assert.Equal(t, "r1", got)

	members, err := mr.ZMembers("test:ids:resources")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, members)
}

func TestRedis_DeleteCleansIndex(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedis(client, testIndexes)
	ctx := context.Background()

	_, err := s.Insert(ctx, "resources", Row{IDColumn: "r1", "token": "tok"})
	require.NoError(t, err)
	_, err = s.Delete(ctx, "resources", Filter{IDColumn: "r1"})
	require.NoError(t, err)

	assert.False(t, mr.Exists(DefaultKeyPrefix+"idx:resources:token:tok"))
	assert.False(t, mr.Exists(DefaultKeyPrefix+"rows:resources:r1"))
}

func TestRedis_ConnectionFailureIsStoreKind(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedis(client, testIndexes)
	mr.Close()

	ctx := context.Background()
	_, err := s.Select(ctx, "resources", Filter{"token": "x"}, SelectOptions{})
	require.Error(t, err)
	assert.True(t, xerrors.IsKind(err, xerrors.KindStore))

	_, err = s.Increment(ctx, "resources", Filter{"token": "x"}, "download_count", 1)
	assert.True(t, xerrors.IsKind(err, xerrors.KindStore))

	assert.Error(t, s.Ping(ctx))
}

func TestRedis_ScriptFailureLeavesRowIntact(t *testing.T) {
	client, mr := setupMiniredis(t)
	s := NewRedis(client, testIndexes)
	ctx := context.Background()

	_, err := s.Insert(ctx, "resources", Row{IDColumn: "r1", "token": "tok", "download_count": "x"})
	require.NoError(t, err)

	_, err = s.Increment(ctx, "resources", Filter{"token": "tok"}, "download_count", 1)
	require.Error(t, err)
	assert.Equal(t, "x", mr.HGet(DefaultKeyPrefix+"rows:resources:r1", "download_count"))
}
