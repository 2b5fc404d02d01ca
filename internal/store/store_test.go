package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "ponds_url", `{"url":"a"}`))
	v, err := kv.Get(ctx, "ponds_url")
	require.NoError(t, err)
	assert.Equal(t, `{"url":"a"}`, v)

	require.NoError(t, kv.Set(ctx, "ponds_url", `{"url":"b"}`))
	v, err = kv.Get(ctx, "ponds_url")
	require.NoError(t, err)
	assert.Equal(t, `{"url":"b"}`, v)
}

func TestMemory(t *testing.T) {
	kv := NewMemory()
	defer kv.Close()
	exercise(t, kv)
}

func TestSQLite(t *testing.T) {
	dir := t.TempDir()
	kv, err := Open(context.Background(), Config{Driver: DriverSQLite, DataDir: dir})
	require.NoError(t, err)
	exercise(t, kv)
	require.NoError(t, kv.Close())

	// Values survive a reopen.
	kv, err = Open(context.Background(), Config{Driver: DriverSQLite, DataDir: dir})
	require.NoError(t, err)
	defer kv.Close()
	v, err := kv.Get(context.Background(), "ponds_url")
	require.NoError(t, err)
	assert.Equal(t, `{"url":"b"}`, v)
}

func TestDuckDB(t *testing.T) {
	dir := t.TempDir()
	kv, err := Open(context.Background(), Config{Driver: DriverDuckDB, DataDir: dir})
	require.NoError(t, err)
	exercise(t, kv)
	require.NoError(t, kv.Close())

	kv, err = Open(context.Background(), Config{Driver: DriverDuckDB, DataDir: dir})
	require.NoError(t, err)
	defer kv.Close()
	v, err := kv.Get(context.Background(), "ponds_url")
	require.NoError(t, err)
	assert.Equal(t, `{"url":"b"}`, v)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "etcd"})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{Driver: DriverRedis})
	assert.Error(t, err)
}
