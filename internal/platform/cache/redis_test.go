package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectsByAddress(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := New(context.Background(), srv.Addr())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	srv.CheckGet(t, "k", "v")
}

func TestNewConnectsByURL(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := New(context.Background(), "redis://"+srv.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewRejectsBadAddress(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)

	_, err = New(context.Background(), "redis://%zz")
	assert.Error(t, err)
}
