package target

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFalkorTarget(t *testing.T) {
	srv := miniredis.RunT(t)

	tgt, err := NewFalkorTarget(context.Background(), srv.Addr(), "", "")
	require.NoError(t, err)
	defer tgt.Close()

	// plain commands travel over the same connection as graph commands
	res, err := tgt.Command(context.Background(), "SET", "k", "v")
	require.NoError(t, err)
	assert.Equal(t, "OK", res)
}

func TestNewFalkorTargetUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := NewFalkorTarget(context.Background(), addr, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectivity)
}

func TestVerifyCredentials(t *testing.T) {
	srv := miniredis.RunT(t)
	srv.RequireUserAuth("migrator", "s3cret")

	tgt, err := NewFalkorTarget(context.Background(), srv.Addr(), "migrator", "s3cret")
	require.NoError(t, err)
	defer tgt.Close()

	assert.NoError(t, tgt.VerifyCredentials(context.Background(), "migrator", "s3cret"))
	assert.Error(t, tgt.VerifyCredentials(context.Background(), "migrator", "wrong"))
}
