package main

import (
	"context"
	"testing"

	"github.com/MrEthical07/staffsync"
	"github.com/MrEthical07/staffsync/internal/config"
	"github.com/MrEthical07/staffsync/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T, be *backend) *staffsync.Engine {
	t.Helper()
	cfg := staffsync.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-access-secret-0123")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-refresh-secret-01")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	e, err := staffsync.New().WithConfig(cfg).WithUserProvider(be.users).Build()
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestSeedAdminOnce(t *testing.T) {
	ctx := context.Background()
	be, err := openBackend(ctx, config.StorageConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	e := testEngine(t, be)

	seed := config.SeedConfig{AdminEmail: "root@corp.io", AdminPassword: "first-password"}
	require.NoError(t, seedAdmin(ctx, e, be, seed))
	first, err := be.users.GetUserByEmail(ctx, "root@corp.io")
	require.NoError(t, err)
	require.Equal(t, permission.RoleAdmin, first.Role)

	seed.AdminPassword = "second-password"
	require.NoError(t, seedAdmin(ctx, e, be, seed))
	again, err := be.users.GetUserByEmail(ctx, "root@corp.io")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	res, err := e.Login(ctx, "root@corp.io", "first-password")
	require.NoError(t, err)
	require.Equal(t, first.ID, res.User.ID)

	require.NoError(t, seedAdmin(ctx, e, be, config.SeedConfig{}))
	require.NoError(t, be.close(ctx))
}

func TestOpenRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	ctx := context.Background()

	be, err := openBackend(ctx, config.StorageConfig{Backend: config.BackendRedis, RedisAddr: addr, KeyPrefix: "t"})
	require.NoError(t, err)
	require.NotNil(t, be.redis)
	require.NoError(t, be.close(ctx))

	mr.Close()
	_, err = openBackend(ctx, config.StorageConfig{Backend: config.BackendRedis, RedisAddr: addr})
	require.Error(t, err)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := openBackend(context.Background(), config.StorageConfig{Backend: "sqlite"})
	require.Error(t, err)
}
