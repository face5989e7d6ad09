package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/staffsync"
	"github.com/MrEthical07/staffsync/internal/config"
	"github.com/MrEthical07/staffsync/notify"
	"github.com/MrEthical07/staffsync/permission"
	"github.com/MrEthical07/staffsync/storage/memory"
	"github.com/MrEthical07/staffsync/storage/mongo"
	"github.com/MrEthical07/staffsync/storage/redisstore"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// backend bundles the storage chosen by configuration.
type backend struct {
	users         staffsync.UserProvider
	notifications notify.Store
	// redis is set for the redis backend and enables login throttling.
	redis redis.UniversalClient
	// putUser stores a seeded account.
	putUser func(ctx context.Context, u staffsync.UserRecord) error
	close   func(ctx context.Context) error
}

func openBackend(ctx context.Context, cfg config.StorageConfig) (*backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		users := memory.NewUserDirectory()
		return &backend{
			users:         users,
			notifications: memory.NewNotificationStore(),
			putUser: func(_ context.Context, u staffsync.UserRecord) error {
				users.Put(u)
				return nil
			},
			close: func(context.Context) error { return nil },
		}, nil

	case config.BackendRedis:
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		// Accounts live in process; only notifications and throttling use Redis.
		users := memory.NewUserDirectory()
		return &backend{
			users:         users,
			notifications: redisstore.New(rdb, cfg.KeyPrefix),
			redis:         rdb,
			putUser: func(_ context.Context, u staffsync.UserRecord) error {
				users.Put(u)
				return nil
			},
			close: func(context.Context) error { return rdb.Close() },
		}, nil

	case config.BackendMongo:
		m, err := mongo.New(ctx, cfg.MongoURL)
		if err != nil {
			return nil, err
		}
		users := m.Users()
		return &backend{
			users:         users,
			notifications: m.Notifications(),
			putUser:       users.Put,
			close:         m.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// seedAdmin creates the configured admin account unless the email is taken.
func seedAdmin(ctx context.Context, engine *staffsync.Engine, be *backend, seed config.SeedConfig) error {
	if seed.AdminEmail == "" {
		return nil
	}
	_, err := be.users.GetUserByEmail(ctx, seed.AdminEmail)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, staffsync.ErrUserNotFound):
		return err
	}

	hash, err := engine.HashPassword(seed.AdminPassword)
	if err != nil {
		return err
	}
	return be.putUser(ctx, staffsync.UserRecord{
		ID:           uuid.NewString(),
		Email:        seed.AdminEmail,
		PasswordHash: hash,
		Role:         permission.RoleAdmin,
	})
}
