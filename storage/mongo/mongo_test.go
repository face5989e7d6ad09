package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/staffsync"
	"github.com/MrEthical07/staffsync/notify"
	"github.com/MrEthical07/staffsync/notify/notifytest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testTimeout = 10 * time.Second

// TestMain starts one MongoDB container for the package when
// GO_TEST_INTEGRATION is set. Each test gets its own database.
func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7.0",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
	}
	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		os.Exit(1)
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}
	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}
	_ = os.Setenv("DATABASE_URL", fmt.Sprintf("mongodb://%s:%s", host, port.Port()))

	code := m.Run()

	_ = mongoC.Terminate(context.Background())
	os.Exit(code)
}

func mustNewMongo(t *testing.T) *Mongo {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("set GO_TEST_INTEGRATION=1 to run MongoDB integration tests")
	}

	base := os.Getenv("DATABASE_URL")
	if base == "" {
		base = "mongodb://localhost:27017"
	}
	uri := base + "/staffsync_test_" + uuid.NewString()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	m, err := New(ctx, uri)
	require.NoError(t, err, "connect %s", uri)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = m.db.Drop(ctx)
		_ = m.Close(ctx)
	})
	return m
}

func TestDatabaseFromURI(t *testing.T) {
	cases := map[string]string{
		"mongodb://localhost:27017":    defaultDBName,
		"mongodb://localhost:27017/":   defaultDBName,
		"mongodb://localhost:27017/hr": "hr",
		"::not a uri":                  defaultDBName,
	}
	for uri, want := range cases {
		require.Equal(t, want, databaseFromURI(uri), uri)
	}
}

func TestNewRejectsEmptyURI(t *testing.T) {
	_, err := New(context.Background(), "")
	require.Error(t, err)
}

func TestNotificationStoreContract(t *testing.T) {
	notifytest.RunStoreSuite(t, func(t *testing.T) notify.Store {
		return mustNewMongo(t).Notifications()
	})
}

func TestUserDirectory(t *testing.T) {
	m := mustNewMongo(t)
	users := m.Users()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	require.NoError(t, users.Put(ctx, staffsync.UserRecord{ID: "admin-1", Email: "Admin@Corp.Example", Role: "Admin", PasswordHash: "h1"}))

	u, err := users.GetUserByEmail(ctx, "admin@corp.example")
	require.NoError(t, err)
	require.Equal(t, "admin-1", u.ID)
	require.Equal(t, "Admin", u.Role)

	require.NoError(t, users.UpdatePasswordHash(ctx, "admin-1", "h2"))
	u, err = users.GetUserByID(ctx, "admin-1")
	require.NoError(t, err)
	require.Equal(t, "h2", u.PasswordHash)

	_, err = users.GetUserByID(ctx, "ghost")
	require.True(t, errors.Is(err, staffsync.ErrUserNotFound))
	require.ErrorIs(t, users.UpdatePasswordHash(ctx, "ghost", "x"), staffsync.ErrUserNotFound)
}
