package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	notificationsCollection = "notifications"
	usersCollection         = "users"
	defaultDBName           = "staffsync"
)

// Mongo holds the client and the collections used by the stores.
type Mongo struct {
	client        *mongodriver.Client
	db            *mongodriver.Database
	notifications *mongodriver.Collection
	users         *mongodriver.Collection
}

// New connects to uri, pings the primary and ensures indexes. The database
// name is taken from the URI path, defaulting to "staffsync".
func New(ctx context.Context, uri string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(uri))
	m := &Mongo{
		client:        cli,
		db:            db,
		notifications: db.Collection(notificationsCollection),
		users:         db.Collection(usersCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Notifications returns the notification store.
func (m *Mongo) Notifications() *NotificationStore {
	return &NotificationStore{coll: m.notifications}
}

// Users returns the user directory.
func (m *Mongo) Users() *UserDirectory {
	return &UserDirectory{coll: m.users}
}

// ensureIndexes creates:
//   - owner_user_id + created_at(desc) for listing
//   - owner_user_id + is_read for unread counts and mark-all
//   - unique users.email
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	notificationIdx := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("owner_created_desc"),
		},
		{
			Keys:    bson.D{{Key: "owner_user_id", Value: 1}, {Key: "is_read", Value: 1}},
			Options: options.Index().SetName("owner_is_read"),
		},
	}
	if _, err := m.notifications.Indexes().CreateMany(ctx, notificationIdx); err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}

	userIdx := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_unique").SetUnique(true),
	}
	if _, err := m.users.Indexes().CreateOne(ctx, userIdx); err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

// databaseFromURI extracts the database name from the URI path.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}
