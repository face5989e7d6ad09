package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/staffsync/errkind"
	"github.com/MrEthical07/staffsync/notify"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type notificationDoc struct {
	ID          string    `bson:"_id"`
	OwnerUserID string    `bson:"owner_user_id"`
	Title       string    `bson:"title"`
	Message     string    `bson:"message"`
	Kind        string    `bson:"kind"`
	IsRead      bool      `bson:"is_read"`
	CreatedAt   time.Time `bson:"created_at"`
}

func toDoc(n notify.Notification) notificationDoc {
	return notificationDoc{
		ID:          n.ID,
		OwnerUserID: n.OwnerUserID,
		Title:       n.Title,
		Message:     n.Message,
		Kind:        string(n.Kind),
		IsRead:      n.IsRead,
		// MongoDB DateTime keeps milliseconds.
		CreatedAt: n.CreatedAt.UTC().Truncate(time.Millisecond),
	}
}

func (d notificationDoc) model() notify.Notification {
	return notify.Notification{
		ID:          d.ID,
		OwnerUserID: d.OwnerUserID,
		Title:       d.Title,
		Message:     d.Message,
		Kind:        notify.Kind(d.Kind),
		IsRead:      d.IsRead,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

// NotificationStore is a notify.Store over the notifications collection.
type NotificationStore struct {
	coll *mongodriver.Collection
}

var _ notify.Store = (*NotificationStore)(nil)

func (s *NotificationStore) Insert(ctx context.Context, n notify.Notification) error {
	const op = "storage/mongo/Insert"

	if _, err := s.coll.InsertOne(ctx, toDoc(n)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *NotificationStore) FindByID(ctx context.Context, id string) (notify.Notification, error) {
	const op = "storage/mongo/FindByID"

	var doc notificationDoc
	if err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		return notify.Notification{}, notFoundOr(op, err)
	}
	return doc.model(), nil
}

func (s *NotificationStore) SetRead(ctx context.Context, id string, read bool) (notify.Notification, error) {
	const op = "storage/mongo/SetRead"

	var doc notificationDoc
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "is_read", Value: read}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return notify.Notification{}, notFoundOr(op, err)
	}
	return doc.model(), nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, owner string) (int, error) {
	const op = "storage/mongo/MarkAllRead"

	res, err := s.coll.UpdateMany(ctx,
		bson.D{{Key: "owner_user_id", Value: owner}, {Key: "is_read", Value: false}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "is_read", Value: true}}}},
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(res.ModifiedCount), nil
}

func (s *NotificationStore) Delete(ctx context.Context, id string) (notify.Notification, error) {
	const op = "storage/mongo/Delete"

	var doc notificationDoc
	if err := s.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		return notify.Notification{}, notFoundOr(op, err)
	}
	return doc.model(), nil
}

func (s *NotificationStore) CountUnread(ctx context.Context, owner string) (int, error) {
	const op = "storage/mongo/CountUnread"

	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "owner_user_id", Value: owner}, {Key: "is_read", Value: false}})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

func (s *NotificationStore) ListByOwner(ctx context.Context, owner string, limit int) ([]notify.Notification, error) {
	const op = "storage/mongo/ListByOwner"

	if limit <= 0 {
		limit = notify.DefaultListLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.coll.Find(ctx, bson.D{{Key: "owner_user_id", Value: owner}}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	out := make([]notify.Notification, 0, limit)
	for cur.Next(ctx) {
		var doc notificationDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		out = append(out, doc.model())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}
	return out, nil
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", op, errkind.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
