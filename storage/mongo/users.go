package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/staffsync"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDoc struct {
	ID           string `bson:"_id"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
	Role         string `bson:"role"`
	Disabled     bool   `bson:"disabled"`
}

func (d userDoc) record() staffsync.UserRecord {
	return staffsync.UserRecord{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
		Disabled:     d.Disabled,
	}
}

// UserDirectory is a staffsync.UserProvider over the users collection.
type UserDirectory struct {
	coll *mongodriver.Collection
}

var (
	_ staffsync.UserProvider        = (*UserDirectory)(nil)
	_ staffsync.PasswordHashUpdater = (*UserDirectory)(nil)
)

// Put inserts or replaces an account. Emails are stored lowercased.
func (d *UserDirectory) Put(ctx context.Context, u staffsync.UserRecord) error {
	const op = "storage/mongo/PutUser"

	doc := userDoc{
		ID:           u.ID,
		Email:        strings.ToLower(strings.TrimSpace(u.Email)),
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Disabled:     u.Disabled,
	}
	_, err := d.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: u.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (d *UserDirectory) GetUserByEmail(ctx context.Context, email string) (staffsync.UserRecord, error) {
	return d.findOne(ctx, "storage/mongo/GetUserByEmail",
		bson.D{{Key: "email", Value: strings.ToLower(strings.TrimSpace(email))}})
}

func (d *UserDirectory) GetUserByID(ctx context.Context, userID string) (staffsync.UserRecord, error) {
	return d.findOne(ctx, "storage/mongo/GetUserByID", bson.D{{Key: "_id", Value: userID}})
}

func (d *UserDirectory) UpdatePasswordHash(ctx context.Context, userID, encodedHash string) error {
	const op = "storage/mongo/UpdatePasswordHash"

	res, err := d.coll.UpdateByID(ctx, userID, bson.D{{Key: "$set", Value: bson.D{{Key: "password_hash", Value: encodedHash}}}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, staffsync.ErrUserNotFound)
	}
	return nil
}

func (d *UserDirectory) findOne(ctx context.Context, op string, filter bson.D) (staffsync.UserRecord, error) {
	var doc userDoc
	if err := d.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return staffsync.UserRecord{}, fmt.Errorf("%s: %w", op, staffsync.ErrUserNotFound)
		}
		return staffsync.UserRecord{}, fmt.Errorf("%s: %w", op, err)
	}
	return doc.record(), nil
}
