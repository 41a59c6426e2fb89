// Package mongostore implements auth.UserStore on MongoDB, matching the
// platform's original user collection layout.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"neurocare.org/internal/auth"
	"neurocare.org/internal/ids"
)

const collectionName = "user"

// Store implements auth.UserStore on a MongoDB collection.
type Store struct {
	coll *mongo.Collection
}

var _ auth.UserStore = (*Store)(nil)

// Open connects to MongoDB and ensures the unique email index.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	store := &Store{coll: client.Database(database).Collection(collectionName)}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing collection handle.
func NewStore(coll *mongo.Collection) *Store { return &Store{coll: coll} }

func (s *Store) Close(ctx context.Context) error {
	return s.coll.Database().Client().Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

type userDoc struct {
	ID           string     `bson:"_id"`
	Name         string     `bson:"name,omitempty"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"password_hash"`
	OTPCode      *string    `bson:"otp_code,omitempty"`
	OTPExpiry    *time.Time `bson:"otp_expiry,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func toDoc(u *auth.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		OTPCode:      u.OTPCode,
		OTPExpiry:    u.OTPExpiry,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) toUser() *auth.User {
	return &auth.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		OTPCode:      d.OTPCode,
		OTPExpiry:    d.OTPExpiry,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (s *Store) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := s.coll.InsertOne(ctx, toDoc(u))
	if mongo.IsDuplicateKeyError(err) {
		return auth.ErrDuplicateEmail
	}
	return err
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *Store) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*auth.User, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toUser(), nil
}

func (s *Store) Update(ctx context.Context, u *auth.User) error {
	u.UpdatedAt = time.Now().UTC()
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, toDoc(u))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}
