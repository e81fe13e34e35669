package account

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore keeps users and follows in the "users" and "userFollows"
// collections.
type MongoStore struct {
	users   *mongo.Collection
	follows *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		users:   db.Collection("users"),
		follows: db.Collection("userFollows"),
	}
}

type userDocument struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email,omitempty"`
	IsGuest   bool      `bson:"isGuest"`
	Roles     []Role    `bson:"roles"`
	CreatedAt time.Time `bson:"createdAt"`
}

type followDocument struct {
	FollowerID string    `bson:"followerId"`
	FolloweeID string    `bson:"followeeId"`
	CreatedAt  time.Time `bson:"createdAt"`
}

// EnsureIndexes creates the unique follow edge index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.follows.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "followeeId", Value: 1}, {Key: "followerId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*User, error) {
	var doc userDocument
	err := s.users.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	return &User{
		ID:        doc.ID,
		Name:      doc.Name,
		Email:     doc.Email,
		IsGuest:   doc.IsGuest,
		Roles:     doc.Roles,
		CreatedAt: doc.CreatedAt.UTC(),
	}, nil
}

func (s *MongoStore) SaveUser(ctx context.Context, u *User) error {
	doc := userDocument{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		IsGuest:   u.IsGuest,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
	}
	if doc.Roles == nil {
		doc.Roles = []Role{}
	}
	_, err := s.users.ReplaceOne(ctx, bson.D{{Key: "_id", Value: u.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *MongoStore) ListFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	cur, err := s.follows.Find(ctx, bson.D{{Key: "followeeId", Value: userID}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	var docs []followDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.FollowerID)
	}
	return ids, nil
}

func (s *MongoStore) Follow(ctx context.Context, followerID, followeeID string) error {
	filter := bson.D{{Key: "followerId", Value: followerID}, {Key: "followeeId", Value: followeeID}}
	update := bson.D{{Key: "$setOnInsert", Value: followDocument{
		FollowerID: followerID,
		FolloweeID: followeeID,
		CreatedAt:  time.Now().UTC(),
	}}}
	if _, err := s.follows.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}
