package store

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"streamhub/internal/models"
)

// MongoStore implements UserStore on the users collection. The conditional
// refresh-token update relies on MongoDB applying a single-document update
// atomically.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) users() *mongo.Collection {
	return s.db.Collection("users")
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	res, err := s.users().InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

// FindUserByIdentifier matches the identifier against username or email,
// both stored lowercased.
func (s *MongoStore) FindUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))

	var user models.User
	err := s.users().FindOne(ctx, bson.M{
		"$or": bson.A{
			bson.M{"username": identifier},
			bson.M{"email": identifier},
		},
	}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.users().FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) GetCredentialHash(ctx context.Context, id primitive.ObjectID) (string, error) {
	user, err := s.FindUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.PasswordHash, nil
}

func (s *MongoStore) SetCredentialHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := s.users().UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"passwordHash": hash,
		"updatedAt":    time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) GetCurrentRefreshToken(ctx context.Context, id primitive.ObjectID) (string, error) {
	user, err := s.FindUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.RefreshToken, nil
}

func (s *MongoStore) SetCurrentRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	update := bson.M{"$set": bson.M{"refreshToken": token, "updatedAt": time.Now()}}
	if token == "" {
		update = bson.M{
			"$unset": bson.M{"refreshToken": ""},
			"$set":   bson.M{"updatedAt": time.Now()},
		}
	}

	res, err := s.users().UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) CompareAndSetCurrentRefreshToken(ctx context.Context, id primitive.ObjectID, expectedOld, newValue string) (bool, error) {
	res, err := s.users().UpdateOne(ctx,
		bson.M{"_id": id, "refreshToken": expectedOld},
		bson.M{"$set": bson.M{"refreshToken": newValue, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}
