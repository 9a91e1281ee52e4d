package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"streamhub/internal/models"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("username or email already registered")
)

// UserStore is the narrow surface the session core needs from the
// user-record collaborator. The per-user refresh-token field is the only
// shared mutable state in the subsystem; CompareAndSetCurrentRefreshToken
// must be atomic per user so concurrent rotations cannot both win.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	FindUserByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)

	GetCredentialHash(ctx context.Context, id primitive.ObjectID) (string, error)
	SetCredentialHash(ctx context.Context, id primitive.ObjectID, hash string) error

	GetCurrentRefreshToken(ctx context.Context, id primitive.ObjectID) (string, error)
	// SetCurrentRefreshToken writes unconditionally; login and logout use it.
	// An empty token clears the session.
	SetCurrentRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error
	// CompareAndSetCurrentRefreshToken replaces the stored token only if it
	// still equals expectedOld, as a single conditional update. It returns
	// false when the stored value no longer matches. expectedOld is never
	// empty; the session manager rejects empty presented tokens first.
	CompareAndSetCurrentRefreshToken(ctx context.Context, id primitive.ObjectID, expectedOld, newValue string) (bool, error)
}
