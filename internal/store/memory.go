package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"streamhub/internal/models"
)

// MemoryStore is an in-process UserStore used by tests. It holds the same
// compare-and-swap guarantee as the Mongo implementation: every method runs
// under the store lock, so a conditional token swap is atomic.
type MemoryStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[primitive.ObjectID]*models.User)}
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return primitive.NilObjectID, ErrDuplicate
		}
	}

	stored := *user
	if stored.ID.IsZero() {
		stored.ID = primitive.NewObjectID()
	}
	s.users[stored.ID] = &stored
	return stored.ID, nil
}

func (s *MemoryStore) FindUserByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Username == identifier || user.Email == identifier {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStore) GetCredentialHash(ctx context.Context, id primitive.ObjectID) (string, error) {
	user, err := s.FindUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.PasswordHash, nil
}

func (s *MemoryStore) SetCredentialHash(_ context.Context, id primitive.ObjectID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetCurrentRefreshToken(ctx context.Context, id primitive.ObjectID) (string, error) {
	user, err := s.FindUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.RefreshToken, nil
}

func (s *MemoryStore) SetCurrentRefreshToken(_ context.Context, id primitive.ObjectID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	user.RefreshToken = token
	user.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) CompareAndSetCurrentRefreshToken(_ context.Context, id primitive.ObjectID, expectedOld, newValue string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok || user.RefreshToken != expectedOld {
		return false, nil
	}
	user.RefreshToken = newValue
	user.UpdatedAt = time.Now()
	return true, nil
}
