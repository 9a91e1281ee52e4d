package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"streamhub/internal/auth"
	"streamhub/internal/models"
	"streamhub/internal/store"
)

// Manager owns the per-user session state machine: LoggedOut -> Active on
// login, Active -> Active' on rotation, anything -> LoggedOut on logout.
// It is the only writer of the persisted refresh-token field.
type Manager struct {
	store         store.UserStore
	hasher        auth.Hasher
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewManager(userStore store.UserStore, hasher auth.Hasher, accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		store:         userStore,
		hasher:        hasher,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// TokenPair is what a successful login or rotation hands the client.
// ExpiresIn is the access-token lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type RegisterParams struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     string
	CoverImage string
}

// Register creates the account. Username and email are stored lowercased
// and trimmed so FindUserByIdentifier always matches what was registered.
// The plaintext password is hashed here and never stored or logged.
func (m *Manager) Register(ctx context.Context, params RegisterParams) (*models.PublicUser, error) {
	hash, err := m.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		Username:     strings.ToLower(strings.TrimSpace(params.Username)),
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		FullName:     strings.TrimSpace(params.FullName),
		Avatar:       params.Avatar,
		CoverImage:   params.CoverImage,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	id, err := m.store.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = id

	public := user.Public()
	return &public, nil
}

// Login verifies the credential and starts a session, replacing whatever
// refresh token was persisted before.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*models.PublicUser, *TokenPair, error) {
	user, err := m.store.FindUserByIdentifier(ctx, strings.ToLower(strings.TrimSpace(identifier)))
	if err != nil {
		return nil, nil, err
	}

	if !m.hasher.Verify(password, user.PasswordHash) {
		return nil, nil, ErrUnauthorized
	}

	pair, err := m.issuePair(user)
	if err != nil {
		return nil, nil, err
	}

	if err := m.store.SetCurrentRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, nil, err
	}

	public := user.Public()
	return &public, pair, nil
}

// Refresh rotates the session. The presented token must equal the persisted
// current value exactly; the swap is one conditional update, so of two
// racing refreshes only one can win and the loser is treated as reuse.
func (m *Manager) Refresh(ctx context.Context, presented string) (*models.PublicUser, *TokenPair, error) {
	if presented == "" {
		return nil, nil, Unauthenticated(ReasonMissing)
	}

	claims, err := auth.Verify(presented, auth.RefreshToken, m.refreshSecret)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, nil, Unauthenticated(ReasonExpired)
		}
		return nil, nil, Unauthenticated(ReasonInvalid)
	}

	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, nil, Unauthenticated(ReasonInvalid)
	}

	user, err := m.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, Unauthenticated(ReasonStaleSubject)
		}
		return nil, nil, err
	}

	pair, err := m.issuePair(user)
	if err != nil {
		return nil, nil, err
	}

	swapped, err := m.store.CompareAndSetCurrentRefreshToken(ctx, user.ID, presented, pair.RefreshToken)
	if err != nil {
		return nil, nil, err
	}
	if !swapped {
		log.Println("[AUTH] [WARN] refresh token reuse detected for user", user.ID.Hex())
		return nil, nil, Unauthenticated(ReasonReuseDetected)
	}

	public := user.Public()
	return &public, pair, nil
}

// Logout clears the persisted refresh token. Logging out an unknown or
// already-logged-out user is not an error.
func (m *Manager) Logout(ctx context.Context, userID primitive.ObjectID) error {
	err := m.store.SetCurrentRefreshToken(ctx, userID, "")
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// ChangePassword rehashes the credential and clears the active session so
// every device has to log in with the new password.
func (m *Manager) ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword string) error {
	currentHash, err := m.store.GetCredentialHash(ctx, userID)
	if err != nil {
		return err
	}

	if !m.hasher.Verify(oldPassword, currentHash) {
		return ErrUnauthorized
	}

	newHash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := m.store.SetCredentialHash(ctx, userID, newHash); err != nil {
		return err
	}

	return m.store.SetCurrentRefreshToken(ctx, userID, "")
}

func (m *Manager) issuePair(user *models.User) (*TokenPair, error) {
	identity := map[string]string{
		"username": user.Username,
		"email":    user.Email,
		"fullName": user.FullName,
	}

	accessToken, err := auth.Mint(user.ID.Hex(), identity, auth.AccessToken, m.accessTTL, m.accessSecret)
	if err != nil {
		return nil, err
	}

	refreshToken, err := auth.Mint(user.ID.Hex(), nil, auth.RefreshToken, m.refreshTTL, m.refreshSecret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}
