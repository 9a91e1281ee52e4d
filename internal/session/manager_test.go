package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"streamhub/internal/auth"
	"streamhub/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.MemoryStore) {
	t.Helper()
	users := store.NewMemoryStore()
	m := NewManager(users, auth.NewHasher(bcrypt.MinCost),
		"access-secret", "refresh-secret",
		time.Minute, time.Hour)
	return m, users
}

func registerAlice(t *testing.T, m *Manager) primitive.ObjectID {
	t.Helper()
	user, err := m.Register(context.Background(), RegisterParams{
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Example",
		Password: "Secret123!",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	id, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		t.Fatalf("Register returned invalid id %q: %v", user.ID, err)
	}
	return id
}

func unauthenticatedReason(t *testing.T, err error) UnauthenticatedReason {
	t.Helper()
	var target *UnauthenticatedError
	if !errors.As(err, &target) {
		t.Fatalf("expected UnauthenticatedError, got %v", err)
	}
	return target.Reason
}

func TestRegisterDuplicate(t *testing.T) {
	m, _ := newTestManager(t)
	registerAlice(t, m)

	_, err := m.Register(context.Background(), RegisterParams{
		Username: "alice",
		Email:    "other@example.com",
		FullName: "Other",
		Password: "Secret123!",
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	m, users := newTestManager(t)
	id := registerAlice(t, m)

	user, pair, err := m.Login(context.Background(), "alice", "Secret123!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected identity projection for alice, got %+v", user)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}

	stored, err := users.GetCurrentRefreshToken(context.Background(), id)
	if err != nil {
		t.Fatalf("GetCurrentRefreshToken returned error: %v", err)
	}
	if stored != pair.RefreshToken {
		t.Fatal("expected login to persist the refresh token")
	}
}

func TestRegisterNormalizesIdentity(t *testing.T) {
	m, _ := newTestManager(t)

	user, err := m.Register(context.Background(), RegisterParams{
		Username: "  Alice ",
		Email:    " Alice@Example.COM ",
		FullName: " Alice Example ",
		Password: "Secret123!",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.Username != "alice" || user.Email != "alice@example.com" {
		t.Fatalf("expected lowercased trimmed identity, got %+v", user)
	}
	if user.FullName != "Alice Example" {
		t.Fatalf("expected trimmed full name, got %q", user.FullName)
	}

	// The mixed-case registration is reachable by its canonical identifier,
	// and the identifier is normalized on login too.
	if _, _, err := m.Login(context.Background(), "alice", "Secret123!"); err != nil {
		t.Fatalf("Login with canonical username returned error: %v", err)
	}
	if _, _, err := m.Login(context.Background(), " ALICE@example.com ", "Secret123!"); err != nil {
		t.Fatalf("Login with mixed-case email returned error: %v", err)
	}
}

func TestLoginByEmail(t *testing.T) {
	m, _ := newTestManager(t)
	registerAlice(t, m)

	if _, _, err := m.Login(context.Background(), "alice@example.com", "Secret123!"); err != nil {
		t.Fatalf("Login by email returned error: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	m, _ := newTestManager(t)
	registerAlice(t, m)

	_, _, err := m.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLoginUnknownIdentifier(t *testing.T) {
	m, _ := newTestManager(t)

	_, _, err := m.Login(context.Background(), "nobody", "Secret123!")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	m, _ := newTestManager(t)
	registerAlice(t, m)

	_, pair, err := m.Login(context.Background(), "alice", "Secret123!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	r1 := pair.RefreshToken

	_, rotated, err := m.Refresh(context.Background(), r1)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	r2 := rotated.RefreshToken
	if r2 == r1 {
		t.Fatal("expected rotation to produce a new refresh token")
	}

	// Replaying the superseded token is reuse.
	_, _, err = m.Refresh(context.Background(), r1)
	if got := unauthenticatedReason(t, err); got != ReasonReuseDetected {
		t.Fatalf("expected reuse detection, got reason %q", got)
	}

	// The current token still works after the failed replay.
	if _, _, err := m.Refresh(context.Background(), r2); err != nil {
		t.Fatalf("Refresh of current token returned error: %v", err)
	}
}

func TestRefreshAfterLogout(t *testing.T) {
	m, _ := newTestManager(t)
	id := registerAlice(t, m)

	_, pair, err := m.Login(context.Background(), "alice", "Secret123!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if err := m.Logout(context.Background(), id); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	_, _, err = m.Refresh(context.Background(), pair.RefreshToken)
	if got := unauthenticatedReason(t, err); got != ReasonReuseDetected {
		t.Fatalf("expected refresh after logout to fail closed, got reason %q", got)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	id := registerAlice(t, m)

	if err := m.Logout(context.Background(), id); err != nil {
		t.Fatalf("Logout of logged-out user returned error: %v", err)
	}
	if err := m.Logout(context.Background(), primitive.NewObjectID()); err != nil {
		t.Fatalf("Logout of unknown user returned error: %v", err)
	}
}

func TestRefreshRejectsBadTokens(t *testing.T) {
	m, _ := newTestManager(t)
	registerAlice(t, m)

	_, _, err := m.Refresh(context.Background(), "")
	if got := unauthenticatedReason(t, err); got != ReasonMissing {
		t.Fatalf("expected missing, got %q", got)
	}

	_, _, err = m.Refresh(context.Background(), "garbage")
	if got := unauthenticatedReason(t, err); got != ReasonInvalid {
		t.Fatalf("expected invalid, got %q", got)
	}

	// An access token is not accepted in place of a refresh token.
	_, pair, err := m.Login(context.Background(), "alice", "Secret123!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	_, _, err = m.Refresh(context.Background(), pair.AccessToken)
	if got := unauthenticatedReason(t, err); got != ReasonInvalid {
		t.Fatalf("expected invalid for access token, got %q", got)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	users := store.NewMemoryStore()
	m := NewManager(users, auth.NewHasher(bcrypt.MinCost),
		"access-secret", "refresh-secret",
		time.Minute, -time.Minute)

	_, err := m.Register(context.Background(), RegisterParams{
		Username: "alice", Email: "alice@example.com",
		FullName: "Alice Example", Password: "Secret123!",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, pair, err := m.Login(context.Background(), "alice", "Secret123!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	_, _, err = m.Refresh(context.Background(), pair.RefreshToken)
	if got := unauthenticatedReason(t, err); got != ReasonExpired {
		t.Fatalf("expected expired, got %q", got)
	}
}

func TestRefreshStaleSubject(t *testing.T) {
	m, _ := newTestManager(t)

	// Valid refresh token for a subject the store has never seen.
	token, err := auth.Mint(primitive.NewObjectID().Hex(), nil, auth.RefreshToken, time.Hour, []byte("refresh-secret"))
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	_, _, err = m.Refresh(context.Background(), token)
	if got := unauthenticatedReason(t, err); got != ReasonStaleSubject {
		t.Fatalf("expected stale subject, got %q", got)
	}
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	m, _ := newTestManager(t)
	registerAlice(t, m)

	_, pair, err := m.Login(context.Background(), "alice", "Secret123!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = m.Refresh(context.Background(), pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	var successes, reuses int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		default:
			var target *UnauthenticatedError
			if errors.As(err, &target) && target.Reason == ReasonReuseDetected {
				reuses++
			} else {
				t.Fatalf("unexpected refresh error: %v", err)
			}
		}
	}
	if successes != 1 || reuses != 1 {
		t.Fatalf("expected exactly one winner and one reuse, got %d/%d", successes, reuses)
	}
}

func TestChangePassword(t *testing.T) {
	m, _ := newTestManager(t)
	id := registerAlice(t, m)

	_, pair, err := m.Login(context.Background(), "alice", "Secret123!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if err := m.ChangePassword(context.Background(), id, "wrong", "NewSecret123!"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong old password, got %v", err)
	}

	if err := m.ChangePassword(context.Background(), id, "Secret123!", "NewSecret123!"); err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}

	// Old password no longer works, new one does.
	if _, _, err := m.Login(context.Background(), "alice", "Secret123!"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected old password to be rejected, got %v", err)
	}
	if _, _, err := m.Login(context.Background(), "alice", "NewSecret123!"); err != nil {
		t.Fatalf("expected new password to work, got %v", err)
	}

	// The pre-change session was invalidated.
	_, _, err = m.Refresh(context.Background(), pair.RefreshToken)
	if got := unauthenticatedReason(t, err); got != ReasonReuseDetected {
		t.Fatalf("expected pre-change refresh token to fail closed, got %q", got)
	}
}
