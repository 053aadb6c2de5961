package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/service"
	"dukaan/backend/internal/store"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Username]; exists {
		return store.ErrConflict
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func legacyAdminStore() *userStoreStub {
	return &userStoreStub{users: map[string]domain.UserAccount{
		"admin": {Username: "admin", Password: "admin123", Role: domain.RoleAdmin, Active: true, CreatedAt: time.Now().UTC()},
	}}
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	users := legacyAdminStore()
	manager := NewAuthManager("test-secret", time.Hour, "123456", users)

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "Admin", Password: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, resp.Role)
	assert.Equal(t, 1, users.updates)
	assert.True(t, strings.HasPrefix(users.users["admin"].Password, "$2"))

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, 1, users.updates)
}

func TestLoginRejectsWrongPasswordAndInactiveAccount(t *testing.T) {
	users := legacyAdminStore()
	hash, err := hashPassword("sleepy99")
	require.NoError(t, err)
	users.users["ayaan"] = domain.UserAccount{Username: "ayaan", Password: hash, Role: domain.RoleCashier}
	manager := NewAuthManager("test-secret", time.Hour, "", users)

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "ghost", Password: "admin123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "ayaan", Password: "sleepy99"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenRoundTripAndTampering(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "", legacyAdminStore())

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	actor, err := manager.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{Username: "admin", Role: domain.RoleAdmin}, actor)

	other := NewAuthManager("another-secret", time.Hour, "", legacyAdminStore())
	_, err = other.ParseToken(resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := manager.sign("admin", domain.RoleAdmin, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = manager.ParseToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "admin", Issuer: "dukaan"},
		Role:             domain.RoleAdmin,
	}).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = manager.ParseToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCreateCashierStoresPasswordHash(t *testing.T) {
	users := legacyAdminStore()
	manager := NewAuthManager("test-secret", time.Hour, "123456", users)
	ctx := context.Background()

	cashier, err := manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: " Hodan ", Password: "pass1234"})
	require.NoError(t, err)
	assert.Equal(t, "hodan", cashier.Username)
	assert.Equal(t, domain.RoleCashier, cashier.Role)
	assert.True(t, strings.HasPrefix(users.users["hodan"].Password, "$2"))

	_, err = manager.Login(ctx, domain.LoginRequest{Username: "hodan", Password: "pass1234"})
	require.NoError(t, err)

	_, err = manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "hodan", Password: "pass1234"})
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "abc", Password: "pass1234"})
	assert.ErrorIs(t, err, service.ErrValidation)
	_, err = manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "abdi", Password: "123"})
	assert.ErrorIs(t, err, service.ErrValidation)

	cashiers, err := manager.ListCashiers(ctx)
	require.NoError(t, err)
	require.Len(t, cashiers, 1)
	assert.Equal(t, "hodan", cashiers[0].Username)
}

func TestManagerPINIsHashedAndStillValidates(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "654321", legacyAdminStore())

	assert.NotEqual(t, "654321", manager.managerPIN)
	assert.True(t, manager.ValidateManagerPIN("654321"))
	assert.False(t, manager.ValidateManagerPIN("111111"))
	assert.False(t, manager.ValidateManagerPIN(""))

	disabled := NewAuthManager("test-secret", time.Hour, "", legacyAdminStore())
	assert.False(t, disabled.ValidateManagerPIN("654321"))
}
