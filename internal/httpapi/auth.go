package httpapi

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/service"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// UserStore is the slice of the repository the auth manager needs.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// AuthManager issues and verifies access tokens, checks the manager PIN and
// manages cashier accounts. Accounts are read from the user store on every
// call so accounts created by another process are picked up.
type AuthManager struct {
	secret     []byte
	tokenTTL   time.Duration
	managerPIN string
	users      UserStore
	now        func() time.Time
}

type accessClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, managerPIN string, users UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	// An empty PIN stays empty and disables every manager approval.
	hashedPIN := ""
	if pin := strings.TrimSpace(managerPIN); pin != "" {
		if hashed, err := hashPassword(pin); err == nil {
			hashedPIN = hashed
		}
	}

	return &AuthManager{
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		managerPIN: hashedPIN,
		users:      users,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	account, err := a.findUser(ctx, req.Username)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if !verifyPassword(account.Password, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !account.Active {
		return domain.LoginResponse{}, fmt.Errorf("%w: account is inactive", ErrInvalidCredentials)
	}

	expiresAt := a.now().Add(a.tokenTTL)
	token, err := a.sign(account.Username, account.Role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        account.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(raw string) (domain.Actor, error) {
	claims := &accessClaims{}
	token, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithIssuer("dukaan"))
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return domain.Actor{}, ErrInvalidToken
	}
	if claims.Role != domain.RoleAdmin && claims.Role != domain.RoleCashier {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{Username: subject, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username string, role string, expiresAt time.Time) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "dukaan",
		},
		Role: role,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	input := strings.TrimSpace(pin)
	if input == "" || !isPasswordHash(a.managerPIN) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.managerPIN), []byte(input)) == nil
}

func (a *AuthManager) CreateCashier(ctx context.Context, req domain.CashierCreateRequest) (domain.CashierUser, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	switch {
	case len(username) < 4:
		return domain.CashierUser{}, &service.ValidationError{Err: service.ErrValidation, Details: "username must be at least 4 characters"}
	case strings.ContainsAny(username, " \t\r\n"):
		return domain.CashierUser{}, &service.ValidationError{Err: service.ErrValidation, Details: "username must not contain spaces"}
	case len(strings.TrimSpace(req.Password)) < 6:
		return domain.CashierUser{}, &service.ValidationError{Err: service.ErrValidation, Details: "password must be at least 6 characters"}
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.CashierUser{}, fmt.Errorf("hash password: %w", err)
	}
	account := domain.UserAccount{
		Username:  username,
		Password:  hash,
		Role:      domain.RoleCashier,
		Active:    true,
		CreatedAt: a.now(),
	}
	if err := a.users.CreateUser(ctx, account); err != nil {
		return domain.CashierUser{}, err
	}
	return toCashierUser(account), nil
}

func (a *AuthManager) ListCashiers(ctx context.Context) ([]domain.CashierUser, error) {
	accounts, err := a.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	cashiers := make([]domain.CashierUser, 0, len(accounts))
	for _, account := range accounts {
		if account.Role == domain.RoleCashier {
			cashiers = append(cashiers, toCashierUser(account))
		}
	}
	slices.SortFunc(cashiers, func(x, y domain.CashierUser) int {
		return strings.Compare(x.Username, y.Username)
	})
	return cashiers, nil
}

// findUser looks an account up by name. Accounts seeded with a plain-text
// password are upgraded to a bcrypt hash on first sight.
func (a *AuthManager) findUser(ctx context.Context, username string) (domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return domain.UserAccount{}, ErrInvalidCredentials
	}

	accounts, err := a.users.ListUsers(ctx)
	if err != nil {
		return domain.UserAccount{}, err
	}
	idx := slices.IndexFunc(accounts, func(u domain.UserAccount) bool {
		return strings.EqualFold(u.Username, username)
	})
	if idx < 0 {
		return domain.UserAccount{}, ErrInvalidCredentials
	}

	account := accounts[idx]
	if account.Password != "" && !isPasswordHash(account.Password) {
		hashed, err := hashPassword(account.Password)
		if err == nil && a.users.UpdateUserPassword(ctx, account.Username, hashed) == nil {
			account.Password = hashed
		}
	}
	return account, nil
}

func toCashierUser(account domain.UserAccount) domain.CashierUser {
	return domain.CashierUser{
		Username:  account.Username,
		Role:      account.Role,
		Active:    account.Active,
		CreatedAt: account.CreatedAt,
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
