// Package auth registers users, checks their passwords and issues the HS256
// tokens the API accepts.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"medledger/m/domain"
	"medledger/m/internal/logger"
	"medledger/m/internal/store"
)

const minPasswordLength = 6

// Claims is the token payload. user_id identifies the actor of every request.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Session is returned after a successful register or login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      domain.User `json:"user"`
}

type Service struct {
	store  *store.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(s *store.Store, secret string, ttl time.Duration) *Service {
	return &Service{store: s, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func invalidCredentials() error {
	return domain.Unauthorized("INVALID_CREDENTIALS", "invalid email or password")
}

func checkPassword(password string) error {
	if len(password) < minPasswordLength {
		return domain.Validation("PASSWORD_TOO_SHORT", "password must be at least 6 characters", "password")
	}
	return nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" {
		return nil, domain.Validation("EMAIL_REQUIRED", "email is required", "email")
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Email:     in.Email,
		Password:  string(hashed),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		IsActive:  true,
	}
	err = s.store.InTx(ctx, func(r *store.Repos) error {
		if _, err := r.Users.FindByEmail(ctx, in.Email); err == nil {
			return domain.Duplicate("User", "email", in.Email)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return r.Users.Add(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("user registered", zap.Int64("user_id", u.ID))
	return s.session(u)
}

// Login verifies the credentials. Unknown emails, wrong passwords and
// disabled accounts all fail as Unauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.Repos().Users.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, invalidCredentials()
	}
	if !u.IsActive {
		return nil, domain.Unauthorized("ACCOUNT_DISABLED", "account is disabled")
	}
	return s.session(u)
}

// ChangePassword replaces the password of userID after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if err := checkPassword(next); err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	err = s.store.InTx(ctx, func(r *store.Repos) error {
		u, err := r.Users.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(current)) != nil {
			return invalidCredentials()
		}
		u.Password = string(hashed)
		return r.Users.Update(ctx, u)
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("password changed", zap.Int64("user_id", userID))
	return nil
}

// Authenticate resolves a bearer token to a user id. The account must still
// exist and be active, so disabling a user revokes their outstanding tokens.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (int64, error) {
	userID, err := s.ParseToken(tokenString)
	if err != nil {
		return 0, err
	}
	u, err := s.store.Repos().Users.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, domain.Unauthorized("INVALID_TOKEN", "token user no longer exists")
	}
	if err != nil {
		return 0, err
	}
	if !u.IsActive {
		return 0, domain.Unauthorized("ACCOUNT_DISABLED", "account is disabled")
	}
	return userID, nil
}

func (s *Service) Me(ctx context.Context, userID int64) (*domain.User, error) {
	return s.store.Repos().Users.FindByID(ctx, userID)
}

func (s *Service) session(u *domain.User) (*Session, error) {
	token, exp, err := s.IssueToken(u.ID)
	if err != nil {
		return nil, err
	}
	out := *u
	out.Password = ""
	return &Session{Token: token, ExpiresAt: exp, User: out}, nil
}

// IssueToken signs a token for userID valid for the configured TTL.
func (s *Service) IssueToken(userID int64) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseToken validates the signature and expiry and returns the user id.
func (s *Service) ParseToken(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return 0, domain.Unauthorized("INVALID_TOKEN", "invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID <= 0 {
		return 0, domain.Unauthorized("INVALID_TOKEN", "invalid token claims")
	}
	return claims.UserID, nil
}
