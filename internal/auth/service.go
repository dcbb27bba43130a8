package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mentorly/backend/internal/models"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Principal is the authenticated caller carried by a token.
type Principal struct {
	UserID uuid.UUID
	Role   models.Role
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

// UserLookup finds a user by login email.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type Service interface {
	Login(ctx context.Context, email, password string) (string, error)
	IssueToken(userID uuid.UUID, role models.Role) (string, error)
	ValidateToken(ctx context.Context, token string) (Principal, error)
}

type service struct {
	users  UserLookup
	secret []byte
	ttl    time.Duration
}

// NewService signs tokens with secret. An empty secret falls back to a
// development value.
func NewService(users UserLookup, secret string, ttl time.Duration) *service {
	if secret == "" {
		secret = "mentorly-dev-secret"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &service{users: users, secret: []byte(secret), ttl: ttl}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	// The system account has no password and never logs in.
	if u.IsSystem() || u.PasswordHash == "" {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.IssueToken(u.ID, u.Role)
}

func (s *service) IssueToken(userID uuid.UUID, role models.Role) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: string(role),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (Principal, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return Principal{}, errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: id, Role: models.Role(c.Role)}, nil
}
