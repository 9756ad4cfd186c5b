package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"meatshop/internal/domain"
	"meatshop/internal/repository"
)

// AuthService регистрация, вход и проверка JWT
type AuthService struct {
	users  repository.UserRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(users repository.UserRepository, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Claims полезная нагрузка токена
type Claims struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

type ProfilePatch struct {
	Name  *string
	Phone *string
}

const minPasswordLen = 6

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (string, *domain.User, error) {
	verr := &ValidationError{}
	name := strings.TrimSpace(in.Name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		verr.add("name", "Name must be between 2 and 50 characters")
	}
	if !strings.Contains(in.Email, "@") {
		verr.add("email", "Valid email is required")
	}
	if len(in.Password) < minPasswordLen {
		verr.add("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	}
	if err := verr.orNil(); err != nil {
		return "", nil, err
	}

	u, err := s.createUser(ctx, name, in.Email, in.Password, in.Phone, domain.RoleUser)
	if err != nil {
		return "", nil, err
	}
	token, err := s.issue(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *AuthService) createUser(ctx context.Context, name, email, password, phone string, role domain.Role) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		Name:         name,
		Email:        email,
		Phone:        strings.TrimSpace(phone),
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// Login проверяет пароль и выдаёт токен; неизвестный email и неверный пароль неразличимы
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.issue(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *AuthService) issue(u *domain.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: u.ID,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify разбирает токен и возвращает вызывающего
func (s *AuthService) Verify(token string) (domain.Actor, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return domain.Actor{}, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if claims.UserID == "" {
		return domain.Actor{}, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return domain.Actor{UserID: claims.UserID, Role: claims.Role}, nil
}

func (s *AuthService) Me(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	return s.users.GetByID(ctx, actor.UserID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, actor domain.Actor, patch ProfilePatch) (*domain.User, error) {
	u, err := s.Me(ctx, actor)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
			return nil, invalid("name", "Name must be between 2 and 50 characters")
		}
		u.Name = name
	}
	if patch.Phone != nil {
		u.Phone = strings.TrimSpace(*patch.Phone)
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// EnsureAdmin создаёт администратора при старте или повышает существующего пользователя
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == domain.RoleAdmin {
			return u, nil
		}
		u.Role = domain.RoleAdmin
		if err := s.users.Update(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	case errors.Is(err, repository.ErrNotFound):
		return s.createUser(ctx, name, email, password, "", domain.RoleAdmin)
	default:
		return nil, err
	}
}
