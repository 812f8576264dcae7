package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mascaro101/Echo-backend/internal/models"
	"github.com/Mascaro101/Echo-backend/internal/store"
)

var (
	// ErrValidation is returned when a required field is missing or malformed.
	ErrValidation = errors.New("missing or malformed field")

	// ErrDuplicateUsername is returned when the username is already registered.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrInvalidCredentials is returned on an unknown username or a password
	// mismatch. Both cases look identical to the caller on purpose.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidToken is returned when a bearer token fails verification.
	ErrInvalidToken = errors.New("authentication error")
)

const (
	// idAlphabet and idLength define the shareable user id format.
	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idLength   = 5

	// idRetries bounds the insert loop when a generated id collides with
	// an existing one.
	idRetries = 5
)

// Claims is the token payload bound to a connection after verification.
type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service handles credential registration and verification and issues
// signed, time-bounded bearer tokens.
type Service struct {
	users    store.UserStore
	secret   []byte
	cost     int
	tokenTTL time.Duration

	// newID is swappable so tests can force collisions.
	newID func() (string, error)
}

// NewService returns an auth service. cost is the bcrypt cost factor and
// tokenTTL bounds issued tokens (1 hour in the default configuration).
func NewService(users store.UserStore, secret string, cost int, tokenTTL time.Duration) *Service {
	return &Service{
		users:    users,
		secret:   []byte(secret),
		cost:     cost,
		tokenTTL: tokenTTL,
		newID:    generateID,
	}
}

// Register creates a user with a hashed password and the published key
// bundle, and returns the generated id. The id is regenerated and the
// insert retried when it collides with an existing user.
func (s *Service) Register(ctx context.Context, username, password string, bundle models.KeyBundle) (string, error) {
	if username == "" || password == "" || !bundle.Valid() {
		return "", ErrValidation
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	for attempt := 0; attempt < idRetries; attempt++ {
		id, err := s.newID()
		if err != nil {
			return "", fmt.Errorf("generate id: %w", err)
		}

		user := &models.User{
			ID:                       id,
			Username:                 username,
			HashedPassword:           string(hashed),
			PublicIdentityKeyX25519:  bundle.PublicIdentityKeyX25519,
			PublicIdentityKeyEd25519: bundle.PublicIdentityKeyEd25519,
			SignedPreKey:             bundle.PublicSignedPreKey[0],
			Signature:                bundle.PublicSignedPreKey[1],
		}

		err = s.users.InsertUser(ctx, user)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return "", fmt.Errorf("save user: %w", err)
		}

		// The unique index tripped on either the username or the id.
		// A taken username is terminal; an id collision gets a fresh id.
		if _, lookupErr := s.users.FindUserByUsername(ctx, username); lookupErr == nil {
			return "", ErrDuplicateUsername
		}
	}
	return "", fmt.Errorf("generate id: %d collisions in a row", idRetries)
}

// Login verifies the credentials and returns a signed token carrying
// {id, username}.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	claims := Claims{
		ID:       user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify parses and validates a bearer token. Expired, malformed, or
// mis-signed tokens all yield ErrInvalidToken.
func (s *Service) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// generateID draws a fixed-length id from the restricted alphabet using
// cryptographically secure randomness.
func generateID() (string, error) {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf), nil
}
