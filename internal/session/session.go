// Package session keeps the logged-in user in a signed cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie carrying the session token
const CookieName = "user"

// TypeEmployee is the user type allowed on the employee pages
const TypeEmployee = "Employee"

var (
	// ErrNoUser is returned when the request carries no usable session
	ErrNoUser = errors.New("no logged-in user")

	ErrInvalidToken = errors.New("invalid or expired token")
)

// User is the logged-in user as stored by the login page
type User struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

// Claims are the JWT claims of a session token
type Claims struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Manager issues and reads session tokens
type Manager struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewManager creates a Manager signing with secretKey; tokens live for ttl
func NewManager(secretKey string, ttl time.Duration) *Manager {
	return &Manager{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Generate creates a signed token for user
func (m *Manager) Generate(user User) (string, error) {
	if user.Email == "" {
		return "", fmt.Errorf("%w: email required", ErrNoUser)
	}

	now := m.now()
	claims := &Claims{
		Type:  user.Type,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// Validate parses a token and returns its user
func (m *Manager) Validate(tokenString string) (User, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Email == "" {
		return User{}, ErrInvalidToken
	}
	return User{Type: claims.Type, Email: claims.Email}, nil
}

// Login stores user in the session cookie
func (m *Manager) Login(w http.ResponseWriter, user User) error {
	token, err := m.Generate(user)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  m.now().Add(m.ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout clears the session cookie
func (m *Manager) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest reads the user from the session cookie.
// Missing or invalid cookies yield ErrNoUser.
func (m *Manager) FromRequest(r *http.Request) (User, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return User{}, ErrNoUser
	}
	user, err := m.Validate(cookie.Value)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrNoUser, err)
	}
	return user, nil
}
