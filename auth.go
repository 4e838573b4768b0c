package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invledger/models"
	"invledger/pkg/store"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errBadRegistration    = errors.New("invalid registration")
)

const tokenTTL = 24 * time.Hour

// register creates a regular account after a basic password policy check.
func (s *server) register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username required", errBadRegistration)
	}
	if len(password) < 6 {
		return fmt.Errorf("%w: password too short (min 6)", errBadRegistration)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.store.CreateUser(ctx, username, hashed, models.RoleUser)
	return err
}

// authenticate checks a username and password pair.
func (s *server) authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.FindUser(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return user, nil
}

// issueToken signs an access token carrying the user id, name and role.
func (s *server) issueToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":      user.ID,
		"username": user.Username,
		"role":     user.Role.Name,
		"exp":      time.Now().Add(tokenTTL).Unix(),
	})
	return token.SignedString(s.jwtSecret)
}

// identity is what a verified token tells us about the caller.
type identity struct {
	UserID   uint
	Username string
	Role     string
}

func (id identity) admin() bool {
	return id.Role == models.RoleAdministrator
}

func (s *server) parseToken(raw string) (identity, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return identity{}, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return identity{}, fmt.Errorf("invalid claims")
	}
	uid, _ := claims["uid"].(float64)
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	if uid <= 0 || username == "" {
		return identity{}, fmt.Errorf("invalid claims")
	}
	return identity{UserID: uint(uid), Username: username, Role: role}, nil
}
