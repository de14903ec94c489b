package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/example/shopeasy/pkg/models"
)

var (
	ErrMissingCredentials = errors.New("please fill in all fields")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

// UserSession holds the signed-in shopper under the "currentUser" key.
// There is no account store: any non-empty credentials sign in.
type UserSession struct {
	store Store
	now   func() time.Time
}

func NewUserSession(store Store, now func() time.Time) *UserSession {
	if now == nil {
		now = time.Now
	}
	return &UserSession{store: store, now: now}
}

// Current returns the signed-in user, or nil.
func (s *UserSession) Current(ctx context.Context) (*models.CurrentUser, error) {
	var user models.CurrentUser
	found, err := getJSON(ctx, s.store, KeyCurrentUser, &user)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// Login signs in with a display name taken from the email's local part.
func (s *UserSession) Login(ctx context.Context, email, password string) (*models.CurrentUser, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	name := email
	if at := strings.Index(email, "@"); at >= 0 {
		name = email[:at]
	}
	return s.signIn(ctx, email, name)
}

func (s *UserSession) Register(ctx context.Context, name, email, password, confirm string) (*models.CurrentUser, error) {
	if password != confirm {
		return nil, ErrPasswordMismatch
	}
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	return s.signIn(ctx, email, name)
}

func (s *UserSession) signIn(ctx context.Context, email, name string) (*models.CurrentUser, error) {
	user := &models.CurrentUser{Email: email, Name: name, LoginTime: s.now().UTC()}
	if err := setJSON(ctx, s.store, KeyCurrentUser, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserSession) Logout(ctx context.Context) error {
	return s.store.Delete(ctx, KeyCurrentUser)
}
