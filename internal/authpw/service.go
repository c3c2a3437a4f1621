// Package authpw provides the password checks behind login and the
// edit-mode step-up challenge.
package authpw

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/rbac"
)

var ErrInvalidPassword = errors.New("invalid password")

// Service maps passwords to roles. Exactly two login secrets exist: the admin
// secret and the viewer secret. The edit secret gates the step-up challenge
// and defaults to the admin secret, keeping a single authorization secret
// unless an operator deliberately configures a separate one.
type Service struct {
	adminSecret  string
	viewerSecret string
	editSecret   string
}

func NewService(adminSecret, viewerSecret, editSecret string) *Service {
	if strings.TrimSpace(editSecret) == "" {
		editSecret = adminSecret
	}
	return &Service{
		adminSecret:  adminSecret,
		viewerSecret: viewerSecret,
		editSecret:   editSecret,
	}
}

// Login returns exactly one of {admin, viewer} or ErrInvalidPassword, never
// both a role and an error.
func (s *Service) Login(password string) (rbac.Role, error) {
	if matches(s.adminSecret, password) {
		return rbac.RoleAdmin, nil
	}
	if matches(s.viewerSecret, password) {
		return rbac.RoleViewer, nil
	}
	return "", ErrInvalidPassword
}

// VerifyEdit checks the step-up challenge password.
func (s *Service) VerifyEdit(password string) error {
	if matches(s.editSecret, password) {
		return nil
	}
	return ErrInvalidPassword
}

// matches accepts the configured secret either as a bcrypt hash or as a
// plaintext value compared in constant time. Empty secrets never match, so an
// unset viewer secret disables viewer login instead of matching "".
func matches(secret, password string) bool {
	if secret == "" {
		return false
	}
	if strings.HasPrefix(secret, "$2a$") || strings.HasPrefix(secret, "$2b$") || strings.HasPrefix(secret, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(password)) == 1
}
