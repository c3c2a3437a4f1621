package authpw

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/rbac"
)

func TestLoginAssignsExactlyOneRole(t *testing.T) {
	svc := NewService("GlazeMe2024!", "viewonly123", "")

	cases := []struct {
		password string
		wantRole rbac.Role
		wantErr  bool
	}{
		{"GlazeMe2024!", rbac.RoleAdmin, false},
		{"viewonly123", rbac.RoleViewer, false},
		{"wrong", "", true},
		{"", "", true},
		{"glazeme2024!", "", true},
	}

	for _, tc := range cases {
		role, err := svc.Login(tc.password)
		if tc.wantErr {
			if err != ErrInvalidPassword {
				t.Errorf("Login(%q) err = %v, want ErrInvalidPassword", tc.password, err)
			}
			if role != "" {
				t.Errorf("Login(%q) returned role %q alongside an error", tc.password, role)
			}
			continue
		}
		if err != nil {
			t.Errorf("Login(%q) unexpected error: %v", tc.password, err)
		}
		if role != tc.wantRole {
			t.Errorf("Login(%q) role = %q, want %q", tc.password, role, tc.wantRole)
		}
	}
}

func TestEditSecretDefaultsToAdminSecret(t *testing.T) {
	svc := NewService("admin-pw", "viewer-pw", "")
	if err := svc.VerifyEdit("admin-pw"); err != nil {
		t.Fatalf("expected admin password to satisfy the step-up challenge: %v", err)
	}
	if err := svc.VerifyEdit("viewer-pw"); err != ErrInvalidPassword {
		t.Fatalf("viewer password must not satisfy the step-up challenge, got %v", err)
	}
}

func TestSeparateEditSecret(t *testing.T) {
	svc := NewService("admin-pw", "viewer-pw", "edit-pw")
	if err := svc.VerifyEdit("edit-pw"); err != nil {
		t.Fatalf("expected configured edit secret to verify: %v", err)
	}
	if err := svc.VerifyEdit("admin-pw"); err != ErrInvalidPassword {
		t.Fatalf("admin password must not verify once a separate edit secret is set, got %v", err)
	}
}

func TestBcryptSecrets(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("GlazeMe2024!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	svc := NewService(string(hash), "viewonly123", "")

	role, err := svc.Login("GlazeMe2024!")
	if err != nil {
		t.Fatalf("Login with bcrypt admin secret: %v", err)
	}
	if role != rbac.RoleAdmin {
		t.Fatalf("role = %q, want admin", role)
	}
	if _, err := svc.Login("GlazeMe2025!"); err != ErrInvalidPassword {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestEmptySecretNeverMatches(t *testing.T) {
	svc := NewService("admin-pw", "", "")
	if _, err := svc.Login(""); err != ErrInvalidPassword {
		t.Fatalf("empty password must not match an unset viewer secret, got %v", err)
	}
}
