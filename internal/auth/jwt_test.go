package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"stylist/internal/config"
	"stylist/internal/entity"
)

func TestTokenLifecycle(t *testing.T) {
	mgr, err := NewManagerFromConfig(config.Config{JWTSecret: "test-secret", JWTIssuer: "stylist-test", JWTExpirationMinutes: 30})
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}

	user := &entity.DbUser{ID: 42, Email: "ana@example.com", Role: entity.UserRoleUser}
	token, expiresAt, err := mgr.GenerateToken(user)
	if err != nil {
		t.Fatalf("unexpected error generating token: %v", err)
	}
	if d := time.Until(expiresAt); d < 29*time.Minute || d > 31*time.Minute {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}

	claims, err := mgr.ParseToken(token)
	if err != nil {
		t.Fatalf("unexpected error parsing token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != user.Role {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other, err := NewManager("test-secret", "someone-else", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := other.ParseToken(token); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}

func TestGenerateTokenRequiresPersistedUser(t *testing.T) {
	mgr, _ := NewManager("secret", "", 0)
	if _, _, err := mgr.GenerateToken(&entity.DbUser{}); err == nil {
		t.Fatal("expected error for user without id")
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("   ", "", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		target  string
		want    string
		wantErr bool
	}{
		{name: "bearer header", header: "Bearer abc", target: "/api/looks", want: "abc"},
		{name: "case insensitive scheme", header: "bearer  abc ", target: "/api/looks", want: "abc"},
		{name: "query fallback", target: "/api/events?token=xyz", want: "xyz"},
		{name: "header wins over query", header: "Bearer abc", target: "/api/events?token=xyz", want: "abc"},
		{name: "wrong scheme", header: "Basic abc", target: "/api/looks", wantErr: true},
		{name: "nothing", target: "/api/looks", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := TokenFromRequest(req)
			if tt.wantErr {
				if !errors.Is(err, ErrMissingToken) {
					t.Fatalf("expected ErrMissingToken, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("expected %q, got %q (%v)", tt.want, got, err)
			}
		})
	}
}
