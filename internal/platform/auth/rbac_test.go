package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		require []string
		allowed bool
	}{
		{"matching role", RoleClinician, []string{RoleClinician}, true},
		{"admin bypass", RoleAdmin, []string{RoleClinician}, true},
		{"wrong role", "viewer", []string{RoleClinician}, false},
		{"admin only", RoleClinician, []string{RoleAdmin}, false},
		{"unauthenticated", "", []string{RoleClinician}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.role != "" {
				req = req.WithContext(WithIdentity(context.Background(), "u", tt.role))
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := RequireRole(tt.require...)(okHandler)(c)
			if tt.allowed {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			expectStatus(t, err, http.StatusForbidden)
		})
	}
}
