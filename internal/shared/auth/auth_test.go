package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/doctorry/platform/internal/shared/config"
	"github.com/doctorry/platform/internal/shared/types"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	}
}

// TestIssueAndVerifyToken tests the token round trip through the middleware
func TestIssueAndVerifyToken(t *testing.T) {
	cfg := testAuthConfig()
	userID := types.NewID()

	token, err := IssueToken(cfg, userID, UserTypeDoctor, "Ana Petrova", []string{"staff"})
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	var got *User
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got == nil {
		t.Fatal("Expected user in context")
	}
	if got.ID != userID {
		t.Errorf("Expected user ID %s, got %s", userID, got.ID)
	}
	if got.UserType != UserTypeDoctor {
		t.Errorf("Expected user type doctor, got %s", got.UserType)
	}
	if got.Name != "Ana Petrova" {
		t.Errorf("Expected name, got %s", got.Name)
	}
	if !got.HasRole("staff") {
		t.Error("Expected staff role to survive the round trip")
	}
}

// TestMiddlewareRejections tests requests the middleware must refuse
func TestMiddlewareRejections(t *testing.T) {
	cfg := testAuthConfig()

	expired, err := IssueToken(config.AuthConfig{JWTSecret: cfg.JWTSecret, TokenTTL: -time.Hour}, types.NewID(), UserTypePatient, "", nil)
	if err != nil {
		t.Fatalf("Failed to issue expired token: %v", err)
	}
	wrongKey, err := IssueToken(config.AuthConfig{JWTSecret: "other-secret", TokenTTL: time.Hour}, types.NewID(), UserTypePatient, "", nil)
	if err != nil {
		t.Fatalf("Failed to issue foreign token: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"Missing header", ""},
		{"Not bearer", "Basic abc123"},
		{"Malformed token", "Bearer not.a.token"},
		{"Expired token", "Bearer " + expired},
		{"Wrong signing key", "Bearer " + wrongKey},
	}

	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached")
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", rec.Code)
			}
		})
	}
}

// TestRequireUserType tests the user type gate
func TestRequireUserType(t *testing.T) {
	handler := RequireUserType(UserTypeDoctor, UserTypeAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		user     *User
		wantCode int
	}{
		{"Doctor passes", &User{ID: types.NewID(), UserType: UserTypeDoctor}, http.StatusOK},
		{"Admin passes", &User{ID: types.NewID(), UserType: UserTypeAdmin}, http.StatusOK},
		{"Patient refused", &User{ID: types.NewID(), UserType: UserTypePatient}, http.StatusForbidden},
		{"Anonymous unauthorized", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				req = req.WithContext(WithUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("Expected %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}
}

// TestIsAdmin tests admin detection from type and roles
func TestIsAdmin(t *testing.T) {
	if !(&User{UserType: UserTypeAdmin}).IsAdmin() {
		t.Error("Expected admin user type to be admin")
	}
	if !(&User{UserType: UserTypeDoctor, Roles: []string{"admin"}}).IsAdmin() {
		t.Error("Expected admin role to grant admin")
	}
	if (&User{UserType: UserTypePatient}).IsAdmin() {
		t.Error("Expected plain patient not to be admin")
	}
}

// TestPasswordHashing tests bcrypt hashing and verification
func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("Expected hash to differ from plaintext")
	}

	if !CheckPassword(hash, "correct horse battery staple") {
		t.Error("Expected correct password to verify")
	}
	if CheckPassword(hash, "wrong password") {
		t.Error("Expected wrong password to fail")
	}
}
