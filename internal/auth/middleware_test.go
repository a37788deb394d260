package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGuard_Middleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	guard, err := NewGuard(string(hash))
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	var sawAdmin bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAdmin = IsAdmin(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := guard.Middleware(next)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusNoContent},
		{"valid lower case scheme", "bearer s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sawAdmin = false
			req := httptest.NewRequest(http.MethodPost, "/v1/animations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusNoContent && !sawAdmin {
				t.Error("admin flag not set in context")
			}
		})
	}
}

func TestGuard_Disabled(t *testing.T) {
	guard, err := NewGuard("")
	if err != nil {
		t.Fatal(err)
	}
	if guard.Enabled() {
		t.Fatal("guard without hash should be disabled")
	}
	rec := httptest.NewRecorder()
	guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestNewGuard_InvalidHash(t *testing.T) {
	if _, err := NewGuard("not-a-bcrypt-hash"); err == nil {
		t.Error("expected error for malformed hash")
	}
}
