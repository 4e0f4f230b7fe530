package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

// authProbe reports the resolved authorization as the response body.
func authProbe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strconv.FormatBool(IsAuthorized(r.Context()))))
	})
}

func TestAuthMiddleware_Resolution(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		header string
		want   bool
	}{
		{"no keys configured", nil, "Bearer secret", false},
		{"empty string keys", []string{"", ""}, "Bearer ", false},
		{"missing header", []string{"secret"}, "", false},
		{"basic scheme", []string{"secret"}, "Basic dXNlcjpwYXNz", false},
		{"invalid token", []string{"secret"}, "Bearer wrong-key", false},
		{"valid token", []string{"secret"}, "Bearer secret", true},
		{"second of two keys", []string{"key1", "key2"}, "Bearer key2", true},
		{"lowercase scheme", []string{"secret"}, "bearer secret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := BearerAuthMiddleware(tt.keys)(authProbe())

			req := httptest.NewRequest("GET", "/search?q=x", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("public request rejected: got %d", rr.Code)
			}
			if got := rr.Body.String(); got != strconv.FormatBool(tt.want) {
				t.Errorf("authorized = %s, want %v", got, tt.want)
			}
		})
	}
}

func TestRequireAuthorized(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"secret"})(RequireAuthorized(authProbe()))

	req := httptest.NewRequest("POST", "/admin/reembed", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != ErrorResponseCodeUnauthorized {
		t.Errorf("error code: got %s, want %s", errResp.Code, ErrorResponseCodeUnauthorized)
	}

	req = httptest.NewRequest("POST", "/admin/reembed", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("valid token: got %d, want %d", rr.Code, http.StatusOK)
	}
}
