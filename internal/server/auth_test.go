package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/54b3r/docqa-go/internal/apperr"
)

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		apiKey     string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{name: "disabled", wantStatus: http.StatusOK},
		{name: "disabled ignores header", header: "Bearer anything", wantStatus: http.StatusOK},
		{name: "missing header", apiKey: "secret", wantStatus: http.StatusUnauthorized, wantMsg: "authorization required"},
		{name: "wrong token", apiKey: "secret", header: "Bearer wrong-token", wantStatus: http.StatusUnauthorized, wantMsg: "invalid token"},
		{name: "correct token", apiKey: "secret", header: "Bearer secret", wantStatus: http.StatusOK},
		{name: "lowercase scheme", apiKey: "secret", header: "bearer secret", wantStatus: http.StatusOK},
		{name: "basic auth", apiKey: "secret", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized, wantMsg: "authorization required"},
		{name: "token prefix", apiKey: "secret", header: "Bearer secre", wantStatus: http.StatusUnauthorized, wantMsg: "invalid token"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/summary", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			authMiddleware(tc.apiKey, okHandler).ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if tc.wantStatus != http.StatusUnauthorized {
				return
			}
			if w.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate challenge on 401")
			}
			eb := decodeError(t, w.Body)
			if eb.Error.Message != tc.wantMsg {
				t.Errorf("message = %q, want %q", eb.Error.Message, tc.wantMsg)
			}
			if eb.Error.Details["kind"] != string(apperr.KindInvalidRequest) {
				t.Errorf("details.kind = %v, want %s", eb.Error.Details["kind"], apperr.KindInvalidRequest)
			}
		})
	}
}

// TestBearerToken verifies the bearerToken extraction helper.
func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
	}{
		{"Bearer mytoken", "mytoken"},
		{"bearer mytoken", "mytoken"},
		{"BEARER mytoken", "mytoken"},
		{"Bearer  spaced ", "spaced"},
		{"Basic dXNlcjpwYXNz", ""},
		{"", ""},
		{"Bearer", ""},
		{"token only", ""},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		got := bearerToken(req)
		if got != tc.want {
			t.Errorf("header=%q: expected %q, got %q", tc.header, tc.want, got)
		}
	}
}
