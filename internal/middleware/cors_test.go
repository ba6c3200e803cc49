package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		origins    []string
		origin     string
		method     string
		preflight  bool
		wantAllow  string
		wantStatus int
	}{
		{"any origin allowed by default", nil, "https://crm.vanspace.es", http.MethodGet, false, "https://crm.vanspace.es", http.StatusOK},
		{"listed origin", []string{"https://crm.vanspace.es"}, "https://crm.vanspace.es", http.MethodGet, false, "https://crm.vanspace.es", http.StatusOK},
		{"unlisted origin", []string{"https://crm.vanspace.es"}, "https://evil.example", http.MethodGet, false, "", http.StatusOK},
		{"preflight", nil, "https://crm.vanspace.es", http.MethodOptions, true, "https://crm.vanspace.es", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCORSMiddleware(tt.origins...).Wrap(ok)
			req := httptest.NewRequest(tt.method, "/api/alerts", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestCORSMiddleware_AllowsRequest(t *testing.T) {
	c := NewCORSMiddleware("https://crm.vanspace.es")

	req := httptest.NewRequest(http.MethodGet, "/ws/alerts", nil)
	if !c.AllowsRequest(req) {
		t.Error("request without Origin should be allowed")
	}

	req.Header.Set("Origin", "https://crm.vanspace.es")
	if !c.AllowsRequest(req) {
		t.Error("listed origin should be allowed")
	}

	req.Header.Set("Origin", "https://evil.example")
	if c.AllowsRequest(req) {
		t.Error("unlisted origin should be rejected")
	}
}
