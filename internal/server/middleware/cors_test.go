package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := CORS([]string{"https://dash.example"})(ok)

	tests := []struct {
		name        string
		method      string
		origin      string
		requested   string
		wantStatus  int
		wantOrigin  string
		wantMethods string
	}{
		{name: "preflight post", method: http.MethodOptions, origin: "https://dash.example", requested: http.MethodPost,
			wantStatus: http.StatusNoContent, wantOrigin: "https://dash.example", wantMethods: "GET, POST, OPTIONS"},
		{name: "preflight delete refused", method: http.MethodOptions, origin: "https://dash.example", requested: http.MethodDelete,
			wantStatus: http.StatusForbidden, wantOrigin: "https://dash.example"},
		{name: "preflight foreign origin", method: http.MethodOptions, origin: "https://evil.example", requested: http.MethodGet,
			wantStatus: http.StatusForbidden},
		{name: "simple get", method: http.MethodGet, origin: "https://dash.example",
			wantStatus: http.StatusOK, wantOrigin: "https://dash.example"},
		{name: "foreign origin get passes without headers", method: http.MethodGet, origin: "https://evil.example",
			wantStatus: http.StatusOK},
		{name: "no origin", method: http.MethodGet, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/status", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.requested != "" {
				req.Header.Set("Access-Control-Request-Method", tt.requested)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status: got=%d want=%d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("allow-origin: got=%q want=%q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Methods"); got != tt.wantMethods {
				t.Fatalf("allow-methods: got=%q want=%q", got, tt.wantMethods)
			}
		})
	}
}
