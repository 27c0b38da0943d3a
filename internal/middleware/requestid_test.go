package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureRequestID(t *testing.T, headerID string) (capturedID string, rec *httptest.ResponseRecorder) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if headerID != "" {
		req.Header.Set("X-Request-ID", headerID)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return capturedID, rec
}

func TestRequestIDGeneratesNewID(t *testing.T) {
	id, rec := captureRequestID(t, "")
	require.NotEmpty(t, id)
	assert.Equal(t, id, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDPreservesValidID(t *testing.T) {
	id, rec := captureRequestID(t, "custom-id-123")
	assert.Equal(t, "custom-id-123", id)
	assert.Equal(t, "custom-id-123", rec.Header().Get("X-Request-ID"))
}

func TestRequestIDReplacesInvalidID(t *testing.T) {
	tests := []struct {
		name     string
		headerID string
		wantNew  bool
	}{
		{name: "alphanumeric with hyphens and underscores", headerID: "abc-123_DEF", wantNew: false},
		{name: "newline", headerID: "fake-id\nINJECTED: entry", wantNew: true},
		{name: "carriage return", headerID: "fake-id\rINJECTED: entry", wantNew: true},
		{name: "spaces", headerID: "id with spaces", wantNew: true},
		{name: "html", headerID: "id<script>alert(1)</script>", wantNew: true},
		{name: "too long", headerID: strings.Repeat("a", 129), wantNew: true},
		{name: "max length", headerID: strings.Repeat("a", 128), wantNew: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, _ := captureRequestID(t, tt.headerID)
			require.NotEmpty(t, id)
			if tt.wantNew {
				assert.NotEqual(t, tt.headerID, id)
			} else {
				assert.Equal(t, tt.headerID, id)
			}
		})
	}
}

func TestRequestIDFromContextEmptyWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, RequestIDFromContext(req.Context()))
}
