package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func identityRouter(header string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HeaderIdentity(header))
	router.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return router
}

func TestHeaderIdentity(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		status int
		body   string
	}{
		{"default header", "", "user-42", http.StatusOK, "user-42"},
		{"custom header", "X-Remote-User", "alice@example.com", http.StatusOK, "alice@example.com"},
		{"trimmed", "", "  bob  ", http.StatusOK, "bob"},
		{"missing", "", "", http.StatusUnauthorized, "IDENTITY_MISSING"},
		{"blank", "", "   ", http.StatusUnauthorized, "IDENTITY_MISSING"},
		{"too long", "", strings.Repeat("a", 101), http.StatusBadRequest, "IDENTITY_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == "" {
				header = DefaultIdentityHeader
			}

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.value != "" {
				req.Header.Set(header, tt.value)
			}
			w := httptest.NewRecorder()
			identityRouter(tt.header).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}
