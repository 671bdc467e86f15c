package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestShouldCache(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"ok envelope", http.StatusOK, `{"code":0,"message":"ok"}`, true},
		{"cancelled envelope", http.StatusOK, `{"code":40001,"message":"purchase cancelled"}`, false},
		{"in-progress envelope", http.StatusOK, `{"code":40002}`, false},
		{"unavailable envelope", http.StatusOK, `{"code":50300}`, false},
		{"server error", http.StatusInternalServerError, `{"code":0}`, false},
		{"body without envelope code", http.StatusOK, `{"status":"ok"}`, true},
		{"non-json body", http.StatusOK, `plain`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, shouldCache(tt.status, []byte(tt.body)))
		})
	}
}

func TestIdempotencyMiddleware_NoClientIsPassThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyMiddleware(nil, zap.NewNop().Sugar()))

	calls := 0
	r.POST("/purchase", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"code": 0})
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/purchase", nil)
		req.Header.Set("Idempotency-Key", "k-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, w.Header().Get("X-Idempotent-Replay"))
	}
	require.Equal(t, 2, calls)
}
