package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSubmitLimiter_Allow(t *testing.T) {
	tests := []struct {
		name      string
		perSecond float64
		burst     int
		calls     int
		allowed   int
	}{
		{"突发额度内", 0.001, 3, 3, 3},
		{"超过突发额度", 0.001, 2, 5, 2},
		{"burst非法按1处理", 0.001, 0, 3, 1},
		{"不限流", 0, 1, 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewSubmitLimiter(tt.perSecond, tt.burst)
			allowed := 0
			for i := 0; i < tt.calls; i++ {
				if l.Allow("10.0.0.1") {
					allowed++
				}
			}
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestSubmitLimiter_PerClient(t *testing.T) {
	l := NewSubmitLimiter(0.001, 1)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "不同客户端互不影响")
}

func TestSubmitLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/submit", NewSubmitLimiter(0.001, 1).Middleware(), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/submit", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusAccepted, http.StatusTooManyRequests}, codes)
}
