package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/delayedjobs/common"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name  string `json:"name" form:"name" validate:"required"`
	Count int    `json:"count" form:"count" validate:"gte=0"`
}

func newEngine(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TimeoutMiddleware(time.Second), ErrorHandler())
	r.Any("/", handler)
	return r
}

func TestBind(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		var s sample
		if !Bind(c, &s) {
			return
		}
		c.JSON(http.StatusOK, s)
	})

	tests := []struct {
		name   string
		body   string
		status int
		substr string
	}{
		{"valid", `{"name":"a","count":1}`, http.StatusOK, `"name":"a"`},
		{"malformed", `{`, http.StatusBadRequest, "invalid json"},
		{"validation", `{"count":-1}`, http.StatusBadRequest, `"Name":"failed required"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.substr)
		})
	}
}

func TestBindQuery(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		var s sample
		if !BindQuery(c, &s) {
			return
		}
		c.JSON(http.StatusOK, s)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?name=x&count=2", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?count=2", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorHandler(t *testing.T) {
	t.Run("api error keeps status", func(t *testing.T) {
		r := newEngine(func(c *gin.Context) {
			c.Error(common.Errf(http.StatusConflict, "busy"))
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.JSONEq(t, `{"error":"busy"}`, w.Body.String())
	})

	t.Run("plain error is internal", func(t *testing.T) {
		r := newEngine(func(c *gin.Context) {
			c.Error(errors.New("kaboom"))
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "kaboom")
	})

	t.Run("wrapped api error", func(t *testing.T) {
		r := newEngine(func(c *gin.Context) {
			c.Error(fmt.Errorf("get job: %w", common.Errf(http.StatusNotFound, "job not found")))
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("deadline is a timeout", func(t *testing.T) {
		r := newEngine(func(c *gin.Context) {
			c.Error(fmt.Errorf("list jobs: %w", context.DeadlineExceeded))
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusRequestTimeout, w.Code)
	})
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	r := newEngine(func(c *gin.Context) {
		deadline, ok = c.Request.Context().Deadline()
		c.Status(http.StatusNoContent)
	})

	before := time.Now()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, ok)
	assert.WithinDuration(t, before.Add(time.Second), deadline, 500*time.Millisecond)
}
