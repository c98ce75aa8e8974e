package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/bodegalabs/bodega-server/middleware"
)

func traceRouter() *gin.Engine {
	r := gin.New()
	r.Use(mw.TraceID())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, mw.GetTraceID(c))
	})
	return r
}

func TestTraceID_Generated(t *testing.T) {
	r := traceRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(mw.TraceIDHeader)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, w.Body.String(), "context and header must carry the same id")
}

func TestTraceID_PropagatesIncoming(t *testing.T) {
	r := traceRouter()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(mw.TraceIDHeader, "caller-trace-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "caller-trace-1", w.Header().Get(mw.TraceIDHeader))
	assert.Equal(t, "caller-trace-1", w.Body.String())
}
