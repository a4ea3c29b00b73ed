package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kandev/taskboard/internal/auth"
	"github.com/kandev/taskboard/internal/session"
)

func spanAttrs(span sdktrace.ReadOnlySpan) map[string]string {
	out := map[string]string{}
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestTracing_TagsSessionAfterRequireSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	sess := session.New("owner-1", "ada@example.com", time.Hour)
	withSession := func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.ContextWithSession(c.Request.Context(), sess))
		c.Next()
	}
	reject := func(c *gin.Context) {
		c.AbortWithStatus(http.StatusUnauthorized)
	}

	r := gin.New()
	r.Use(RequestID(), tracingMiddleware(provider.Tracer("test")))
	r.GET("/api/v1/board", withSession, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/user", reject, func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/board", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/user", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	board := spans[0]
	assert.Equal(t, "GET /api/v1/board", board.Name())
	attrs := spanAttrs(board)
	assert.Equal(t, sess.ID, attrs["session.id"])
	assert.Equal(t, "owner-1", attrs["owner.id"])
	assert.Equal(t, "req-9", attrs["request.id"])
	assert.Equal(t, "200", attrs["http.response.status_code"])

	anonymous := spans[1]
	attrs = spanAttrs(anonymous)
	assert.NotContains(t, attrs, "session.id")
	assert.Equal(t, "401", attrs["http.response.status_code"])
	require.Len(t, anonymous.Events(), 1)
	assert.Equal(t, "session rejected", anonymous.Events()[0].Name)
}

func TestTracing_UnmatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	r := gin.New()
	r.Use(tracingMiddleware(provider.Tracer("test")))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET unmatched", spans[0].Name())
	assert.Equal(t, "404", spanAttrs(spans[0])["http.response.status_code"])
}
