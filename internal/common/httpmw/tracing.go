package httpmw

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kandev/taskboard/internal/auth"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/common/tracing"
)

// OtelTracing wraps each request in a server span named after its route.
// Spans of requests that passed auth.RequireSession carry the board session
// and owner ids, so a user's gestures can be followed across requests.
func OtelTracing(serverName string) gin.HandlerFunc {
	return tracingMiddleware(tracing.Tracer(serverName))
}

func tracingMiddleware(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(c.Request.Method),
			semconv.HTTPRouteKey.String(route),
		}
		if id, ok := c.Request.Context().Value(logger.RequestIDKey).(string); ok {
			attrs = append(attrs, attribute.String("request.id", id))
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		// RequireSession replaces the request context further down the chain.
		span.SetAttributes(auth.SpanAttributes(c.Request.Context())...)

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCodeKey.Int(status))
		if err := c.Errors.Last(); err != nil {
			span.RecordError(err)
		}
		switch {
		case status >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, http.StatusText(status))
		case status == http.StatusUnauthorized:
			span.AddEvent("session rejected")
		}
	}
}
