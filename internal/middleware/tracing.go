package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/openzipkin/zipkin-go"
	zipkinhttp "github.com/openzipkin/zipkin-go/middleware/http"
	"github.com/openzipkin/zipkin-go/reporter"
	httpreporter "github.com/openzipkin/zipkin-go/reporter/http"
)

// Tracing reports a server span per request to the Zipkin collector at url.
// The returned close function flushes buffered spans. An empty url yields a
// pass-through middleware.
func Tracing(url, serviceName, hostPort string) (func(http.Handler) http.Handler, func() error, error) {
	if strings.TrimSpace(url) == "" {
		return func(next http.Handler) http.Handler { return next }, func() error { return nil }, nil
	}
	return newTracing(httpreporter.NewReporter(url), serviceName, hostPort)
}

func newTracing(rep reporter.Reporter, serviceName, hostPort string) (func(http.Handler) http.Handler, func() error, error) {
	endpoint, err := zipkin.NewEndpoint(serviceName, hostPort)
	if err != nil {
		_ = rep.Close()
		return nil, nil, fmt.Errorf("create zipkin endpoint: %w", err)
	}

	tracer, err := zipkin.NewTracer(rep, zipkin.WithLocalEndpoint(endpoint))
	if err != nil {
		_ = rep.Close()
		return nil, nil, fmt.Errorf("create zipkin tracer: %w", err)
	}

	mw := zipkinhttp.NewServerMiddleware(
		tracer,
		zipkinhttp.TagResponseSize(true),
		zipkinhttp.SpanName("http.request"),
	)
	return mw, rep.Close, nil
}
