package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNew_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "qa-test", r.Header.Get("User-Agent"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second, MaxRetries: 3, UserAgent: "qa-test"})
	c.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)

	var out struct {
		OK bool `json:"ok"`
	}
	resp, err := c.R().SetBody(map[string]string{"q": "hi"}).SetResult(&out).Post("/x")
	require.NoError(t, CheckResponse(resp, err))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCheckResponse_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second, MaxRetries: 2})
	resp, err := c.R().Get("/")

	err = CheckResponse(resp, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "bad key", se.Body)
}

func TestNew_RejectedRedirectIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/target" {
			t.Error("rejected redirect target was requested")
			return
		}
		calls.Add(1)
		http.Redirect(w, r, "/target", http.StatusFound)
	}))
	defer srv.Close()

	errBlocked := errors.New("blocked")
	c := New(Config{
		BaseURL:    srv.URL,
		Timeout:    time.Second,
		MaxRetries: 3,
		CheckRedirect: func(req *http.Request, _ []*http.Request) error {
			if req.URL.Path == "/target" {
				return errBlocked
			}
			return nil
		},
	})
	c.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)

	resp, err := c.R().Get("/start")
	err = CheckResponse(resp, err)

	var re *RedirectError
	require.True(t, errors.As(err, &re))
	assert.ErrorIs(t, err, errBlocked)
	assert.Equal(t, srv.URL+"/target", re.URL)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNew_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
	}))
	defer srv.Close()

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("httpclient-test").Start(context.Background(), "outbound")
	defer span.End()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second})
	resp, err := c.R().SetContext(ctx).Get("/")
	require.NoError(t, CheckResponse(resp, err))

	require.NotEmpty(t, traceparent)
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}
