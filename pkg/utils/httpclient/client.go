// Package httpclient builds resty clients for outbound JSON APIs.
package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kart-io/campus-qa/pkg/utils/json"
)

// Config configures a client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	Headers    map[string]string
	// CheckRedirect vets every redirect hop. A rejected hop fails the request
	// with a *RedirectError and is not retried.
	CheckRedirect func(req *http.Request, via []*http.Request) error
}

// maxRedirects caps a redirect chain.
const maxRedirects = 10

// RedirectError is returned when CheckRedirect rejects a hop.
type RedirectError struct {
	URL string
	Err error
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect to %s rejected: %v", e.URL, e.Err)
}

func (e *RedirectError) Unwrap() error { return e.Err }

// New returns a resty client that retries network failures and 5xx
// responses with backoff, injects the W3C trace context of the request
// context and encodes bodies with the project json package.
func New(cfg Config) *resty.Client {
	c := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				var re *RedirectError
				return !errors.As(err, &re)
			}
			return r.StatusCode() >= 500
		}).
		OnBeforeRequest(injectTraceContext).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	if cfg.BaseURL != "" {
		c.SetBaseURL(cfg.BaseURL)
	}
	if cfg.UserAgent != "" {
		c.SetHeader("User-Agent", cfg.UserAgent)
	}
	for k, v := range cfg.Headers {
		c.SetHeader(k, v)
	}
	if cfg.CheckRedirect != nil {
		c.SetRedirectPolicy(
			resty.FlexibleRedirectPolicy(maxRedirects),
			resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
				if err := cfg.CheckRedirect(req, via); err != nil {
					return &RedirectError{URL: req.URL.String(), Err: err}
				}
				return nil
			}),
		)
	}
	return c
}

// injectTraceContext writes traceparent/tracestate headers from the request
// context. Without an active span the propagator writes nothing.
func injectTraceContext(_ *resty.Client, r *resty.Request) error {
	otel.GetTextMapPropagator().Inject(r.Context(), propagation.HeaderCarrier(r.Header))
	return nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Body)
}

// CheckResponse converts a transport error or a non-2xx response to an error.
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > 512 {
			body = body[:512]
		}
		return &StatusError{StatusCode: resp.StatusCode(), Body: body}
	}
	return nil
}
