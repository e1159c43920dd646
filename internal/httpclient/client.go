package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/torosent/crankstep/internal/tracing"
)

// Options configures NewClient.
type Options struct {
	Timeout time.Duration
	// Propagate injects trace context headers from the request context.
	Propagate bool
	// Transport overrides the default transport, mainly for tests.
	Transport http.RoundTripper
}

// NewClient returns a client with its own cookie jar, so each virtual user
// keeps an independent session.
func NewClient(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout < 0 {
		timeout = 0
	}

	transport := opts.Transport
	if transport == nil {
		transport = defaultTransport()
	}
	if opts.Propagate {
		transport = &propagatingTransport{next: transport}
	}

	// cookiejar.New only fails for a non-nil PublicSuffixList.
	jar, _ := cookiejar.New(nil)

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		Jar:       jar,
	}
}

func defaultTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

type propagatingTransport struct {
	next http.RoundTripper
}

func (t *propagatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	tracing.InjectHTTPHeaders(req.Context(), out.Header)
	return t.next.RoundTrip(out)
}

// NewRequest builds a request whose body can be replayed on redirects.
func NewRequest(ctx context.Context, method, target string, body BodySource, header http.Header) (*http.Request, error) {
	if body == nil {
		body = emptyBodySource{}
	}
	reader, err := body.NewReader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if length, ok := body.ContentLength(); ok {
		req.ContentLength = length
	}
	if ct := body.ContentType(); ct != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", ct)
	}
	req.GetBody = body.NewReader
	return req, nil
}

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %s", e.Method, e.URL, e.Status)
}

// CheckStatus returns a *StatusError unless resp has a 2xx status code.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	target := ""
	method := ""
	if resp.Request != nil {
		method = resp.Request.Method
		if resp.Request.URL != nil {
			target = resp.Request.URL.String()
		}
	}
	return &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Status: status}
}

// Drain discards the rest of the body and closes it, so the connection can be reused.
func Drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
