package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestClientTimeoutApplied(t *testing.T) {
	timeout := 50 * time.Millisecond
	client := NewClient(Options{Timeout: timeout})
	defer client.CloseIdleConnections()

	if client.Timeout != timeout {
		t.Fatalf("expected client timeout %s, got %s", timeout, client.Timeout)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(timeout * 3)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatalf("expected timeout error, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			t.Fatalf("expected timeout error, got %v", err)
		}
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport.MaxIdleConns == 0 {
		t.Fatalf("expected transport to allow idle connections")
	}
	if transport.IdleConnTimeout == 0 {
		t.Fatalf("expected transport to set idle connection timeout")
	}
}

func TestClientKeepsCookiesPerInstance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			return
		}
		c, err := r.Cookie("session")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, c.Value)
	}))
	defer server.Close()

	first := NewClient(Options{Timeout: time.Second})
	second := NewClient(Options{Timeout: time.Second})

	resp, err := first.Get(server.URL + "/login")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	Drain(resp)

	resp, err = first.Get(server.URL + "/files")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "abc" {
		t.Fatalf("expected cookie to be sent back, got %q", body)
	}

	resp, err = second.Get(server.URL + "/files")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	Drain(resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected second client to have no session, got %d", resp.StatusCode)
	}
}

func TestClientPropagatesTraceContext(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("traceparent")
	}))
	defer server.Close()

	otel.SetTextMapPropagator(propagation.TraceContext{})
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "step")
	defer span.End()

	client := NewClient(Options{Timeout: time.Second, Propagate: true})
	req, err := NewRequest(ctx, http.MethodGet, server.URL, nil, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	Drain(resp)

	if got == "" {
		t.Fatalf("expected traceparent header to be injected")
	}
	if !strings.Contains(got, span.SpanContext().TraceID().String()) {
		t.Fatalf("traceparent %q does not carry trace id %s", got, span.SpanContext().TraceID())
	}
	if req.Header.Get("traceparent") != "" {
		t.Fatalf("expected caller's request to be left untouched")
	}
}

func TestNewRequestForm(t *testing.T) {
	var form url.Values
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = r.PostForm
		header = r.Header.Get("X-Request-Token")
	}))
	defer server.Close()

	values := url.Values{"user": {"alice"}, "password": {"secret"}}
	req, err := NewRequest(context.Background(), http.MethodPost, server.URL+"/login", Form(values), http.Header{"X-Request-Token": {"tok"}})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if req.GetBody == nil {
		t.Fatalf("expected GetBody to be set")
	}

	resp, err := NewClient(Options{Timeout: time.Second}).Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	Drain(resp)

	if form.Get("user") != "alice" || form.Get("password") != "secret" {
		t.Fatalf("unexpected form: %v", form)
	}
	if header != "tok" {
		t.Fatalf("expected header to be forwarded, got %q", header)
	}
}

func TestNewRequestInvalidURL(t *testing.T) {
	if _, err := NewRequest(context.Background(), http.MethodGet, "://bad", nil, nil); err == nil {
		t.Fatalf("expected error for invalid URL")
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantErr bool
	}{
		{name: "ok", code: http.StatusOK},
		{name: "no content", code: http.StatusNoContent},
		{name: "redirect", code: http.StatusFound, wantErr: true},
		{name: "forbidden", code: http.StatusForbidden, wantErr: true},
		{name: "server error", code: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "http://sso.example.com/login", nil)
			resp := &http.Response{StatusCode: tt.code, Request: req}

			err := CheckStatus(resp)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected *StatusError, got %T", err)
			}
			if statusErr.StatusCode != tt.code {
				t.Fatalf("expected code %d, got %d", tt.code, statusErr.StatusCode)
			}
			if statusErr.Method != http.MethodPost || statusErr.URL != "http://sso.example.com/login" {
				t.Fatalf("unexpected request info: %+v", statusErr)
			}
			if !strings.Contains(err.Error(), http.StatusText(tt.code)) {
				t.Fatalf("expected status text in %q", err.Error())
			}
		})
	}
}
