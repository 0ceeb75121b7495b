package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/telemetry"
)

func TestSendReturnsEnvelope(t *testing.T) {
	t.Parallel()

	var gotBody, gotHeader, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotHeader = r.Header.Get("X-Trace")
		gotMethod = r.Method
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer srv.Close()

	body := `{"name":"ann"}`
	req := &model.ConcreteRequest{
		Method:  model.MethodPost,
		URL:     srv.URL + "/users",
		Headers: []model.KeyValue{{Key: "X-Trace", Value: "t1", Enabled: true}},
		Body:    &body,
	}
	env := NewClient(DefaultOptions()).Send(context.Background(), req)

	if env.Status != http.StatusCreated || env.StatusText != "Created" {
		t.Fatalf("unexpected status %d %q", env.Status, env.StatusText)
	}
	if env.RawBody != `{"id":7}` || env.Size != int64(len(`{"id":7}`)) {
		t.Fatalf("unexpected body %q size %d", env.RawBody, env.Size)
	}
	if env.Body != nil {
		t.Fatalf("body should be left for the caller to decode")
	}
	if env.Headers["X-Multi"] != "a, b" {
		t.Fatalf("expected joined headers, got %q", env.Headers["X-Multi"])
	}
	if gotBody != body || gotHeader != "t1" || gotMethod != http.MethodPost {
		t.Fatalf("server saw %s %q header %q", gotMethod, gotBody, gotHeader)
	}
}

func TestSendTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	env := NewClient(DefaultOptions()).Send(context.Background(), &model.ConcreteRequest{
		Method: model.MethodGet,
		URL:    url,
	})
	if env.Status != 0 || env.StatusText != "Error" {
		t.Fatalf("expected synthetic failure, got %d %q", env.Status, env.StatusText)
	}
	body, ok := env.Body.(map[string]any)
	if !ok || body["error"] == "" || env.RawBody == "" {
		t.Fatalf("expected error body, got %#v raw %q", env.Body, env.RawBody)
	}
	if body["error"] != env.RawBody {
		t.Fatalf("raw body should carry the message, got %q", env.RawBody)
	}
}

func TestSendInvalidURL(t *testing.T) {
	t.Parallel()

	env := NewClient(DefaultOptions()).Send(context.Background(), &model.ConcreteRequest{
		Method: model.MethodGet,
		URL:    "://missing-scheme",
	})
	if !env.Failed() {
		t.Fatalf("expected failure envelope, got %#v", env)
	}
}

func TestSendFactoryError(t *testing.T) {
	t.Parallel()

	client := NewClient(DefaultOptions())
	client.SetHTTPFactory(func(Options) (*http.Client, error) {
		return nil, errors.New("no client")
	})
	env := client.Send(context.Background(), &model.ConcreteRequest{Method: model.MethodGet, URL: "http://example.com"})
	if env.Status != 0 || env.RawBody != "no client" {
		t.Fatalf("unexpected envelope %#v", env)
	}
}

func TestSendRespectsRedirectOption(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("done"))
	}))
	defer srv.Close()

	req := &model.ConcreteRequest{Method: model.MethodGet, URL: srv.URL + "/start"}
	follow := NewClient(DefaultOptions()).Send(context.Background(), req)
	if follow.Status != http.StatusOK || follow.RawBody != "done" {
		t.Fatalf("expected redirect to be followed, got %d", follow.Status)
	}

	opts := DefaultOptions()
	opts.FollowRedirects = false
	stay := NewClient(opts).Send(context.Background(), req)
	if stay.Status != http.StatusFound {
		t.Fatalf("expected redirect status, got %d", stay.Status)
	}
}

func TestSendTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.Timeout = 50 * time.Millisecond
	env := NewClient(opts).Send(context.Background(), &model.ConcreteRequest{Method: model.MethodGet, URL: srv.URL})
	if env.Status != 0 || !strings.Contains(strings.ToLower(env.RawBody), "timeout") {
		t.Fatalf("expected timeout failure, got %d %q", env.Status, env.RawBody)
	}
}

func TestSendEmitsSpan(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	inst, err := telemetry.New(telemetry.Config{}, telemetry.WithSpanProcessor(recorder))
	if err != nil {
		t.Fatalf("telemetry: %v", err)
	}
	client := NewClient(DefaultOptions())
	client.SetTelemetry(inst)
	client.Send(context.Background(), &model.ConcreteRequest{Method: model.MethodDelete, URL: srv.URL + "/x"})

	spans := recorder.Ended()
	if len(spans) != 1 || !strings.HasPrefix(spans[0].Name(), "DELETE ") {
		t.Fatalf("expected one DELETE span, got %d", len(spans))
	}
}
