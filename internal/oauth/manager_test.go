package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
)

type tokenServer struct {
	*httptest.Server
	calls atomic.Int32
	mu    sync.Mutex
	forms []map[string]string
	auth  []string
}

func newTokenServer(t *testing.T, body func(n int32) string) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		ts.mu.Lock()
		ts.forms = append(ts.forms, form)
		ts.auth = append(ts.auth, r.Header.Get("Authorization"))
		ts.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body(n)))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) form(i int) map[string]string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.forms[i]
}

func TestManagerClientCredentialsBasic(t *testing.T) {
	ts := newTokenServer(t, func(int32) string {
		return `{"access_token":"token-basic","token_type":"Bearer","expires_in":3600}`
	})
	mgr := NewManager(ts.Client())

	cfg := Config{
		TokenURL:     ts.URL,
		ClientID:     "my-client",
		ClientSecret: "my-secret",
		Scope:        "read write",
		ClientAuth:   "basic",
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	token, err := mgr.Token(ctx, cfg)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token.AccessToken != "token-basic" {
		t.Fatalf("unexpected access token %q", token.AccessToken)
	}
	form := ts.form(0)
	if form["grant_type"] != "client_credentials" {
		t.Fatalf("expected client_credentials grant, got %q", form["grant_type"])
	}
	if form["scope"] != "read write" {
		t.Fatalf("expected scope to be forwarded, got %q", form["scope"])
	}
	if ts.auth[0] == "" {
		t.Fatalf("expected basic client auth header")
	}

	again, err := mgr.Token(ctx, cfg)
	if err != nil {
		t.Fatalf("cached token: %v", err)
	}
	if again.AccessToken != "token-basic" || ts.calls.Load() != 1 {
		t.Fatalf("expected cached token without second request, calls=%d", ts.calls.Load())
	}
}

func TestManagerPasswordGrant(t *testing.T) {
	ts := newTokenServer(t, func(int32) string {
		return `{"access_token":"pw-token","expires_in":3600}`
	})
	mgr := NewManager(ts.Client())

	token, err := mgr.Token(context.Background(), Config{
		TokenURL:     ts.URL,
		GrantType:    "password",
		ClientID:     "cli",
		ClientSecret: "sec",
		Username:     "alice",
		Password:     "pw",
		ClientAuth:   "body",
	})
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token.AccessToken != "pw-token" || token.TokenType != "Bearer" {
		t.Fatalf("unexpected token %+v", token)
	}
	form := ts.form(0)
	if form["grant_type"] != "password" || form["username"] != "alice" || form["password"] != "pw" {
		t.Fatalf("unexpected password form %v", form)
	}
	if form["client_id"] != "cli" {
		t.Fatalf("expected client id in body, got %v", form)
	}
}

func TestManagerRefreshesExpiredToken(t *testing.T) {
	ts := newTokenServer(t, func(n int32) string {
		if n == 1 {
			// expires inside the slack window
			return `{"access_token":"first","refresh_token":"r1","expires_in":5}`
		}
		return `{"access_token":"second","expires_in":3600}`
	})
	mgr := NewManager(ts.Client())
	cfg := Config{TokenURL: ts.URL, ClientID: "c", ClientSecret: "s", ClientAuth: "body"}

	first, err := mgr.Token(context.Background(), cfg)
	if err != nil || first.AccessToken != "first" {
		t.Fatalf("first token: %+v %v", first, err)
	}
	second, err := mgr.Token(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second token: %v", err)
	}
	if second.AccessToken != "second" {
		t.Fatalf("expected refreshed token, got %q", second.AccessToken)
	}
	if got := ts.form(1)["grant_type"]; got != "refresh_token" {
		t.Fatalf("expected refresh grant, got %q", got)
	}
}

func TestManagerDeduplicatesConcurrentRequests(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"shared","expires_in":3600}`))
	}))
	defer srv.Close()

	mgr := NewManager(srv.Client())
	cfg := Config{TokenURL: srv.URL, ClientID: "c", ClientSecret: "s", ClientAuth: "body"}

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := mgr.Token(context.Background(), cfg)
			if err != nil {
				t.Errorf("token: %v", err)
				return
			}
			results[i] = tok.AccessToken
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single token request, got %d", calls.Load())
	}
	for _, r := range results {
		if r != "shared" {
			t.Fatalf("expected shared token, got %v", results)
		}
	}
}

func TestManagerErrors(t *testing.T) {
	mgr := NewManager(nil)
	if _, err := mgr.Token(context.Background(), Config{}); !errdef.Is(err, errdef.CodeValidation) {
		t.Fatalf("expected validation error for missing token url, got %v", err)
	}
	_, err := mgr.Token(context.Background(), Config{TokenURL: "http://127.0.0.1:1/token", GrantType: "implicit"})
	if !errdef.Is(err, errdef.CodeValidation) {
		t.Fatalf("expected validation error for implicit grant, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()
	mgr = NewManager(srv.Client())
	_, err = mgr.Token(context.Background(), Config{TokenURL: srv.URL, ClientID: "c", ClientSecret: "s", ClientAuth: "body"})
	if !errdef.Is(err, errdef.CodeHTTP) {
		t.Fatalf("expected http error, got %v", err)
	}
}

func TestConfigFromAuth(t *testing.T) {
	cfg := ConfigFromAuth(model.OAuth2Auth{
		GrantType: model.GrantPassword,
		TokenURL:  " https://auth/token ",
		ClientID:  "id",
		Username:  "u",
	})
	if cfg.TokenURL != "https://auth/token" || cfg.GrantType != "password" || cfg.Username != "u" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
