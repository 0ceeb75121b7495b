package oauth

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
)

type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	Username     string
	Password     string
	// ClientAuth is "basic" (header) or "body"; empty lets the library detect it.
	ClientAuth string
	GrantType  string
	CacheKey   string
	Extra      map[string]string
}

// ConfigFromAuth maps a materialized oauth2 auth block onto a token config.
func ConfigFromAuth(a model.OAuth2Auth) Config {
	return Config{
		TokenURL:     strings.TrimSpace(a.TokenURL),
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		Scope:        a.Scope,
		Username:     a.Username,
		Password:     a.Password,
		GrantType:    string(a.GrantType),
	}
}

type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Expiry       time.Time
}

type Manager struct {
	httpClient *http.Client

	mu       sync.Mutex
	cache    map[string]*cacheEntry
	inflight map[string]*call
}

type cacheEntry struct {
	token Token
	cfg   Config
}

type call struct {
	done  chan struct{}
	token Token
	err   error
}

const expirySlack = 30 * time.Second

// NewManager fetches tokens with client, or http.DefaultClient when nil.
func NewManager(client *http.Client) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{
		httpClient: client,
		cache:      make(map[string]*cacheEntry),
		inflight:   make(map[string]*call),
	}
}

// Token returns a cached token for cfg while it is valid, refreshing or
// fetching a new one otherwise. Concurrent calls for the same config share
// one request.
func (m *Manager) Token(ctx context.Context, cfg Config) (Token, error) {
	key := m.cacheKey(cfg)

	if token, ok := m.cachedToken(key); ok && token.valid() {
		return token, nil
	}

	m.mu.Lock()
	if c, ok := m.inflight[key]; ok {
		done := c.done
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return Token{}, ctx.Err()
		case <-done:
			if c.err != nil {
				return Token{}, c.err
			}
			return c.token, nil
		}
	}
	c := &call{done: make(chan struct{})}
	m.inflight[key] = c
	m.mu.Unlock()

	token, err := m.obtainToken(ctx, key, cfg)
	c.token = token
	c.err = err
	close(c.done)

	m.mu.Lock()
	delete(m.inflight, key)
	m.mu.Unlock()

	if err != nil {
		return Token{}, err
	}
	return token, nil
}

// Invalidate drops any cached token for cfg.
func (m *Manager) Invalidate(cfg Config) {
	m.mu.Lock()
	delete(m.cache, m.cacheKey(cfg))
	m.mu.Unlock()
}

func (m *Manager) obtainToken(ctx context.Context, key string, cfg Config) (Token, error) {
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return Token{}, errdef.New(errdef.CodeValidation, "oauth2 token url is required")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	if entry := m.cacheEntry(key); entry != nil && entry.token.RefreshToken != "" {
		if refreshed, err := m.refreshToken(ctx, entry.cfg, entry.token.RefreshToken); err == nil {
			m.storeToken(key, cfg, refreshed)
			return refreshed, nil
		}
	}

	fetched, err := m.requestToken(ctx, cfg)
	if err != nil {
		return Token{}, err
	}
	m.storeToken(key, cfg, fetched)
	return fetched, nil
}

func (m *Manager) requestToken(ctx context.Context, cfg Config) (Token, error) {
	grant := strings.ToLower(strings.TrimSpace(cfg.GrantType))
	if grant == "" {
		grant = string(model.GrantClientCredentials)
	}

	switch model.OAuth2Grant(grant) {
	case model.GrantClientCredentials:
		cc := clientcredentials.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			TokenURL:       cfg.TokenURL,
			Scopes:         scopes(cfg.Scope),
			EndpointParams: extraParams(cfg.Extra),
			AuthStyle:      authStyle(cfg.ClientAuth),
		}
		tok, err := cc.Token(ctx)
		if err != nil {
			return Token{}, errdef.Wrap(errdef.CodeHTTP, err, "oauth2 client_credentials")
		}
		return fromOAuth2(tok)
	case model.GrantPassword:
		if cfg.Username == "" {
			return Token{}, errdef.New(errdef.CodeValidation, "oauth2 password grant requires a username")
		}
		tok, err := m.oauth2Config(cfg).PasswordCredentialsToken(ctx, cfg.Username, cfg.Password)
		if err != nil {
			return Token{}, errdef.Wrap(errdef.CodeHTTP, err, "oauth2 password")
		}
		return fromOAuth2(tok)
	default:
		return Token{}, errdef.New(errdef.CodeValidation, "unsupported oauth2 grant type: %s", grant)
	}
}

func (m *Manager) refreshToken(ctx context.Context, cfg Config, refresh string) (Token, error) {
	expired := &oauth2.Token{RefreshToken: refresh, Expiry: time.Now().Add(-time.Minute)}
	tok, err := m.oauth2Config(cfg).TokenSource(ctx, expired).Token()
	if err != nil {
		return Token{}, errdef.Wrap(errdef.CodeHTTP, err, "oauth2 refresh")
	}
	return fromOAuth2(tok)
}

func (m *Manager) oauth2Config(cfg Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: authStyle(cfg.ClientAuth),
		},
		Scopes: scopes(cfg.Scope),
	}
}

func (m *Manager) cachedToken(key string) (Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.cache[key]
	if !ok {
		return Token{}, false
	}
	return entry.token, true
}

func (m *Manager) cacheEntry(key string) *cacheEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache[key]
}

func (m *Manager) storeToken(key string, cfg Config, token Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = &cacheEntry{token: token, cfg: cfg}
}

func (m *Manager) cacheKey(cfg Config) string {
	if strings.TrimSpace(cfg.CacheKey) != "" {
		return strings.TrimSpace(cfg.CacheKey)
	}

	parts := []string{
		strings.TrimSpace(cfg.TokenURL),
		strings.TrimSpace(cfg.ClientID),
		strings.TrimSpace(cfg.Scope),
		strings.ToLower(strings.TrimSpace(cfg.GrantType)),
		strings.TrimSpace(cfg.Username),
		strings.ToLower(strings.TrimSpace(cfg.ClientAuth)),
	}
	if len(cfg.Extra) > 0 {
		keys := make([]string, 0, len(cfg.Extra))
		for k := range cfg.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+"="+cfg.Extra[k])
		}
	}
	return strings.Join(parts, "|")
}

func fromOAuth2(tok *oauth2.Token) (Token, error) {
	if tok == nil || tok.AccessToken == "" {
		return Token{}, errdef.New(errdef.CodeHTTP, "oauth token response missing access_token")
	}
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}

func scopes(raw string) []string {
	return strings.Fields(strings.ReplaceAll(raw, ",", " "))
}

func extraParams(extra map[string]string) url.Values {
	if len(extra) == 0 {
		return nil
	}
	values := url.Values{}
	for k, v := range extra {
		if k != "" && v != "" {
			values.Set(k, v)
		}
	}
	return values
}

func authStyle(mode string) oauth2.AuthStyle {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "basic", "header":
		return oauth2.AuthStyleInHeader
	case "body", "params":
		return oauth2.AuthStyleInParams
	default:
		return oauth2.AuthStyleAutoDetect
	}
}

// valid treats tokens expiring within expirySlack as already expired.
func (t Token) valid() bool {
	if t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return time.Now().Add(expirySlack).Before(t.Expiry)
}
