package model

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeBasic  AuthType = "basic"
	AuthTypeBearer AuthType = "bearer"
	AuthTypeAPIKey AuthType = "apikey"
	AuthTypeOAuth2 AuthType = "oauth2"
)

// Auth is a closed set of credential schemes. Switches over it should cover
// every implementation in this file.
type Auth interface {
	Type() AuthType
	sealed()
}

type NoAuth struct{}

type BasicAuth struct {
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

type BearerAuth struct {
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

type APIKeyLocation string

const (
	APIKeyInHeader APIKeyLocation = "header"
	APIKeyInQuery  APIKeyLocation = "query"
)

type APIKeyAuth struct {
	Key   string         `json:"key,omitempty"   yaml:"key,omitempty"`
	Value string         `json:"value,omitempty" yaml:"value,omitempty"`
	AddTo APIKeyLocation `json:"addTo,omitempty" yaml:"addTo,omitempty"`
}

type OAuth2Grant string

const (
	GrantClientCredentials OAuth2Grant = "client_credentials"
	GrantPassword          OAuth2Grant = "password"
	GrantImplicit          OAuth2Grant = "implicit"
	GrantAuthorizationCode OAuth2Grant = "authorization_code"
)

type OAuth2Auth struct {
	GrantType    OAuth2Grant `json:"grantType,omitempty"    yaml:"grantType,omitempty"`
	TokenURL     string      `json:"tokenUrl,omitempty"     yaml:"tokenUrl,omitempty"`
	ClientID     string      `json:"clientId,omitempty"     yaml:"clientId,omitempty"`
	ClientSecret string      `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
	Scope        string      `json:"scope,omitempty"        yaml:"scope,omitempty"`
	Username     string      `json:"username,omitempty"     yaml:"username,omitempty"`
	Password     string      `json:"password,omitempty"     yaml:"password,omitempty"`
	Token        string      `json:"token,omitempty"        yaml:"token,omitempty"`
}

func (NoAuth) Type() AuthType     { return AuthTypeNone }
func (BasicAuth) Type() AuthType  { return AuthTypeBasic }
func (BearerAuth) Type() AuthType { return AuthTypeBearer }
func (APIKeyAuth) Type() AuthType { return AuthTypeAPIKey }
func (OAuth2Auth) Type() AuthType { return AuthTypeOAuth2 }

func (NoAuth) sealed()     {}
func (BasicAuth) sealed()  {}
func (BearerAuth) sealed() {}
func (APIKeyAuth) sealed() {}
func (OAuth2Auth) sealed() {}

// AuthSpec carries an Auth in the persisted `{"type": "...", "<type>": {...}}`
// shape. A nil Scheme is treated as NoAuth.
type AuthSpec struct {
	Scheme Auth
}

func NewAuth(a Auth) AuthSpec {
	return AuthSpec{Scheme: a}
}

func (s AuthSpec) Get() Auth {
	if s.Scheme == nil {
		return NoAuth{}
	}
	return s.Scheme
}

func (s AuthSpec) Type() AuthType {
	return s.Get().Type()
}

// Clone copies the value held by the spec; every variant is a plain value type.
func (s AuthSpec) Clone() AuthSpec {
	return AuthSpec{Scheme: s.Get()}
}

type authWire struct {
	Type   AuthType    `json:"type"             yaml:"type"`
	Basic  *BasicAuth  `json:"basic,omitempty"  yaml:"basic,omitempty"`
	Bearer *BearerAuth `json:"bearer,omitempty" yaml:"bearer,omitempty"`
	APIKey *APIKeyAuth `json:"apikey,omitempty" yaml:"apikey,omitempty"`
	OAuth2 *OAuth2Auth `json:"oauth2,omitempty" yaml:"oauth2,omitempty"`
}

func (s AuthSpec) toWire() authWire {
	switch a := s.Get().(type) {
	case BasicAuth:
		return authWire{Type: AuthTypeBasic, Basic: &a}
	case BearerAuth:
		return authWire{Type: AuthTypeBearer, Bearer: &a}
	case APIKeyAuth:
		return authWire{Type: AuthTypeAPIKey, APIKey: &a}
	case OAuth2Auth:
		return authWire{Type: AuthTypeOAuth2, OAuth2: &a}
	default:
		return authWire{Type: AuthTypeNone}
	}
}

func (w authWire) toSpec() (AuthSpec, error) {
	switch w.Type {
	case "", AuthTypeNone:
		return AuthSpec{Scheme: NoAuth{}}, nil
	case AuthTypeBasic:
		if w.Basic == nil {
			return AuthSpec{Scheme: BasicAuth{}}, nil
		}
		return AuthSpec{Scheme: *w.Basic}, nil
	case AuthTypeBearer:
		if w.Bearer == nil {
			return AuthSpec{Scheme: BearerAuth{}}, nil
		}
		return AuthSpec{Scheme: *w.Bearer}, nil
	case AuthTypeAPIKey:
		if w.APIKey == nil {
			return AuthSpec{Scheme: APIKeyAuth{AddTo: APIKeyInHeader}}, nil
		}
		return AuthSpec{Scheme: *w.APIKey}, nil
	case AuthTypeOAuth2:
		if w.OAuth2 == nil {
			return AuthSpec{Scheme: OAuth2Auth{}}, nil
		}
		return AuthSpec{Scheme: *w.OAuth2}, nil
	default:
		return AuthSpec{}, fmt.Errorf("unknown auth type %q", w.Type)
	}
}

func (s AuthSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.toWire())
}

func (s *AuthSpec) UnmarshalJSON(data []byte) error {
	var w authWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	spec, err := w.toSpec()
	if err != nil {
		return err
	}
	*s = spec
	return nil
}

func (s AuthSpec) MarshalYAML() (any, error) {
	return s.toWire(), nil
}

func (s *AuthSpec) UnmarshalYAML(node *yaml.Node) error {
	var w authWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	spec, err := w.toSpec()
	if err != nil {
		return err
	}
	*s = spec
	return nil
}
