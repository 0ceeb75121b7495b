package model

import (
	"strings"
)

type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
)

func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return true
	default:
		return false
	}
}

func ParseMethod(raw string) Method {
	return Method(strings.ToUpper(strings.TrimSpace(raw)))
}

type KeyValue struct {
	ID          string `json:"id,omitempty"          yaml:"id,omitempty"`
	Key         string `json:"key"                   yaml:"key"`
	Value       string `json:"value"                 yaml:"value"`
	Enabled     bool   `json:"enabled"               yaml:"enabled"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type FormItemType string

const (
	FormItemText FormItemType = "text"
	FormItemFile FormItemType = "file"
)

type FormDataItem struct {
	ID          string       `json:"id,omitempty"          yaml:"id,omitempty"`
	Key         string       `json:"key"                   yaml:"key"`
	Value       string       `json:"value"                 yaml:"value"`
	Type        FormItemType `json:"type,omitempty"        yaml:"type,omitempty"`
	Enabled     bool         `json:"enabled"               yaml:"enabled"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
}

type BodyKind string

const (
	BodyNone           BodyKind = "none"
	BodyJSON           BodyKind = "json"
	BodyText           BodyKind = "text"
	BodyXML            BodyKind = "xml"
	BodyHTML           BodyKind = "html"
	BodyFormData       BodyKind = "form-data"
	BodyFormURLEncoded BodyKind = "x-www-form-urlencoded"
	BodyBinary         BodyKind = "binary"
)

// IsRaw reports whether the body is sent from Content verbatim.
func (k BodyKind) IsRaw() bool {
	switch k {
	case BodyJSON, BodyText, BodyXML, BodyHTML, BodyBinary:
		return true
	default:
		return false
	}
}

type Body struct {
	Kind           BodyKind       `json:"type"                     yaml:"type"`
	Content        string         `json:"content"                  yaml:"content"`
	FormData       []FormDataItem `json:"formData,omitempty"       yaml:"formData,omitempty"`
	FormURLEncoded []KeyValue     `json:"formUrlEncoded,omitempty" yaml:"formUrlEncoded,omitempty"`
}

func (b Body) EffectiveKind() BodyKind {
	if b.Kind == "" {
		return BodyNone
	}
	return b.Kind
}

type RequestDefinition struct {
	URL              string     `json:"url"                        yaml:"url"`
	Method           Method     `json:"method"                     yaml:"method"`
	Params           []KeyValue `json:"params"                     yaml:"params"`
	Headers          []KeyValue `json:"headers"                    yaml:"headers"`
	Body             Body       `json:"body"                       yaml:"body"`
	Auth             AuthSpec   `json:"auth"                       yaml:"auth"`
	PreRequestScript string     `json:"preRequestScript,omitempty" yaml:"preRequestScript,omitempty"`
	TestScript       string     `json:"testScript,omitempty"       yaml:"testScript,omitempty"`
}

// Clone returns a deep copy so callers can hand the definition to scripts
// and materialization without aliasing the stored node.
func (d RequestDefinition) Clone() RequestDefinition {
	out := d
	out.Params = append([]KeyValue(nil), d.Params...)
	out.Headers = append([]KeyValue(nil), d.Headers...)
	out.Body.FormData = append([]FormDataItem(nil), d.Body.FormData...)
	out.Body.FormURLEncoded = append([]KeyValue(nil), d.Body.FormURLEncoded...)
	out.Auth = d.Auth.Clone()
	return out
}

// ConcreteRequest is a fully resolved request ready for dispatch.
type ConcreteRequest struct {
	Method  Method
	URL     string
	Headers []KeyValue
	Body    *string
}

// HeaderMap flattens the ordered headers; later keys win.
func (r *ConcreteRequest) HeaderMap() map[string]string {
	out := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		out[h.Key] = h.Value
	}
	return out
}

func (r *ConcreteRequest) Header(name string) (string, bool) {
	for i := len(r.Headers) - 1; i >= 0; i-- {
		if strings.EqualFold(r.Headers[i].Key, name) {
			return r.Headers[i].Value, true
		}
	}
	return "", false
}

func (r *ConcreteRequest) SetHeader(name, value string) {
	for i := range r.Headers {
		if strings.EqualFold(r.Headers[i].Key, name) {
			r.Headers[i].Key = name
			r.Headers[i].Value = value
			return
		}
	}
	r.Headers = append(r.Headers, KeyValue{Key: name, Value: value, Enabled: true})
}
