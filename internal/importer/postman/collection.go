// Package postman maps Postman v2.1 collections onto workspace nodes.
package postman

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/awsm-dev/awsm/internal/errdef"
)

type Collection struct {
	Info     Info       `json:"info"`
	Items    []Item     `json:"item"`
	Variable []KeyValue `json:"variable,omitempty"`
}

type Info struct {
	Name   string `json:"name"`
	Schema string `json:"schema,omitempty"`
}

// Item is a folder when Items is present, even if empty, and a request
// otherwise.
type Item struct {
	Name    string   `json:"name"`
	Items   []Item   `json:"item,omitempty"`
	Request *Request `json:"request,omitempty"`
}

func (i Item) IsFolder() bool {
	return i.Items != nil
}

type Request struct {
	Method string     `json:"method"`
	Header []KeyValue `json:"header,omitempty"`
	URL    URL        `json:"url"`
	Body   *Body      `json:"body,omitempty"`
	Auth   *Auth      `json:"auth,omitempty"`
}

// URL accepts both the string and the object form.
type URL struct {
	Raw   string     `json:"raw"`
	Query []KeyValue `json:"query,omitempty"`
}

func (u *URL) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*u = URL{Raw: raw}
		return nil
	}
	type plain URL
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = URL(p)
	return nil
}

type Body struct {
	Mode       string     `json:"mode"`
	Raw        string     `json:"raw,omitempty"`
	FormData   []KeyValue `json:"formdata,omitempty"`
	URLEncoded []KeyValue `json:"urlencoded,omitempty"`
}

type Auth struct {
	Type   string     `json:"type"`
	Bearer []KeyValue `json:"bearer,omitempty"`
	Basic  []KeyValue `json:"basic,omitempty"`
	APIKey []KeyValue `json:"apikey,omitempty"`
}

type KeyValue struct {
	Key      string `json:"key"`
	Value    Text   `json:"value"`
	Type     string `json:"type,omitempty"`
	Src      Text   `json:"src,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Text decodes any JSON scalar as a string.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	if string(data) == "null" {
		*t = ""
		return nil
	}
	*t = Text(strings.TrimSpace(string(data)))
	return nil
}

func Parse(r io.Reader) (Collection, error) {
	var c Collection
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return Collection{}, errdef.Wrap(errdef.CodeParse, err, "decode postman collection")
	}
	if c.Items == nil && c.Info.Name == "" {
		return Collection{}, errdef.New(errdef.CodeParse, "not a postman collection")
	}
	return c, nil
}

func lookup(items []KeyValue, key string) string {
	for _, kv := range items {
		if kv.Key == key {
			return string(kv.Value)
		}
	}
	return ""
}
