package postman

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awsm-dev/awsm/internal/model"
)

const sampleCollection = `{
  "info": {"name": "Shop API", "schema": "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"},
  "item": [
    {
      "name": "Auth",
      "item": [
        {
          "name": "Login",
          "request": {
            "method": "post",
            "header": [
              {"key": "Content-Type", "value": "application/json"},
              {"key": "X-Debug", "value": "1", "disabled": true}
            ],
            "url": {"raw": "{{baseUrl}}/login?debug=1", "query": [{"key": "debug", "value": "1"}]},
            "body": {"mode": "raw", "raw": "{\"user\":\"{{user}}\"}"},
            "auth": {"type": "basic", "basic": [{"key": "username", "value": "alice"}, {"key": "password", "value": "pw"}]}
          }
        }
      ]
    },
    {
      "name": "Upload",
      "request": {
        "method": "PUT",
        "url": "https://example.com/upload",
        "body": {"mode": "formdata", "formdata": [
          {"key": "note", "value": "hi", "type": "text"},
          {"key": "file", "type": "file", "src": "/tmp/a.png"}
        ]},
        "auth": {"type": "apikey", "apikey": [{"key": "key", "value": "X-Key"}, {"key": "value", "value": "s3"}, {"key": "in", "value": "query"}]}
      }
    },
    {"name": "Empty folder", "item": []}
  ],
  "variable": [{"key": "baseUrl", "value": "https://shop.local"}, {"key": "port", "value": 8080}]
}`

func seq() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("n%d", n)
	}
}

func TestImportBuildsArena(t *testing.T) {
	c, err := Parse(strings.NewReader(sampleCollection))
	require.NoError(t, err)

	im := Importer{NewID: seq()}
	nodes, roots := im.Import(c)
	require.Len(t, roots, 1)

	root := nodes[roots[0]]
	assert.Equal(t, "Shop API", root.Name)
	assert.Equal(t, model.NodeWorkspace, root.Type)
	require.Len(t, root.Children, 3)

	auth := nodes[root.Children[0]]
	assert.Equal(t, model.NodeCollection, auth.Type)
	require.Len(t, auth.Children, 1)

	login := nodes[auth.Children[0]]
	assert.Equal(t, "Login", login.Name)
	assert.Equal(t, auth.ID, login.ParentID)
	require.NotNil(t, login.Data)
	assert.Equal(t, model.MethodPost, login.Data.Method)
	assert.Equal(t, "{{baseUrl}}/login?debug=1", login.Data.URL)
	assert.Equal(t, model.BodyJSON, login.Data.Body.Kind)
	assert.Equal(t, model.BasicAuth{Username: "alice", Password: "pw"}, login.Data.Auth.Get())
	require.Len(t, login.Data.Headers, 2)
	assert.False(t, login.Data.Headers[1].Enabled)
	require.Len(t, login.Data.Params, 1)

	empty := nodes[root.Children[2]]
	assert.Equal(t, model.NodeCollection, empty.Type)
	assert.Empty(t, empty.Children)

	for id, n := range nodes {
		assert.Equal(t, id, n.ID)
	}
}

func TestConvertRequestFormDataAndAPIKey(t *testing.T) {
	c, err := Parse(strings.NewReader(sampleCollection))
	require.NoError(t, err)

	def := ConvertRequest(*c.Items[1].Request)
	assert.Equal(t, "https://example.com/upload", def.URL)
	assert.Equal(t, model.BodyFormData, def.Body.Kind)
	require.Len(t, def.Body.FormData, 2)
	assert.Equal(t, model.FormItemText, def.Body.FormData[0].Type)
	assert.Equal(t, model.FormItemFile, def.Body.FormData[1].Type)
	assert.Equal(t, "/tmp/a.png", def.Body.FormData[1].Value)
	assert.Equal(t, model.APIKeyAuth{Key: "X-Key", Value: "s3", AddTo: model.APIKeyInQuery}, def.Auth.Get())
}

func TestConvertRequestDefaults(t *testing.T) {
	def := ConvertRequest(Request{URL: URL{Raw: "http://x"}})
	assert.Equal(t, model.MethodGet, def.Method)
	assert.Equal(t, model.BodyNone, def.Body.Kind)
	assert.Equal(t, model.AuthTypeNone, def.Auth.Type())

	def = ConvertRequest(Request{Method: "POST", Body: &Body{Mode: "raw", Raw: "not json"}})
	assert.Equal(t, model.BodyText, def.Body.Kind)

	def = ConvertRequest(Request{Method: "POST", Body: &Body{Mode: "urlencoded", URLEncoded: []KeyValue{{Key: "a", Value: "b"}}}})
	assert.Equal(t, model.BodyFormURLEncoded, def.Body.Kind)
	require.Len(t, def.Body.FormURLEncoded, 1)

	def = ConvertRequest(Request{Method: "GET", Auth: &Auth{Type: "bearer", Bearer: []KeyValue{{Key: "token", Value: "t0k"}}}})
	assert.Equal(t, model.BearerAuth{Token: "t0k"}, def.Auth.Get())
}

func TestImportUnnamedCollection(t *testing.T) {
	nodes, roots := Import(Collection{Items: []Item{}})
	assert.Equal(t, "Imported Collection", nodes[roots[0]].Name)
}

func TestVariablesAcceptNonStringValues(t *testing.T) {
	c, err := Parse(strings.NewReader(sampleCollection))
	require.NoError(t, err)
	vars := Importer{NewID: seq()}.Variables(c)
	require.Len(t, vars, 2)
	assert.Equal(t, "8080", vars[1].Value)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"foo": 1}`))
	assert.Error(t, err)
	_, err = Parse(strings.NewReader(`not json`))
	assert.Error(t, err)
}
