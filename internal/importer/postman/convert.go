package postman

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/awsm-dev/awsm/internal/model"
)

const defaultCollectionName = "Imported Collection"

// Importer turns collections into node arenas. NewID defaults to uuids.
type Importer struct {
	NewID func() string
}

func (im Importer) id() string {
	if im.NewID != nil {
		return im.NewID()
	}
	return uuid.NewString()
}

// Import builds a workspace node named after the collection holding its
// folders as collections and its requests as request nodes.
func Import(c Collection) (map[string]*model.TreeNode, []string) {
	return Importer{}.Import(c)
}

func (im Importer) Import(c Collection) (map[string]*model.TreeNode, []string) {
	name := strings.TrimSpace(c.Info.Name)
	if name == "" {
		name = defaultCollectionName
	}
	nodes := make(map[string]*model.TreeNode)
	root := &model.TreeNode{
		ID:         im.id(),
		Name:       name,
		Type:       model.NodeWorkspace,
		IsExpanded: true,
		Children:   []string{},
	}
	nodes[root.ID] = root
	im.addItems(nodes, root, c.Items)
	return nodes, []string{root.ID}
}

func (im Importer) addItems(nodes map[string]*model.TreeNode, parent *model.TreeNode, items []Item) {
	for _, item := range items {
		switch {
		case item.IsFolder():
			folder := &model.TreeNode{
				ID:         im.id(),
				ParentID:   parent.ID,
				Name:       item.Name,
				Type:       model.NodeCollection,
				IsExpanded: true,
				Children:   []string{},
			}
			nodes[folder.ID] = folder
			parent.Children = append(parent.Children, folder.ID)
			im.addItems(nodes, folder, item.Items)
		case item.Request != nil:
			def := im.ConvertRequest(*item.Request)
			req := &model.TreeNode{
				ID:       im.id(),
				ParentID: parent.ID,
				Name:     item.Name,
				Type:     model.NodeRequest,
				Data:     &def,
			}
			nodes[req.ID] = req
			parent.Children = append(parent.Children, req.ID)
		}
	}
}

func ConvertRequest(r Request) model.RequestDefinition {
	return Importer{}.ConvertRequest(r)
}

func (im Importer) ConvertRequest(r Request) model.RequestDefinition {
	method := model.ParseMethod(r.Method)
	if method == "" {
		method = model.MethodGet
	}
	return model.RequestDefinition{
		URL:     r.URL.Raw,
		Method:  method,
		Params:  im.keyValues(r.URL.Query),
		Headers: im.keyValues(r.Header),
		Body:    im.convertBody(r.Body),
		Auth:    convertAuth(r.Auth),
	}
}

func (im Importer) keyValues(in []KeyValue) []model.KeyValue {
	out := make([]model.KeyValue, 0, len(in))
	for _, kv := range in {
		out = append(out, model.KeyValue{
			ID:      im.id(),
			Key:     kv.Key,
			Value:   string(kv.Value),
			Enabled: !kv.Disabled,
		})
	}
	return out
}

func (im Importer) convertBody(b *Body) model.Body {
	if b == nil {
		return model.Body{Kind: model.BodyNone}
	}
	switch b.Mode {
	case "raw":
		kind := model.BodyText
		if json.Valid([]byte(b.Raw)) {
			kind = model.BodyJSON
		}
		return model.Body{Kind: kind, Content: b.Raw}
	case "formdata":
		items := make([]model.FormDataItem, 0, len(b.FormData))
		for _, f := range b.FormData {
			typ := model.FormItemText
			value := string(f.Value)
			if f.Type == string(model.FormItemFile) {
				typ = model.FormItemFile
				if value == "" {
					value = string(f.Src)
				}
			}
			items = append(items, model.FormDataItem{
				ID:      im.id(),
				Key:     f.Key,
				Value:   value,
				Type:    typ,
				Enabled: !f.Disabled,
			})
		}
		return model.Body{Kind: model.BodyFormData, FormData: items}
	case "urlencoded":
		return model.Body{Kind: model.BodyFormURLEncoded, FormURLEncoded: im.keyValues(b.URLEncoded)}
	default:
		return model.Body{Kind: model.BodyNone}
	}
}

func convertAuth(a *Auth) model.AuthSpec {
	if a == nil {
		return model.NewAuth(model.NoAuth{})
	}
	switch a.Type {
	case "bearer":
		token := ""
		if len(a.Bearer) > 0 {
			token = lookup(a.Bearer, "token")
			if token == "" {
				token = string(a.Bearer[0].Value)
			}
		}
		return model.NewAuth(model.BearerAuth{Token: token})
	case "basic":
		return model.NewAuth(model.BasicAuth{
			Username: lookup(a.Basic, "username"),
			Password: lookup(a.Basic, "password"),
		})
	case "apikey":
		addTo := model.APIKeyInHeader
		if lookup(a.APIKey, "in") == string(model.APIKeyInQuery) {
			addTo = model.APIKeyInQuery
		}
		return model.NewAuth(model.APIKeyAuth{
			Key:   lookup(a.APIKey, "key"),
			Value: lookup(a.APIKey, "value"),
			AddTo: addTo,
		})
	default:
		return model.NewAuth(model.NoAuth{})
	}
}

// Variables maps collection variables onto workspace variables.
func (im Importer) Variables(c Collection) []model.Variable {
	out := make([]model.Variable, 0, len(c.Variable))
	for _, v := range c.Variable {
		if v.Key == "" {
			continue
		}
		out = append(out, model.Variable{ID: im.id(), Key: v.Key, Value: string(v.Value), Enabled: !v.Disabled})
	}
	return out
}
