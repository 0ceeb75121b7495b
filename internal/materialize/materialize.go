package materialize

import (
	"bytes"
	"encoding/base64"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/vars"
)

type Options struct {
	FS      FileSystem
	BaseDir string
	// Boundary pins the multipart boundary; a random one is used when empty.
	Boundary string
}

// Materialize resolves every template in def against scope and produces the
// request that goes on the wire. def is not modified.
func Materialize(
	def model.RequestDefinition,
	scope vars.Provider,
	gen vars.Generator,
	opts Options,
) (*model.ConcreteRequest, error) {
	if opts.FS == nil {
		opts.FS = OSFileSystem{}
	}
	r := vars.NewResolver(gen, scope)
	method := model.ParseMethod(string(def.Method))
	req := &model.ConcreteRequest{
		Method: method,
		URL:    r.ExpandTemplates(strings.TrimSpace(def.URL)),
	}

	for _, h := range def.Headers {
		if !h.Enabled {
			continue
		}
		key := strings.TrimSpace(r.ExpandTemplates(h.Key))
		if key == "" {
			continue
		}
		req.SetHeader(key, r.ExpandTemplates(h.Value))
	}

	for _, p := range def.Params {
		if !p.Enabled {
			continue
		}
		key := r.ExpandTemplates(p.Key)
		if strings.TrimSpace(key) == "" {
			continue
		}
		req.URL = appendQuery(req.URL, EncodeComponent(key), EncodeComponent(r.ExpandTemplates(p.Value)))
	}

	applyAuth(req, def.Auth.Get(), r)

	if method != model.MethodGet && def.Body.EffectiveKind() != model.BodyNone {
		if err := applyBody(req, def.Body, r, opts); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func applyAuth(req *model.ConcreteRequest, auth model.Auth, r *vars.Resolver) {
	switch a := auth.(type) {
	case model.BasicAuth:
		user, pass := r.ExpandTemplates(a.Username), r.ExpandTemplates(a.Password)
		if user != "" || pass != "" {
			token := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
			req.SetHeader("Authorization", "Basic "+token)
		}
	case model.BearerAuth:
		if token := r.ExpandTemplates(a.Token); token != "" {
			req.SetHeader("Authorization", "Bearer "+token)
		}
	case model.OAuth2Auth:
		if token := r.ExpandTemplates(a.Token); token != "" {
			req.SetHeader("Authorization", "Bearer "+token)
		}
	case model.APIKeyAuth:
		key, value := r.ExpandTemplates(a.Key), r.ExpandTemplates(a.Value)
		if key == "" || value == "" {
			return
		}
		if a.AddTo == model.APIKeyInQuery {
			req.URL = appendQuery(req.URL, key, EncodeComponent(value))
			return
		}
		req.SetHeader(key, value)
	}
}

func appendQuery(rawURL, key, value string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + key + "=" + value
}

// EncodeComponent escapes s the way encodeURIComponent does in browsers:
// spaces become %20 and !'()* stay literal.
func EncodeComponent(s string) string {
	escaped := url.QueryEscape(s)
	return componentReplacer.Replace(escaped)
}

var componentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func applyBody(req *model.ConcreteRequest, body model.Body, r *vars.Resolver, opts Options) error {
	kind := body.EffectiveKind()
	var payload, contentType string

	switch {
	case kind == model.BodyBinary:
		payload = body.Content
		contentType = "application/octet-stream"
	case kind.IsRaw():
		payload = r.ExpandTemplates(body.Content)
		contentType = defaultContentType(kind)
	case kind == model.BodyFormURLEncoded:
		parts := make([]string, 0, len(body.FormURLEncoded))
		for _, kv := range body.FormURLEncoded {
			if !kv.Enabled || strings.TrimSpace(kv.Key) == "" {
				continue
			}
			parts = append(parts, url.QueryEscape(r.ExpandTemplates(kv.Key))+"="+url.QueryEscape(r.ExpandTemplates(kv.Value)))
		}
		payload = strings.Join(parts, "&")
		contentType = "application/x-www-form-urlencoded"
	case kind == model.BodyFormData:
		data, ct, err := buildMultipart(body.FormData, r, opts)
		if err != nil {
			return err
		}
		payload = data
		contentType = ct
	default:
		return errdef.New(errdef.CodeValidation, "unsupported body type %q", kind)
	}

	req.Body = &payload
	if _, ok := req.Header("Content-Type"); !ok && contentType != "" {
		req.SetHeader("Content-Type", contentType)
	}
	return nil
}

func defaultContentType(kind model.BodyKind) string {
	switch kind {
	case model.BodyJSON:
		return "application/json"
	case model.BodyXML:
		return "application/xml"
	case model.BodyHTML:
		return "text/html"
	case model.BodyText:
		return "text/plain"
	default:
		return ""
	}
}

func buildMultipart(items []model.FormDataItem, r *vars.Resolver, opts Options) (string, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if opts.Boundary != "" {
		if err := w.SetBoundary(opts.Boundary); err != nil {
			return "", "", errdef.Wrap(errdef.CodeValidation, err, "multipart boundary")
		}
	}
	for _, item := range items {
		if !item.Enabled || strings.TrimSpace(item.Key) == "" {
			continue
		}
		key := r.ExpandTemplates(item.Key)
		if item.Type == model.FormItemFile {
			path := r.ExpandTemplates(item.Value)
			data, err := readFile(opts.FS, path, opts.BaseDir)
			if err != nil {
				return "", "", err
			}
			part, err := w.CreateFormFile(key, filepath.Base(path))
			if err != nil {
				return "", "", errdef.Wrap(errdef.CodeValidation, err, "multipart file %s", key)
			}
			if _, err := part.Write(data); err != nil {
				return "", "", errdef.Wrap(errdef.CodeValidation, err, "multipart file %s", key)
			}
			continue
		}
		if err := w.WriteField(key, r.ExpandTemplates(item.Value)); err != nil {
			return "", "", errdef.Wrap(errdef.CodeValidation, err, "multipart field %s", key)
		}
	}
	if err := w.Close(); err != nil {
		return "", "", errdef.Wrap(errdef.CodeValidation, err, "close multipart body")
	}
	return buf.String(), w.FormDataContentType(), nil
}
