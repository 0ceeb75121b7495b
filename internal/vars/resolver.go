package vars

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/awsm-dev/awsm/internal/fake"
)

type Provider interface {
	Resolve(name string) (string, bool)
	Label() string
}

// Generator evaluates namespace.method calls found inside templates.
type Generator interface {
	Call(namespace, method string, args fake.Args) (any, error)
}

type Resolver struct {
	providers []Provider
	gen       Generator
}

// NewResolver looks names up in providers in order; the first hit wins.
func NewResolver(gen Generator, providers ...Provider) *Resolver {
	return &Resolver{providers: providers, gen: gen}
}

func (r *Resolver) Resolve(name string) (string, bool) {
	for _, provider := range r.providers {
		if provider == nil {
			continue
		}
		if value, ok := provider.Resolve(name); ok {
			return value, true
		}
	}
	return "", false
}

var (
	templateVarPattern = regexp.MustCompile(`\{\{(.+?)\}\}`)
	callPattern        = regexp.MustCompile(`^([A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)+)\s*\((.*)\)$`)
)

// ExpandTemplates substitutes every {{...}} token. It never fails: unknown
// names, malformed calls and generator errors leave the token as written.
func (r *Resolver) ExpandTemplates(input string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return templateVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if name == "" {
			return match
		}
		if value, ok := r.Resolve(name); ok {
			return value
		}
		if value, ok := r.call(name); ok {
			return value
		}
		return match
	})
}

// Resolve expands text against scope, using gen for generator calls.
func Resolve(text string, scope Provider, gen Generator) string {
	return NewResolver(gen, scope).ExpandTemplates(text)
}

func (r *Resolver) call(expr string) (string, bool) {
	if r.gen == nil {
		return "", false
	}
	namespace, method, args, ok := ParseCall(expr)
	if !ok {
		return "", false
	}
	value, err := r.gen.Call(namespace, method, args)
	if err != nil {
		return "", false
	}
	return fake.FormatValue(value), true
}

// ParseCall splits `[faker.]namespace.method(args?)`. The optional argument
// is an object literal, parsed as a YAML flow mapping so unquoted keys and
// either quote style work.
func ParseCall(expr string) (namespace, method string, args fake.Args, ok bool) {
	sub := callPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if sub == nil {
		return "", "", nil, false
	}
	path := strings.Split(sub[1], ".")
	if len(path) == 3 && path[0] == "faker" {
		path = path[1:]
	}
	if len(path) != 2 {
		return "", "", nil, false
	}
	rawArgs := strings.TrimSpace(sub[2])
	if rawArgs == "" {
		return path[0], path[1], fake.Args{}, true
	}
	if !strings.HasPrefix(rawArgs, "{") || !strings.HasSuffix(rawArgs, "}") {
		return "", "", nil, false
	}
	var decoded map[string]any
	if err := yaml.Unmarshal([]byte(rawArgs), &decoded); err != nil {
		return "", "", nil, false
	}
	if decoded == nil {
		decoded = map[string]any{}
	}
	return path[0], path[1], fake.Args(decoded), true
}
