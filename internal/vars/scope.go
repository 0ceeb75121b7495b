package vars

import (
	"maps"

	"github.com/awsm-dev/awsm/internal/model"
)

// MapProvider serves a fixed set of variables. Keys are case-sensitive.
type MapProvider struct {
	values map[string]string
	label  string
}

func NewMapProvider(label string, values map[string]string) *MapProvider {
	return &MapProvider{values: maps.Clone(values), label: label}
}

func (p *MapProvider) Resolve(name string) (string, bool) {
	value, ok := p.values[name]
	return value, ok
}

func (p *MapProvider) Label() string {
	return p.label
}

func (p *MapProvider) Values() map[string]string {
	return maps.Clone(p.values)
}

// Scope is the flattened variable view a single send works with. Layers are
// applied low to high precedence: globals, the active environment, then
// script mutations.
type Scope struct {
	values map[string]string
}

func NewScope(layers ...map[string]string) *Scope {
	values := make(map[string]string)
	for _, layer := range layers {
		maps.Copy(values, layer)
	}
	return &Scope{values: values}
}

// ScopeFor builds a scope from globals and an optional environment. Disabled
// variables never enter the scope.
func ScopeFor(globals []model.Variable, env *model.Environment) *Scope {
	layers := []map[string]string{model.EnabledValues(globals)}
	if env != nil {
		layers = append(layers, env.Values())
	}
	return NewScope(layers...)
}

func (s *Scope) Resolve(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	value, ok := s.values[name]
	return value, ok
}

func (s *Scope) Label() string {
	return "scope"
}

// With returns a new scope with overrides layered on top.
func (s *Scope) With(overrides map[string]string) *Scope {
	return NewScope(s.Values(), overrides)
}

func (s *Scope) Values() map[string]string {
	if s == nil {
		return map[string]string{}
	}
	return maps.Clone(s.values)
}

func (s *Scope) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Diff reports keys whose value in next differs from base, and keys present
// in base but removed from next.
func Diff(base, next map[string]string) (changed map[string]string, removed []string) {
	changed = make(map[string]string)
	for k, v := range next {
		if old, ok := base[k]; !ok || old != v {
			changed[k] = v
		}
	}
	for k := range base {
		if _, ok := next[k]; !ok {
			removed = append(removed, k)
		}
	}
	return changed, removed
}
