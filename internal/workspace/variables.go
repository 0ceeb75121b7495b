package workspace

import (
	"slices"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/vars"
)

// VarState is an immutable view of globals and environments. Callers must
// not modify it; every change goes through VariableStore and swaps in a new
// state.
type VarState struct {
	Globals      []model.Variable
	Environments []model.Environment
	ActiveID     string
}

// Active returns the active environment, or nil when none is selected.
func (s *VarState) Active() *model.Environment {
	if s == nil || s.ActiveID == "" {
		return nil
	}
	for i := range s.Environments {
		if s.Environments[i].ID == s.ActiveID {
			return &s.Environments[i]
		}
	}
	return nil
}

// Scope flattens globals under the active environment.
func (s *VarState) Scope() *vars.Scope {
	if s == nil {
		return vars.NewScope()
	}
	return vars.ScopeFor(s.Globals, s.Active())
}

func (s *VarState) clone() *VarState {
	out := &VarState{
		Globals:      slices.Clone(s.Globals),
		Environments: make([]model.Environment, len(s.Environments)),
		ActiveID:     s.ActiveID,
	}
	for i, env := range s.Environments {
		env.Variables = slices.Clone(env.Variables)
		out.Environments[i] = env
	}
	return out
}

func (s *VarState) envIndex(id string) int {
	for i := range s.Environments {
		if s.Environments[i].ID == id {
			return i
		}
	}
	return -1
}

// VariableStore is read-mostly: readers take a snapshot without locking and
// writers swap in a modified copy with compare-and-swap.
type VariableStore struct {
	state atomic.Pointer[VarState]
	newID func() string
}

func newVariableStore(initial *VarState, newID func() string) *VariableStore {
	vs := &VariableStore{newID: newID}
	if initial == nil {
		initial = &VarState{}
	}
	vs.state.Store(initial)
	return vs
}

func (vs *VariableStore) Snapshot() *VarState {
	return vs.state.Load()
}

func (vs *VariableStore) update(fn func(*VarState) error) error {
	for {
		cur := vs.state.Load()
		next := cur.clone()
		if err := fn(next); err != nil {
			return err
		}
		if vs.state.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Commit writes script changes into the active environment, or into globals
// when no environment is active. Existing keys are updated and re-enabled,
// new keys are appended, removed keys are dropped from the target.
func (vs *VariableStore) Commit(changed map[string]string, removed []string) error {
	if len(changed) == 0 && len(removed) == 0 {
		return nil
	}
	return vs.update(func(s *VarState) error {
		target := &s.Globals
		if idx := s.envIndex(s.ActiveID); idx >= 0 {
			target = &s.Environments[idx].Variables
		}
		*target = vs.apply(*target, changed, removed)
		return nil
	})
}

func (vs *VariableStore) apply(list []model.Variable, changed map[string]string, removed []string) []model.Variable {
	keys := make([]string, 0, len(changed))
	for k := range changed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := changed[key]
		found := false
		for i := range list {
			if list[i].Key == key {
				list[i].Value = value
				list[i].Enabled = true
				found = true
			}
		}
		if !found {
			list = append(list, model.Variable{ID: vs.newID(), Key: key, Value: value, Enabled: true})
		}
	}
	if len(removed) > 0 {
		list = slices.DeleteFunc(list, func(v model.Variable) bool {
			return slices.Contains(removed, v.Key)
		})
	}
	return list
}

func (vs *VariableStore) SetGlobals(list []model.Variable) {
	_ = vs.update(func(s *VarState) error {
		s.Globals = slices.Clone(list)
		return nil
	})
}

// AddEnvironment appends env, assigning an id when it has none.
func (vs *VariableStore) AddEnvironment(env model.Environment) model.Environment {
	if env.ID == "" {
		env.ID = vs.newID()
	}
	env.Variables = slices.Clone(env.Variables)
	_ = vs.update(func(s *VarState) error {
		s.Environments = append(s.Environments, env)
		return nil
	})
	return env
}

// CreateEnvironment adds an empty environment named name.
func (vs *VariableStore) CreateEnvironment(name string) (model.Environment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Environment{}, errdef.New(errdef.CodeValidation, "environment name is required")
	}
	return vs.AddEnvironment(model.Environment{Name: name, Variables: []model.Variable{}}), nil
}

func (vs *VariableStore) UpdateEnvironment(id, name string, list []model.Variable) error {
	return vs.update(func(s *VarState) error {
		idx := s.envIndex(id)
		if idx < 0 {
			return errdef.New(errdef.CodeValidation, "environment %q not found", id)
		}
		if strings.TrimSpace(name) != "" {
			s.Environments[idx].Name = name
		}
		s.Environments[idx].Variables = slices.Clone(list)
		return nil
	})
}

// DeleteEnvironment removes id and clears the active selection if it
// pointed there.
func (vs *VariableStore) DeleteEnvironment(id string) error {
	return vs.update(func(s *VarState) error {
		idx := s.envIndex(id)
		if idx < 0 {
			return errdef.New(errdef.CodeValidation, "environment %q not found", id)
		}
		s.Environments = slices.Delete(s.Environments, idx, idx+1)
		if s.ActiveID == id {
			s.ActiveID = ""
		}
		return nil
	})
}

// SetActive selects the active environment; an empty id clears it.
func (vs *VariableStore) SetActive(id string) error {
	return vs.update(func(s *VarState) error {
		if id != "" && s.envIndex(id) < 0 {
			return errdef.New(errdef.CodeValidation, "environment %q not found", id)
		}
		s.ActiveID = id
		return nil
	})
}

// Find looks an environment up by id, then by case-insensitive name.
func (vs *VariableStore) Find(ref string) (model.Environment, bool) {
	s := vs.Snapshot()
	for _, env := range s.Environments {
		if env.ID == ref {
			return env, true
		}
	}
	for _, env := range s.Environments {
		if strings.EqualFold(env.Name, ref) {
			return env, true
		}
	}
	return model.Environment{}, false
}

// LoadDotEnv reads a dotenv file into a new environment. A non-empty name
// overrides the one derived from the file.
func (vs *VariableStore) LoadDotEnv(path, name string) (model.Environment, error) {
	env, err := vars.LoadDotEnv(path, vs.newID)
	if err != nil {
		return model.Environment{}, err
	}
	if strings.TrimSpace(name) != "" {
		env.Name = strings.TrimSpace(name)
	}
	return vs.AddEnvironment(*env), nil
}
