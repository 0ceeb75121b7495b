package scripts

import (
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/dop251/goja"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/fake"
	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/vars"
)

type sandbox struct {
	vm        *goja.Runtime
	variables map[string]string
	logs      []string
	tests     []model.TestResult
	// aborted holds an interrupt that fired inside a test callback.
	aborted error
}

func (s *sandbox) result() Result {
	return Result{
		Variables:   maps.Clone(s.variables),
		Logs:        append([]string(nil), s.logs...),
		TestResults: append([]model.TestResult(nil), s.tests...),
	}
}

func (s *sandbox) bind(in ExecutionContext, gen vars.Generator) error {
	vm := s.vm
	awsm := vm.NewObject()

	set := func(name string, value any) error {
		if err := awsm.Set(name, value); err != nil {
			return errdef.Wrap(errdef.CodeScript, err, "bind %s api", name)
		}
		return nil
	}
	if err := set("variables", s.variablesAPI()); err != nil {
		return err
	}
	if err := set("log", s.log); err != nil {
		return err
	}
	if err := set("test", s.test); err != nil {
		return err
	}
	if err := set("faker", s.fakerAPI(gen)); err != nil {
		return err
	}
	if err := set("jsonPath", s.jsonPath(in.Response)); err != nil {
		return err
	}
	if err := set("validate", s.validate(in.Response)); err != nil {
		return err
	}

	if in.Request != nil {
		view, err := frozenView(vm, in.Request)
		if err != nil {
			return errdef.Wrap(errdef.CodeScript, err, "bind request view")
		}
		if err := set("request", view); err != nil {
			return err
		}
	}
	if in.Response != nil {
		view, err := frozenView(vm, in.Response)
		if err != nil {
			return errdef.Wrap(errdef.CodeScript, err, "bind response view")
		}
		if err := set("response", view); err != nil {
			return err
		}
	}

	if err := vm.Set("awsm", awsm); err != nil {
		return errdef.Wrap(errdef.CodeScript, err, "bind awsm")
	}
	console := map[string]func(goja.FunctionCall) goja.Value{
		"log":   s.log,
		"info":  s.log,
		"warn":  s.log,
		"error": s.log,
	}
	if err := vm.Set("console", console); err != nil {
		return errdef.Wrap(errdef.CodeScript, err, "bind console api")
	}
	return nil
}

func (s *sandbox) variablesAPI() map[string]any {
	return map[string]any{
		"get": func(call goja.FunctionCall) goja.Value {
			value, ok := s.variables[call.Argument(0).String()]
			if !ok {
				return goja.Undefined()
			}
			return s.vm.ToValue(value)
		},
		"set": func(call goja.FunctionCall) goja.Value {
			key := call.Argument(0).String()
			s.variables[key] = call.Argument(1).String()
			return goja.Undefined()
		},
		"has": func(call goja.FunctionCall) goja.Value {
			_, ok := s.variables[call.Argument(0).String()]
			return s.vm.ToValue(ok)
		},
		"unset": func(call goja.FunctionCall) goja.Value {
			delete(s.variables, call.Argument(0).String())
			return goja.Undefined()
		},
		"toObject": func(call goja.FunctionCall) goja.Value {
			obj := s.vm.NewObject()
			for _, key := range slices.Sorted(maps.Keys(s.variables)) {
				_ = obj.Set(key, s.variables[key])
			}
			return obj
		},
	}
}

func (s *sandbox) log(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = arg.String()
	}
	s.logs = append(s.logs, strings.Join(parts, " "))
	return goja.Undefined()
}

// test runs one named callback. The result is recorded whatever the callback
// does, so one failing test never hides the ones declared after it.
func (s *sandbox) test(call goja.FunctionCall) goja.Value {
	result := model.TestResult{Name: call.Argument(0).String(), Status: model.TestPassed}
	defer func() {
		if p := recover(); p != nil {
			result.Status = model.TestFailed
			result.Error = "panic: " + strings.TrimSpace(toString(p))
		}
		s.tests = append(s.tests, result)
	}()

	fn, ok := goja.AssertFunction(call.Argument(1))
	if !ok {
		result.Status = model.TestFailed
		result.Error = "test callback must be a function"
		return goja.Undefined()
	}
	describe := func(c goja.FunctionCall) goja.Value {
		result.Description = c.Argument(0).String()
		return goja.Undefined()
	}
	if _, err := fn(goja.Undefined(), s.vm.ToValue(describe)); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			s.aborted = err
			s.vm.Interrupt(interrupted.Value())
		}
		result.Status = model.TestFailed
		result.Error = errorMessage(err)
	}
	return goja.Undefined()
}

func (s *sandbox) fakerAPI(gen vars.Generator) map[string]any {
	api := make(map[string]any)
	for _, ns := range fake.Namespaces() {
		methods := make(map[string]any)
		for _, method := range fake.Methods(ns) {
			namespace, name := ns, method
			methods[name] = func(call goja.FunctionCall) goja.Value {
				args := fake.Args{}
				if exported, ok := call.Argument(0).Export().(map[string]any); ok {
					args = fake.Args(exported)
				}
				value, err := gen.Call(namespace, name, args)
				if err != nil {
					panic(s.vm.NewTypeError(err.Error()))
				}
				return s.vm.ToValue(value)
			}
		}
		api[ns] = methods
	}
	return api
}

func toString(v any) string {
	switch val := v.(type) {
	case error:
		return val.Error()
	case string:
		return val
	case goja.Value:
		return val.String()
	default:
		return fake.FormatValue(val)
	}
}
