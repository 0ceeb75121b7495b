package scripts

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
	"github.com/ohler55/ojg/jp"
	"github.com/xeipuuv/gojsonschema"

	"github.com/awsm-dev/awsm/internal/model"
)

const deepFreezeSource = `(function deepFreeze(o) {
	if (o === null || typeof o !== "object" || Object.isFrozen(o)) {
		return o;
	}
	Object.getOwnPropertyNames(o).forEach(function (k) { deepFreeze(o[k]); });
	return Object.freeze(o);
})`

// frozenView hands the script a recursively frozen plain-object copy of v.
// Writes are silently ignored (or throw in strict mode) and never reach Go.
func frozenView(vm *goja.Runtime, v any) (goja.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return nil, fmt.Errorf("JSON.parse unavailable")
	}
	parsed, err := parse(goja.Undefined(), vm.ToValue(string(data)))
	if err != nil {
		return nil, err
	}
	freezeVal, err := vm.RunString(deepFreezeSource)
	if err != nil {
		return nil, err
	}
	freeze, ok := goja.AssertFunction(freezeVal)
	if !ok {
		return nil, fmt.Errorf("deepFreeze is not callable")
	}
	return freeze(goja.Undefined(), parsed)
}

func responseBody(resp *model.ResponseEnvelope) any {
	if resp == nil {
		return nil
	}
	if resp.Body != nil {
		return resp.Body
	}
	var parsed any
	if err := json.Unmarshal([]byte(resp.RawBody), &parsed); err == nil {
		return parsed
	}
	return resp.RawBody
}

// normalize round-trips exported script values through JSON so ojg and
// gojsonschema only ever see decoded JSON values.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// jsonPath evaluates expr against the given value, or against the response
// body when called with a single argument. It returns every match.
func (s *sandbox) jsonPath(resp *model.ResponseEnvelope) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		expr, err := jp.ParseString(call.Argument(0).String())
		if err != nil {
			panic(s.vm.NewTypeError("invalid json path: " + err.Error()))
		}
		var data any
		if len(call.Arguments) > 1 {
			data, err = normalize(call.Argument(1).Export())
			if err != nil {
				panic(s.vm.NewTypeError(err.Error()))
			}
		} else {
			data = responseBody(resp)
		}
		return s.vm.NewArray(expr.Get(data)...)
	}
}

// validate checks a value (the response body by default) against a JSON
// schema and returns {valid, errors}.
func (s *sandbox) validate(resp *model.ResponseEnvelope) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		schema, err := normalize(call.Argument(0).Export())
		if err != nil {
			panic(s.vm.NewTypeError(err.Error()))
		}
		var doc any
		if len(call.Arguments) > 1 {
			doc, err = normalize(call.Argument(1).Export())
			if err != nil {
				panic(s.vm.NewTypeError(err.Error()))
			}
		} else {
			doc = responseBody(resp)
		}

		out := map[string]any{"valid": false, "errors": []string{}}
		result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(doc))
		if err != nil {
			out["errors"] = []string{err.Error()}
			return s.vm.ToValue(out)
		}
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		out["valid"] = result.Valid()
		out["errors"] = errs
		return s.vm.ToValue(out)
	}
}
