package vars

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/awsm-dev/awsm/internal/fake"
	"github.com/awsm-dev/awsm/internal/model"
)

type stubGenerator struct {
	calls []string
	args  []fake.Args
}

func (g *stubGenerator) Call(namespace, method string, args fake.Args) (any, error) {
	g.calls = append(g.calls, namespace+"."+method)
	g.args = append(g.args, args)
	switch namespace + "." + method {
	case "person.firstName":
		return "Jeanne", nil
	case "number.int":
		return 42, nil
	case "number.float":
		return 1.25, nil
	case "internet.email":
		return args.String("firstName", "x") + "@example.com", nil
	}
	return nil, errors.New("unknown")
}

func TestExpandTemplatesPlainKeys(t *testing.T) {
	t.Parallel()

	scope := NewScope(map[string]string{
		"base":  "http://localhost:8080",
		"token": "abc123",
	})
	out := Resolve("{{base}}/api?token={{ token }}", scope, nil)
	if out != "http://localhost:8080/api?token=abc123" {
		t.Fatalf("unexpected expansion %q", out)
	}
}

func TestExpandTemplatesPreservesUnknownTokens(t *testing.T) {
	t.Parallel()

	scope := NewScope(map[string]string{"known": "v"})
	cases := map[string]string{
		"{{missing}}":             "{{missing}}",
		"a{{ missing }}b":         "a{{ missing }}b",
		"{{known}}/{{missing}}":   "v/{{missing}}",
		"{{":                      "{{",
		"open {{known":            "open {{known",
		"{{}}":                    "{{}}",
		"{{KNOWN}}":               "{{KNOWN}}",
		"{{nope.method()}}":       "{{nope.method()}}",
		"{{person.firstName(}}":   "{{person.firstName(}}",
		"{{person.firstName([])}}": "{{person.firstName([])}}",
	}
	for input, want := range cases {
		if got := Resolve(input, scope, &stubGenerator{}); got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestExpandTemplatesLazyMatch(t *testing.T) {
	t.Parallel()

	scope := NewScope(map[string]string{"a": "1", "b": "2"})
	if got := Resolve("{{a}}{{b}}", scope, nil); got != "12" {
		t.Fatalf("expected tokens to close at the first braces, got %q", got)
	}
}

func TestExpandTemplatesGeneratorCalls(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{}
	scope := NewScope(nil)
	cases := map[string]string{
		"{{person.firstName()}}":                                 "Jeanne",
		"{{ faker.person.firstName() }}":                         "Jeanne",
		"{{number.int({ min: 1, max: 100 })}}":                   "42",
		"{{number.float()}}":                                     "1.25",
		"{{internet.email({ firstName: 'Jeanne' })}}":            "Jeanne@example.com",
		`{{internet.email({ "firstName": "Jeanne", n: 10 })}}`:   "Jeanne@example.com",
	}
	for input, want := range cases {
		if got := Resolve(input, scope, gen); got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", input, got, want)
		}
	}
	last := gen.args[len(gen.args)-1]
	if last.Int("n", 0) != 10 {
		t.Fatalf("expected numeric argument to decode, got %#v", last)
	}
}

func TestScopeKeyWinsOverGeneratorCall(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{}
	scope := NewScope(map[string]string{"person.firstName()": "literal"})
	if got := Resolve("{{person.firstName()}}", scope, gen); got != "literal" {
		t.Fatalf("expected scope value, got %q", got)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("generator should not be called, got %v", gen.calls)
	}
}

func TestResolveWithRealGenerator(t *testing.T) {
	t.Parallel()

	gen := fake.New("en", fake.WithSeed(11))
	out := Resolve("{{string.numeric({ length: 5 })}}", NewScope(nil), gen)
	if len(out) != 5 {
		t.Fatalf("expected five digits, got %q", out)
	}
}

func TestParseCall(t *testing.T) {
	t.Parallel()

	ns, method, args, ok := ParseCall("faker.date.past({ years: 10, refDate: '2020-01-01' })")
	if !ok {
		t.Fatalf("expected call to parse")
	}
	if ns != "date" || method != "past" {
		t.Fatalf("unexpected call %s.%s", ns, method)
	}
	if args.Int("years", 0) != 10 || args.String("refDate", "") != "2020-01-01" {
		t.Fatalf("unexpected args %#v", args)
	}

	for _, bad := range []string{"person", "person.firstName", "a.b.c()", "x.y(1, 2)", "x.y({ broken: )"} {
		if _, _, _, ok := ParseCall(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestScopeFor(t *testing.T) {
	t.Parallel()

	globals := []model.Variable{
		{Key: "host", Value: "global", Enabled: true},
		{Key: "only", Value: "g", Enabled: true},
		{Key: "off", Value: "x", Enabled: false},
	}
	env := &model.Environment{Variables: []model.Variable{
		{Key: "host", Value: "env", Enabled: true},
		{Key: "only", Value: "disabled", Enabled: false},
	}}
	scope := ScopeFor(globals, env)
	if v, _ := scope.Resolve("host"); v != "env" {
		t.Fatalf("environment should override globals, got %q", v)
	}
	if v, _ := scope.Resolve("only"); v != "g" {
		t.Fatalf("disabled env entry must not shadow global, got %q", v)
	}
	if _, ok := scope.Resolve("off"); ok {
		t.Fatalf("disabled variable leaked into scope")
	}
	if got := Resolve("{{off}}", scope, nil); got != "{{off}}" {
		t.Fatalf("disabled variable should resolve as absent, got %q", got)
	}
}

func TestScopeWithDoesNotAlias(t *testing.T) {
	t.Parallel()

	base := NewScope(map[string]string{"a": "1"})
	next := base.With(map[string]string{"a": "2", "b": "3"})
	if v, _ := base.Resolve("a"); v != "1" {
		t.Fatalf("base scope mutated: %q", v)
	}
	if v, _ := next.Resolve("a"); v != "2" {
		t.Fatalf("override missing: %q", v)
	}
	values := next.Values()
	values["a"] = "mutated"
	if v, _ := next.Resolve("a"); v != "2" {
		t.Fatalf("Values leaked internal map")
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	changed, removed := Diff(
		map[string]string{"a": "1", "b": "2", "c": "3"},
		map[string]string{"a": "1", "b": "20", "d": "4"},
	)
	if len(changed) != 2 || changed["b"] != "20" || changed["d"] != "4" {
		t.Fatalf("unexpected changed set %#v", changed)
	}
	if len(removed) != 1 || removed[0] != "c" {
		t.Fatalf("unexpected removed set %#v", removed)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".env.staging")
	content := "# comment\nBASE_URL=https://staging.example\nTOKEN=\"abc 123\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	n := 0
	env, err := LoadDotEnv(path, func() string { n++; return "id" + string(rune('0'+n)) })
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if env.Name != "staging" {
		t.Fatalf("expected name from file, got %q", env.Name)
	}
	values := env.Values()
	if values["BASE_URL"] != "https://staging.example" || values["TOKEN"] != "abc 123" {
		t.Fatalf("unexpected values %#v", values)
	}
	if len(env.Variables) != 2 || env.Variables[0].Key != "BASE_URL" {
		t.Fatalf("expected sorted variables, got %#v", env.Variables)
	}
}

func TestLoadDotEnvWorkspaceKeyNamesEnvironment(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "local.env")
	if err := os.WriteFile(path, []byte("workspace=dev\nA=1\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	env, err := LoadDotEnv(path, func() string { return "x" })
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if env.Name != "dev" {
		t.Fatalf("expected workspace key to name env, got %q", env.Name)
	}
	if _, ok := env.Values()["workspace"]; ok {
		t.Fatalf("workspace key should not become a variable")
	}
}

func TestIsDotEnvPath(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]bool{
		".env":          true,
		".env.prod":     true,
		"dev.env":       true,
		"env.json":      false,
		"settings.toml": false,
	} {
		if got := IsDotEnvPath(path); got != want {
			t.Fatalf("IsDotEnvPath(%q) = %v, want %v", path, got, want)
		}
	}
}
