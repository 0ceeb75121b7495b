package scripts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/awsm-dev/awsm/internal/fake"
	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/vars"
)

func TestExecuteEmptyScriptCopiesVariables(t *testing.T) {
	t.Parallel()

	in := map[string]string{"a": "1"}
	res := NewRunner().Execute(context.Background(), "  \n\t", ExecutionContext{Variables: in})
	if res.Error != "" {
		t.Fatalf("unexpected error %q", res.Error)
	}
	if res.Variables["a"] != "1" {
		t.Fatalf("expected variables to be copied, got %#v", res.Variables)
	}
	res.Variables["a"] = "changed"
	if in["a"] != "1" {
		t.Fatalf("result aliases caller map")
	}
}

func TestVariablesSetGetDoNotAlias(t *testing.T) {
	t.Parallel()

	in := map[string]string{"keep": "k", "drop": "d"}
	script := `
awsm.variables.set("x", "1");
awsm.log(awsm.variables.get("x"));
awsm.log(String(awsm.variables.get("missing")));
awsm.log(awsm.variables.has("keep"), awsm.variables.has("nope"));
awsm.variables.unset("drop");
awsm.variables.set("n", 5);
awsm.log(JSON.stringify(awsm.variables.toObject()));
`
	res := NewRunner().Execute(context.Background(), script, ExecutionContext{Variables: in})
	if res.Error != "" {
		t.Fatalf("unexpected error %q", res.Error)
	}
	want := []string{"1", "undefined", "true false", `{"keep":"k","n":"5","x":"1"}`}
	if strings.Join(res.Logs, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected logs %#v", res.Logs)
	}
	if res.Variables["x"] != "1" || res.Variables["n"] != "5" {
		t.Fatalf("unexpected variables %#v", res.Variables)
	}
	if _, ok := res.Variables["drop"]; ok {
		t.Fatalf("unset variable still present")
	}
	if len(in) != 2 || in["drop"] != "d" {
		t.Fatalf("caller scope was mutated: %#v", in)
	}
}

func TestTestIsolation(t *testing.T) {
	t.Parallel()

	script := `
awsm.test("a", () => { throw new Error("boom") });
awsm.test("b", () => {});
awsm.test("c", (describe) => { describe("first"); describe("second"); });
awsm.test("d", () => { throw "plain" });
awsm.test("e", 42);
`
	res := NewRunner().Execute(context.Background(), script, ExecutionContext{})
	if res.Error != "" {
		t.Fatalf("unexpected error %q", res.Error)
	}
	want := []model.TestResult{
		{Name: "a", Status: model.TestFailed, Error: "boom"},
		{Name: "b", Status: model.TestPassed},
		{Name: "c", Status: model.TestPassed, Description: "second"},
		{Name: "d", Status: model.TestFailed, Error: "plain"},
		{Name: "e", Status: model.TestFailed, Error: "test callback must be a function"},
	}
	if len(res.TestResults) != len(want) {
		t.Fatalf("expected %d results, got %#v", len(want), res.TestResults)
	}
	for i := range want {
		if res.TestResults[i] != want[i] {
			t.Fatalf("result %d: got %#v want %#v", i, res.TestResults[i], want[i])
		}
	}
}

func TestTopLevelThrowAborts(t *testing.T) {
	t.Parallel()

	script := `awsm.log("x"); awsm.variables.set("before", "1"); throw new Error("y"); awsm.log("z")`
	res := NewRunner().Execute(context.Background(), script, ExecutionContext{})
	if res.Error != "y" {
		t.Fatalf("expected error y, got %q", res.Error)
	}
	if len(res.Logs) != 1 || res.Logs[0] != "x" {
		t.Fatalf("unexpected logs %#v", res.Logs)
	}
	if res.Variables["before"] != "1" {
		t.Fatalf("partial variables should be returned, got %#v", res.Variables)
	}
	if res.Err() == nil {
		t.Fatalf("expected Err to report the failure")
	}
}

func TestSyntaxErrorIsReported(t *testing.T) {
	t.Parallel()

	res := NewRunner().Execute(context.Background(), "awsm.log(", ExecutionContext{})
	if res.Error == "" {
		t.Fatalf("expected syntax error")
	}
}

func TestRequestViewIsFrozen(t *testing.T) {
	t.Parallel()

	def := &model.RequestDefinition{
		URL:     "https://{{host}}/users",
		Method:  model.MethodPost,
		Headers: []model.KeyValue{{Key: "X-A", Value: "1", Enabled: true}},
	}
	script := `
awsm.request.url = "changed";
awsm.request.headers[0].value = "2";
awsm.log(awsm.request.url, awsm.request.method, awsm.request.headers[0].value);
awsm.log(Object.isFrozen(awsm.request), Object.isFrozen(awsm.request.headers[0]));
awsm.log(typeof awsm.response);
`
	res := NewRunner().Execute(context.Background(), script, ExecutionContext{Request: def})
	if res.Error != "" {
		t.Fatalf("unexpected error %q", res.Error)
	}
	if res.Logs[0] != "https://{{host}}/users POST 1" {
		t.Fatalf("request view was mutable: %q", res.Logs[0])
	}
	if res.Logs[1] != "true true" {
		t.Fatalf("expected frozen views, got %q", res.Logs[1])
	}
	if res.Logs[2] != "undefined" {
		t.Fatalf("response should be undefined before dispatch, got %q", res.Logs[2])
	}
	if def.URL != "https://{{host}}/users" || def.Headers[0].Value != "1" {
		t.Fatalf("definition mutated: %#v", def)
	}
}

func TestResponseViewAndHelpers(t *testing.T) {
	t.Parallel()

	resp := &model.ResponseEnvelope{
		Status:     200,
		StatusText: "OK",
		Headers:    map[string]string{"Content-Type": "application/json"},
		RawBody:    `{"users":[{"name":"ann","age":31},{"name":"bob","age":42}]}`,
	}
	resp.DecodeBody()
	script := `
awsm.test("status", () => { if (awsm.response.status !== 200) throw new Error("bad") });
awsm.log(awsm.response.body.users.length);
awsm.log(JSON.stringify(awsm.jsonPath("$.users[*].name")));
awsm.log(JSON.stringify(awsm.jsonPath("$.a", { a: 7 })));
const schema = { type: "object", required: ["users"], properties: { users: { type: "array" } } };
awsm.log(awsm.validate(schema).valid);
const bad = awsm.validate({ type: "string" }, 5);
awsm.log(bad.valid, bad.errors.length > 0);
`
	res := NewRunner().Execute(context.Background(), script, ExecutionContext{Response: resp})
	if res.Error != "" {
		t.Fatalf("unexpected error %q", res.Error)
	}
	want := []string{"2", `["ann","bob"]`, `[7]`, "true", "false true"}
	if strings.Join(res.Logs, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected logs %#v", res.Logs)
	}
	if len(res.TestResults) != 1 || res.TestResults[0].Status != model.TestPassed {
		t.Fatalf("unexpected test results %#v", res.TestResults)
	}
}

func TestFakerIsBoundToLocale(t *testing.T) {
	t.Parallel()

	var seen string
	runner := NewRunner(WithGenerator(func(locale string) vars.Generator {
		seen = locale
		return fake.New(locale, fake.WithSeed(1))
	}))
	script := `
awsm.log(awsm.faker.string.numeric({ length: 4 }).length);
awsm.log(typeof awsm.faker.person.firstName());
awsm.variables.set("email", awsm.faker.internet.email({ firstName: "Ann", lastName: "Lee", provider: "x.io" }));
`
	res := runner.Execute(context.Background(), script, ExecutionContext{Locale: "de"})
	if res.Error != "" {
		t.Fatalf("unexpected error %q", res.Error)
	}
	if seen != "de" {
		t.Fatalf("generator built for %q", seen)
	}
	if res.Logs[0] != "4" || res.Logs[1] != "string" {
		t.Fatalf("unexpected logs %#v", res.Logs)
	}
	if !strings.HasSuffix(res.Variables["email"], "@x.io") {
		t.Fatalf("unexpected email %q", res.Variables["email"])
	}
}

func TestConsoleMirrorsIntoLogs(t *testing.T) {
	t.Parallel()

	res := NewRunner().Execute(context.Background(), `console.log("a", 1); console.warn({}); console.error(null)`, ExecutionContext{})
	want := []string{"a 1", "[object Object]", "null"}
	if strings.Join(res.Logs, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected logs %#v", res.Logs)
	}
}

func TestNoHostAccess(t *testing.T) {
	t.Parallel()

	script := `awsm.log(typeof require, typeof process, typeof fetch, typeof XMLHttpRequest)`
	res := NewRunner().Execute(context.Background(), script, ExecutionContext{})
	if res.Logs[0] != "undefined undefined undefined undefined" {
		t.Fatalf("host globals exposed: %q", res.Logs[0])
	}
}

func TestTimeoutInterruptsScript(t *testing.T) {
	t.Parallel()

	runner := NewRunner(WithTimeout(50 * time.Millisecond))
	start := time.Now()
	res := runner.Execute(context.Background(), `awsm.log("start"); while (true) {}`, ExecutionContext{})
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout did not interrupt the script")
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Fatalf("expected timeout error, got %q", res.Error)
	}
	if len(res.Logs) != 1 {
		t.Fatalf("expected partial logs, got %#v", res.Logs)
	}
}

func TestTimeoutInsideTestCallbackAbortsScript(t *testing.T) {
	t.Parallel()

	runner := NewRunner(WithTimeout(50 * time.Millisecond))
	res := runner.Execute(context.Background(), `awsm.test("spin", () => { while (true) {} }); awsm.log("after")`, ExecutionContext{})
	if res.Error == "" {
		t.Fatalf("expected the script to abort")
	}
	if len(res.Logs) != 0 {
		t.Fatalf("statements after the interrupt ran: %#v", res.Logs)
	}
	if len(res.TestResults) != 1 || res.TestResults[0].Status != model.TestFailed {
		t.Fatalf("unexpected test results %#v", res.TestResults)
	}
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewRunner().Execute(ctx, `awsm.log("x")`, ExecutionContext{})
	if res.Error == "" {
		t.Fatalf("expected cancellation error")
	}
	if len(res.Logs) != 0 {
		t.Fatalf("script should not run, got %#v", res.Logs)
	}
}
