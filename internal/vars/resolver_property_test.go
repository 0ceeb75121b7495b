package vars

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/awsm-dev/awsm/internal/fake"
)

func keyGen() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z_][A-Za-z0-9_]{0,12}`)
}

func TestPropertyNoTemplateIsIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Filter(func(s string) bool {
			return !strings.Contains(s, "{{")
		}).Draw(t, "text")
		scope := NewScope(rapid.MapOf(keyGen(), rapid.String()).Draw(t, "scope"))
		if got := Resolve(text, scope, fake.New("en")); got != text {
			t.Fatalf("Resolve(%q) = %q", text, got)
		}
	})
}

func TestPropertyKnownKeySubstitutes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := keyGen().Draw(t, "key")
		value := rapid.String().Filter(func(s string) bool {
			return !strings.Contains(s, "{{")
		}).Draw(t, "value")
		scope := NewScope(map[string]string{key: value})
		want := "a" + value + "b"
		if got := Resolve("a{{"+key+"}}b", scope, nil); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})
}

func TestPropertyUnknownKeyPreserved(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.MapOf(keyGen(), rapid.String()).Draw(t, "scope")
		key := keyGen().Filter(func(k string) bool {
			_, ok := values[k]
			return !ok
		}).Draw(t, "key")
		token := "{{" + key + "}}"
		if got := Resolve(token, NewScope(values), fake.New("en")); got != token {
			t.Fatalf("got %q, want %q", got, token)
		}
	})
}
