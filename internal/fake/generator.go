package fake

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Args is the optional single object argument of a generator call, e.g.
// `{ firstName: 'Jeanne' }`.
type Args map[string]any

type Func func(g *Generator, args Args) any

// Generator produces localized fake values. It is safe for concurrent use.
type Generator struct {
	locale string
	data   localeData
	now    func() time.Time

	mu    sync.Mutex
	faker *gofakeit.Faker
}

type Option func(*Generator)

// WithSeed makes every value sequence reproducible.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.faker = gofakeit.New(uint64(seed))
	}
}

// WithClock pins the reference time used by the date namespace.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func New(locale string, opts ...Option) *Generator {
	normalized := NormalizeLocale(locale)
	g := &Generator{
		locale: normalized,
		data:   locales[normalized],
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.faker == nil {
		g.faker = gofakeit.New(uint64(time.Now().UnixNano()))
	}
	return g
}

func (g *Generator) Locale() string {
	return g.locale
}

// Call runs namespace.method. Unknown names are reported as errors so the
// template resolver can leave the token untouched.
func (g *Generator) Call(namespace, method string, args Args) (value any, err error) {
	methods, ok := registry[namespace]
	if !ok {
		return nil, fmt.Errorf("unknown faker namespace %q", namespace)
	}
	fn, ok := methods[method]
	if !ok {
		return nil, fmt.Errorf("unknown faker method %s.%s", namespace, method)
	}
	if args == nil {
		args = Args{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("faker %s.%s: %v", namespace, method, r)
		}
	}()
	return fn(g, args), nil
}

func Namespaces() []string {
	out := make([]string, 0, len(registry))
	for ns := range registry {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

func Methods(namespace string) []string {
	methods := registry[namespace]
	out := make([]string, 0, len(methods))
	for name := range methods {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FormatValue renders a generated value the way it is substituted into text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return isoTime(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func (g *Generator) pick(list []string, fallback func() string) string {
	if len(list) == 0 {
		return fallback()
	}
	return list[g.faker.Number(0, len(list)-1)]
}

func (g *Generator) firstName() string {
	return g.pick(g.data.firstNames, g.faker.FirstName)
}

func (g *Generator) lastName() string {
	return g.pick(g.data.lastNames, g.faker.LastName)
}

func (a Args) String(key, fallback string) string {
	if v, ok := a[key]; ok && v != nil {
		if s := strings.TrimSpace(FormatValue(v)); s != "" {
			return s
		}
	}
	return fallback
}

func (a Args) Int(key string, fallback int) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func (a Args) Float(key string, fallback float64) float64 {
	switch v := a[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func (g *Generator) refDate(args Args) time.Time {
	if raw := args.String("refDate", ""); raw != "" {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
	}
	return g.now()
}

func roundTo(v float64, digits int) float64 {
	if digits < 0 {
		digits = 0
	}
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}
