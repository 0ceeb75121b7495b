package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/awsm-dev/awsm/internal/history"
	"github.com/awsm-dev/awsm/internal/materialize"
	"github.com/awsm-dev/awsm/internal/telemetry"
	"github.com/awsm-dev/awsm/internal/vars"
)

type Option func(*Engine)

func WithScripts(r ScriptRunner) Option {
	return func(e *Engine) {
		if r != nil {
			e.scripts = r
		}
	}
}

func WithHistory(s history.Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.history = s
		}
	}
}

func WithTokens(t TokenSource) Option {
	return func(e *Engine) {
		if t != nil {
			e.tokens = t
		}
	}
}

func WithTelemetry(t telemetry.Instrumenter) Option {
	return func(e *Engine) {
		if t != nil {
			e.telemetry = t
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLocale selects the faker locale for templates and scripts.
func WithLocale(locale string) Option {
	return func(e *Engine) {
		e.locale = locale
	}
}

// WithGenerator replaces the dynamic data source used while materializing.
func WithGenerator(fn func(locale string) vars.Generator) Option {
	return func(e *Engine) {
		if fn != nil {
			e.generator = fn
		}
	}
}

// WithPersistScriptVariables controls whether variables changed by scripts
// are written back to the variable store after a send.
func WithPersistScriptVariables(on bool) Option {
	return func(e *Engine) {
		e.persistVars = on
	}
}

func WithMaterializeOptions(opts materialize.Options) Option {
	return func(e *Engine) {
		e.materializeOpts = opts
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithIDs(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithPhaseHook observes every phase a send enters.
func WithPhaseHook(fn func(requestID string, phase Phase)) Option {
	return func(e *Engine) {
		e.onPhase = fn
	}
}
