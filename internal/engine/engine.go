// Package engine runs a stored request through scripts, materialization and
// dispatch and reconciles the outcome into the response cache, history and
// variable store.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/fake"
	"github.com/awsm-dev/awsm/internal/history"
	"github.com/awsm-dev/awsm/internal/materialize"
	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/oauth"
	"github.com/awsm-dev/awsm/internal/scripts"
	"github.com/awsm-dev/awsm/internal/telemetry"
	"github.com/awsm-dev/awsm/internal/vars"
	"github.com/awsm-dev/awsm/internal/workspace"
)

type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhasePreScript     Phase = "pre-script"
	PhaseMaterializing Phase = "materializing"
	PhaseDispatching   Phase = "dispatching"
	PhaseTestScript    Phase = "test-script"
	PhaseReconciling   Phase = "reconciling"
	PhaseDone          Phase = "done"
	PhaseErrored       Phase = "errored"
)

type Dispatcher interface {
	Send(ctx context.Context, req *model.ConcreteRequest) model.ResponseEnvelope
}

type ScriptRunner interface {
	Execute(ctx context.Context, source string, in scripts.ExecutionContext) scripts.Result
}

type TokenSource interface {
	Token(ctx context.Context, cfg oauth.Config) (oauth.Token, error)
}

// VariableSource is the shared variable store. Snapshot must return an
// immutable view; Commit must apply its changes atomically.
type VariableSource interface {
	Snapshot() *workspace.VarState
	Commit(changed map[string]string, removed []string) error
}

// Engine is safe for concurrent sends. Sends share only the variable store
// and the per-request response slots.
type Engine struct {
	dispatcher Dispatcher
	variables  VariableSource
	scripts    ScriptRunner
	history    history.Store
	tokens     TokenSource
	telemetry  telemetry.Instrumenter
	logger     *zap.Logger
	generator  func(locale string) vars.Generator

	locale          string
	persistVars     bool
	materializeOpts materialize.Options
	now             func() time.Time
	newID           func() string
	onPhase         func(string, Phase)

	mu        sync.Mutex
	responses map[string]model.ResponseEnvelope
	latest    map[string]uint64
}

func New(dispatcher Dispatcher, variables VariableSource, opts ...Option) *Engine {
	e := &Engine{
		dispatcher: dispatcher,
		variables:  variables,
		scripts:    scripts.NewRunner(),
		history:    history.NewMemoryStore(history.DefaultLimit),
		tokens:     oauth.NewManager(nil),
		telemetry:  telemetry.Noop(),
		logger:     zap.NewNop(),
		generator: func(locale string) vars.Generator {
			return fake.New(locale)
		},
		locale:      fake.DefaultLocale,
		persistVars: true,
		now:         time.Now,
		newID:       uuid.NewString,
		responses:   make(map[string]model.ResponseEnvelope),
		latest:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome reports everything one send produced. Errors are values here;
// Send itself never fails or panics.
type Outcome struct {
	RequestID string
	Sequence  uint64
	// Phase is PhaseDone when the request was dispatched and PhaseErrored
	// when the send stopped before dispatch.
	Phase       Phase
	Request     *model.ConcreteRequest
	Response    *model.ResponseEnvelope
	TestResults []model.TestResult
	Logs        []string
	Variables   map[string]string
	History     *model.HistoryEntry
	// Stale is set when a newer send for the same request id started before
	// this one finished; the response slot was left to the newer send.
	Stale bool

	PreScriptError  error
	TestScriptError error
	// Err carries validation, materialization, token and history failures.
	Err error
}

func (o Outcome) Dispatched() bool {
	return o.Response != nil
}

func (o Outcome) TestsPassed() (passed, failed int) {
	for _, r := range o.TestResults {
		if r.Status == model.TestPassed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// Send runs def for requestID through every phase.
func (e *Engine) Send(ctx context.Context, requestID string, def model.RequestDefinition) (out Outcome) {
	if ctx == nil {
		ctx = context.Background()
	}
	seq := e.nextSequence(requestID)
	out = Outcome{RequestID: requestID, Sequence: seq, Phase: PhaseIdle}

	ctx, span := e.telemetry.StartSend(ctx, telemetry.SendStart{
		RequestID: requestID,
		Method:    string(def.Method),
		URL:       def.URL,
	})
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("send panicked", zap.String("request", requestID), zap.Any("panic", p))
			out.Err = errdef.New(errdef.CodeUnknown, "send panicked: %v", p)
			out.Phase = PhaseErrored
		}
		result := telemetry.SendResult{Err: firstErr(out.Err, out.PreScriptError, out.TestScriptError)}
		if out.Response != nil {
			result.StatusCode = out.Response.Status
		}
		result.TestsPassed, result.TestsFailed = out.TestsPassed()
		span.End(result)
	}()

	enter := func(p Phase) {
		out.Phase = p
		span.Phase(string(p))
		e.logger.Debug("send phase", zap.String("request", requestID), zap.Uint64("seq", seq), zap.String("phase", string(p)))
		if e.onPhase != nil {
			e.onPhase(requestID, p)
		}
	}
	fail := func(err error) Outcome {
		out.Err = err
		enter(PhaseErrored)
		return out
	}

	def = def.Clone()
	def.Method = model.ParseMethod(string(def.Method))
	if err := validate(def); err != nil {
		return fail(err)
	}

	// Idle: snapshot globals and the active environment.
	state := e.snapshot()
	base := state.Scope().Values()
	locale := fake.NormalizeLocale(e.locale)

	enter(PhasePreScript)
	pre := e.scripts.Execute(ctx, def.PreRequestScript, scripts.ExecutionContext{
		Variables: base,
		Request:   &def,
		Locale:    locale,
	})
	out.Logs = append(out.Logs, pre.Logs...)
	if err := pre.Err(); err != nil {
		out.PreScriptError = err
		out.Variables = pre.Variables
		e.logger.Warn("pre-request script failed", zap.String("request", requestID), zap.Error(err))
		enter(PhaseErrored)
		return out
	}
	// The pre-script result holds the complete variable map, deletions
	// included, so it replaces the snapshot outright.
	merged := vars.NewScope(pre.Variables)

	enter(PhaseMaterializing)
	if err := e.applyOAuth(ctx, &def, merged, locale); err != nil {
		e.logger.Warn("oauth2 token acquisition failed", zap.String("request", requestID), zap.Error(err))
		return fail(err)
	}
	req, err := materialize.Materialize(def, merged, e.generator(locale), e.materializeOpts)
	if err != nil {
		return fail(errdef.Wrap(errdef.CodeValidation, err, "materialize request"))
	}
	if strings.TrimSpace(req.URL) == "" {
		return fail(errdef.New(errdef.CodeValidation, "request URL resolved to an empty string"))
	}
	out.Request = req

	enter(PhaseDispatching)
	envelope := e.dispatcher.Send(ctx, req)
	envelope.DecodeBody()
	envelope.TestResults = nil
	if envelope.Failed() {
		e.logger.Warn("transport failure", zap.String("request", requestID), zap.String("error", envelope.RawBody))
	}
	out.Stale = !e.storeResponse(requestID, seq, envelope)

	enter(PhaseTestScript)
	respView := envelope.Clone()
	test := e.scripts.Execute(ctx, def.TestScript, scripts.ExecutionContext{
		Variables: merged.Values(),
		Request:   &def,
		Response:  &respView,
		Locale:    locale,
	})
	out.Logs = append(out.Logs, test.Logs...)
	out.TestResults = test.TestResults
	out.Variables = test.Variables
	if err := test.Err(); err != nil {
		out.TestScriptError = err
		e.logger.Warn("test script failed", zap.String("request", requestID), zap.Error(err))
	}

	enter(PhaseReconciling)
	envelope.TestResults = append([]model.TestResult(nil), test.TestResults...)
	if !out.Stale {
		out.Stale = !e.storeResponse(requestID, seq, envelope)
	}
	final := envelope.Clone()
	out.Response = &final

	entry := model.HistoryEntry{
		ID:         e.newID(),
		RequestID:  requestID,
		Method:     string(req.Method),
		URL:        req.URL,
		Timestamp:  e.now().UnixMilli(),
		Status:     envelope.Status,
		StatusText: envelope.StatusText,
		Duration:   envelope.Time,
		Size:       envelope.Size,
		Response:   &final,
	}
	if err := e.history.Append(entry); err != nil {
		e.logger.Warn("history append failed", zap.String("request", requestID), zap.Error(err))
		out.Err = errdef.Wrap(errdef.CodeHistory, err, "record history")
	} else {
		out.History = &entry
	}

	if e.persistVars && e.variables != nil {
		changed, removed := vars.Diff(base, test.Variables)
		if err := e.variables.Commit(changed, removed); err != nil {
			e.logger.Warn("variable commit failed", zap.String("request", requestID), zap.Error(err))
			if out.Err == nil {
				out.Err = err
			}
		}
	}

	enter(PhaseDone)
	return out
}

// Response returns the latest envelope stored for requestID.
func (e *Engine) Response(requestID string) (model.ResponseEnvelope, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, ok := e.responses[requestID]
	if !ok {
		return model.ResponseEnvelope{}, false
	}
	return env.Clone(), true
}

// SetResponse stores env for requestID, for example when a request is
// restored from history.
func (e *Engine) SetResponse(requestID string, env model.ResponseEnvelope) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[requestID] = env.Clone()
}

func (e *Engine) ClearResponse(requestID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.responses, requestID)
}

func (e *Engine) History() history.Store {
	return e.history
}

func (e *Engine) nextSequence(requestID string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latest[requestID]++
	return e.latest[requestID]
}

// storeResponse writes env unless a newer send for requestID has started.
func (e *Engine) storeResponse(requestID string, seq uint64, env model.ResponseEnvelope) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest[requestID] != seq {
		return false
	}
	e.responses[requestID] = env.Clone()
	return true
}

func (e *Engine) snapshot() *workspace.VarState {
	if e.variables == nil {
		return &workspace.VarState{}
	}
	if s := e.variables.Snapshot(); s != nil {
		return s
	}
	return &workspace.VarState{}
}

// applyOAuth fetches a token for oauth2 auth that has none yet and stores it
// on def.
func (e *Engine) applyOAuth(ctx context.Context, def *model.RequestDefinition, scope vars.Provider, locale string) error {
	a, ok := def.Auth.Get().(model.OAuth2Auth)
	if !ok || strings.TrimSpace(a.Token) != "" {
		return nil
	}
	if a.GrantType == "" || strings.TrimSpace(a.TokenURL) == "" {
		return nil
	}
	r := vars.NewResolver(e.generator(locale), scope)
	resolved := a
	resolved.TokenURL = r.ExpandTemplates(a.TokenURL)
	resolved.ClientID = r.ExpandTemplates(a.ClientID)
	resolved.ClientSecret = r.ExpandTemplates(a.ClientSecret)
	resolved.Scope = r.ExpandTemplates(a.Scope)
	resolved.Username = r.ExpandTemplates(a.Username)
	resolved.Password = r.ExpandTemplates(a.Password)

	tok, err := e.tokens.Token(ctx, oauth.ConfigFromAuth(resolved))
	if err != nil {
		return errdef.Wrap(errdef.CodeHTTP, err, "oauth2 token")
	}
	a.Token = tok.AccessToken
	def.Auth = model.NewAuth(a)
	return nil
}

func validate(def model.RequestDefinition) error {
	if strings.TrimSpace(def.URL) == "" {
		return errdef.New(errdef.CodeValidation, "request URL is empty")
	}
	if !def.Method.Valid() {
		return errdef.New(errdef.CodeValidation, "unsupported method %q", def.Method)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p Phase) String() string {
	return string(p)
}
