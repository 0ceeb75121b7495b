package scripts

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/fake"
	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/vars"
)

const DefaultTimeout = 5 * time.Second

// ExecutionContext is the read-only input of one script run. It is never
// persisted.
type ExecutionContext struct {
	Variables map[string]string
	Request   *model.RequestDefinition
	Response  *model.ResponseEnvelope
	Locale    string
}

type Result struct {
	Variables   map[string]string
	Logs        []string
	TestResults []model.TestResult
	// Error is the message of the exception that aborted the script, empty
	// when it ran to completion.
	Error string
}

// Err wraps Error as a script error.
func (r Result) Err() error {
	if r.Error == "" {
		return nil
	}
	return errdef.New(errdef.CodeScript, "%s", r.Error)
}

type Runner struct {
	timeout   time.Duration
	generator func(locale string) vars.Generator
	logger    *zap.Logger
}

type Option func(*Runner)

func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithGenerator replaces the locale bound generator behind awsm.faker.
func WithGenerator(fn func(locale string) vars.Generator) Option {
	return func(r *Runner) {
		if fn != nil {
			r.generator = fn
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		timeout: DefaultTimeout,
		generator: func(locale string) vars.Generator {
			return fake.New(locale)
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs source against a private copy of the context. It never
// panics and never returns a Go error: failures are reported in
// Result.Error together with whatever logs, variables and tests were
// collected before the script stopped.
func (r *Runner) Execute(ctx context.Context, source string, in ExecutionContext) (res Result) {
	variables := maps.Clone(in.Variables)
	if variables == nil {
		variables = map[string]string{}
	}
	if strings.TrimSpace(source) == "" {
		return Result{Variables: variables}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sb := &sandbox{variables: variables}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("script panic recovered", zap.Any("panic", p))
			res = sb.result()
			res.Error = fmt.Sprintf("script panic: %v", p)
		}
	}()

	if err := ctx.Err(); err != nil {
		res = sb.result()
		res.Error = err.Error()
		return res
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vm := goja.New()
	sb.vm = vm
	go func() {
		<-runCtx.Done()
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			vm.Interrupt(fmt.Errorf("script timed out after %s", r.timeout))
			return
		}
		vm.Interrupt(runCtx.Err())
	}()

	if err := sb.bind(in, r.generator(in.Locale)); err != nil {
		res = sb.result()
		res.Error = errdef.Message(err)
		return res
	}

	_, err := vm.RunString(source)
	if err == nil && sb.aborted != nil {
		err = sb.aborted
	}
	res = sb.result()
	if err != nil {
		res.Error = errorMessage(err)
		r.logger.Debug("script aborted", zap.String("error", res.Error))
	}
	return res
}

// errorMessage extracts what the script threw: Error.message for Error
// objects, the stringified value otherwise.
func errorMessage(err error) string {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		val := exc.Value()
		if obj, ok := val.(*goja.Object); ok {
			if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) && !goja.IsNull(msg) {
				if s := msg.String(); s != "" {
					return s
				}
			}
		}
		if val != nil && !goja.IsUndefined(val) {
			return val.String()
		}
		return "Unknown script error"
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		switch v := interrupted.Value().(type) {
		case error:
			return v.Error()
		case nil:
			return "script interrupted"
		default:
			return fmt.Sprint(v)
		}
	}
	return err.Error()
}
