package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/telemetry"
)

type Options struct {
	Timeout            time.Duration
	FollowRedirects    bool
	InsecureSkipVerify bool
	ProxyURL           string
}

func DefaultOptions() Options {
	return Options{Timeout: 30 * time.Second, FollowRedirects: true}
}

type Client struct {
	opts        Options
	jar         http.CookieJar
	httpFactory func(Options) (*http.Client, error)
	telemetry   telemetry.Instrumenter
	logger      *zap.Logger
}

func NewClient(opts Options) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{opts: opts, jar: jar, telemetry: telemetry.Noop(), logger: zap.NewNop()}
	c.httpFactory = c.buildHTTPClient
	return c
}

// SetHTTPFactory allows callers to override how http.Client instances are created.
// Passing nil restores the default factory.
func (c *Client) SetHTTPFactory(factory func(Options) (*http.Client, error)) {
	if factory == nil {
		factory = c.buildHTTPClient
	}
	c.httpFactory = factory
}

// SetTelemetry configures the instrumenter used to emit OpenTelemetry spans. Passing nil restores the no-op implementation.
func (c *Client) SetTelemetry(instr telemetry.Instrumenter) {
	if instr == nil {
		instr = telemetry.Noop()
	}
	c.telemetry = instr
}

func (c *Client) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	c.logger = l
}

// Send performs req and always returns an envelope. Failures that happen
// before a status line is read become the synthetic status 0 envelope. The
// body is left undecoded; RawBody carries the payload as received.
func (c *Client) Send(ctx context.Context, req *model.ConcreteRequest) model.ResponseEnvelope {
	if req == nil {
		return model.TransportFailure("no request to send")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	httpReq, err := newHTTPRequest(ctx, req)
	if err != nil {
		c.logger.Warn("build request failed", zap.String("url", req.URL), zap.Error(err))
		return model.TransportFailure(errdef.Message(err))
	}

	client, err := c.httpFactory(c.opts)
	if err != nil {
		c.logger.Warn("build http client failed", zap.Error(err))
		return model.TransportFailure(errdef.Message(err))
	}

	spanCtx, span := c.telemetry.Start(ctx, telemetry.RequestStart{HTTPRequest: httpReq})
	httpReq = httpReq.WithContext(spanCtx)

	start := time.Now()
	resp, body, err := do(client, httpReq)
	elapsed := time.Since(start)
	if err != nil {
		span.End(telemetry.RequestResult{Err: err, Duration: elapsed})
		c.logger.Warn("transport failure",
			zap.String("method", string(req.Method)),
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return model.TransportFailure(err.Error())
	}
	span.End(telemetry.RequestResult{
		StatusCode: resp.StatusCode,
		Size:       int64(len(body)),
		Duration:   elapsed,
	})

	c.logger.Debug("response received",
		zap.String("method", string(req.Method)),
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
	)

	return model.ResponseEnvelope{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Time:       elapsed.Milliseconds(),
		Size:       int64(len(body)),
		Headers:    flattenHeaders(resp.Header),
		RawBody:    string(body),
	}
}

func newHTTPRequest(ctx context.Context, req *model.ConcreteRequest) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = strings.NewReader(*req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), req.URL, body)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "build request")
	}
	for _, h := range req.Headers {
		if strings.EqualFold(h.Key, "Host") {
			httpReq.Host = h.Value
			continue
		}
		httpReq.Header.Set(h.Key, h.Value)
	}
	return httpReq, nil
}

func do(client *http.Client, req *http.Request) (resp *http.Response, body []byte, err error) {
	resp, err = client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = errdef.Wrap(errdef.CodeHTTP, closeErr, "close response body")
		}
	}()
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errdef.Wrap(errdef.CodeHTTP, err, "read response body")
	}
	return resp, body, nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// flattenHeaders joins repeated header values with ", ".
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}
