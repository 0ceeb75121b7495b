package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/stream"
)

type MessageHandler func(msg model.WebSocketMessage)

type StatusHandler func(connected bool)

type DialFunc func(ctx context.Context, url string, opts *websocket.DialOptions) (*websocket.Conn, *http.Response, error)

const defaultReadLimit = 1 << 20

// Client owns every live connection, keyed by the caller's id.
type Client struct {
	mu       sync.Mutex
	conns    map[string]*conn
	gens     map[string]uint64
	sessions *stream.Manager
	dial     DialFunc
	logger   *zap.Logger
	bufSize  int
}

type Option func(*Client)

func WithDialer(dial DialFunc) Option {
	return func(c *Client) {
		if dial != nil {
			c.dial = dial
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLogSize caps how many messages each connection log keeps.
func WithLogSize(n int) Option {
	return func(c *Client) {
		c.bufSize = n
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		conns:    make(map[string]*conn),
		gens:     make(map[string]uint64),
		sessions: stream.NewManager(),
		dial:     websocket.Dial,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type conn struct {
	id        string
	url       string
	mode      model.WebSocketMode
	ws        *websocket.Conn
	session   *stream.Session
	onMessage MessageHandler
	onStatus  StatusHandler
	// ready flips once the connection can carry user messages; for
	// socket.io that is after the namespace connect ack.
	ready    atomic.Bool
	closing  atomic.Bool
	loopDone chan struct{}
}

// Connect opens a connection under id, replacing any connection already
// registered there. When connects for the same id overlap, the last call
// wins and earlier dials are discarded. ctx bounds the handshake only.
func (c *Client) Connect(
	ctx context.Context,
	id, rawURL string,
	mode model.WebSocketMode,
	onMessage MessageHandler,
	onStatus StatusHandler,
) error {
	_ = c.Disconnect(id)
	if mode == "" {
		mode = model.WebSocketRaw
	}
	if onMessage == nil {
		onMessage = func(model.WebSocketMessage) {}
	}
	if onStatus == nil {
		onStatus = func(bool) {}
	}

	session := stream.NewSession(context.Background(), id, stream.Config{BufferSize: c.bufSize})
	cn := &conn{
		id:        id,
		url:       rawURL,
		mode:      mode,
		session:   session,
		onMessage: onMessage,
		onStatus:  onStatus,
		loopDone:  make(chan struct{}),
	}
	// The generation and the session registration move together so the
	// registered log always belongs to the newest connect.
	c.mu.Lock()
	c.gens[id]++
	gen := c.gens[id]
	prevSession := c.sessions.Register(session)
	c.mu.Unlock()
	if prevSession != nil {
		prevSession.Close(nil)
	}

	dialURL := rawURL
	if mode == model.WebSocketSocketIO {
		u, err := socketIOURL(rawURL)
		if err != nil {
			c.publish(cn, model.MessageError, "Connection failed: "+err.Error())
			session.Close(err)
			return errdef.Wrap(errdef.CodeValidation, err, "socket.io url")
		}
		dialURL = u
	}

	ws, _, err := c.dial(ctx, dialURL, nil)
	if err != nil {
		c.publish(cn, model.MessageError, "Connection failed: "+err.Error())
		session.Close(err)
		c.logger.Warn("websocket dial failed", zap.String("id", id), zap.String("url", dialURL), zap.Error(err))
		return errdef.Wrap(errdef.CodeHTTP, err, "connect %s", rawURL)
	}
	ws.SetReadLimit(defaultReadLimit)
	cn.ws = ws

	c.mu.Lock()
	if c.gens[id] != gen {
		c.mu.Unlock()
		_ = ws.Close(websocket.StatusNormalClosure, "superseded")
		session.Close(nil)
		return errdef.New(errdef.CodeHTTP, "connect %s superseded by a newer connection", rawURL)
	}
	prev := c.conns[id]
	c.conns[id] = cn
	c.mu.Unlock()
	if prev != nil {
		c.shutdown(prev)
	}
	session.MarkOpen()

	if mode == model.WebSocketRaw {
		cn.ready.Store(true)
		onStatus(true)
		c.publish(cn, model.MessageSystem, "Connected to "+rawURL)
		go c.readRaw(cn)
	} else {
		go c.readSocketIO(cn)
	}
	c.logger.Debug("websocket connected", zap.String("id", id), zap.String("mode", string(mode)))
	return nil
}

// Send writes text on the connection registered under id.
func (c *Client) Send(ctx context.Context, id, text string) error {
	cn, ok := c.lookup(id)
	if !ok || !cn.ready.Load() {
		if ok && cn.mode == model.WebSocketSocketIO {
			return errdef.New(errdef.CodeHTTP, "Socket.IO is not connected")
		}
		return errdef.New(errdef.CodeHTTP, "WebSocket is not connected")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	if cn.mode == model.WebSocketSocketIO {
		var frame string
		frame, err = encodeEmit(text)
		if err == nil {
			err = cn.ws.Write(ctx, websocket.MessageText, []byte(frame))
		}
	} else {
		err = cn.ws.Write(ctx, websocket.MessageText, []byte(text))
	}
	if err != nil {
		return errdef.Wrap(errdef.CodeHTTP, err, "send on %s", id)
	}
	c.publish(cn, model.MessageSent, text)
	return nil
}

// Disconnect closes the connection registered under id and waits for its
// read loop to finish. It reports an error when nothing is connected.
func (c *Client) Disconnect(id string) error {
	c.mu.Lock()
	cn, ok := c.conns[id]
	if ok {
		delete(c.conns, id)
	}
	c.mu.Unlock()
	if !ok {
		return errdef.New(errdef.CodeHTTP, "no connection %q", id)
	}
	c.shutdown(cn)
	return nil
}

// shutdown closes cn and waits for its read loop to finish.
func (c *Client) shutdown(cn *conn) {
	cn.closing.Store(true)
	if cn.mode == model.WebSocketSocketIO && cn.ready.Load() {
		_ = cn.ws.Write(context.Background(), websocket.MessageText, []byte(packetDisconnect))
	}
	if err := cn.ws.Close(websocket.StatusNormalClosure, ""); err != nil {
		c.logger.Debug("websocket close", zap.String("id", cn.id), zap.Error(err))
	}
	<-cn.loopDone
}

func (c *Client) IsConnected(id string) bool {
	cn, ok := c.lookup(id)
	return ok && cn.ready.Load()
}

// Messages returns the log of the latest connection made under id, including
// a connection that has since closed.
func (c *Client) Messages(id string) []model.WebSocketMessage {
	session, ok := c.sessions.Get(id)
	if !ok {
		return nil
	}
	return session.Messages()
}

// Subscribe streams new log entries for id.
func (c *Client) Subscribe(id string) (stream.Listener, bool) {
	session, ok := c.sessions.Get(id)
	if !ok {
		return stream.Listener{}, false
	}
	return session.Subscribe(), true
}

// Forget disconnects id and discards its message log.
func (c *Client) Forget(id string) {
	_ = c.Disconnect(id)
	if session, ok := c.sessions.Get(id); ok {
		if c.sessions.Remove(id, session) {
			session.Close(nil)
		}
	}
}

func (c *Client) CloseAll() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.conns))
	for id := range c.conns {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		_ = c.Disconnect(id)
	}
}

func (c *Client) lookup(id string) (*conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cn, ok := c.conns[id]
	return cn, ok
}

func (c *Client) publish(cn *conn, kind model.WebSocketMessageType, data string) {
	evt := cn.session.Publish(model.WebSocketMessage{
		ID:   uuid.NewString(),
		Type: kind,
		Data: data,
	})
	cn.onMessage(evt.Message)
}

// finish runs once per connection when its read loop exits.
func (c *Client) finish(cn *conn, err error) {
	wasReady := cn.ready.Swap(false)
	c.mu.Lock()
	if cur, ok := c.conns[cn.id]; ok && cur == cn {
		delete(c.conns, cn.id)
	}
	c.mu.Unlock()

	code := websocket.CloseStatus(err)
	var closeErr websocket.CloseError
	switch {
	case errors.As(err, &closeErr) && closeErr.Reason != "":
		c.publish(cn, model.MessageSystem, fmt.Sprintf("Disconnected (Code: %d: %s)", code, closeErr.Reason))
	case code != -1:
		c.publish(cn, model.MessageSystem, fmt.Sprintf("Disconnected (Code: %d)", code))
	case cn.closing.Load():
		c.publish(cn, model.MessageSystem, fmt.Sprintf("Disconnected (Code: %d)", websocket.StatusNormalClosure))
	default:
		c.publish(cn, model.MessageError, "WebSocket Error: "+err.Error())
		c.publish(cn, model.MessageSystem, "Disconnected")
	}
	if wasReady {
		cn.onStatus(false)
	}
	cn.session.Close(nil)
	close(cn.loopDone)
}

func (c *Client) readRaw(cn *conn) {
	ctx := cn.session.Context()
	for {
		typ, data, err := cn.ws.Read(ctx)
		if err != nil {
			c.finish(cn, err)
			return
		}
		if typ == websocket.MessageBinary {
			c.publish(cn, model.MessageReceived, "Binary data")
			continue
		}
		c.publish(cn, model.MessageReceived, string(data))
	}
}
