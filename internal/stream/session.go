package stream

import (
	"context"
	"sync"

	"github.com/awsm-dev/awsm/internal/model"
)

const (
	defaultLogSize        = 1024
	defaultListenerBuffer = 64
)

type Config struct {
	// BufferSize caps the message log; older messages are evicted first.
	BufferSize int
	// ListenerBuffer is the channel size handed to each subscriber.
	ListenerBuffer int
}

// Session is the ordered message log of one connection plus its live
// subscribers. The log outlives the connection until the session is dropped.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	listenerBuffer int

	mu        sync.Mutex
	state     State
	err       error
	log       *ringBuffer
	seq       uint64
	evicted   uint64
	listeners map[int]chan Event
	nextLID   int
	closed    bool
}

// Listener receives messages published after Subscribe. A subscriber that
// falls behind loses its oldest undelivered message; Backlog plus
// Session.Messages always hold the full log.
type Listener struct {
	C       <-chan Event
	Backlog []Event
	Cancel  func()
}

func NewSession(parent context.Context, id string, cfg Config) *Session {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultLogSize
	}
	if cfg.ListenerBuffer <= 0 {
		cfg.ListenerBuffer = defaultListenerBuffer
	}
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:             id,
		ctx:            ctx,
		cancel:         cancel,
		listenerBuffer: cfg.ListenerBuffer,
		state:          StateConnecting,
		log:            newRingBuffer(cfg.BufferSize),
		listeners:      make(map[int]chan Event),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.err
}

func (s *Session) MarkOpen() {
	s.mu.Lock()
	if !s.closed {
		s.state = StateOpen
	}
	s.mu.Unlock()
}

// Evicted reports how many messages fell out of the log.
func (s *Session) Evicted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

// Messages returns the log in the order messages were published.
func (s *Session) Messages() []model.WebSocketMessage {
	s.mu.Lock()
	events := s.log.snapshot()
	s.mu.Unlock()
	out := make([]model.WebSocketMessage, len(events))
	for i, evt := range events {
		out[i] = evt.Message
	}
	return out
}

// Publish appends msg to the log and fans it out to subscribers. A zero
// timestamp is filled with the current time in milliseconds. Messages
// published after Close are still logged.
func (s *Session) Publish(msg model.WebSocketMessage) Event {
	if msg.Timestamp == 0 {
		msg.Timestamp = nowMillis()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	evt := Event{Sequence: s.seq, Message: msg}
	if s.log.append(evt) {
		s.evicted++
	}
	for _, ch := range s.listeners {
		deliver(ch, evt)
	}
	return evt
}

// deliver never blocks: when ch is full its oldest entry makes room.
func deliver(ch chan Event, evt Event) {
	for {
		select {
		case ch <- evt:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe returns the current log as Backlog and streams every later
// message on C. C is closed by Cancel or when the session closes.
func (s *Session) Subscribe() Listener {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, s.listenerBuffer)
	backlog := s.log.snapshot()
	if s.closed {
		close(ch)
		return Listener{C: ch, Backlog: backlog, Cancel: func() {}}
	}
	id := s.nextLID
	s.nextLID++
	s.listeners[id] = ch
	return Listener{
		C:       ch,
		Backlog: backlog,
		Cancel:  func() { s.unsubscribe(id) },
	}
}

func (s *Session) unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.listeners[id]; ok {
		delete(s.listeners, id)
		close(ch)
	}
}

// Close ends the session, closing every subscriber. A nil err marks a clean
// close. Only the first call has an effect.
func (s *Session) Close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err != nil {
		s.state, s.err = StateFailed, err
	} else {
		s.state = StateClosed
	}
	for id, ch := range s.listeners {
		delete(s.listeners, id)
		close(ch)
	}
	s.cancel()
}
