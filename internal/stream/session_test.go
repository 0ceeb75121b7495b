package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/awsm-dev/awsm/internal/model"
)

func TestSessionPublishAndSubscribe(t *testing.T) {
	s := NewSession(context.Background(), "conn-1", Config{BufferSize: 4, ListenerBuffer: 2})
	s.MarkOpen()
	s.Publish(model.WebSocketMessage{ID: "m0", Type: model.MessageSystem, Data: "Connected"})
	listener := s.Subscribe()
	if len(listener.Backlog) != 1 || listener.Backlog[0].Message.Data != "Connected" {
		t.Fatalf("unexpected backlog %#v", listener.Backlog)
	}

	s.Publish(model.WebSocketMessage{ID: "m1", Type: model.MessageReceived, Data: "hello"})

	select {
	case received := <-listener.C:
		if received.Message.Data != "hello" || received.Sequence != 2 {
			t.Fatalf("unexpected event %#v", received)
		}
		if received.Message.Timestamp == 0 {
			t.Fatalf("expected timestamp to be filled")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	s.Close(nil)
	if _, ok := <-listener.C; ok {
		t.Fatalf("expected listener channel to be closed")
	}
	listener.Cancel()
}

func TestSessionKeepsOrderAndEvictsOldest(t *testing.T) {
	s := NewSession(context.Background(), "conn", Config{BufferSize: 3})
	for _, data := range []string{"a", "b", "c", "d"} {
		s.Publish(model.WebSocketMessage{Type: model.MessageSent, Data: data})
	}
	msgs := s.Messages()
	if len(msgs) != 3 || msgs[0].Data != "b" || msgs[2].Data != "d" {
		t.Fatalf("unexpected log %#v", msgs)
	}
	if s.Evicted() != 1 {
		t.Fatalf("expected one eviction, got %d", s.Evicted())
	}
}

func TestSlowListenerLosesOldestAndNeverBlocks(t *testing.T) {
	s := NewSession(context.Background(), "conn", Config{ListenerBuffer: 2})
	listener := s.Subscribe()
	defer listener.Cancel()

	done := make(chan struct{})
	go func() {
		for _, data := range []string{"1", "2", "3", "4"} {
			s.Publish(model.WebSocketMessage{Type: model.MessageReceived, Data: data})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow listener")
	}

	var got []string
	for len(got) < 2 {
		got = append(got, (<-listener.C).Message.Data)
	}
	if got[0] != "3" || got[1] != "4" {
		t.Fatalf("expected newest two events, got %v", got)
	}
	if len(s.Messages()) != 4 {
		t.Fatalf("log must keep every message, got %d", len(s.Messages()))
	}
}

func TestSessionCloseWithError(t *testing.T) {
	s := NewSession(context.Background(), "conn", Config{})
	boom := errors.New("boom")
	s.Close(boom)
	s.Close(nil)
	state, err := s.State()
	if state != StateFailed || !errors.Is(err, boom) {
		t.Fatalf("first close decides the state, got %v %v", state, err)
	}
	if s.Context().Err() == nil {
		t.Fatalf("expected context to be cancelled")
	}

	s.MarkOpen()
	if state, _ := s.State(); state != StateFailed {
		t.Fatalf("closed session must not reopen, got %v", state)
	}

	s.Publish(model.WebSocketMessage{Type: model.MessageSystem, Data: "Disconnected"})
	late := s.Subscribe()
	if _, ok := <-late.C; ok {
		t.Fatalf("subscribing to a closed session should yield a closed channel")
	}
	if len(late.Backlog) != 1 {
		t.Fatalf("expected the late message in the backlog, got %#v", late.Backlog)
	}
}

func TestManagerReplaceAndRemove(t *testing.T) {
	mgr := NewManager()
	first := NewSession(context.Background(), "a", Config{})
	if prev := mgr.Register(first); prev != nil {
		t.Fatalf("unexpected previous session")
	}
	second := NewSession(context.Background(), "a", Config{})
	if prev := mgr.Register(second); prev != first {
		t.Fatalf("expected first session to be returned as replaced")
	}
	if mgr.Remove("a", first) {
		t.Fatalf("stale session must not evict its successor")
	}
	if got, _ := mgr.Get("a"); got != second {
		t.Fatalf("expected second session to remain")
	}
	if !mgr.Remove("a", second) {
		t.Fatalf("expected removal to succeed")
	}
	if len(mgr.IDs()) != 0 {
		t.Fatalf("expected no sessions, got %v", mgr.IDs())
	}
}
