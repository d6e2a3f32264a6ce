package mailgate

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mailgate/mailgate/jwt"
)

// collectingSink records every emitted event, safely across goroutines.
type collectingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *collectingSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectingSink) all() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEvent(nil), s.events...)
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &collectingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventLoginStart})
	}
	d.Close()

	if got := len(sink.all()); got != 10 {
		t.Fatalf("delivered %d events, want 10", got)
	}
	if d.Dropped() != 0 {
		t.Fatalf("dropped %d events", d.Dropped())
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{}, &collectingSink{})
	if d != nil {
		t.Fatal("disabled audit should produce a nil dispatcher")
	}

	// Nil dispatcher methods are safe.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestDispatcherEmitAfterClose(t *testing.T) {
	sink := &collectingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4}, sink)

	d.Close()
	d.Emit(context.Background(), AuditEvent{EventType: auditEventSignOut})

	if got := len(sink.all()); got != 0 {
		t.Fatalf("event delivered after close: %d", got)
	}
}

// blockingSink parks on every Emit until released.
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, AuditEvent) {
	<-s.release
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event is consumed by the blocked worker, one fills the buffer;
	// everything after that must drop rather than block the caller.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventRefresh})
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer and DropIfFull")
	}

	close(sink.release)
	d.Close()
}

func TestEngineEmitsAuditEvents(t *testing.T) {
	sink := &collectingSink{}
	id := &stubIdentity{startSession: "session-1"}

	signer := testSigner(t)
	cfg := DefaultConfig()
	verifier, err := jwt.NewVerifier(cfg.Token.Issuer, cfg.Token.Audience, 0, signer)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	engine, err := New().
		WithConfig(cfg).
		WithIdentity(id).
		WithVerifier(verifier).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	if _, err := engine.StartLogin(ctx, "alice@example.com"); err != nil {
		t.Fatalf("StartLogin failed: %v", err)
	}
	engine.Close()

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	ev := events[0]
	if ev.EventType != auditEventLoginStart {
		t.Fatalf("event type = %q", ev.EventType)
	}
	if !ev.Success || ev.Email != "alice@example.com" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.IP != "203.0.113.9" {
		t.Fatalf("client IP = %q", ev.IP)
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}

func TestJSONWriterSinkOutput(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventVerify,
		Subject:   "subject-1",
		Success:   true,
	})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("sink output is not JSON: %v", err)
	}
	if decoded["event_type"] != auditEventVerify {
		t.Fatalf("event_type = %v", decoded["event_type"])
	}
	if decoded["subject"] != "subject-1" {
		t.Fatalf("subject = %v", decoded["subject"])
	}
}

func TestChannelSinkDelivers(t *testing.T) {
	sink := NewChannelSink(4)
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventLookup})

	select {
	case ev := <-sink.Events():
		if ev.EventType != auditEventLookup {
			t.Fatalf("event type = %q", ev.EventType)
		}
	default:
		t.Fatal("no event on the channel")
	}
}
