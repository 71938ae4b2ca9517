package accountauth

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestAuditEventsReachSink(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	sink := NewChannelSink(16)
	cfg := testConfig()
	cfg.Audit.Enabled = true

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(newMockUserStore()).
		WithNotifier(&captureNotifier{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	ctx := WithClientIP(context.Background(), "198.51.100.7")
	if _, err := engine.Register(ctx, RegisterRequest{
		Email:    "not an email",
		Password: "correct-horse-battery",
	}); err == nil {
		t.Fatal("expected validation failure")
	}

	select {
	case event := <-sink.Events():
		if event.EventType != "register_failure" {
			t.Fatalf("unexpected event type %q", event.EventType)
		}
		if event.Success {
			t.Fatal("failure event flagged success")
		}
		if event.Error != "validation" {
			t.Fatalf("unexpected error code %q", event.Error)
		}
		if event.IP != "198.51.100.7" {
			t.Fatalf("client ip not propagated: %q", event.IP)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event delivered")
	}
}

type blockingSink struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, AuditEvent) {
	s.started <- struct{}{}
	<-s.release
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
	d := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)

	ctx := context.Background()

	// First event is picked up by the worker and blocks inside the sink.
	d.Emit(ctx, AuditEvent{EventType: "e1"})
	<-sink.started

	// Second fills the buffer, third has nowhere to go.
	d.Emit(ctx, AuditEvent{EventType: "e2"})
	d.Emit(ctx, AuditEvent{EventType: "e3"})

	if got := d.Dropped(); got != 1 {
		t.Fatalf("want 1 dropped event, got %d", got)
	}

	close(sink.release)
	d.Close()
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
		EventType: "login_success",
		UserID:    "u1",
		Success:   true,
	})

	var decoded AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not one JSON document per line: %v", err)
	}
	if decoded.EventType != "login_success" || decoded.UserID != "u1" || !decoded.Success {
		t.Fatalf("unexpected event: %+v", decoded)
	}
}
