package sessionauth

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maccas-one/sessionauth/role"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

type panicSink struct {
	calls atomic.Int64
}

func (s *panicSink) Emit(context.Context, AuditEvent) {
	s.calls.Add(1)
	panic("sink exploded")
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	engine, err := New().
		WithConfig(cfg).
		WithStore(newMemStore()).
		WithAuditSink(sink).
		WithLogger(discardLogger()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	_, _ = engine.Login(requestContext("203.0.113.1"), "alice", "wrong-password")
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditEnabledSinkReceivesEventWithFields(t *testing.T) {
	te := newTestEngine(t, engineTestConfig())
	te.seedUser(t, "u1", "alice", "correct-password-123", role.User)

	_, _ = te.Login(requestContext("203.0.113.2"), "alice", "wrong-password")

	ev := te.waitEvent(t, auditEventLoginFailure)
	if ev.Success {
		t.Fatal("expected failed event")
	}
	if ev.UserID != "u1" {
		t.Fatalf("expected user id u1, got %q", ev.UserID)
	}
	if ev.IP != "203.0.113.2" {
		t.Fatalf("expected ip from context, got %q", ev.IP)
	}
	if ev.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("expected invalid_credentials code, got %q", ev.Error)
	}
	if !ev.Timestamp.Equal(te.clock.Now()) {
		t.Fatalf("expected timestamp from engine clock, got %v", ev.Timestamp)
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink, discardLogger())
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink, discardLogger())
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditDispatcherSurvivesPanickingSink(t *testing.T) {
	sink := &panicSink{}
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
	}, sink, discardLogger())

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
	dispatcher.Close()

	if got := sink.calls.Load(); got != 2 {
		t.Fatalf("expected both events delivered despite panics, got %d", got)
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLoginSuccess,
		UserID:    "u1",
		IP:        "127.0.0.1",
		Success:   true,
	}
	sink.Emit(context.Background(), event)

	if !buf.Contains("login_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"user_id\":\"u1\"") {
		t.Fatal("expected JSON log line to contain user id")
	}
}

func TestAuditLogrusSinkLevels(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	sink := NewLogrusSink(logger)

	sink.Emit(context.Background(), AuditEvent{EventType: auditEventLoginSuccess, UserID: "u1", Success: true})
	sink.Emit(context.Background(), AuditEvent{
		EventType: auditEventRateLimitTriggered,
		Error:     string(auditErrRateLimited),
		Metadata:  map[string]string{"page": "login"},
	})

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != logrus.InfoLevel || entries[0].Data["user_id"] != "u1" {
		t.Fatalf("unexpected success entry %+v", entries[0].Data)
	}
	if entries[1].Level != logrus.WarnLevel || entries[1].Data["meta_page"] != "login" {
		t.Fatalf("unexpected failure entry %+v", entries[1].Data)
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{}, discardLogger())

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	legacySvc := &fakeLegacyService{username: "legacy_bob", password: "legacy-pass-456", oid: "oid-1", role: "none"}
	cfg := engineTestConfig()
	cfg.Legacy.BaseURL = legacySvc.start(t)
	te := newTestEngine(t, cfg)
	te.seedUser(t, "u1", "alice", "correct-password-123", role.User)
	ctx := requestContext("203.0.113.3")

	res, err := te.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	_, _ = te.Login(ctx, "alice", "correct-password-124")
	migrated, err := te.Login(ctx, "legacy_bob", "legacy-pass-456")
	if err != nil {
		t.Fatalf("legacy login failed: %v", err)
	}
	if _, err := te.Register(ctx, "carol", "register-pass-789"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	stored, _ := te.store.FindUserByID(ctx, "u1")
	secretNeedles := []string{
		"correct-password-123",
		"correct-password-124",
		"legacy-pass-456",
		"register-pass-789",
		res.AccessToken,
		migrated.AccessToken,
		string(stored.PasswordHash),
	}

	// Collect a bounded number of audit events generated by the operations above.
	events := make([]AuditEvent, 0, 8)
	timeout := time.After(2 * time.Second)
collectLoop:
	for len(events) < 6 {
		select {
		case ev := <-te.sink.Events():
			events = append(events, ev)
		case <-timeout:
			break collectLoop
		}
	}

	if len(events) == 0 {
		t.Fatal("expected at least one audit event")
	}

	for _, ev := range events {
		for _, needle := range secretNeedles {
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("sensitive value leaked in audit error field: %q", needle)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("sensitive value leaked in audit metadata: %q", needle)
				}
			}
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(string(b.buf), v)
}
