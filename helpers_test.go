package sessionauth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/maccas-one/sessionauth/role"
	"github.com/maccas-one/sessionauth/session"
	"github.com/sirupsen/logrus"
)

// memStore is a Store whose transactions stage writes and apply them only
// when fn succeeds.
type memStore struct {
	mu       sync.Mutex
	users    map[string]User
	sessions map[string]session.Session

	failSaveSession error
	txCount         atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]User{},
		sessions: map[string]session.Session{},
	}
}

func (s *memStore) FindUserByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			out := u
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memStore) FindUserByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *memStore) GetSession(_ context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount.Add(1)

	tx := &memTx{
		store:    s,
		users:    map[string]User{},
		sessions: map[string]session.Session{},
		active:   map[string]bool{},
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, u := range tx.users {
		s.users[id] = u
	}
	for id, sess := range tx.sessions {
		s.sessions[id] = sess
	}
	for id, active := range tx.active {
		u := s.users[id]
		u.Active = active
		s.users[id] = u
	}
	return nil
}

func (s *memStore) addUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *memStore) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

type memTx struct {
	store    *memStore
	users    map[string]User
	sessions map[string]session.Session
	active   map[string]bool
}

func (tx *memTx) CreateUser(_ context.Context, u *User) error {
	taken := func(existing User) bool {
		return existing.ID == u.ID || strings.EqualFold(existing.Username, u.Username)
	}
	for _, existing := range tx.store.users {
		if taken(existing) {
			return ErrUsernameTaken
		}
	}
	for _, existing := range tx.users {
		if taken(existing) {
			return ErrUsernameTaken
		}
	}
	tx.users[u.ID] = *u
	return nil
}

func (tx *memTx) SaveSession(_ context.Context, sess *session.Session) error {
	if tx.store.failSaveSession != nil {
		return tx.store.failSaveSession
	}
	tx.sessions[sess.ID] = *sess
	return nil
}

func (tx *memTx) SetUserActive(_ context.Context, id string, active bool) error {
	if _, ok := tx.store.users[id]; !ok {
		if _, staged := tx.users[id]; !staged {
			return ErrUserNotFound
		}
	}
	tx.active[id] = active
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeLegacyService accepts exactly one credential pair.
type fakeLegacyService struct {
	username string
	password string
	oid      string
	role     string
	delay    time.Duration

	logins atomic.Int32
}

func (f *fakeLegacyService) start(t *testing.T) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("username") != f.username || r.PostForm.Get("password") != f.password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		tok := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{"oid": f.oid})
		signed, err := tok.SignedString([]byte("legacy-signing-key"))
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":        signed,
			"refreshToken": "legacy-refresh",
			"role":         f.role,
		})
	})
	mux.HandleFunc("/user/config", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"storeId": "1042", "storeName": "Central"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func engineTestConfig() Config {
	cfg := validTestConfig()
	cfg.Password.Cost = 4
	cfg.RateLimit.RequireCookie = false
	return cfg
}

type testEngine struct {
	*Engine
	store *memStore
	clock *testClock
	sink  *ChannelSink
}

func newTestEngine(t *testing.T, cfg Config) *testEngine {
	t.Helper()
	store := newMemStore()
	clock := newTestClock()
	sink := NewChannelSink(256)

	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 256
	cfg.Audit.DropIfFull = true
	cfg.Metrics.Enabled = true

	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithClock(clock.Now).
		WithAuditSink(sink).
		WithLogger(discardLogger()).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, store: store, clock: clock, sink: sink}
}

func hashFor(t *testing.T, e *Engine, pw string) []byte {
	t.Helper()
	h, err := e.passwords.Hash(context.Background(), pw)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return h
}

func (te *testEngine) seedUser(t *testing.T, id, username, pw string, roles ...role.Role) {
	t.Helper()
	te.store.addUser(User{
		ID:           id,
		Username:     username,
		PasswordHash: hashFor(t, te.Engine, pw),
		Roles:        role.NewSet(roles...),
		Active:       true,
		CreatedAt:    te.clock.Now(),
	})
}

// waitEvent returns the next audit event of eventType, skipping others.
func (te *testEngine) waitEvent(t *testing.T, eventType string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-te.sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s audit event", eventType)
		}
	}
}

func requestContext(ip string) context.Context {
	ctx := WithClientIP(context.Background(), ip)
	return WithUserAgent(ctx, "test-agent/1.0")
}

func isRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
