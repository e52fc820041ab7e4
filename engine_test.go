package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var errBackendDown = errors.New("backend down")

var testMeta = ClientMeta{
	IP:        "203.0.113.7",
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	// Minimal argon2 cost so the suite stays fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testFixture struct {
	engine *Engine
	store  *fakeCredentialStore
	sink   *ChannelSink
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) *testFixture {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newFakeCredentialStore()
	sink := NewChannelSink(128)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testFixture{engine: engine, store: store, sink: sink}
}

// seedUser registers a credential with the given password already hashed.
func (f *testFixture) seedUser(t *testing.T, id, email, passwd string, mutate ...func(*Credential)) {
	t.Helper()

	digest := ""
	if passwd != "" {
		var err error
		digest, err = f.engine.hasher.Hash(passwd)
		if err != nil {
			t.Fatalf("Hash: %v", err)
		}
	}
	cred := &Credential{
		ID:             id,
		Email:          email,
		Role:           RoleClient,
		PasswordDigest: digest,
		EmailVerified:  true,
	}
	for _, m := range mutate {
		m(cred)
	}
	f.store.put(cred)
}

func (f *testFixture) waitAudit(t *testing.T, eventType string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-f.sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for audit event %q", eventType)
		}
	}
}

func TestBuilderValidation(t *testing.T) {
	cfg := testConfig()

	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected error without credential store")
	}
	if _, err := New().WithConfig(cfg).WithCredentialStore(newFakeCredentialStore()).Build(); err == nil {
		t.Fatal("expected error without redis or session store")
	}

	bad := cfg
	bad.Token.Secret = nil
	if _, err := New().WithConfig(bad).WithCredentialStore(newFakeCredentialStore()).Build(); err == nil {
		t.Fatal("expected error without signing secret")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	b := New().WithConfig(cfg).WithRedis(client).WithCredentialStore(newFakeCredentialStore())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}

func TestParseAccessToken(t *testing.T) {
	f := newTestEngine(t)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass")

	pair, err := f.engine.Authenticate(context.Background(), "alice@example.com", "Str0ng!pass", testMeta)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	claims, err := f.engine.ParseAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.Subject != "cred-1" || claims.Email != "alice@example.com" || claims.Role != string(RoleClient) {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := f.engine.ParseAccessToken("garbage"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("ParseAccessToken = %v, want ErrInvalidCredential", err)
	}
}

func TestMetricsSnapshotCounters(t *testing.T) {
	f := newTestEngine(t)
	f.seedUser(t, "cred-1", "alice@example.com", "Str0ng!pass")

	if _, err := f.engine.Authenticate(context.Background(), "alice@example.com", "Str0ng!pass", testMeta); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := f.engine.Authenticate(context.Background(), "alice@example.com", "wrong", testMeta); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Authenticate = %v, want ErrInvalidCredential", err)
	}

	snap := f.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("login success = %d, want 1", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("login failure = %d, want 1", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("sessions created = %d, want 1", snap.Counters[MetricSessionCreated])
	}
}
