package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"bookan/internal/util"
	"bookan/pkg/domain"
)

func TestLoginDerivesPrincipalAndPersists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.app.Session.Login(ctx, "  Alice@Example.com ", "anything")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if p.Email != "alice@example.com" || p.Name != "alice" || p.Role != domain.RoleReader {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if p.Avatar != "https://api.dicebear.com/7.x/avataaars/svg?seed=alice@example.com" {
		t.Fatalf("unexpected avatar: %q", p.Avatar)
	}
	cur, ok := env.app.Session.Current()
	if !ok || cur.ID != p.ID {
		t.Fatalf("current = %+v, %v", cur, ok)
	}
	if _, ok, _ := env.kv.Get(ctx, SessionKey); !ok {
		t.Fatalf("expected persisted principal under %s", SessionKey)
	}

	again, err := env.app.Session.Login(ctx, "alice@example.com", "")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if again.ID != p.ID {
		t.Fatalf("login id should be stable per email: %s != %s", again.ID, p.ID)
	}
}

func TestLoginRejectsMalformedEmail(t *testing.T) {
	env := newTestEnv(t)
	for _, email := range []string{"", "   ", "not-an-email"} {
		if _, err := env.app.Session.Login(context.Background(), email, "pw"); !errors.Is(err, ErrValidation) {
			t.Fatalf("login(%q) err = %v, want ErrValidation", email, err)
		}
	}
	if _, ok := env.app.Session.Current(); ok {
		t.Fatalf("no principal should be active")
	}
}

func TestLoginPersistFailureLeavesNoActivePrincipal(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.KV = failingKV{setErr: errors.New("quota exceeded")} })
	if _, err := env.app.Session.Login(context.Background(), "bob@example.com", ""); !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if _, ok := env.app.Session.Current(); ok {
		t.Fatalf("principal should not be active after failed persist")
	}
}

func TestRegisterPersistFailureLeavesNoAccount(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.KV = failingKV{setErr: errors.New("quota exceeded")}
		c.VerifyCredentials = true
	})
	ctx := context.Background()
	in := RegisterInput{Email: "nora@example.com", Password: "pw"}
	for i := 0; i < 2; i++ {
		if _, err := env.app.Session.Register(ctx, in); !errors.Is(err, ErrPersistence) {
			t.Fatalf("register attempt %d err = %v, want ErrPersistence", i, err)
		}
	}
	if n := env.app.Session.directory.Count(); n != 0 {
		t.Fatalf("directory holds %d accounts after failed registration", n)
	}
	if _, err := env.app.Session.Login(ctx, "nora@example.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("login against failed registration err = %v", err)
	}
	if _, ok := env.app.Session.Current(); ok {
		t.Fatalf("no principal should be active")
	}
}

func TestRestoreAfterLoginReturnsSamePrincipal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p, err := env.app.Session.Login(ctx, "carol@example.com", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	reloaded := newTestEnv(t, func(c *Config) { c.KV = env.kv })
	got, ok, err := reloaded.app.Session.Restore(ctx)
	if err != nil || !ok {
		t.Fatalf("restore = %v, %v", ok, err)
	}
	if got.ID != p.ID || got.Email != p.Email {
		t.Fatalf("restored %+v, want %+v", got, p)
	}
	if cur, ok := reloaded.app.Session.Current(); !ok || cur.ID != p.ID {
		t.Fatalf("restore should activate principal")
	}
}

func TestLogoutThenRestoreFindsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.app.Session.Login(ctx, "dave@example.com", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.app.Session.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := env.app.Session.Logout(ctx); err != nil {
		t.Fatalf("second logout should be a no-op: %v", err)
	}
	if _, ok := env.app.Session.Current(); ok {
		t.Fatalf("principal should be cleared")
	}
	if _, ok, err := env.app.Session.Restore(ctx); ok || err != nil {
		t.Fatalf("restore after logout = %v, %v", ok, err)
	}
}

func TestLogoutRemoveFailureKeepsPrincipal(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.KV = failingKV{removeErr: errors.New("disk gone")} })
	env.app.Session.identities.Set(principal("p-1", "erin", domain.RoleReader))
	if err := env.app.Session.Logout(context.Background()); !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if _, ok := env.app.Session.Current(); !ok {
		t.Fatalf("principal should stay active when removal fails")
	}
}

func TestRestoreDiscardsMalformedValue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, raw := range []string{"{not json", `{"name":"no id"}`} {
		if err := env.kv.Set(ctx, SessionKey, raw); err != nil {
			t.Fatalf("seed kv: %v", err)
		}
		if _, ok, err := env.app.Session.Restore(ctx); ok || err != nil {
			t.Fatalf("restore(%q) = %v, %v; want absent", raw, ok, err)
		}
		if _, ok, _ := env.kv.Get(ctx, SessionKey); ok {
			t.Fatalf("malformed value %q should be removed", raw)
		}
	}
	if env.app.Session.Loading() {
		t.Fatalf("loading should be finished")
	}
}

func TestRestoreReadFailure(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.KV = failingKV{getErr: errors.New("unreachable")} })
	if _, _, err := env.app.Session.Restore(context.Background()); !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if env.app.Session.Loading() {
		t.Fatalf("loading should be finished even on failure")
	}
}

func TestRegisterCreatesAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p, err := env.app.Session.Register(ctx, RegisterInput{
		Name:     "Bibliothèque Forney",
		Email:    "forney@paris.fr",
		Password: "s3cret-pass",
		Role:     domain.RoleLibrary,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.ID == "" || p.Role != domain.RoleLibrary || p.Name != "Bibliothèque Forney" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if cur, ok := env.app.Session.Current(); !ok || cur.ID != p.ID {
		t.Fatalf("register should activate principal")
	}

	loggedIn, err := env.app.Session.Login(ctx, "FORNEY@paris.fr", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != p.ID || loggedIn.Role != domain.RoleLibrary {
		t.Fatalf("login should return registered principal, got %+v", loggedIn)
	}
}

func TestRegisterDefaultsAndValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p, err := env.app.Session.Register(ctx, RegisterInput{Email: "frank@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.Name != "frank" || p.Role != domain.RoleReader {
		t.Fatalf("defaults not applied: %+v", p)
	}

	if _, err := env.app.Session.Register(ctx, RegisterInput{Email: "Frank@example.com", Password: "pw"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email err = %v, want ErrConflict", err)
	}
	cases := []RegisterInput{
		{Email: "", Password: "pw"},
		{Email: "nope", Password: "pw"},
		{Email: "gina@example.com", Password: ""},
		{Email: "gina@example.com", Password: "pw", Role: "Admin"},
	}
	for _, in := range cases {
		if _, err := env.app.Session.Register(ctx, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("register(%+v) err = %v, want ErrValidation", in, err)
		}
	}
}

func TestLoginVerifiesCredentialsWhenEnabled(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.VerifyCredentials = true })
	ctx := context.Background()
	if _, err := env.app.Session.Register(ctx, RegisterInput{Email: "hana@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := env.app.Session.Login(ctx, "hana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := env.app.Session.Login(ctx, "unknown@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown account err = %v", err)
	}
	if _, err := env.app.Session.Login(ctx, "hana@example.com", "correct horse"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestSignedSessionRejectsTampering(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	env := newTestEnv(t, func(c *Config) { c.SessionSecret = secret })
	ctx := context.Background()
	p, err := env.app.Session.Login(ctx, "ivan@example.com", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	raw, _, _ := env.kv.Get(ctx, SessionKey)
	if strings.Contains(raw, `"email"`) {
		t.Fatalf("signed session should not be plain JSON: %q", raw)
	}

	got, ok, err := env.app.Session.Restore(ctx)
	if err != nil || !ok || got.ID != p.ID {
		t.Fatalf("restore = %+v, %v, %v", got, ok, err)
	}

	if err := env.kv.Set(ctx, SessionKey, raw+"x"); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, ok, err := env.app.Session.Restore(ctx); ok || err != nil {
		t.Fatalf("tampered restore = %v, %v; want absent", ok, err)
	}
}

func TestRequire(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.app.Session.Require(); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if _, err := env.app.Session.Login(context.Background(), "jo@example.com", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	if p, err := env.app.Session.Require(); err != nil || p.Name != "jo" {
		t.Fatalf("require = %+v, %v", p, err)
	}
}

func TestSessionLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := util.NewLogger(&buf, "info")
	env := newTestEnv(t, func(c *Config) { c.Logger = logger })
	ctx := util.WithRequestID(context.Background(), logger, "req-42")
	if _, err := env.app.Session.Login(ctx, "kim@example.com", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(buf.String(), `"request_id":"req-42"`) {
		t.Fatalf("log output missing request id: %s", buf.String())
	}
}
