package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/examportal/internal/rbac"
)

type fakeUsers map[string]string // email -> role; password is always "pw"

func (f fakeUsers) Login(_ context.Context, email, password string) (string, string, error) {
	role, ok := f[email]
	if !ok || password != "pw" {
		return "", "", errors.New("invalid")
	}
	return "id-" + email, role, nil
}

func (f fakeUsers) RoleOf(_ context.Context, id string) (string, error) {
	role, ok := f[strings.TrimPrefix(id, "id-")]
	if !ok {
		return "", errors.New("not found")
	}
	return role, nil
}

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		_, _ = w.Write([]byte(p.ID + "|" + p.Role))
	})
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("k", time.Hour)
	tok, err := a.IssueJWT("u1", "examiner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Subject != "u1" || c.Role != "examiner" {
		t.Fatalf("claims = %+v", c)
	}
	if _, err := NewAuthService("other", time.Hour).Parse(tok); err == nil {
		t.Fatalf("token signed with another key accepted")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	a := NewAuthService("k", time.Minute)
	tok, _ := a.IssueJWT("u1", "admin")
	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := a.Parse(tok); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestJWTMiddlewareSetsPrincipal(t *testing.T) {
	a := NewAuthService("k", time.Hour)
	tok, _ := a.IssueJWT("u1", "admin")
	h := JWTMiddleware(a)(echoPrincipal())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "u1|admin" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}

	for _, hdr := range []string{"", "Bearer nonsense", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if hdr != "" {
			req.Header.Set("Authorization", hdr)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status %d", hdr, rec.Code)
		}
	}
}

func TestAttachRoleUsesStoredRole(t *testing.T) {
	users := fakeUsers{"a@x": "examiner"}
	a := NewAuthService("k", time.Hour)
	// token still claims admin, the store says examiner
	tok, _ := a.IssueJWT("id-a@x", "admin")
	h := JWTMiddleware(a)(AttachRoleFromDB(users)(echoPrincipal()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "id-a@x|examiner" {
		t.Fatalf("principal = %q", rec.Body.String())
	}

	gone, _ := a.IssueJWT("id-deleted@x", "admin")
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+gone)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("deleted user status = %d", rec.Code)
	}
}

func TestLoginHandler(t *testing.T) {
	a := NewAuthService("k", time.Hour)
	h := LoginHandler(a, fakeUsers{"a@x": "examiner"})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@x","password":"pw"}`)))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "access_token") {
		t.Fatalf("login = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@x","password":"bad"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json = %d", rec.Code)
	}
}

func TestRoleContextRoundTrip(t *testing.T) {
	ctx := rbac.WithRole(WithSubject(context.Background(), "u9"), "examiner")
	if p := PrincipalFromContext(ctx); p.ID != "u9" || p.IsAdmin() {
		t.Fatalf("principal = %+v", p)
	}
}
