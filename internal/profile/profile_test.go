package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/examportal/internal/db"
)

func newRepo(t *testing.T) *Repo {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	r := NewRepo(dbh)
	r.Cost = bcrypt.MinCost
	return r
}

func signup(email string) Signup {
	return Signup{
		Email: email, Password: "secret1", FullName: " Ana Cruz ", Age: 24,
		DateDeployed: "2025-06-01", Designation: "Cashier", StoreArea: "North",
	}
}

func TestExaminerSignupAndLogin(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	ex, err := r.CreateExaminer(ctx, signup("Ana@Example.com "))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if ex.Email != "ana@example.com" || ex.FullName != "Ana Cruz" {
		t.Fatalf("examiner = %+v", ex)
	}
	if _, err := r.CreateExaminer(ctx, signup("ana@example.com")); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email: want ErrEmailTaken, got %v", err)
	}

	u, err := r.Authenticate(ctx, "ANA@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.ID != ex.ID || u.Role != RoleExaminer {
		t.Fatalf("user = %+v", u)
	}
	if _, err := r.Authenticate(ctx, "ana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := r.Authenticate(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}

	got, err := r.GetExaminer(ctx, ex.ID)
	if err != nil || got.StoreArea != "North" || got.Email != "ana@example.com" {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if n, _ := r.CountExaminers(ctx); n != 1 {
		t.Fatalf("count = %d", n)
	}
	role, err := r.RoleOf(ctx, ex.ID)
	if err != nil || role != RoleExaminer {
		t.Fatalf("role = %q, %v", role, err)
	}
}

func TestFailedSignupLeavesNoUser(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	if _, err := r.CreateUser(ctx, "taken@example.com", "secret1", RoleAdmin); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if _, err := r.CreateExaminer(ctx, signup("taken@example.com")); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("want ErrEmailTaken, got %v", err)
	}
	list, err := r.ListExaminers(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("examiners = %v, %v", list, err)
	}
}

func TestAdminsHaveNoProfile(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	u, err := r.CreateUser(ctx, "boss@example.com", "secret1", RoleAdmin)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.GetExaminer(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("admin profile: want ErrNotFound, got %v", err)
	}
	if _, err := r.CreateUser(ctx, "x@example.com", "secret1", "teacher"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("bad role: %v", err)
	}
	if _, err := r.RoleOf(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing role: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	ex, _ := r.CreateExaminer(ctx, signup("pw@example.com"))

	if err := r.ChangePassword(ctx, ex.ID, "nope", "newpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong old password: %v", err)
	}
	if err := r.ChangePassword(ctx, ex.ID, "secret1", "newpass"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if _, err := r.Authenticate(ctx, "pw@example.com", "newpass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestSettings(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	s, err := r.Settings(ctx)
	if err != nil || s.DefaultTime != 60 || s.WarningTime != 5 || s.AutoSubmit {
		t.Fatalf("defaults = %+v, %v", s, err)
	}
	if _, err := r.SaveSettings(ctx, Settings{DefaultTime: 10, WarningTime: 10}); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("warning >= default: %v", err)
	}
	if _, err := r.SaveSettings(ctx, Settings{DefaultTime: 45, WarningTime: 3, AutoSubmit: true}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := r.SaveSettings(ctx, Settings{DefaultTime: 40, WarningTime: 2, AutoSubmit: true}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	s, _ = r.Settings(ctx)
	if s.DefaultTime != 40 || s.WarningTime != 2 || !s.AutoSubmit {
		t.Fatalf("stored = %+v", s)
	}
}
