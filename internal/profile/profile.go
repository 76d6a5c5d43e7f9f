package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/examportal/internal/db"
)

const (
	RoleAdmin    = "admin"
	RoleExaminer = "examiner"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Examiner struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Age          int       `json:"age"`
	DateDeployed string    `json:"date_deployed"` // YYYY-MM-DD
	Designation  string    `json:"designation"`
	StoreArea    string    `json:"store_area"`
	CreatedAt    time.Time `json:"created_at"`
}

// Signup is an examiner self-registration. Field validation happens at the API boundary.
type Signup struct {
	Email        string
	Password     string
	FullName     string
	Age          int
	DateDeployed string
	Designation  string
	StoreArea    string
}

// Repo reads and writes users and examiner profiles.
type Repo struct {
	db *sql.DB
	// Cost is the bcrypt work factor for new hashes.
	Cost int
}

func NewRepo(dbh *sql.DB) *Repo {
	return &Repo{db: dbh, Cost: 12}
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (r *Repo) hash(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), r.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repo) insertUser(ctx context.Context, x execer, email, password, role string, now time.Time) (User, error) {
	if role != RoleAdmin && role != RoleExaminer {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	ph, err := r.hash(password)
	if err != nil {
		return User{}, err
	}
	u := User{ID: uuid.NewString(), Email: normEmail(email), Role: role, CreatedAt: now.UTC()}
	_, err = x.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
		u.ID, u.Email, ph, u.Role, now.UnixMilli())
	if db.IsUniqueViolation(err) {
		return User{}, fmt.Errorf("%s: %w", u.Email, ErrEmailTaken)
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// CreateUser adds a user without a profile. Used for admins.
func (r *Repo) CreateUser(ctx context.Context, email, password, role string) (User, error) {
	return r.insertUser(ctx, r.db, email, password, role, time.Now())
}

// CreateExaminer adds the user row and its profile in one transaction.
func (r *Repo) CreateExaminer(ctx context.Context, s Signup) (ex Examiner, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Examiner{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now()
	u, err := r.insertUser(ctx, tx, s.Email, s.Password, RoleExaminer, now)
	if err != nil {
		return Examiner{}, err
	}
	ex = Examiner{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     strings.TrimSpace(s.FullName),
		Age:          s.Age,
		DateDeployed: s.DateDeployed,
		Designation:  strings.TrimSpace(s.Designation),
		StoreArea:    strings.TrimSpace(s.StoreArea),
		CreatedAt:    u.CreatedAt,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO examiners (id, full_name, age, date_deployed, designation, store_area, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ex.ID, ex.FullName, ex.Age, ex.DateDeployed, ex.Designation, ex.StoreArea, now.UnixMilli())
	if err != nil {
		return Examiner{}, err
	}
	return ex, nil
}

// Authenticate checks the password and returns the user. Unknown emails and wrong
// passwords both fail with ErrInvalidCredentials.
func (r *Repo) Authenticate(ctx context.Context, email, password string) (User, error) {
	var (
		u       User
		ph      string
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE email=$1`, normEmail(email)).
		Scan(&u.ID, &u.Email, &ph, &u.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(ph), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return u, nil
}

// RoleOf returns the stored role for a user id.
func (r *Repo) RoleOf(ctx context.Context, id string) (string, error) {
	var role string
	err := r.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return role, err
}

// ChangePassword replaces the hash after verifying the current password.
func (r *Repo) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	var ph string
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, id).Scan(&ph)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(ph), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	nh, err := r.hash(newPassword)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, nh, id)
	return err
}

const examinerCols = `e.id, u.email, e.full_name, e.age, e.date_deployed, e.designation, e.store_area, e.created_at`

func scanExaminer(row interface{ Scan(...any) error }) (Examiner, error) {
	var (
		ex      Examiner
		created int64
	)
	if err := row.Scan(&ex.ID, &ex.Email, &ex.FullName, &ex.Age, &ex.DateDeployed, &ex.Designation, &ex.StoreArea, &created); err != nil {
		return Examiner{}, err
	}
	ex.CreatedAt = time.UnixMilli(created).UTC()
	return ex, nil
}

func (r *Repo) GetExaminer(ctx context.Context, id string) (Examiner, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+examinerCols+` FROM examiners e JOIN users u ON u.id = e.id WHERE e.id=$1`, id)
	ex, err := scanExaminer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Examiner{}, ErrNotFound
	}
	return ex, err
}

func (r *Repo) ListExaminers(ctx context.Context) ([]Examiner, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+examinerCols+` FROM examiners e JOIN users u ON u.id = e.id ORDER BY e.full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Examiner{}
	for rows.Next() {
		ex, err := scanExaminer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (r *Repo) CountExaminers(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM examiners`).Scan(&n)
	return n, err
}

// Login satisfies the token issuer's credential check.
func (r *Repo) Login(ctx context.Context, email, password string) (string, string, error) {
	u, err := r.Authenticate(ctx, email, password)
	if err != nil {
		return "", "", err
	}
	return u.ID, u.Role, nil
}
