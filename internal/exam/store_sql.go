package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/examportal/internal/db"
)

// casTries bounds how often an answer merge is retried when another write wins the race.
const casTries = 8

// SQLStore implements QuestionStore and AttemptStore over database/sql (sqlite or postgres).
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh}
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// --- questions ---

const questionCols = `id,exam_type,question_type,question_text,options_json,correct_answer_json,image_url,created_by,created_at`

func (s *SQLStore) PutQuestion(ctx context.Context, q Question) error {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	key, err := json.Marshal(q.CorrectAnswer)
	if err != nil {
		return err
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO questions (`+questionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET exam_type=EXCLUDED.exam_type, question_type=EXCLUDED.question_type,
			question_text=EXCLUDED.question_text, options_json=EXCLUDED.options_json,
			correct_answer_json=EXCLUDED.correct_answer_json, image_url=EXCLUDED.image_url`,
		q.ID, string(q.ExamType), string(q.Type), q.Text, string(opts), string(key), q.ImageURL, q.CreatedBy, toMillis(q.CreatedAt))
	return storeErr("put question", err)
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionCols+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Question{}, storeErr("get question", err)
	}
	return q, nil
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return storeErr("delete question", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, examType ExamType) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+questionCols+` FROM questions WHERE exam_type=$1 ORDER BY created_at DESC`, string(examType))
	if err != nil {
		return nil, storeErr("list questions", err)
	}
	defer rows.Close()
	return collectQuestions(rows)
}

func (s *SQLStore) GetQuestionsByIDs(ctx context.Context, ids []string) ([]Question, error) {
	if len(ids) == 0 {
		return []Question{}, nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+questionCols+` FROM questions WHERE id IN (`+strings.Join(ph, ",")+`)`, args...)
	if err != nil {
		return nil, storeErr("get questions", err)
	}
	defer rows.Close()
	return collectQuestions(rows)
}

func (s *SQLStore) CountByExamType(ctx context.Context) (map[ExamType]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT exam_type, COUNT(*) FROM questions GROUP BY exam_type`)
	if err != nil {
		return nil, storeErr("count questions", err)
	}
	defer rows.Close()
	out := map[ExamType]int{}
	for _, t := range ExamTypes {
		out[t] = 0
	}
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, storeErr("count questions", err)
		}
		out[ExamType(t)] = n
	}
	return out, storeErr("count questions", rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(r scanner) (Question, error) {
	var (
		q                 Question
		et, qt, opts, key string
		createdAt         int64
	)
	if err := r.Scan(&q.ID, &et, &qt, &q.Text, &opts, &key, &q.ImageURL, &q.CreatedBy, &createdAt); err != nil {
		return Question{}, err
	}
	q.ExamType = ExamType(et)
	q.Type = QuestionType(qt)
	q.CreatedAt = fromMillis(createdAt)
	if opts != "" && opts != "null" {
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return Question{}, fmt.Errorf("question %s options: %w", q.ID, err)
		}
	}
	if key != "" {
		if err := json.Unmarshal([]byte(key), &q.CorrectAnswer); err != nil {
			return Question{}, fmt.Errorf("question %s correct answer: %w", q.ID, err)
		}
	}
	return q, nil
}

func collectQuestions(rows *sql.Rows) ([]Question, error) {
	out := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, storeErr("scan question", err)
		}
		out = append(out, q)
	}
	return out, storeErr("scan questions", rows.Err())
}

// --- attempts ---

const attemptCols = `id,user_id,exam_type,question_ids_json,answers_json,started_at,completed_at,score,total_questions,time_taken,allotted_seconds,updated_at,version`

func (s *SQLStore) Create(ctx context.Context, a Attempt) (string, error) {
	qids, err := json.Marshal(a.QuestionIDs)
	if err != nil {
		return "", err
	}
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exam_attempts
		(id,user_id,exam_type,question_ids_json,answers_json,started_at,total_questions,allotted_seconds,updated_at,version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,1)`,
		a.ID, a.UserID, string(a.ExamType), string(qids), string(answers),
		toMillis(a.StartedAt), a.TotalQuestions, a.AllottedSeconds, toMillis(a.StartedAt))
	if db.IsUniqueViolation(err) {
		return "", fmt.Errorf("user %q already has a %s attempt in progress: %w", a.UserID, a.ExamType, ErrConflict)
	}
	if err != nil {
		return "", storeErr("create attempt", err)
	}
	return a.ID, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM exam_attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("attempt %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Attempt{}, storeErr("get attempt", err)
	}
	return a, nil
}

func (s *SQLStore) FindInProgress(ctx context.Context, userID string, examType ExamType) (Attempt, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM exam_attempts
		WHERE user_id=$1 AND exam_type=$2 AND completed_at IS NULL`, userID, string(examType))
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, false, nil
	}
	if err != nil {
		return Attempt{}, false, storeErr("find in-progress attempt", err)
	}
	return a, true, nil
}

// Update is a compare-and-swap on the version column. Answer merges retry on a lost
// race; a caller-supplied Version or a finalized row fails with ErrConflict instead.
func (s *SQLStore) Update(ctx context.Context, id string, patch AttemptPatch, pre Precondition) (Attempt, error) {
	for try := 0; try < casTries; try++ {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return Attempt{}, err
		}
		if pre.InProgress && cur.Finalized() {
			return Attempt{}, fmt.Errorf("attempt %q is finalized: %w", id, ErrConflict)
		}
		if pre.Version > 0 && cur.Version != pre.Version {
			return Attempt{}, fmt.Errorf("attempt %q changed (version %d, want %d): %w", id, cur.Version, pre.Version, ErrConflict)
		}

		next := cur.clone()
		for k, v := range patch.Answers {
			next.Answers[k] = v
		}
		if patch.Final != nil {
			patch.Final.apply(&next)
		}
		next.UpdatedAt = time.Now().UTC()
		answers, err := json.Marshal(next.Answers)
		if err != nil {
			return Attempt{}, err
		}

		var completedAt, score, taken any
		if next.CompletedAt != nil {
			completedAt = toMillis(*next.CompletedAt)
			score = *next.Score
			taken = *next.TimeTakenSeconds
		}
		q := `UPDATE exam_attempts SET answers_json=$1, completed_at=$2, score=$3, time_taken=$4, updated_at=$5, version=version+1
			WHERE id=$6 AND version=$7`
		if pre.InProgress {
			q += ` AND completed_at IS NULL`
		}
		res, err := s.db.ExecContext(ctx, q, string(answers), completedAt, score, taken, toMillis(next.UpdatedAt), id, cur.Version)
		if err != nil {
			return Attempt{}, storeErr("update attempt", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Attempt{}, storeErr("update attempt", err)
		}
		if n == 1 {
			next.Version = cur.Version + 1
			return next, nil
		}
		if pre.Version > 0 {
			return Attempt{}, fmt.Errorf("attempt %q changed concurrently: %w", id, ErrConflict)
		}
	}
	return Attempt{}, fmt.Errorf("attempt %q: too much write contention: %w", id, ErrConflict)
}

func (s *SQLStore) List(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if opts.UserID != "" {
		add("user_id=?", opts.UserID)
	}
	if opts.ExamType != "" {
		add("exam_type=?", string(opts.ExamType))
	}
	if opts.Completed != nil {
		if *opts.Completed {
			where = append(where, "completed_at IS NOT NULL")
		} else {
			where = append(where, "completed_at IS NULL")
		}
	}
	q := `SELECT ` + attemptCols + ` FROM exam_attempts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, opts.Offset)
	order := `started_at DESC`
	if opts.ByCompletion {
		order = `completed_at IS NULL, completed_at DESC, started_at DESC`
	}
	q += ` ORDER BY ` + order + ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeErr("list attempts", err)
	}
	defer rows.Close()
	return collectAttempts(rows)
}

func (s *SQLStore) ListExpired(ctx context.Context, now time.Time) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+attemptCols+` FROM exam_attempts
		WHERE completed_at IS NULL AND started_at + allotted_seconds*1000 <= $1`, toMillis(now))
	if err != nil {
		return nil, storeErr("list expired attempts", err)
	}
	defer rows.Close()
	return collectAttempts(rows)
}

func scanAttempt(r scanner) (Attempt, error) {
	var (
		a                       Attempt
		et, qids, answers       string
		started, updated        int64
		completed, score, taken sql.NullInt64
	)
	if err := r.Scan(&a.ID, &a.UserID, &et, &qids, &answers, &started, &completed, &score,
		&a.TotalQuestions, &taken, &a.AllottedSeconds, &updated, &a.Version); err != nil {
		return Attempt{}, err
	}
	a.ExamType = ExamType(et)
	a.StartedAt = fromMillis(started)
	a.UpdatedAt = fromMillis(updated)
	if err := json.Unmarshal([]byte(qids), &a.QuestionIDs); err != nil {
		return Attempt{}, fmt.Errorf("attempt %s question ids: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return Attempt{}, fmt.Errorf("attempt %s answers: %w", a.ID, err)
	}
	if a.Answers == nil { // stored as JSON null
		a.Answers = map[string]interface{}{}
	}
	if completed.Valid && score.Valid && taken.Valid {
		Finalization{
			Score:            int(score.Int64),
			CompletedAt:      fromMillis(completed.Int64),
			TimeTakenSeconds: int(taken.Int64),
		}.apply(&a)
	}
	return a, nil
}

func collectAttempts(rows *sql.Rows) ([]Attempt, error) {
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, storeErr("scan attempt", err)
		}
		out = append(out, a)
	}
	return out, storeErr("scan attempts", rows.Err())
}
