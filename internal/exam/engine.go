package exam

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mind-engage/examportal/internal/grading"
)

const (
	// MinQuestions is the smallest pool an attempt can be drawn from.
	MinQuestions = 5
	// MaxQuestions caps the draw for one attempt.
	MaxQuestions = 20
	// AllottedDuration is the enforced length of an attempt.
	AllottedDuration = 30 * time.Minute

	// finalizeTries bounds re-reads when answers land while a finalize is scoring.
	finalizeTries = 5
)

// Event types handed to the Recorder.
const (
	EventAttemptStarted   = "AttemptStarted"
	EventAnswerRecorded   = "AnswerRecorded"
	EventAttemptFinalized = "AttemptFinalized"
)

// Trigger names what caused a finalization.
type Trigger string

const (
	TriggerSubmit Trigger = "submit"
	TriggerExpiry Trigger = "expiry"
)

// Recorder receives lifecycle events. Implementations must not block for long; errors are theirs to log.
type Recorder interface {
	Record(ctx context.Context, typ, attemptID string, data interface{})
}

// Shuffler permutes n elements in place through swap.
type Shuffler func(n int, swap func(i, j int))

type Engine struct {
	questions QuestionRepository
	attempts  AttemptStore
	grader    *grading.Grader
	clock     Clock
	shuffle   Shuffler
	recorder  Recorder
	timeout   time.Duration
	log       zerolog.Logger
}

type Option func(*Engine)

func WithClock(c Clock) Option                { return func(e *Engine) { e.clock = c } }
func WithShuffler(s Shuffler) Option          { return func(e *Engine) { e.shuffle = s } }
func WithRecorder(r Recorder) Option          { return func(e *Engine) { e.recorder = r } }
func WithLogger(l zerolog.Logger) Option      { return func(e *Engine) { e.log = l } }
func WithStoreTimeout(d time.Duration) Option { return func(e *Engine) { e.timeout = d } }

func NewEngine(questions QuestionRepository, attempts AttemptStore, opts ...Option) *Engine {
	e := &Engine{
		questions: questions,
		attempts:  attempts,
		grader:    grading.NewDefaultGrader(),
		clock:     SystemClock(),
		shuffle:   rand.Shuffle,
		timeout:   5 * time.Second,
		log:       log.Logger.With().Str("component", "exam").Logger(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Clock() Clock { return e.clock }

func (e *Engine) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *Engine) record(ctx context.Context, typ, attemptID string, data interface{}) {
	if e.recorder != nil {
		e.recorder.Record(ctx, typ, attemptID, data)
	}
}

// StartAttempt returns the caller's in-progress attempt for examType, or draws a new one.
// An in-progress attempt whose time already ran out is finalized through the expiry
// path and a fresh attempt is drawn in its place.
func (e *Engine) StartAttempt(ctx context.Context, userID string, examType ExamType) (Attempt, error) {
	if !examType.Valid() {
		return Attempt{}, fmt.Errorf("%w: %q", ErrUnknownExamType, examType)
	}
	if userID == "" {
		return Attempt{}, errors.New("user id required")
	}

	sctx, cancel := e.bounded(ctx)
	pool, err := e.questions.ListQuestions(sctx, examType)
	cancel()
	if err != nil {
		return Attempt{}, fmt.Errorf("list questions: %w", err)
	}
	if len(pool) < MinQuestions {
		return Attempt{}, fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientQuestions, examType, len(pool), MinQuestions)
	}

	if a, ok, err := e.resume(ctx, userID, examType); err != nil || ok {
		return a, err
	}

	a := e.draw(userID, examType, pool)
	sctx, cancel = e.bounded(ctx)
	id, err := e.attempts.Create(sctx, a)
	cancel()
	if errors.Is(err, ErrConflict) {
		// Another request created one between our lookup and insert.
		if a, ok, rerr := e.resume(ctx, userID, examType); rerr != nil || ok {
			return a, rerr
		}
		return Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	if err != nil {
		return Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	a.ID = id
	e.log.Info().Str("attempt_id", id).Str("user_id", userID).Str("exam_type", string(examType)).
		Int("total_questions", a.TotalQuestions).Msg("attempt started")
	e.record(ctx, EventAttemptStarted, id, map[string]interface{}{
		"user_id": userID, "exam_type": examType, "total_questions": a.TotalQuestions,
	})
	return a, nil
}

// resume looks up the in-progress attempt and expires it if its deadline passed.
func (e *Engine) resume(ctx context.Context, userID string, examType ExamType) (Attempt, bool, error) {
	sctx, cancel := e.bounded(ctx)
	existing, ok, err := e.attempts.FindInProgress(sctx, userID, examType)
	cancel()
	if err != nil {
		return Attempt{}, false, fmt.Errorf("find in-progress attempt: %w", err)
	}
	if !ok {
		return Attempt{}, false, nil
	}
	if Countdown(e.clock.Now(), existing.StartedAt, existing.Allotted()) > 0 {
		return existing, true, nil
	}
	if _, err := e.finalize(ctx, existing.ID, TriggerExpiry); err != nil {
		return Attempt{}, false, err
	}
	return Attempt{}, false, nil
}

func (e *Engine) draw(userID string, examType ExamType, pool []Question) Attempt {
	ids := make([]string, len(pool))
	for i, q := range pool {
		ids[i] = q.ID
	}
	e.shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > MaxQuestions {
		ids = ids[:MaxQuestions]
	}
	answers := make(map[string]interface{}, len(ids))
	for _, id := range ids {
		answers[id] = nil
	}
	now := e.clock.Now()
	return Attempt{
		ID:              uuid.NewString(),
		UserID:          userID,
		ExamType:        examType,
		QuestionIDs:     ids,
		Answers:         answers,
		StartedAt:       now,
		UpdatedAt:       now,
		TotalQuestions:  len(ids),
		AllottedSeconds: int(AllottedDuration / time.Second),
	}
}

// RecordAnswer stores value as the answer to questionID. nil clears the answer.
func (e *Engine) RecordAnswer(ctx context.Context, attemptID, questionID string, value interface{}) error {
	a, err := e.get(ctx, attemptID)
	if err != nil {
		return err
	}
	if a.Finalized() {
		e.rejectLate(attemptID, questionID)
		return fmt.Errorf("attempt %s: %w", attemptID, ErrAttemptAlreadyFinalized)
	}
	if Countdown(e.clock.Now(), a.StartedAt, a.Allotted()) <= 0 {
		if _, err := e.finalize(ctx, attemptID, TriggerExpiry); err != nil {
			return err
		}
		e.rejectLate(attemptID, questionID)
		return fmt.Errorf("attempt %s expired: %w", attemptID, ErrAttemptAlreadyFinalized)
	}
	if !a.hasQuestion(questionID) {
		return fmt.Errorf("question %s is not part of attempt %s: %w", questionID, attemptID, ErrNotFound)
	}

	sctx, cancel := e.bounded(ctx)
	qs, err := e.questions.GetQuestionsByIDs(sctx, []string{questionID})
	cancel()
	if err != nil {
		return fmt.Errorf("load question: %w", err)
	}
	if len(qs) == 0 {
		return fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	if err := e.grader.Check(qs[0].gradingView(), value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAnswerFormat, err)
	}

	sctx, cancel = e.bounded(ctx)
	_, err = e.attempts.Update(sctx, attemptID, AttemptPatch{
		Answers: map[string]interface{}{questionID: value},
	}, Precondition{InProgress: true})
	cancel()
	if errors.Is(err, ErrConflict) {
		e.rejectLate(attemptID, questionID)
		return fmt.Errorf("attempt %s: %w", attemptID, ErrAttemptAlreadyFinalized)
	}
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	e.record(ctx, EventAnswerRecorded, attemptID, map[string]interface{}{"question_id": questionID})
	return nil
}

func (e *Engine) rejectLate(attemptID, questionID string) {
	e.log.Warn().Str("attempt_id", attemptID).Str("question_id", questionID).Msg("answer rejected: attempt already finalized")
}

// SubmitAttempt finalizes on explicit user action. Already finalized attempts are returned unchanged.
func (e *Engine) SubmitAttempt(ctx context.Context, attemptID string) (Attempt, error) {
	return e.finalize(ctx, attemptID, TriggerSubmit)
}

// Expire finalizes because the countdown reached zero. It is a no-op before the deadline.
func (e *Engine) Expire(ctx context.Context, attemptID string) (Attempt, error) {
	a, err := e.get(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Finalized() || Countdown(e.clock.Now(), a.StartedAt, a.Allotted()) > 0 {
		return a, nil
	}
	return e.finalize(ctx, attemptID, TriggerExpiry)
}

// RemainingTime reports the time left. An attempt found at zero is finalized on the spot.
func (e *Engine) RemainingTime(ctx context.Context, attemptID string) (time.Duration, error) {
	a, err := e.get(ctx, attemptID)
	if err != nil {
		return 0, err
	}
	if a.Finalized() {
		return 0, nil
	}
	left := Countdown(e.clock.Now(), a.StartedAt, a.Allotted())
	if left > 0 {
		return left, nil
	}
	if _, err := e.finalize(ctx, attemptID, TriggerExpiry); err != nil {
		return 0, err
	}
	return 0, nil
}

// PreviewScore scores the current answers without finalizing.
func (e *Engine) PreviewScore(ctx context.Context, attemptID string) (int, error) {
	a, err := e.get(ctx, attemptID)
	if err != nil {
		return 0, err
	}
	qs, err := e.Questions(ctx, a)
	if err != nil {
		return 0, err
	}
	return e.score(qs, a.Answers), nil
}

// Questions returns the attempt's questions in drawn order. Deleted questions are skipped.
func (e *Engine) Questions(ctx context.Context, a Attempt) ([]Question, error) {
	sctx, cancel := e.bounded(ctx)
	qs, err := e.questions.GetQuestionsByIDs(sctx, a.QuestionIDs)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	byID := make(map[string]Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	out := make([]Question, 0, len(a.QuestionIDs))
	for _, id := range a.QuestionIDs {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (e *Engine) score(qs []Question, answers map[string]interface{}) int {
	views := make([]grading.Q, len(qs))
	for i, q := range qs {
		views[i] = q.gradingView()
	}
	return e.grader.Score(views, answers)
}

// Attempt reads an attempt as stored. It never finalizes.
func (e *Engine) Attempt(ctx context.Context, attemptID string) (Attempt, error) {
	return e.get(ctx, attemptID)
}

// History lists attempts, newest first.
func (e *Engine) History(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	sctx, cancel := e.bounded(ctx)
	defer cancel()
	return e.attempts.List(sctx, opts)
}

func (e *Engine) get(ctx context.Context, attemptID string) (Attempt, error) {
	sctx, cancel := e.bounded(ctx)
	defer cancel()
	return e.attempts.Get(sctx, attemptID)
}

// finalize scores and completes an attempt exactly once. The write is conditioned on the
// version that was scored, so an answer landing mid-way forces a re-read instead of a
// stale score. A concurrent finalization wins and its record is returned unchanged.
func (e *Engine) finalize(ctx context.Context, attemptID string, trigger Trigger) (Attempt, error) {
	for try := 0; try < finalizeTries; try++ {
		a, err := e.get(ctx, attemptID)
		if err != nil {
			return Attempt{}, err
		}
		if a.Finalized() {
			return a, nil
		}
		qs, err := e.Questions(ctx, a)
		if err != nil {
			return Attempt{}, err
		}
		if len(qs) < len(a.QuestionIDs) {
			e.log.Warn().Str("attempt_id", attemptID).Int("missing", len(a.QuestionIDs)-len(qs)).
				Msg("scoring attempt with deleted questions")
		}

		now := e.clock.Now()
		f := Finalization{
			Score:            e.score(qs, a.Answers),
			CompletedAt:      now,
			TimeTakenSeconds: timeTaken(now, a.StartedAt, a.Allotted()),
		}
		sctx, cancel := e.bounded(ctx)
		done, err := e.attempts.Update(sctx, attemptID, AttemptPatch{Final: &f}, Precondition{InProgress: true, Version: a.Version})
		cancel()
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return Attempt{}, fmt.Errorf("finalize attempt: %w", err)
		}
		e.log.Info().Str("attempt_id", attemptID).Str("trigger", string(trigger)).Int("score", f.Score).
			Int("total_questions", done.TotalQuestions).Int("time_taken", f.TimeTakenSeconds).Msg("attempt finalized")
		e.record(ctx, EventAttemptFinalized, attemptID, map[string]interface{}{
			"trigger": trigger, "score": f.Score, "total_questions": done.TotalQuestions, "time_taken": f.TimeTakenSeconds,
		})
		return done, nil
	}
	return Attempt{}, fmt.Errorf("finalize attempt %s: %w", attemptID, ErrConflict)
}

// ExpireOverdue finalizes every in-progress attempt whose deadline has passed. A failed
// attempt does not stop the sweep; every failure is returned joined.
func (e *Engine) ExpireOverdue(ctx context.Context) ([]Attempt, error) {
	sctx, cancel := e.bounded(ctx)
	due, err := e.attempts.ListExpired(sctx, e.clock.Now())
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list expired attempts: %w", err)
	}
	out := make([]Attempt, 0, len(due))
	var errs []error
	for _, a := range due {
		done, err := e.finalize(ctx, a.ID, TriggerExpiry)
		if err != nil {
			e.log.Error().Err(err).Str("attempt_id", a.ID).Msg("expire overdue attempt")
			errs = append(errs, fmt.Errorf("attempt %s: %w", a.ID, err))
			continue
		}
		out = append(out, done)
	}
	return out, errors.Join(errs...)
}

func timeTaken(now, startedAt time.Time, allotted time.Duration) int {
	elapsed := now.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > allotted {
		elapsed = allotted
	}
	return int(elapsed / time.Second)
}
