package exam

import "errors"

var (
	ErrInsufficientQuestions   = errors.New("not enough questions for this exam type")
	ErrAttemptAlreadyFinalized = errors.New("attempt already finalized")
	ErrInvalidAnswerFormat     = errors.New("invalid answer format")
	ErrNotFound                = errors.New("not found")
	ErrConflict                = errors.New("write precondition failed")
	ErrStoreUnavailable        = errors.New("store unavailable")
	ErrUnknownExamType         = errors.New("unknown exam type")
	ErrInvalidQuestion         = errors.New("invalid question")
)
