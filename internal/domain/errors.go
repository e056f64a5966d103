package domain

import "errors"

var (
	// ErrValidation is returned when a request is missing required fields.
	ErrValidation = errors.New("missing or invalid field")
	// ErrSessionNotFound is returned for operations on unknown sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionEnded is returned when an ended session is mutated.
	ErrSessionEnded = errors.New("session has ended")
	// ErrQuizNotFound is returned when a quiz id matches neither the active
	// quiz nor session history.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizActive is returned by StartQuiz while another quiz is running.
	ErrQuizActive = errors.New("another quiz is already active")
	// ErrQuizClosed is returned for answers arriving after the window.
	ErrQuizClosed = errors.New("quiz is no longer accepting answers")
)
