package app

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"live-session-service/internal/domain"
)

// SessionRepository abstracts how live sessions are stored (in-memory, Redis
// liveness-marked, etc).
type SessionRepository interface {
	Put(session *Session, sessionID string)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// SessionArchiver persists the final snapshot of an ended session.
type SessionArchiver interface {
	ArchiveSession(ctx context.Context, snap domain.SessionSnapshot) error
}

// QuizGenerator produces a quiz from accumulated transcript text. Generators
// are expected to degrade gracefully and return a fallback quiz rather than
// an error whenever they can.
type QuizGenerator interface {
	GenerateQuiz(ctx context.Context, transcript string) (domain.Quiz, error)
}

// Config carries the tunable parts of the session core.
type Config struct {
	DefaultQuizWindow time.Duration // answer window when the request omits one
	MaxChunkSize      int           // transcript chunk ceiling in characters
}

const (
	defaultQuizWindow = 60 * time.Second
	defaultChunkSize  = 8000
)

// SessionService owns session and quiz lifecycle and the event fan-out
// contract: every successful mutation publishes its corresponding event to
// the session channel.
type SessionService struct {
	sessions SessionRepository
	cfg      Config
	gen      QuizGenerator
	sink     EventSink
	archiver SessionArchiver
	now      func() time.Time
	genGroup singleflight.Group
}

func NewSessionService(store SessionRepository, cfg Config, gen QuizGenerator, sink EventSink, archiver SessionArchiver) *SessionService {
	return NewSessionServiceWithClock(store, cfg, gen, sink, archiver, time.Now)
}

// NewSessionServiceWithClock is test-only for deterministic window timing.
func NewSessionServiceWithClock(store SessionRepository, cfg Config, gen QuizGenerator, sink EventSink, archiver SessionArchiver, now func() time.Time) *SessionService {
	if cfg.DefaultQuizWindow <= 0 {
		cfg.DefaultQuizWindow = defaultQuizWindow
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = defaultChunkSize
	}
	return &SessionService{
		sessions: store,
		cfg:      cfg,
		gen:      gen,
		sink:     sink,
		archiver: archiver,
		now:      now,
	}
}

// CreateSession registers a new active session and announces it.
func (s *SessionService) CreateSession(_ context.Context, name string, host domain.UserDetails) (domain.SessionSnapshot, error) {
	if name == "" || host.Name == "" || host.Email == "" {
		return domain.SessionSnapshot{}, domain.ErrValidation
	}

	session := newSession(newSessionID(), name, host, s.now, s.sink)
	s.sessions.Put(session, session.id)
	session.announceCreated()
	return session.Snapshot(), nil
}

// JoinSession adds a participant to an active session. Joining twice with the
// same email is a success no-op.
func (s *SessionService) JoinSession(_ context.Context, sessionID string, participant domain.UserDetails) (domain.SessionSnapshot, error) {
	if participant.Name == "" || participant.Email == "" {
		return domain.SessionSnapshot{}, domain.ErrValidation
	}
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return session.join(participant)
}

// LeaveSession removes a participant; unknown participants are a no-op.
func (s *SessionService) LeaveSession(_ context.Context, sessionID, userID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.leave(userID)
	return nil
}

// EndSession marks the session ended, archives the final snapshot when an
// archiver is configured, and keeps the record so late reads still resolve.
// Ending twice is idempotent.
func (s *SessionService) EndSession(ctx context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}

	snap, ended := session.end("Session has ended")
	if ended && s.archiver != nil {
		if err := s.archiver.ArchiveSession(ctx, snap); err != nil {
			log.Printf("archive session %s failed: %v", sessionID, err)
		}
	}
	return nil
}

// GetSession returns the current snapshot.
func (s *SessionService) GetSession(_ context.Context, sessionID string) (domain.SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// AppendTranscript chunks the text to the transport ceiling, appends the
// chunks to the session log, and publishes one Transcription event per chunk.
func (s *SessionService) AppendTranscript(_ context.Context, sessionID, text string) error {
	if text == "" {
		return domain.ErrValidation
	}
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.appendTranscript(ChunkTranscript(text, s.cfg.MaxChunkSize))
}

// StartQuiz installs a quiz as the session's active quiz and schedules its
// finalize for when the answer window elapses. Only one quiz may be active
// per session; starting another fails with ErrQuizActive.
func (s *SessionService) StartQuiz(_ context.Context, sessionID string, quiz domain.Quiz, windowSeconds int) (domain.Quiz, error) {
	if quiz.Question == "" || len(quiz.Options) < 2 {
		return domain.Quiz{}, domain.ErrValidation
	}
	if quiz.CorrectAnswer != "" && !containsOption(quiz.Options, quiz.CorrectAnswer) {
		return domain.Quiz{}, domain.ErrValidation
	}
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Quiz{}, domain.ErrSessionNotFound
	}

	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	window := time.Duration(windowSeconds) * time.Second
	if window <= 0 {
		window = s.cfg.DefaultQuizWindow
	}

	started, err := session.startQuiz(quiz, window)
	if err != nil {
		return domain.Quiz{}, err
	}

	// The timer is a best-effort nudge; the window comparison on each
	// submission is what actually closes the quiz to answers.
	quizID := started.ID
	time.AfterFunc(window, func() {
		session.finalizeQuiz(quizID)
	})
	return started, nil
}

// SubmitAnswer records a participant's answer to the active quiz. The last
// submission from the same participant wins.
func (s *SessionService) SubmitAnswer(_ context.Context, sessionID, quizID, userID, answer string) error {
	if userID == "" || answer == "" {
		return domain.ErrValidation
	}
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.submitAnswer(quizID, userID, answer)
}

// FinalizeQuiz closes the quiz early and broadcasts the tally. When the timer
// fires afterwards the second finalize is a no-op.
func (s *SessionService) FinalizeQuiz(_ context.Context, sessionID, quizID string) (domain.QuizResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.QuizResult{}, domain.ErrSessionNotFound
	}
	result, _ := session.finalizeQuiz(quizID)
	if result.QuizID == "" {
		return domain.QuizResult{}, domain.ErrQuizNotFound
	}
	return result, nil
}

// GenerateQuiz builds a quiz from the session's accumulated transcript and
// starts it. Concurrent generation requests for the same session share one
// in-flight generation.
func (s *SessionService) GenerateQuiz(ctx context.Context, sessionID string, windowSeconds int) (domain.Quiz, error) {
	if s.gen == nil {
		return domain.Quiz{}, domain.ErrValidation
	}
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Quiz{}, domain.ErrSessionNotFound
	}

	result, err, _ := s.genGroup.Do(sessionID, func() (interface{}, error) {
		quiz, err := s.gen.GenerateQuiz(ctx, session.transcriptText())
		if err != nil {
			return domain.Quiz{}, err
		}
		return s.StartQuiz(ctx, sessionID, quiz, windowSeconds)
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Subscribe returns a channel of session events. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Event, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func containsOption(options []string, answer string) bool {
	for _, opt := range options {
		if opt == answer {
			return true
		}
	}
	return false
}
