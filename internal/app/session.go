package app

import (
	"context"
	"log"
	"sync"
	"time"

	"live-session-service/internal/domain"
)

// EventSink mirrors session events to an external transport (e.g. Redis
// pub/sub) so consumers outside this process can follow a session channel.
// Sink delivery is best-effort; failures are logged and never fail the
// operation that produced the event.
type EventSink interface {
	Publish(ctx context.Context, sessionID string, event domain.Event) error
}

// Session is the in-memory aggregate for one live session: roster, transcript
// log, quiz lifecycle, and the subscriber set for event fan-out. All mutation
// goes through its methods under one mutex; reads hand out deep copies.
type Session struct {
	id        string
	name      string
	host      domain.UserDetails
	createdAt time.Time
	now       func() time.Time
	sink      EventSink
	sinkCh    chan domain.Event

	mu           sync.RWMutex
	status       domain.SessionStatus
	participants []domain.UserDetails
	names        map[string]string // email -> display name, host included
	transcript   []domain.TranscriptSegment
	active       *activeQuiz
	history      []domain.QuizRecord
	subscribers  map[chan domain.Event]struct{}
	sinkClosed   bool
}

// activeQuiz is the session's single in-flight quiz. The window boundary is
// authoritative: answers are checked against createdAt+window on arrival, not
// against whether the finalize timer has fired yet.
type activeQuiz struct {
	quiz    domain.Quiz
	window  time.Duration
	answers map[string]string // email -> last submitted answer
	order   []string          // emails in first-submission order
}

func newSession(id, name string, host domain.UserDetails, now func() time.Time, sink EventSink) *Session {
	s := &Session{
		id:          id,
		name:        name,
		host:        host,
		createdAt:   now(),
		now:         now,
		sink:        sink,
		status:      domain.SessionStatusActive,
		names:       map[string]string{host.Email: host.Name},
		subscribers: make(map[chan domain.Event]struct{}),
	}
	if sink != nil {
		s.sinkCh = make(chan domain.Event, 64)
		go s.forwardToSink()
	}
	return s
}

// Snapshot returns a copy-safe view of the session.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		ID:           s.id,
		Name:         s.name,
		Host:         s.host,
		Participants: append([]domain.UserDetails(nil), s.participants...),
		Status:       s.status,
		CreatedAt:    s.createdAt,
		Transcript:   append([]domain.TranscriptSegment(nil), s.transcript...),
		QuizHistory:  append([]domain.QuizRecord(nil), s.history...),
	}
	return snap
}

// announceCreated publishes the session-created event. The local channel has
// no subscribers this early; the event matters to the external sink.
func (s *Session) announceCreated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(domain.SessionCreated{Session: s.snapshotLocked()})
}

// join adds a participant unless the email is already on the roster (or is
// the host's). Rejoining is a success no-op.
func (s *Session) join(p domain.UserDetails) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.SessionStatusEnded {
		return domain.SessionSnapshot{}, domain.ErrSessionEnded
	}
	if _, known := s.names[p.Email]; known {
		return s.snapshotLocked(), nil
	}

	s.participants = append(s.participants, p)
	s.names[p.Email] = p.Name
	s.publishLocked(domain.UserJoined{UserID: p.Email, Name: p.Name})
	s.publishLocked(domain.ParticipantsUpdate{Participants: append([]domain.UserDetails(nil), s.participants...)})
	return s.snapshotLocked(), nil
}

// leave removes a participant by email; absent participants and ended
// sessions are a no-op, so nothing is broadcast after session-ended.
func (s *Session) leave(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.SessionStatusEnded || userID == s.host.Email {
		return
	}
	for i, p := range s.participants {
		if p.Email == userID {
			s.participants = append(s.participants[:i], s.participants[i+1:]...)
			delete(s.names, userID)
			s.publishLocked(domain.ParticipantsUpdate{Participants: append([]domain.UserDetails(nil), s.participants...)})
			return
		}
	}
}

// end finalizes any active quiz and then transitions the session to ended,
// so the final snapshot carries every tally and quiz-ended always precedes
// session-ended. The second and later calls report ended=false and publish
// nothing.
func (s *Session) end(message string) (domain.SessionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.SessionStatusEnded {
		return s.snapshotLocked(), false
	}
	if s.active != nil {
		s.finalizeQuizLocked(s.active.quiz.ID)
	}
	s.status = domain.SessionStatusEnded
	s.publishLocked(domain.SessionEnded{SessionID: s.id, Message: message})
	if s.sinkCh != nil {
		s.sinkClosed = true
		close(s.sinkCh)
	}
	return s.snapshotLocked(), true
}

// appendTranscript stores the chunks as transcript segments and publishes one
// Transcription event per chunk, all within a single mutation turn.
func (s *Session) appendTranscript(chunks []domain.TranscriptChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.SessionStatusEnded {
		return domain.ErrSessionEnded
	}
	now := s.now()
	for _, chunk := range chunks {
		s.transcript = append(s.transcript, domain.TranscriptSegment{
			Text:      chunk.Text,
			Timestamp: now,
			Partial:   !chunk.Final,
		})
		s.publishLocked(domain.Transcription{
			Text:        chunk.Text,
			Partial:     !chunk.Final,
			Timestamp:   now,
			ChunkIndex:  chunk.Index,
			TotalChunks: chunk.Total,
		})
	}
	return nil
}

// transcriptText concatenates the stored transcript for quiz generation.
func (s *Session) transcriptText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var text string
	for _, seg := range s.transcript {
		if text != "" {
			text += " "
		}
		text += seg.Text
	}
	return text
}

// startQuiz installs the quiz as the session's single active quiz.
func (s *Session) startQuiz(quiz domain.Quiz, window time.Duration) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.SessionStatusEnded {
		return domain.Quiz{}, domain.ErrSessionEnded
	}
	if s.active != nil {
		return domain.Quiz{}, domain.ErrQuizActive
	}

	quiz.CreatedAt = s.now()
	quiz.TimeLimit = int(window / time.Second)
	s.active = &activeQuiz{
		quiz:    quiz,
		window:  window,
		answers: make(map[string]string),
	}
	s.publishLocked(domain.QuizStarted{Quiz: quiz})
	return quiz, nil
}

// submitAnswer records an answer for the active quiz. The window comparison
// against the injected clock decides acceptance, so a late submission is
// rejected even if the finalize timer has not fired yet. Resubmission
// overwrites the previous answer.
func (s *Session) submitAnswer(quizID, userID, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil || s.active.quiz.ID != quizID {
		for _, rec := range s.history {
			if rec.Quiz.ID == quizID {
				return domain.ErrQuizClosed
			}
		}
		return domain.ErrQuizNotFound
	}

	now := s.now()
	if now.Sub(s.active.quiz.CreatedAt) >= s.active.window {
		return domain.ErrQuizClosed
	}

	if _, seen := s.active.answers[userID]; !seen {
		s.active.order = append(s.active.order, userID)
	}
	s.active.answers[userID] = answer

	s.publishLocked(domain.AnswerSubmitted{
		UserID:     userID,
		Name:       s.displayNameLocked(userID),
		Answer:     answer,
		QuestionID: quizID,
		Timestamp:  now,
	})
	return nil
}

// finalizeQuiz tallies the active quiz, publishes quiz-ended, and moves the
// quiz to history. It is idempotent: only the call that actually closes the
// quiz broadcasts, later calls report false with the stored tally.
func (s *Session) finalizeQuiz(quizID string) (domain.QuizResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizeQuizLocked(quizID)
}

func (s *Session) finalizeQuizLocked(quizID string) (domain.QuizResult, bool) {
	if s.active == nil || s.active.quiz.ID != quizID {
		for _, rec := range s.history {
			if rec.Quiz.ID == quizID {
				return rec.Result, false
			}
		}
		return domain.QuizResult{}, false
	}

	active := s.active
	result := domain.QuizResult{QuizID: quizID, Answers: make([]domain.QuizAnswer, 0, len(active.order))}
	for _, userID := range active.order {
		answer := active.answers[userID]
		result.Answers = append(result.Answers, domain.QuizAnswer{
			UserID:  userID,
			Name:    s.displayNameLocked(userID),
			Answer:  answer,
			Correct: active.quiz.CorrectAnswer != "" && answer == active.quiz.CorrectAnswer,
		})
	}

	s.history = append(s.history, domain.QuizRecord{Quiz: active.quiz, Result: result})
	s.active = nil
	s.publishLocked(domain.QuizEnded{QuizID: quizID, Answers: result.Answers})
	return result, true
}

func (s *Session) displayNameLocked(userID string) string {
	if name, ok := s.names[userID]; ok {
		return name
	}
	return "Anonymous"
}

// subscribe registers a listener for this session's events. The caller must
// invoke the returned cancel function; calling it more than once is safe.
func (s *Session) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) publishLocked(event domain.Event) {
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest update so a slow subscriber never blocks the fan-out.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	if s.sinkCh != nil && !s.sinkClosed {
		select {
		case s.sinkCh <- event:
		default:
			log.Printf("event sink backlog full for session %s, dropping %s", s.id, event.Type())
		}
	}
}

// forwardToSink drains the per-session queue one event at a time so the
// external mirror observes events in mutation order. The queue is closed
// when the session ends.
func (s *Session) forwardToSink() {
	for event := range s.sinkCh {
		if err := s.sink.Publish(context.Background(), s.id, event); err != nil {
			log.Printf("event sink publish failed for session %s: %v", s.id, err)
		}
	}
}
