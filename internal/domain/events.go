package domain

import "time"

// EventType names one kind of session event on the wire.
type EventType string

const (
	EventSessionCreated     EventType = "session-created"
	EventUserJoined         EventType = "user-joined"
	EventParticipantsUpdate EventType = "participants-update"
	EventTranscription      EventType = "new-transcription"
	EventQuizStarted        EventType = "new-quiz"
	EventAnswerSubmitted    EventType = "answer-submitted"
	EventQuizEnded          EventType = "quiz-ended"
	EventSessionEnded       EventType = "session-ended"
)

// Event is the closed set of payloads fanned out to session subscribers.
// Each kind carries fixed fields; transports wrap them in a {type, payload}
// envelope keyed by Type().
type Event interface {
	Type() EventType
}

// SessionCreated announces a freshly created session.
type SessionCreated struct {
	Session SessionSnapshot `json:"session"`
}

func (SessionCreated) Type() EventType { return EventSessionCreated }

// UserJoined announces a single participant joining.
type UserJoined struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

func (UserJoined) Type() EventType { return EventUserJoined }

// ParticipantsUpdate carries the full roster after any membership change.
type ParticipantsUpdate struct {
	Participants []UserDetails `json:"participants"`
}

func (ParticipantsUpdate) Type() EventType { return EventParticipantsUpdate }

// Transcription carries one transcript chunk.
type Transcription struct {
	Text        string    `json:"text"`
	Partial     bool      `json:"isPartial"`
	Timestamp   time.Time `json:"timestamp"`
	ChunkIndex  int       `json:"chunkIndex"`
	TotalChunks int       `json:"totalChunks"`
}

func (Transcription) Type() EventType { return EventTranscription }

// QuizStarted announces the session's new active quiz.
type QuizStarted struct {
	Quiz Quiz `json:"quiz"`
}

func (QuizStarted) Type() EventType { return EventQuizStarted }

// AnswerSubmitted announces one participant's answer to the active quiz.
type AnswerSubmitted struct {
	UserID     string    `json:"userId"`
	Name       string    `json:"name"`
	Answer     string    `json:"answer"`
	QuestionID string    `json:"questionId"`
	Timestamp  time.Time `json:"timestamp"`
}

func (AnswerSubmitted) Type() EventType { return EventAnswerSubmitted }

// QuizEnded carries the final tally for a closed quiz.
type QuizEnded struct {
	QuizID  string       `json:"quizId"`
	Answers []QuizAnswer `json:"answers"`
}

func (QuizEnded) Type() EventType { return EventQuizEnded }

// SessionEnded is the last event a session channel ever carries.
type SessionEnded struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

func (SessionEnded) Type() EventType { return EventSessionEnded }
