package domain

import "time"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

// UserDetails identifies a host or participant. Email doubles as the user id
// throughout the API, so rosters are deduplicated by it.
type UserDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TranscriptSegment is one unit of captured speech-to-text output.
type TranscriptSegment struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Partial   bool      `json:"isPartial"`
}

// TranscriptChunk is one bounded-size piece of a transcript payload.
type TranscriptChunk struct {
	Text  string `json:"text"`
	Index int    `json:"chunkIndex"`
	Total int    `json:"totalChunks"`
	Final bool   `json:"isFinal"`
}

// Quiz is a single multiple-choice question with a bounded answer window.
type Quiz struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correctAnswer,omitempty"`
	Explanation   string    `json:"explanation,omitempty"`
	TimeLimit     int       `json:"timeLimit"` // seconds
	CreatedAt     time.Time `json:"createdAt"`
}

// QuizAnswer is one participant's entry in a quiz tally.
type QuizAnswer struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Answer  string `json:"answer"`
	Correct bool   `json:"correct"`
}

// QuizResult is the final tally built when a quiz window closes.
type QuizResult struct {
	QuizID  string       `json:"quizId"`
	Answers []QuizAnswer `json:"answers"`
}

// QuizRecord pairs a finished quiz with its tally for session history.
type QuizRecord struct {
	Quiz   Quiz       `json:"quiz"`
	Result QuizResult `json:"result"`
}

// SessionSnapshot is a copy-safe view of a session, returned by reads and
// archived when the session ends. The host is tracked separately and never
// appears in Participants.
type SessionSnapshot struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Host         UserDetails         `json:"host"`
	Participants []UserDetails       `json:"participants"`
	Status       SessionStatus       `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
	Transcript   []TranscriptSegment `json:"transcripts"`
	QuizHistory  []QuizRecord        `json:"quizzes"`
}
