package app_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"live-session-service/internal/app"
	"live-session-service/internal/domain"
	"live-session-service/internal/infra/memory"
)

func mathQuiz() domain.Quiz {
	return domain.Quiz{
		Question:      "2+2=?",
		Options:       []string{"3", "4", "5"},
		CorrectAnswer: "4",
	}
}

func TestStartQuizValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	created, _ := service.CreateSession(ctx, "Lecture", host())

	bad := []domain.Quiz{
		{Question: "", Options: []string{"a", "b"}},
		{Question: "q", Options: []string{"only one"}},
		{Question: "q", Options: []string{"a", "b"}, CorrectAnswer: "c"},
	}
	for _, quiz := range bad {
		if _, err := service.StartQuiz(ctx, created.ID, quiz, 5); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", quiz, err)
		}
	}
}

func TestSingleActiveQuizPolicy(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	created, _ := service.CreateSession(ctx, "Lecture", host())

	started, err := service.StartQuiz(ctx, created.ID, mathQuiz(), 60)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.ID == "" {
		t.Fatalf("expected generated quiz id")
	}

	if _, err := service.StartQuiz(ctx, created.ID, mathQuiz(), 60); !errors.Is(err, domain.ErrQuizActive) {
		t.Fatalf("expected conflict while quiz active, got %v", err)
	}

	if _, err := service.FinalizeQuiz(ctx, created.ID, started.ID); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	// The active slot is free again once the quiz is finalized.
	if _, err := service.StartQuiz(ctx, created.ID, mathQuiz(), 60); err != nil {
		t.Fatalf("start after finalize failed: %v", err)
	}
}

func TestStartQuizOnEndedSessionFails(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	created, _ := service.CreateSession(ctx, "Lecture", host())
	_ = service.EndSession(ctx, created.ID)

	if _, err := service.StartQuiz(ctx, created.ID, mathQuiz(), 60); !errors.Is(err, domain.ErrSessionEnded) {
		t.Fatalf("expected ended error, got %v", err)
	}
}

func TestAnswerWindowBoundary(t *testing.T) {
	ctx := context.Background()
	service, clock := newTestService()
	created, _ := service.CreateSession(ctx, "Lecture", host())
	_, _ = service.JoinSession(ctx, created.ID, bob())

	started, err := service.StartQuiz(ctx, created.ID, mathQuiz(), 5)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// 1ms before the window closes: accepted.
	clock.Advance(5*time.Second - time.Millisecond)
	if err := service.SubmitAnswer(ctx, created.ID, started.ID, "b@y.com", "4"); err != nil {
		t.Fatalf("in-window answer rejected: %v", err)
	}

	// 1ms after: rejected even though the finalize timer has not fired.
	clock.Advance(2 * time.Millisecond)
	if err := service.SubmitAnswer(ctx, created.ID, started.ID, "b@y.com", "3"); !errors.Is(err, domain.ErrQuizClosed) {
		t.Fatalf("expected closed error after window, got %v", err)
	}
}

func TestResubmissionOverwrites(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	created, _ := service.CreateSession(ctx, "Lecture", host())
	_, _ = service.JoinSession(ctx, created.ID, bob())

	started, _ := service.StartQuiz(ctx, created.ID, mathQuiz(), 60)
	_ = service.SubmitAnswer(ctx, created.ID, started.ID, "b@y.com", "3")
	_ = service.SubmitAnswer(ctx, created.ID, started.ID, "b@y.com", "4")

	result, err := service.FinalizeQuiz(ctx, created.ID, started.ID)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if len(result.Answers) != 1 {
		t.Fatalf("expected one tally entry, got %d", len(result.Answers))
	}
	if result.Answers[0].Answer != "4" || !result.Answers[0].Correct {
		t.Fatalf("last write should win: %+v", result.Answers[0])
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	created, _ := service.CreateSession(ctx, "Lecture", host())
	_, _ = service.JoinSession(ctx, created.ID, bob())

	events, cancel, _ := service.Subscribe(ctx, created.ID)
	defer cancel()
	drainEvent(events) // user-joined
	drainEvent(events) // participants-update

	started, _ := service.StartQuiz(ctx, created.ID, mathQuiz(), 60)
	_ = service.SubmitAnswer(ctx, created.ID, started.ID, "b@y.com", "4")

	first, err := service.FinalizeQuiz(ctx, created.ID, started.ID)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	second, err := service.FinalizeQuiz(ctx, created.ID, started.ID)
	if err != nil {
		t.Fatalf("second finalize should not error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("tally changed on second finalize: %+v vs %+v", first, second)
	}

	endedCount := 0
	for drained := true; drained; {
		ev := drainEvent(events)
		if ev == nil {
			drained = false
			continue
		}
		if _, ok := ev.(domain.QuizEnded); ok {
			endedCount++
		}
	}
	if endedCount != 1 {
		t.Fatalf("expected exactly one quiz-ended broadcast, got %d", endedCount)
	}
}

func TestQuizLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	service, clock := newTestService()

	created, err := service.CreateSession(ctx, "Math class", host())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := service.JoinSession(ctx, created.ID, bob()); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	started, err := service.StartQuiz(ctx, created.ID, mathQuiz(), 5)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	clock.Advance(2 * time.Second)
	if err := service.SubmitAnswer(ctx, created.ID, started.ID, "b@y.com", "4"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	clock.Advance(4 * time.Second) // t+6s, past the window
	result, err := service.FinalizeQuiz(ctx, created.ID, started.ID)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	want := domain.QuizAnswer{UserID: "b@y.com", Name: "Bob", Answer: "4", Correct: true}
	if len(result.Answers) != 1 || result.Answers[0] != want {
		t.Fatalf("unexpected tally: %+v", result.Answers)
	}

	snap, _ := service.GetSession(ctx, created.ID)
	if len(snap.QuizHistory) != 1 || snap.QuizHistory[0].Quiz.ID != started.ID {
		t.Fatalf("quiz should be retained in history: %+v", snap.QuizHistory)
	}

	// Answers after finalize report the quiz as closed, not unknown.
	if err := service.SubmitAnswer(ctx, created.ID, started.ID, "b@y.com", "5"); !errors.Is(err, domain.ErrQuizClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestEndSessionFinalizesActiveQuiz(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	created, _ := service.CreateSession(ctx, "Lecture", host())
	_, _ = service.JoinSession(ctx, created.ID, bob())

	events, cancel, _ := service.Subscribe(ctx, created.ID)
	defer cancel()

	started, err := service.StartQuiz(ctx, created.ID, mathQuiz(), 60)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := service.SubmitAnswer(ctx, created.ID, started.ID, "b@y.com", "4"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if err := service.EndSession(ctx, created.ID); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	snap, _ := service.GetSession(ctx, created.ID)
	if len(snap.QuizHistory) != 1 || snap.QuizHistory[0].Quiz.ID != started.ID {
		t.Fatalf("active quiz should land in history on end: %+v", snap.QuizHistory)
	}
	tally := snap.QuizHistory[0].Result.Answers
	if len(tally) != 1 || tally[0].UserID != "b@y.com" || !tally[0].Correct {
		t.Fatalf("tally lost on end: %+v", tally)
	}

	var order []domain.EventType
	for ev := drainEvent(events); ev != nil; ev = drainEvent(events) {
		order = append(order, ev.Type())
	}
	if len(order) == 0 || order[len(order)-1] != domain.EventSessionEnded {
		t.Fatalf("session-ended must be the final event, got %v", order)
	}
	sawQuizEnded := false
	for _, typ := range order {
		switch typ {
		case domain.EventQuizEnded:
			sawQuizEnded = true
		case domain.EventSessionEnded:
			if !sawQuizEnded {
				t.Fatalf("quiz-ended must precede session-ended, got %v", order)
			}
		}
	}
}

func TestSubmitAnswerUnknownTargets(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	created, _ := service.CreateSession(ctx, "Lecture", host())

	if err := service.SubmitAnswer(ctx, "nope", "quiz", "b@y.com", "4"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	if err := service.SubmitAnswer(ctx, created.ID, "quiz", "b@y.com", "4"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestGenerateQuizStartsFromTranscript(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := memory.NewSessionStore()
	gen := &stubGenerator{quiz: mathQuiz()}
	service := app.NewSessionServiceWithClock(store, app.Config{}, gen, nil, nil, clock.Now)

	created, _ := service.CreateSession(ctx, "Lecture", host())
	_ = service.AppendTranscript(ctx, created.ID, "Today we add small numbers.")

	quiz, err := service.GenerateQuiz(ctx, created.ID, 30)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if quiz.ID == "" || quiz.TimeLimit != 30 {
		t.Fatalf("generated quiz not started properly: %+v", quiz)
	}
	if gen.gotTranscript == "" {
		t.Fatalf("generator should receive accumulated transcript")
	}

	// The generated quiz occupies the single active slot.
	if _, err := service.StartQuiz(ctx, created.ID, mathQuiz(), 30); !errors.Is(err, domain.ErrQuizActive) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

type stubGenerator struct {
	quiz          domain.Quiz
	gotTranscript string
}

func (g *stubGenerator) GenerateQuiz(_ context.Context, transcript string) (domain.Quiz, error) {
	g.gotTranscript = transcript
	return g.quiz, nil
}

func drainEvent(events <-chan domain.Event) domain.Event {
	select {
	case ev := <-events:
		return ev
	default:
		return nil
	}
}
