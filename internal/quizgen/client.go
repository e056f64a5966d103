package quizgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"live-session-service/internal/domain"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "openai/gpt-3.5-turbo"

	systemPrompt = "You are a quiz generator. Generate a multiple-choice question based on the " +
		"given transcript. The question should be clear, concise, and test understanding of the " +
		"key points. Include 4 options, with one correct answer and three plausible distractors. " +
		"Mark the correct option with (correct). Also provide a brief explanation of why the " +
		"correct answer is right."
)

// Client generates quizzes from transcript text through a chat-completions
// endpoint. Any failure degrades to a deterministic fallback quiz; callers
// never see an error from quiz generation itself.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, model, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateQuiz asks the model for a question about the transcript. On any
// failure it logs and returns FallbackQuiz, never an error.
func (c *Client) GenerateQuiz(ctx context.Context, transcript string) (domain.Quiz, error) {
	quiz, err := c.generate(ctx, transcript)
	if err != nil {
		log.Printf("quiz generation failed, using fallback: %v", err)
		return FallbackQuiz(), nil
	}
	return quiz, nil
}

func (c *Client) generate(ctx context.Context, transcript string) (domain.Quiz, error) {
	if strings.TrimSpace(transcript) == "" {
		return domain.Quiz{}, fmt.Errorf("empty transcript")
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Generate a quiz question based on this transcript:\n\n" + transcript},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Quiz{}, fmt.Errorf("completion endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("read response: %w", err)
	}
	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return domain.Quiz{}, fmt.Errorf("completion returned no choices")
	}

	return ParseQuizText(completion.Choices[0].Message.Content)
}

var optionLine = regexp.MustCompile(`^[A-D][.)]\s*`)

// ParseQuizText extracts a quiz from the model's lettered-options text
// format: a question line, options "A) ..." through "D) ...", "(correct)"
// marking the right one, and an optional "Explanation:" line.
func ParseQuizText(text string) (domain.Quiz, error) {
	var quiz domain.Quiz
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case optionLine.MatchString(line):
			option := optionLine.ReplaceAllString(line, "")
			correct := strings.Contains(strings.ToLower(option), "(correct)")
			option = strings.TrimSpace(strings.NewReplacer("(correct)", "", "(Correct)", "").Replace(option))
			quiz.Options = append(quiz.Options, option)
			if correct {
				quiz.CorrectAnswer = option
			}
		case strings.HasPrefix(strings.ToLower(line), "explanation:"):
			quiz.Explanation = strings.TrimSpace(line[len("explanation:"):])
		case quiz.Question == "":
			quiz.Question = strings.TrimSpace(strings.TrimPrefix(line, "Question:"))
		}
	}

	if quiz.Question == "" || len(quiz.Options) < 2 {
		return domain.Quiz{}, fmt.Errorf("could not parse quiz from completion text")
	}
	if quiz.CorrectAnswer == "" {
		quiz.CorrectAnswer = quiz.Options[0]
	}
	return quiz, nil
}

// FallbackQuiz is the deterministic quiz used when generation fails.
func FallbackQuiz() domain.Quiz {
	return domain.Quiz{
		Question: "What was the main topic discussed?",
		Options: []string{
			"The main topic was not clear",
			"The transcript was too short",
			"The audio quality was poor",
			"The speaker was unclear",
		},
		CorrectAnswer: "The main topic was not clear",
		Explanation:   "Unable to generate a proper quiz due to technical issues.",
	}
}
