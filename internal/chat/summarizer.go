package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/convoflow/convoflow-backend/internal/providers"
	"github.com/convoflow/convoflow-backend/internal/repository"
)

const summarizerInstruction = `Condense the conversation below into an updated running summary.
Preserve key facts, decisions, and open questions. Write in the conversation's
own natural language. Keep the summary under %d words.

Current summary (may be empty):
%s

New turns to fold in:
%s

Updated summary:`

// Summarizer maintains the running summary of turns that fell out of the
// context window. It is best-effort: a failed model call leaves the old
// summary in place and never fails the conversational turn.
type Summarizer struct {
	provider providers.Provider
	model    string
	maxWords int
	timeout  time.Duration
}

// NewSummarizer creates a Summarizer backed by the given provider.
func NewSummarizer(provider providers.Provider, model string, maxWords int, timeout time.Duration) *Summarizer {
	if maxWords <= 0 {
		maxWords = 200
	}
	return &Summarizer{
		provider: provider,
		model:    model,
		maxWords: maxWords,
		timeout:  timeout,
	}
}

// Update folds overflow turns into the running summary. An empty overflow is
// a no-op that returns oldSummary without a model call.
func (s *Summarizer) Update(ctx context.Context, oldSummary string, overflow []repository.Turn) string {
	if len(overflow) == 0 {
		return oldSummary
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(summarizerInstruction, s.maxWords, oldSummary, serializeTurns(overflow))

	temperature := float32(0.3)
	resp, err := s.provider.Complete(ctx, providers.CompletionRequest{
		Model:       s.model,
		Temperature: &temperature,
		Messages: []providers.Message{
			{Role: repository.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		logrus.WithError(err).WithField("stage", "summarizing").
			Warn("summary refresh failed, keeping previous summary")
		return oldSummary
	}
	if len(resp.Choices) == 0 {
		logrus.WithField("stage", "summarizing").
			Warn("summary refresh returned no choices, keeping previous summary")
		return oldSummary
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return oldSummary
	}
	return summary
}

func serializeTurns(turns []repository.Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(turn.Content.PromptText())
		b.WriteString("\n")
	}
	return b.String()
}
