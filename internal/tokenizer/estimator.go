// Package tokenizer approximates token counts for budgeting context windows.
// Counts are a heuristic for trimming decisions, not a billing computation.
package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/sirupsen/logrus"

	"github.com/convoflow/convoflow-backend/internal/repository"
)

// Each turn carries roughly this many tokens of role/separator overhead.
const turnOverhead = 4

// Approximate characters per token for the fallback path.
const charsPerToken = 4

// Estimator counts tokens using cl100k_base when available, falling back to
// a character-ratio heuristic. Estimation never fails a request.
type Estimator struct {
	enc *tiktoken.Tiktoken
}

// New creates an Estimator. If the tiktoken encoding cannot be loaded the
// estimator silently degrades to the character heuristic.
func New() *Estimator {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logrus.WithError(err).Warn("tiktoken encoding unavailable, using character heuristic")
		return &Estimator{}
	}
	return &Estimator{enc: enc}
}

// NewFallback creates an Estimator that only uses the character heuristic.
func NewFallback() *Estimator {
	return &Estimator{}
}

// Count estimates tokens for a single string.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	if e.enc != nil {
		return len(e.enc.Encode(text, nil, nil))
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// CountTurn estimates tokens for one turn including role overhead.
func (e *Estimator) CountTurn(turn repository.Turn) int {
	return turnOverhead + e.Count(turn.Content.PromptText())
}

// CountTurns estimates tokens for an ordered turn sequence.
func (e *Estimator) CountTurns(turns []repository.Turn) int {
	total := 0
	for _, t := range turns {
		total += e.CountTurn(t)
	}
	return total
}
