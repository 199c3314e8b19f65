package chat

import (
	"github.com/convoflow/convoflow-backend/internal/repository"
	"github.com/convoflow/convoflow-backend/internal/tokenizer"
)

// Trimmer selects the suffix of a session's history that fits a token
// budget. The remainder becomes the overflow set consumed by the summarizer.
type Trimmer struct {
	estimator *tokenizer.Estimator

	// requireUserFirst enforces the provider rule that history must begin
	// with a user turn. A leading assistant turn is moved to the overflow.
	requireUserFirst bool
}

// NewTrimmer creates a Trimmer over the given estimator.
func NewTrimmer(estimator *tokenizer.Estimator, requireUserFirst bool) *Trimmer {
	return &Trimmer{estimator: estimator, requireUserFirst: requireUserFirst}
}

// Trim scans history from the most recent turn backward, accumulating token
// estimates, and splits it into a windowed suffix that fits the budget and
// the overflow prefix. When even the single most recent turn exceeds the
// budget, the window is empty; the caller proceeds regardless.
func (t *Trimmer) Trim(history []repository.Turn, tokenBudget int) (window, overflow []repository.Turn) {
	if len(history) == 0 {
		return nil, nil
	}

	cut := len(history)
	total := 0
	for i := len(history) - 1; i >= 0; i-- {
		cost := t.estimator.CountTurn(history[i])
		if total+cost > tokenBudget {
			break
		}
		total += cost
		cut = i
	}

	overflow = append(overflow, history[:cut]...)
	window = append(window, history[cut:]...)

	if t.requireUserFirst {
		for len(window) > 0 && window[0].Role == repository.RoleAssistant {
			overflow = append(overflow, window[0])
			window = window[1:]
		}
	}

	return window, overflow
}
