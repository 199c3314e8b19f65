package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoflow/convoflow-backend/internal/repository"
	"github.com/convoflow/convoflow-backend/internal/tokenizer"
)

func turnOf(role, text string) repository.Turn {
	return repository.Turn{Role: role, Content: repository.TextContent(text)}
}

func TestTrimEmptyHistory(t *testing.T) {
	tr := NewTrimmer(tokenizer.NewFallback(), false)

	window, overflow := tr.Trim(nil, 100)
	assert.Empty(t, window)
	assert.Empty(t, overflow)
}

func TestTrimAllFits(t *testing.T) {
	tr := NewTrimmer(tokenizer.NewFallback(), false)

	history := []repository.Turn{
		turnOf(repository.RoleUser, "hi"),
		turnOf(repository.RoleAssistant, "hello"),
	}

	window, overflow := tr.Trim(history, 1000)
	assert.Len(t, window, 2)
	assert.Empty(t, overflow)
}

func TestTrimWindowWithinBudget(t *testing.T) {
	est := tokenizer.NewFallback()
	tr := NewTrimmer(est, false)

	var history []repository.Turn
	for i := 0; i < 30; i++ {
		history = append(history, turnOf(repository.RoleUser, strings.Repeat("word ", 20)))
	}

	budget := 120
	window, overflow := tr.Trim(history, budget)

	assert.LessOrEqual(t, est.CountTurns(window), budget)
	assert.Equal(t, len(history), len(window)+len(overflow))
}

func TestTrimReconstructsHistory(t *testing.T) {
	tr := NewTrimmer(tokenizer.NewFallback(), false)

	history := []repository.Turn{
		turnOf(repository.RoleUser, strings.Repeat("a", 100)),
		turnOf(repository.RoleAssistant, strings.Repeat("b", 100)),
		turnOf(repository.RoleUser, strings.Repeat("c", 100)),
		turnOf(repository.RoleAssistant, strings.Repeat("d", 100)),
	}

	window, overflow := tr.Trim(history, 60)

	rebuilt := append(append([]repository.Turn{}, overflow...), window...)
	require.Equal(t, history, rebuilt, "overflow ++ window must reconstruct history with nothing dropped or duplicated")
}

func TestTrimExcludesExactlyOldestOverBudget(t *testing.T) {
	est := tokenizer.NewFallback()
	tr := NewTrimmer(est, false)

	// Each turn costs the same; pick a budget that fits all but one.
	var history []repository.Turn
	for i := 0; i < 5; i++ {
		history = append(history, turnOf(repository.RoleUser, strings.Repeat("x", 40)))
	}
	perTurn := est.CountTurn(history[0])
	budget := perTurn*len(history) - 1

	window, overflow := tr.Trim(history, budget)
	assert.Len(t, overflow, 1)
	assert.Len(t, window, 4)
	assert.Equal(t, history[0], overflow[0])
}

func TestTrimSingleOversizedTurn(t *testing.T) {
	tr := NewTrimmer(tokenizer.NewFallback(), false)

	history := []repository.Turn{
		turnOf(repository.RoleUser, strings.Repeat("x", 4000)),
	}

	window, overflow := tr.Trim(history, 10)
	assert.Empty(t, window, "an oversized most-recent turn yields an empty window, not a failure")
	assert.Len(t, overflow, 1)
}

func TestTrimDropsLeadingAssistantTurn(t *testing.T) {
	est := tokenizer.NewFallback()
	tr := NewTrimmer(est, true)

	history := []repository.Turn{
		turnOf(repository.RoleUser, strings.Repeat("a", 200)),
		turnOf(repository.RoleAssistant, "short answer"),
		turnOf(repository.RoleUser, "short question"),
		turnOf(repository.RoleAssistant, "another answer"),
	}

	// Budget that cuts the first (large) user turn, leaving the window to
	// start on the assistant turn.
	budget := est.CountTurns(history[1:])
	window, overflow := tr.Trim(history, budget)

	assert.Equal(t, []repository.Turn{history[2], history[3]}, window)
	assert.Equal(t, []repository.Turn{history[0], history[1]}, overflow,
		"the dropped assistant turn moves to the overflow set")
}

func TestTrimWithoutUserFirstKeepsAssistantHead(t *testing.T) {
	est := tokenizer.NewFallback()
	tr := NewTrimmer(est, false)

	history := []repository.Turn{
		turnOf(repository.RoleUser, strings.Repeat("a", 200)),
		turnOf(repository.RoleAssistant, "short answer"),
		turnOf(repository.RoleUser, "short question"),
	}

	budget := est.CountTurns(history[1:])
	window, _ := tr.Trim(history, budget)

	require.NotEmpty(t, window)
	assert.Equal(t, repository.RoleAssistant, window[0].Role)
}
