package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/convoflow/convoflow-backend/internal/providers"
	"github.com/convoflow/convoflow-backend/internal/repository"
	"github.com/convoflow/convoflow-backend/internal/tokenizer"
)

const (
	titleRuneLimit = 50

	systemInstruction = "You are a helpful assistant. Answer using the conversation so far."

	// Placeholders for the retrieved-context slot. The slot is always
	// present in RAG sessions; it is never left absent.
	noDocumentsPlaceholder   = "no relevant documents"
	retrievalDownPlaceholder = "document retrieval is temporarily unavailable"
)

// Passage is one retrieved document fragment with its relevance score.
type Passage struct {
	Content string
	Score   float64
}

// Retriever returns the top-k passages relevant to a query, ordered by
// descending relevance.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Passage, error)
}

// Options tunes the per-turn behavior of the Manager.
type Options struct {
	Model string

	// HistoryBudget is the token budget for windowed history. The incoming
	// user turn is always sent in full and never counted against it.
	HistoryBudget int

	// SummaryReserve bounds the summary block, separately from HistoryBudget.
	SummaryReserve int

	RetrievalTopK    int
	RetrievalTimeout time.Duration
	StreamTimeout    time.Duration
	SummarizeTimeout time.Duration
	PersistTimeout   time.Duration
}

// Manager orchestrates one conversational turn: session resolution, history
// loading, budgeting, optional retrieval, streaming invocation, persistence,
// and the detached summary refresh.
//
// Within one session at most one in-flight turn is assumed; concurrent
// submissions to the same session id are not coordinated.
type Manager struct {
	sessions   repository.SessionRepository
	turns      repository.TurnRepository
	provider   providers.Provider
	trimmer    *Trimmer
	summarizer *Summarizer
	estimator  *tokenizer.Estimator
	retriever  Retriever // nil disables retrieval augmentation
	opts       Options

	bg sync.WaitGroup
}

// NewManager wires a Manager from its collaborators. retriever may be nil.
func NewManager(
	sessions repository.SessionRepository,
	turns repository.TurnRepository,
	provider providers.Provider,
	trimmer *Trimmer,
	summarizer *Summarizer,
	estimator *tokenizer.Estimator,
	retriever Retriever,
	opts Options,
) *Manager {
	if opts.HistoryBudget <= 0 {
		opts.HistoryBudget = 4000
	}
	if opts.SummaryReserve <= 0 {
		opts.SummaryReserve = 600
	}
	if opts.RetrievalTopK <= 0 {
		opts.RetrievalTopK = 4
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 30 * time.Second
	}
	return &Manager{
		sessions:   sessions,
		turns:      turns,
		provider:   provider,
		trimmer:    trimmer,
		summarizer: summarizer,
		estimator:  estimator,
		retriever:  retriever,
		opts:       opts,
	}
}

// TurnRequest is one incoming user turn.
type TurnRequest struct {
	SessionID string
	OwnerID   string
	Role      string
	Text      string
}

// TurnStream is the streamed result of a submitted turn. Events is closed
// once the assistant turn has been persisted (or persistence was skipped).
type TurnStream struct {
	SessionID string
	Events    <-chan providers.StreamChunk
}

// SubmitTurn runs one conversational turn and returns the response stream.
// Validation and user-turn persistence failures surface here; everything
// after invocation starts is reported through the stream.
func (m *Manager) SubmitTurn(ctx context.Context, req TurnRequest) (*TurnStream, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, &ValidationError{Msg: "message text is required"}
	}
	if req.Role != "" && req.Role != repository.RoleUser {
		return nil, &ValidationError{Msg: "submitted turns must have the user role"}
	}

	session, err := m.resolveSession(ctx, req, text)
	if err != nil {
		return nil, err
	}

	log := logrus.WithField("session_id", session.ID)

	history, err := m.turns.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "loading history", Err: err}
	}

	window, overflow := m.trimmer.Trim(history, m.opts.HistoryBudget)

	// The user turn is persisted before invocation so a crash during the
	// model call cannot lose the caller's input.
	userTurn := repository.Turn{
		SessionID: session.ID,
		Role:      repository.RoleUser,
		Content:   repository.TextContent(text),
	}
	if _, err := m.turns.Append(ctx, userTurn); err != nil {
		return nil, &PersistenceError{Op: "persisting user turn", Err: err}
	}

	contextBlock := m.retrieveContext(ctx, log, text)

	messages := m.buildMessages(session.Summary, contextBlock, window, text)

	// The provider stream is detached from the caller's context so a
	// disconnect mid-stream still lets accumulation run to completion.
	streamCtx := context.Background()
	cancel := context.CancelFunc(func() {})
	if m.opts.StreamTimeout > 0 {
		streamCtx, cancel = context.WithTimeout(streamCtx, m.opts.StreamTimeout)
	}

	temperature := float32(0.7)
	providerStream, err := m.provider.StreamComplete(streamCtx, providers.CompletionRequest{
		Messages:    messages,
		Model:       m.opts.Model,
		Temperature: &temperature,
		Stream:      true,
	})
	if err != nil {
		cancel()
		return nil, &ModelInvocationError{Provider: m.provider.Name(), Err: err}
	}

	out := make(chan providers.StreamChunk, 1)
	go m.pump(ctx, cancel, log, session, userTurn, overflow, providerStream, out)

	return &TurnStream{SessionID: session.ID, Events: out}, nil
}

// CompleteTurn runs one turn and blocks until the full response text is
// available. Used by the non-streaming route.
func (m *Manager) CompleteTurn(ctx context.Context, req TurnRequest) (sessionID, content string, err error) {
	stream, err := m.SubmitTurn(ctx, req)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	for chunk := range stream.Events {
		if chunk.Delta != "" {
			b.WriteString(chunk.Delta)
		}
		if chunk.Error != "" {
			return stream.SessionID, "", &ModelInvocationError{Provider: m.provider.Name(), Err: errString(chunk.Error)}
		}
	}
	return stream.SessionID, b.String(), nil
}

// Wait blocks until detached background work (summary refreshes) finishes.
// Used on shutdown and in tests.
func (m *Manager) Wait() {
	m.bg.Wait()
}

func (m *Manager) resolveSession(ctx context.Context, req TurnRequest, text string) (*repository.Session, error) {
	if req.SessionID == "" {
		ownerID := strings.TrimSpace(req.OwnerID)
		if ownerID == "" {
			return nil, &ValidationError{Msg: "owner id required for new session"}
		}
		session := &repository.Session{
			OwnerID: ownerID,
			Title:   deriveTitle(text),
		}
		if err := m.sessions.Create(ctx, session); err != nil {
			return nil, &PersistenceError{Op: "creating session", Err: err}
		}
		return session, nil
	}

	// A supplied id is trusted as-is. An unknown id simply has no history
	// yet; a row is created under that id so turn appends have a parent.
	session, err := m.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, &PersistenceError{Op: "resolving session", Err: err}
	}
	if session == nil {
		session = &repository.Session{
			ID:      req.SessionID,
			OwnerID: strings.TrimSpace(req.OwnerID),
			Title:   deriveTitle(text),
		}
		if err := m.sessions.Create(ctx, session); err != nil {
			return nil, &PersistenceError{Op: "creating session", Err: err}
		}
	}
	return session, nil
}

// retrieveContext queries the retriever within its timeout. Failures degrade
// to a placeholder; they never block or fail the turn.
func (m *Manager) retrieveContext(ctx context.Context, log *logrus.Entry, query string) string {
	if m.retriever == nil {
		return ""
	}

	rctx := ctx
	if m.opts.RetrievalTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, m.opts.RetrievalTimeout)
		defer cancel()
	}

	passages, err := m.retriever.Retrieve(rctx, query, m.opts.RetrievalTopK)
	if err != nil {
		log.WithError(&RetrievalError{Err: err}).WithField("stage", "retrieving").
			Warn("continuing without retrieved context")
		return retrievalDownPlaceholder
	}
	if len(passages) == 0 {
		return noDocumentsPlaceholder
	}

	var b strings.Builder
	for _, p := range passages {
		b.WriteString("- ")
		b.WriteString(p.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildMessages assembles the provider message sequence: system instruction
// plus summary and retrieved context, then the windowed history, then the
// current user turn in full.
func (m *Manager) buildMessages(summary, contextBlock string, window []repository.Turn, text string) []providers.Message {
	var system strings.Builder
	system.WriteString(systemInstruction)

	if summary != "" {
		system.WriteString("\n\nSummary of the earlier conversation:\n")
		system.WriteString(m.capSummary(summary))
	}
	if contextBlock != "" {
		system.WriteString("\n\nRelevant documents:\n")
		system.WriteString(contextBlock)
	}

	messages := make([]providers.Message, 0, len(window)+2)
	messages = append(messages, providers.Message{
		Role:    repository.RoleSystem,
		Content: system.String(),
	})
	for _, turn := range window {
		messages = append(messages, providers.Message{
			Role:    turn.Role,
			Content: turn.Content.PromptText(),
		})
	}
	messages = append(messages, providers.Message{
		Role:    repository.RoleUser,
		Content: text,
	})
	return messages
}

// capSummary keeps the summary block inside its own token reservation,
// truncating to the longest rune prefix that still fits.
func (m *Manager) capSummary(summary string) string {
	if m.estimator.Count(summary) <= m.opts.SummaryReserve {
		return summary
	}
	runes := []rune(summary)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if m.estimator.Count(string(runes[:mid])) <= m.opts.SummaryReserve {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}

// pump forwards provider chunks to the caller while accumulating the full
// response, then handles post-stream persistence and the summary refresh.
func (m *Manager) pump(
	callerCtx context.Context,
	cancel context.CancelFunc,
	log *logrus.Entry,
	session *repository.Session,
	userTurn repository.Turn,
	overflow []repository.Turn,
	providerStream <-chan providers.StreamChunk,
	out chan<- providers.StreamChunk,
) {
	defer close(out)
	defer cancel()

	var buf strings.Builder
	var streamErr string
	forwarding := true

	for chunk := range providerStream {
		if chunk.Delta != "" {
			buf.WriteString(chunk.Delta)
		}
		if chunk.Error != "" {
			streamErr = chunk.Error
		}
		if forwarding {
			select {
			case out <- chunk:
			case <-callerCtx.Done():
				// Caller went away; stop forwarding but keep draining so
				// the in-flight response can still be persisted.
				forwarding = false
				log.WithField("stage", "streaming").Info("caller disconnected, draining to completion")
			}
		}
	}

	if streamErr != "" {
		// The stream itself failed: no assistant turn is recorded, the
		// already persisted user turn stays.
		log.WithField("stage", "streaming").WithField("error", streamErr).
			Warn("model stream terminated with error, skipping assistant persistence")
		return
	}

	content := buf.String()
	if content == "" {
		return
	}

	pctx, pcancel := context.WithTimeout(context.Background(), m.opts.PersistTimeout)
	defer pcancel()

	assistantTurn := repository.Turn{
		SessionID: session.ID,
		Role:      repository.RoleAssistant,
		Content:   repository.TextContent(content),
	}
	if _, err := m.turns.Append(pctx, assistantTurn); err != nil {
		// The caller already has the streamed answer; this write is
		// best-effort and its failure is swallowed.
		log.WithError(&PersistenceError{Op: "persisting assistant turn", Err: err}).
			WithField("stage", "persisting").Warn("assistant turn not recorded")
		return
	}
	if err := m.sessions.Touch(pctx, session.ID); err != nil {
		log.WithError(err).WithField("stage", "persisting").Warn("session touch failed")
	}

	if len(overflow) == 0 {
		return
	}

	// Detached summary refresh: the turn is already complete from the
	// caller's perspective, so this runs supervised in the background and
	// its failures are only logged.
	folded := make([]repository.Turn, 0, len(overflow)+2)
	folded = append(folded, overflow...)
	folded = append(folded, userTurn, assistantTurn)
	oldSummary := session.Summary
	sessionID := session.ID

	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.WithField("stage", "summarizing").WithField("panic", r).
					Error("summary refresh panicked")
			}
		}()

		sctx, scancel := context.WithTimeout(context.Background(), m.opts.PersistTimeout+m.opts.SummarizeTimeout)
		defer scancel()

		updated := m.summarizer.Update(sctx, oldSummary, folded)
		if updated == oldSummary {
			return
		}
		if err := m.sessions.UpdateSummary(sctx, sessionID, updated); err != nil {
			log.WithError(&PersistenceError{Op: "writing summary", Err: err}).
				WithField("stage", "summarizing").Warn("summary not persisted")
		}
	}()
}

func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleRuneLimit {
		return text
	}
	return string(runes[:titleRuneLimit])
}

type errString string

func (e errString) Error() string { return string(e) }
