package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/convoflow/convoflow-backend/internal/providers"
	"github.com/convoflow/convoflow-backend/internal/repository"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*repository.Session

	createErr  error
	summaryErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*repository.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *repository.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) Get(_ context.Context, id string) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) List(_ context.Context, ownerID string) ([]*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.Session
	for _, s := range r.sessions {
		if s.OwnerID == ownerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) UpdateSummary(_ context.Context, id string, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summaryErr != nil {
		return r.summaryErr
	}
	if s, ok := r.sessions[id]; ok {
		s.Summary = summary
	}
	return nil
}

func (r *fakeSessionRepo) Touch(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) summaryOf(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s.Summary
	}
	return ""
}

type fakeTurnRepo struct {
	mu    sync.Mutex
	turns []repository.Turn
	clock time.Time
	tick  time.Duration
	seq   int64

	appendErr error
}

func newFakeTurnRepo() *fakeTurnRepo {
	return &fakeTurnRepo{clock: time.Now(), tick: time.Millisecond}
}

func (r *fakeTurnRepo) Append(_ context.Context, turn repository.Turn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	turn, err := repository.ValidateTurn(turn)
	if err != nil {
		return "", err
	}
	if r.appendErr != nil {
		return "", r.appendErr
	}
	turn.ID = uuid.New().String()
	r.clock = r.clock.Add(r.tick)
	r.seq++
	turn.Seq = r.seq
	turn.CreatedAt = r.clock
	r.turns = append(r.turns, turn)
	return turn.ID, nil
}

func (r *fakeTurnRepo) ListBySession(_ context.Context, sessionID string) ([]repository.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Turn
	for _, t := range r.turns {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (r *fakeTurnRepo) DeleteBySession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []repository.Turn
	for _, t := range r.turns {
		if t.SessionID != sessionID {
			kept = append(kept, t)
		}
	}
	r.turns = kept
	return nil
}

func (r *fakeTurnRepo) bySession(sessionID string) []repository.Turn {
	out, _ := r.ListBySession(context.Background(), sessionID)
	return out
}

// fakeProvider scripts streaming chunks and non-streaming completions.
type fakeProvider struct {
	mu sync.Mutex

	streamChunks  []providers.StreamChunk
	streamErr     error
	completeText  string
	completeErr   error
	completeCalls int
	lastRequest   providers.CompletionRequest
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(_ context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completeCalls++
	if p.completeErr != nil {
		return nil, p.completeErr
	}
	return &providers.CompletionResponse{
		Choices: []providers.Choice{
			{Message: providers.Message{Role: repository.RoleAssistant, Content: p.completeText}},
		},
	}, nil
}

func (p *fakeProvider) StreamComplete(_ context.Context, req providers.CompletionRequest) (<-chan providers.StreamChunk, error) {
	p.mu.Lock()
	p.lastRequest = req
	chunks := make([]providers.StreamChunk, len(p.streamChunks))
	copy(chunks, p.streamChunks)
	err := p.streamErr
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	out := make(chan providers.StreamChunk)
	go func() {
		defer close(out)
		for _, c := range chunks {
			out <- c
		}
	}()
	return out, nil
}

func (p *fakeProvider) GetModels(context.Context) ([]providers.Model, error) {
	return nil, nil
}

func (p *fakeProvider) ValidateConfig() error { return nil }

func (p *fakeProvider) lastSystemPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.lastRequest.Messages) == 0 {
		return ""
	}
	return p.lastRequest.Messages[0].Content
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completeCalls
}

type fakeRetriever struct {
	passages []Passage
	err      error
	queries  []string
}

func (r *fakeRetriever) Retrieve(_ context.Context, query string, _ int) ([]Passage, error) {
	r.queries = append(r.queries, query)
	if r.err != nil {
		return nil, r.err
	}
	return r.passages, nil
}

var errStoreDown = errors.New("store unreachable")
