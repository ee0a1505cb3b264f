package calls

import (
	"context"
	"fmt"
	"sync"

	"telbill/internal/pipeline"
	"telbill/internal/tasks"
	"telbill/pkg/models"
)

// memoryCallStore mirrors the statement-level semantics of the Postgres
// repository.
type memoryCallStore struct {
	mu    sync.Mutex
	calls map[string]Call
	err   error
}

func newMemoryCallStore() *memoryCallStore {
	return &memoryCallStore{calls: make(map[string]Call)}
}

func (m *memoryCallStore) Upsert(_ context.Context, u CallUpdate) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.calls[u.CallID]
	if ok && c.Complete() {
		return nil
	}
	c.CallID = u.CallID
	if u.Source != nil {
		c.Source = u.Source
	}
	if u.Destination != nil {
		c.Destination = u.Destination
	}
	if u.StartTimestamp != nil {
		c.StartTimestamp = u.StartTimestamp
	}
	if u.StopTimestamp != nil {
		c.StopTimestamp = u.StopTimestamp
	}
	m.calls[u.CallID] = c
	return nil
}

func (m *memoryCallStore) Get(_ context.Context, callID string) (Call, error) {
	if m.err != nil {
		return Call{}, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.calls[callID]
	if !ok {
		return Call{}, fmt.Errorf("%w: %s", ErrCallNotFound, callID)
	}
	return c, nil
}

func (m *memoryCallStore) ClaimCompletion(_ context.Context, callID, jobID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.calls[callID]
	if !ok || !c.Complete() {
		return false, nil
	}
	if c.CompletedBy != "" && c.CompletedBy != jobID {
		return false, nil
	}
	c.CompletedBy = jobID
	m.calls[callID] = c
	return true, nil
}

type memoryRegistryStore struct {
	mu   sync.Mutex
	seen map[string]string
}

func newMemoryRegistryStore() *memoryRegistryStore {
	return &memoryRegistryStore{seen: make(map[string]string)}
}

func (m *memoryRegistryStore) Save(_ context.Context, e Event, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := e.CallID + "/" + string(e.Kind)
	if _, ok := m.seen[k]; ok {
		return false, nil
	}
	m.seen[k] = jobID
	return true, nil
}

type memoryPublisher struct {
	mu   sync.Mutex
	jobs []models.Job
	err  error
}

func (p *memoryPublisher) Publish(_ context.Context, job models.Job) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *memoryPublisher) published() []models.Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Job(nil), p.jobs...)
}

func testEnv() (pipeline.Env, *tasks.MemoryRepository, *memoryPublisher) {
	store := tasks.NewMemoryRepository()
	pub := &memoryPublisher{}
	return pipeline.Env{Tasks: store, Publisher: pub}, store, pub
}
